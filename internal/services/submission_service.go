package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/data/repos"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/extraction"
	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

// AnswerInput is one submitted answer as it arrives over the wire.
type AnswerInput struct {
	QuestionID string  `json:"question_id"`
	AnswerText *string `json:"answer_text"`
}

// SubmissionEvent is one of ManualSubmission, CallTranscriptSubmission or
// CallAnswersSubmission.
type SubmissionEvent interface {
	submissionEvent()
}

type ManualSubmission struct {
	Answers []AnswerInput
}

// CallTranscriptSubmission carries a finished call whose answers still have
// to be extracted.
type CallTranscriptSubmission struct {
	CallID     string
	Transcript extraction.Transcript
}

// CallAnswersSubmission carries answers the call agent already structured.
type CallAnswersSubmission struct {
	CallID  string
	Answers []AnswerInput
}

func (ManualSubmission) submissionEvent()         {}
func (CallTranscriptSubmission) submissionEvent() {}
func (CallAnswersSubmission) submissionEvent()    {}

const (
	SubmissionSubmitted        = "submitted"
	SubmissionAlreadySubmitted = "already_submitted"
	SubmissionSkipped          = "skipped"
)

type SubmitResult struct {
	FormID       uuid.UUID `json:"formId"`
	Status       string    `json:"status"`
	AnswersSaved int       `json:"answersCount"`
	Reason       string    `json:"reason,omitempty"`
}

type SubmissionService interface {
	// SubmitManual is the patient path; it checks ownership first.
	SubmitManual(dbc dbctx.Context, formID uuid.UUID, answers []AnswerInput) (*SubmitResult, error)
	// Submit applies ev to the form without an ownership check. Callers are
	// the webhook ingress and SubmitManual.
	Submit(dbc dbctx.Context, formID uuid.UUID, ev SubmissionEvent) (*SubmitResult, error)
}

type submissionService struct {
	db        *gorm.DB
	log       *logger.Logger
	forms     repos.FormRepo
	questions repos.QuestionRepo
	answers   repos.AnswerRepo
	extractor extraction.Extractor
	now       func() time.Time
}

func NewSubmissionService(
	db *gorm.DB,
	log *logger.Logger,
	forms repos.FormRepo,
	questions repos.QuestionRepo,
	answers repos.AnswerRepo,
	extractor extraction.Extractor,
) SubmissionService {
	return &submissionService{
		db:        db,
		log:       log.With("service", "SubmissionService"),
		forms:     forms,
		questions: questions,
		answers:   answers,
		extractor: extractor,
		now:       time.Now,
	}
}

func (ss *submissionService) SubmitManual(dbc dbctx.Context, formID uuid.UUID, answers []AnswerInput) (*SubmitResult, error) {
	patientID, err := actorID(dbc.Ctx, ctxutil.RolePatient)
	if err != nil {
		return nil, err
	}
	form, err := ss.forms.GetForPatient(dbc, formID, patientID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form == nil {
		return nil, notFound("Form not found")
	}
	return ss.Submit(dbc, form.ID, ManualSubmission{Answers: answers})
}

func (ss *submissionService) Submit(dbc dbctx.Context, formID uuid.UUID, ev SubmissionEvent) (*SubmitResult, error) {
	channel, via, callID := describeEvent(ev)
	m := observability.Current()
	res := &SubmitResult{FormID: formID}

	form, err := ss.forms.GetByID(dbc, formID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form == nil {
		m.IncSubmission(channel, "not_found")
		return nil, notFound("Form not found")
	}
	// Cheap early exit; the conditional write below is what actually decides.
	if form.Submitted() {
		m.IncSubmission(channel, "duplicate")
		res.Status = SubmissionAlreadySubmitted
		return res, nil
	}

	questions, err := ss.questions.ListByForm(dbc, form.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	var rows []*types.Answer
	switch e := ev.(type) {
	case ManualSubmission:
		rows = answerRows(e.Answers, questions, true)
	case CallAnswersSubmission:
		rows = answerRows(e.Answers, questions, false)
	case CallTranscriptSubmission:
		rows = ss.extract(dbc, e.Transcript, questions)
	default:
		return nil, validationError(fmt.Sprintf("unsupported submission %T", ev))
	}

	// A call that produced nothing usable leaves the form open for another try.
	if via == types.SubmittedViaVoiceCall && len(rows) == 0 {
		ss.log.Warn("Call submission produced no answers; form left open", "form_id", form.ID, "channel", channel)
		m.IncSubmission(channel, "skipped")
		res.Status = SubmissionSkipped
		res.Reason = "no_answers"
		return res, nil
	}

	won := false
	if err := inTx(ss.db, dbc, func(inner dbctx.Context) error {
		ok, err := ss.forms.MarkSubmitted(inner, form.ID, via, ss.now(), callID)
		if err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		if !ok {
			return nil
		}
		won = true
		if _, err := ss.answers.ReplaceForForm(inner, form.ID, rows); err != nil {
			return fmt.Errorf("save answers: %w", err)
		}
		return nil
	}); err != nil {
		m.IncSubmission(channel, "error")
		return nil, err
	}
	if !won {
		ss.log.Info("Form already submitted by a concurrent submission", "form_id", form.ID, "channel", channel)
		m.IncSubmission(channel, "duplicate")
		res.Status = SubmissionAlreadySubmitted
		return res, nil
	}

	ss.log.Info("Form submitted", "form_id", form.ID, "via", via, "answers", len(rows))
	m.IncSubmission(channel, "ok")
	res.Status = SubmissionSubmitted
	res.AnswersSaved = len(rows)
	return res, nil
}

func (ss *submissionService) extract(dbc dbctx.Context, transcript extraction.Transcript, questions []*types.Question) []*types.Answer {
	if ss.extractor == nil || len(questions) == 0 || transcript.Empty() {
		return nil
	}
	eqs := lo.Map(questions, func(q *types.Question, _ int) extraction.Question {
		return extraction.Question{ID: q.ID, Text: q.QuestionText}
	})
	extracted := ss.extractor.Extract(dbc.Ctx, transcript, eqs)
	inputs := lo.Map(extracted, func(a extraction.Answer, _ int) AnswerInput {
		text := a.Text
		return AnswerInput{QuestionID: a.QuestionID.String(), AnswerText: &text}
	})
	return answerRows(inputs, questions, false)
}

func describeEvent(ev SubmissionEvent) (channel, via, callID string) {
	switch e := ev.(type) {
	case ManualSubmission:
		return "manual", types.SubmittedViaManual, ""
	case CallAnswersSubmission:
		return "call_answers", types.SubmittedViaVoiceCall, strings.TrimSpace(e.CallID)
	case CallTranscriptSubmission:
		return "call_transcript", types.SubmittedViaVoiceCall, strings.TrimSpace(e.CallID)
	default:
		return "unknown", "", ""
	}
}

// answerRows keeps answers for questions of this form only, one per question
// with the last one winning, in question order. Blank text becomes a nil
// answer when keepBlank is set and is dropped otherwise.
func answerRows(inputs []AnswerInput, questions []*types.Question, keepBlank bool) []*types.Answer {
	byID := make(map[uuid.UUID]*string, len(inputs))
	for _, in := range inputs {
		qid, err := uuid.Parse(strings.TrimSpace(in.QuestionID))
		if err != nil {
			continue
		}
		var text *string
		if in.AnswerText != nil {
			if t := strings.TrimSpace(*in.AnswerText); t != "" {
				text = &t
			}
		}
		if text == nil && !keepBlank {
			continue
		}
		byID[qid] = text
	}
	out := make([]*types.Answer, 0, len(byID))
	for _, q := range questions {
		text, ok := byID[q.ID]
		if !ok {
			continue
		}
		out = append(out, &types.Answer{QuestionID: q.ID, AnswerText: text})
	}
	return out
}
