package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/data/repos"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

// Skip reasons reported by the sweep and the deadline job.
const (
	SkipMissingPhone     = "missing_phone"
	SkipNoQuestions      = "no_questions"
	SkipAlreadyClaimed   = "already_claimed"
	SkipAlreadySubmitted = "already_submitted"
	SkipAlreadyCalled    = "already_called"
	SkipNoDeadline       = "no_deadline"
	SkipDeadlineMoved    = "deadline_moved"
)

// deadlineGrace absorbs clock skew between the job backend and this process.
const deadlineGrace = time.Minute

// settleTimeout bounds the writes that follow a placement attempt. They run
// detached from the caller so a dropped request cannot strand a claim.
const settleTimeout = 10 * time.Second

func settled(dbc dbctx.Context) (dbctx.Context, context.CancelFunc) {
	parent := dbc.Ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), settleTimeout)
	return dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, cancel
}

type CallResult struct {
	CallID  string `json:"callId"`
	Message string `json:"message"`
}

type SweepResult struct {
	FormID  uuid.UUID `json:"formId"`
	CallID  string    `json:"callId,omitempty"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Skipped bool      `json:"skipped,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

type SweepReport struct {
	Message string        `json:"message"`
	Count   int           `json:"count"`
	Results []SweepResult `json:"results"`
}

type CallConfig struct {
	CallbackURL      string
	SweepConcurrency int
	SweepBatchLimit  int
}

type CallService interface {
	// TriggerCall places a call for a doctor's form right away. Repeated calls
	// are allowed as long as the form is open.
	TriggerCall(dbc dbctx.Context, formID uuid.UUID) (*CallResult, error)
	// CallForDeadline is the one-shot deadline job: the sweep applied to a
	// single form. Provider failures are returned so the job is retried.
	CallForDeadline(dbc dbctx.Context, formID uuid.UUID) (*SweepResult, error)
	// RunSweep calls every open, unclaimed form past its deadline. One form's
	// failure never stops the others.
	RunSweep(dbc dbctx.Context) (*SweepReport, error)
}

type callService struct {
	log          *logger.Logger
	forms        repos.FormRepo
	questions    repos.QuestionRepo
	patients     repos.PatientRepo
	doctors      repos.DoctorRepo
	callAttempts repos.CallAttemptRepo
	calls        vapi.Client
	cfg          CallConfig
	now          func() time.Time
}

func NewCallService(
	log *logger.Logger,
	forms repos.FormRepo,
	questions repos.QuestionRepo,
	patients repos.PatientRepo,
	doctors repos.DoctorRepo,
	callAttempts repos.CallAttemptRepo,
	calls vapi.Client,
	cfg CallConfig,
) CallService {
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 1
	}
	if cfg.SweepBatchLimit <= 0 {
		cfg.SweepBatchLimit = 200
	}
	return &callService{
		log:          log.With("service", "CallService"),
		forms:        forms,
		questions:    questions,
		patients:     patients,
		doctors:      doctors,
		callAttempts: callAttempts,
		calls:        calls,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (cs *callService) TriggerCall(dbc dbctx.Context, formID uuid.UUID) (*CallResult, error) {
	doctorID, err := actorID(dbc.Ctx, ctxutil.RoleDoctor)
	if err != nil {
		return nil, err
	}
	form, err := cs.forms.GetForDoctor(dbc, formID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form == nil {
		return nil, notFound("Form not found")
	}
	if form.Submitted() {
		return nil, alreadySubmitted()
	}
	patient, questions, err := cs.loadCallTargets(dbc, form)
	if err != nil {
		return nil, err
	}
	if patient.Phone() == "" {
		return nil, missingContact()
	}
	if len(questions) == 0 {
		return nil, noQuestions()
	}

	call, err := cs.placeCall(dbc, form, patient, questions, types.CallSourceManual)
	if err != nil {
		return nil, err
	}
	sdbc, cancel := settled(dbc)
	defer cancel()
	if err := cs.forms.StampCall(sdbc, form.ID, call.ID, cs.now()); err != nil {
		return nil, fmt.Errorf("stamp call: %w", err)
	}
	return &CallResult{CallID: call.ID, Message: "Call initiated successfully"}, nil
}

func (cs *callService) CallForDeadline(dbc dbctx.Context, formID uuid.UUID) (*SweepResult, error) {
	form, err := cs.forms.GetByID(dbc, formID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form == nil {
		return nil, notFound("Form not found")
	}
	skip := func(reason string) (*SweepResult, error) {
		cs.log.Info("Deadline call skipped", "form_id", form.ID, "reason", reason)
		observability.Current().IncSweepForm("skipped")
		return &SweepResult{FormID: form.ID, Success: true, Skipped: true, Reason: reason}, nil
	}
	switch {
	case form.Submitted():
		return skip(SkipAlreadySubmitted)
	case form.CallScheduled:
		return skip(SkipAlreadyCalled)
	case form.Deadline == nil:
		return skip(SkipNoDeadline)
	case !form.Overdue(cs.now().Add(deadlineGrace)):
		return skip(SkipDeadlineMoved)
	}

	res, err := cs.processForm(dbc, form, types.CallSourceDeadline)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (cs *callService) RunSweep(dbc dbctx.Context) (*SweepReport, error) {
	start := time.Now()
	m := observability.Current()

	forms, err := cs.forms.ListOverdue(dbctx.Context{Ctx: dbc.Ctx}, cs.now(), cs.cfg.SweepBatchLimit)
	if err != nil {
		m.ObserveSweep("error", time.Since(start))
		return nil, fmt.Errorf("list overdue forms: %w", err)
	}
	if len(forms) == 0 {
		m.ObserveSweep("ok", time.Since(start))
		return &SweepReport{Message: "No overdue forms found", Count: 0, Results: []SweepResult{}}, nil
	}

	results := make([]SweepResult, len(forms))
	var g errgroup.Group
	g.SetLimit(cs.cfg.SweepConcurrency)
	for i, form := range forms {
		g.Go(func() error {
			res, err := cs.processForm(dbctx.Context{Ctx: dbc.Ctx}, form, types.CallSourceSweep)
			if err != nil {
				cs.log.Warn("Sweep call failed", "form_id", form.ID, "error", err)
				res = SweepResult{FormID: form.ID, Success: false, Error: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := lo.CountBy(results, func(r SweepResult) bool { return !r.Success })
	cs.log.Info("Sweep finished", "forms", len(forms), "failed", failed)
	m.ObserveSweep(lo.Ternary(failed > 0, "partial", "ok"), time.Since(start))
	return &SweepReport{
		Message: fmt.Sprintf("Processed %d overdue forms", len(forms)),
		Count:   len(forms),
		Results: results,
	}, nil
}

// processForm claims and calls one overdue form. Skips are successful
// results; placement failures come back as errors with the claim released.
func (cs *callService) processForm(dbc dbctx.Context, form *types.Form, source string) (res SweepResult, err error) {
	ctx, span := observability.StartSpan(dbc.Ctx, "call.process_form",
		attribute.String("form.id", form.ID.String()),
		attribute.String("call.source", source))
	defer func() { observability.EndSpan(span, err) }()
	dbc.Ctx = ctx

	m := observability.Current()
	res = SweepResult{FormID: form.ID}
	skip := func(reason string) (SweepResult, error) {
		cs.log.Info("Form skipped", "form_id", form.ID, "source", source, "reason", reason)
		m.IncSweepForm("skipped")
		res.Success, res.Skipped, res.Reason = true, true, reason
		return res, nil
	}

	patient, questions, err := cs.loadCallTargets(dbc, form)
	if err != nil {
		m.IncSweepForm("error")
		return res, err
	}
	if patient.Phone() == "" {
		return skip(SkipMissingPhone)
	}
	if len(questions) == 0 {
		return skip(SkipNoQuestions)
	}

	claimed, err := cs.forms.ClaimForCall(dbc, form.ID)
	if err != nil {
		m.IncSweepForm("error")
		return res, fmt.Errorf("claim form: %w", err)
	}
	if !claimed {
		return skip(SkipAlreadyClaimed)
	}

	call, err := cs.placeCall(dbc, form, patient, questions, source)
	sdbc, cancel := settled(dbc)
	defer cancel()
	if err != nil {
		if rerr := cs.forms.ReleaseCallClaim(sdbc, form.ID); rerr != nil {
			cs.log.Error("Failed to release call claim", "form_id", form.ID, "error", rerr)
		}
		m.IncSweepForm("error")
		return res, err
	}
	if err := cs.forms.StampCall(sdbc, form.ID, call.ID, cs.now()); err != nil {
		// The claim stays set so the form is not called twice.
		m.IncSweepForm("error")
		return res, fmt.Errorf("stamp call: %w", err)
	}

	m.IncSweepForm("called")
	res.Success = true
	res.CallID = call.ID
	return res, nil
}

// loadCallTargets returns the form's patient (never nil) and ordered questions.
func (cs *callService) loadCallTargets(dbc dbctx.Context, form *types.Form) (*types.Patient, []*types.Question, error) {
	patient, err := cs.patients.GetByID(dbc, form.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("load patient: %w", err)
	}
	if patient == nil {
		patient = &types.Patient{ID: form.PatientID}
	}
	questions, err := cs.questions.ListByForm(dbc, form.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load questions: %w", err)
	}
	return patient, questions, nil
}

func (cs *callService) placeCall(dbc dbctx.Context, form *types.Form, patient *types.Patient, questions []*types.Question, source string) (*vapi.Call, error) {
	m := observability.Current()
	if cs.calls == nil {
		m.IncCallPlaced(source, types.CallStatusFailed)
		return nil, configurationError("Call provider is not configured")
	}

	doctorName := ""
	if doctor, err := cs.doctors.GetByID(dbc, form.DoctorID); err != nil {
		cs.log.Warn("Doctor lookup failed; using generic office name", "form_id", form.ID, "error", err)
	} else if doctor != nil {
		doctorName = strings.TrimSpace(doctor.Name)
	}

	script := lo.Map(questions, func(q *types.Question, _ int) vapi.ScriptQuestion {
		return vapi.ScriptQuestion{ID: q.ID.String(), Text: q.QuestionText}
	})
	req := vapi.PlaceCallRequest{
		CustomerNumber: patient.Phone(),
		CustomerName:   patient.DisplayName(),
		Assistant:      vapi.BuildAssistant(patient.DisplayName(), doctorName, form.Title, script, cs.cfg.CallbackURL),
		Metadata: vapi.CallMetadata{
			FormID:      form.ID.String(),
			PatientID:   form.PatientID.String(),
			DoctorID:    form.DoctorID.String(),
			CallbackURL: cs.cfg.CallbackURL,
			Questions: lo.Map(script, func(q vapi.ScriptQuestion, _ int) vapi.CallQuestion {
				return vapi.CallQuestion{ID: q.ID, Text: q.Text}
			}),
		},
	}

	call, err := cs.calls.PlaceCall(dbc.Ctx, req)
	if err == nil && (call == nil || strings.TrimSpace(call.ID) == "") {
		err = errors.New("provider returned no call id")
	}
	if err != nil {
		cs.log.Error("Call placement failed", "form_id", form.ID, "source", source, "error", err)
		m.IncCallPlaced(source, types.CallStatusFailed)
		cs.recordAttempt(dbc, form.ID, source, "", err, len(questions))
		return nil, translateCallError(err)
	}

	cs.log.Info("Call placed", "form_id", form.ID, "source", source, "call_id", call.ID)
	m.IncCallPlaced(source, types.CallStatusPlaced)
	cs.recordAttempt(dbc, form.ID, source, call.ID, nil, len(questions))
	return call, nil
}

func (cs *callService) recordAttempt(dbc dbctx.Context, formID uuid.UUID, source, callID string, callErr error, questionCount int) {
	dbc, cancel := settled(dbc)
	defer cancel()
	BestEffort(cs.log, "record_call_attempt", func() error {
		meta, err := json.Marshal(map[string]any{"question_count": questionCount})
		if err != nil {
			return err
		}
		attempt := &types.CallAttempt{
			FormID:   formID,
			Source:   source,
			Status:   types.CallStatusPlaced,
			Metadata: datatypes.JSON(meta),
		}
		if callID != "" {
			attempt.CallID = &callID
		}
		if callErr != nil {
			attempt.Status = types.CallStatusFailed
			attempt.Error = callErr.Error()
		}
		return cs.callAttempts.Create(dbc, attempt)
	})
}
