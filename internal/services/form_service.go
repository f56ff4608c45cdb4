package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/data/repos"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/scheduling"
)

type CreateFormInput struct {
	Title     string
	Questions []string
	Deadline  *time.Time
}

type UpdateFormInput struct {
	Title         *string
	Deadline      *time.Time
	ClearDeadline bool
}

type UpdateQuestionInput struct {
	Text  *string
	Order *int
}

// FormView is a form with its ordered questions.
type FormView struct {
	types.Form
	Questions []*types.Question `json:"questions"`
}

type FormDetail struct {
	Form         *types.Form          `json:"form"`
	Questions    []*types.Question    `json:"questions"`
	Answers      []*types.Answer      `json:"answers"`
	CallAttempts []*types.CallAttempt `json:"call_attempts,omitempty"`
}

type PatientFormView struct {
	types.Form
	DoctorName    string `json:"doctor_name"`
	QuestionCount int    `json:"question_count"`
}

// FormService covers the doctor and patient sides of form management.
// Manual submission lives in SubmissionService.
type FormService interface {
	CreateForm(dbc dbctx.Context, patientID uuid.UUID, in CreateFormInput) (*FormView, error)
	ListPatientForms(dbc dbctx.Context, patientID uuid.UUID) ([]*FormView, error)
	GetForm(dbc dbctx.Context, formID uuid.UUID) (*FormDetail, error)
	UpdateForm(dbc dbctx.Context, formID uuid.UUID, in UpdateFormInput) (*types.Form, error)
	DeleteForm(dbc dbctx.Context, formID uuid.UUID) error

	AddQuestion(dbc dbctx.Context, formID uuid.UUID, text string, order *int) (*types.Question, error)
	UpdateQuestion(dbc dbctx.Context, questionID uuid.UUID, in UpdateQuestionInput) (*types.Question, error)
	DeleteQuestion(dbc dbctx.Context, questionID uuid.UUID) error
	ListAnswers(dbc dbctx.Context, formID uuid.UUID) ([]*types.Answer, error)

	ListMyForms(dbc dbctx.Context) ([]*PatientFormView, error)
	GetMyForm(dbc dbctx.Context, formID uuid.UUID) (*FormDetail, error)
}

type formService struct {
	db           *gorm.DB
	log          *logger.Logger
	forms        repos.FormRepo
	questions    repos.QuestionRepo
	answers      repos.AnswerRepo
	callAttempts repos.CallAttemptRepo
	patients     repos.PatientRepo
	doctors      repos.DoctorRepo
	scheduler    scheduling.Scheduler
	notifier     NotificationService
	now          func() time.Time
}

func NewFormService(
	db *gorm.DB,
	log *logger.Logger,
	forms repos.FormRepo,
	questions repos.QuestionRepo,
	answers repos.AnswerRepo,
	callAttempts repos.CallAttemptRepo,
	patients repos.PatientRepo,
	doctors repos.DoctorRepo,
	scheduler scheduling.Scheduler,
	notifier NotificationService,
) FormService {
	return &formService{
		db:           db,
		log:          log.With("service", "FormService"),
		forms:        forms,
		questions:    questions,
		answers:      answers,
		callAttempts: callAttempts,
		patients:     patients,
		doctors:      doctors,
		scheduler:    scheduler,
		notifier:     notifier,
		now:          time.Now,
	}
}

func (fs *formService) CreateForm(dbc dbctx.Context, patientID uuid.UUID, in CreateFormInput) (*FormView, error) {
	doctorID, err := actorID(dbc.Ctx, ctxutil.RoleDoctor)
	if err != nil {
		return nil, err
	}
	patient, err := fs.patients.GetForDoctor(dbc, patientID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient == nil {
		return nil, notFound("Patient not found")
	}

	texts := lo.Filter(lo.Map(in.Questions, func(q string, _ int) string { return strings.TrimSpace(q) }),
		func(q string, _ int) bool { return q != "" })
	if len(texts) == 0 {
		return nil, validationError("At least one question is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = types.DefaultFormTitle
	}

	form := &types.Form{
		DoctorID:  doctorID,
		PatientID: patient.ID,
		Title:     title,
		Deadline:  utcPtr(in.Deadline),
	}
	var questions []*types.Question
	// Form and questions commit together, so a failed question insert
	// leaves no orphan form behind.
	if err := inTx(fs.db, dbc, func(inner dbctx.Context) error {
		if _, err := fs.forms.Create(inner, []*types.Form{form}); err != nil {
			return fmt.Errorf("create form: %w", err)
		}
		questions = lo.Map(texts, func(text string, i int) *types.Question {
			return &types.Question{FormID: form.ID, QuestionText: text, QuestionOrder: i}
		})
		if _, err := fs.questions.Create(inner, questions); err != nil {
			return fmt.Errorf("create questions: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	fs.log.Info("Form created", "form_id", form.ID, "patient_id", patient.ID, "questions", len(questions))

	if form.Deadline != nil {
		fs.armDeadline(dbc.Ctx, form)
	}
	if fs.notifier != nil {
		BestEffort(fs.log, "notify_form_assigned", func() error {
			doctor, err := fs.doctors.GetByID(dbctx.Context{Ctx: dbc.Ctx}, doctorID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(dbc.Ctx), 15*time.Second)
			defer cancel()
			return fs.notifier.NotifyFormAssigned(ctx, form, patient, doctor)
		})
	}
	return &FormView{Form: *form, Questions: questions}, nil
}

func (fs *formService) armDeadline(ctx context.Context, form *types.Form) {
	if fs.scheduler == nil || form.Deadline == nil {
		return
	}
	BestEffort(fs.log, "schedule_deadline_call", func() error {
		_, err := fs.scheduler.ScheduleDeadlineCall(ctx, form.ID, *form.Deadline)
		return err
	})
}

func (fs *formService) ListPatientForms(dbc dbctx.Context, patientID uuid.UUID) ([]*FormView, error) {
	doctorID, err := actorID(dbc.Ctx, ctxutil.RoleDoctor)
	if err != nil {
		return nil, err
	}
	patient, err := fs.patients.GetForDoctor(dbc, patientID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient == nil {
		return nil, notFound("Patient not found")
	}
	forms, err := fs.forms.ListForDoctorPatient(dbc, doctorID, patient.ID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	qs, err := fs.questions.ListByForms(dbc, lo.Map(forms, func(f *types.Form, _ int) uuid.UUID { return f.ID }))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byForm := lo.GroupBy(qs, func(q *types.Question) uuid.UUID { return q.FormID })
	return lo.Map(forms, func(f *types.Form, _ int) *FormView {
		return &FormView{Form: *f, Questions: nonNil(byForm[f.ID])}
	}), nil
}

func (fs *formService) ownedForm(dbc dbctx.Context, formID uuid.UUID) (*types.Form, error) {
	doctorID, err := actorID(dbc.Ctx, ctxutil.RoleDoctor)
	if err != nil {
		return nil, err
	}
	form, err := fs.forms.GetForDoctor(dbc, formID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form == nil {
		return nil, notFound("Form not found")
	}
	return form, nil
}

func (fs *formService) GetForm(dbc dbctx.Context, formID uuid.UUID) (*FormDetail, error) {
	form, err := fs.ownedForm(dbc, formID)
	if err != nil {
		return nil, err
	}
	detail, err := fs.detail(dbc, form)
	if err != nil {
		return nil, err
	}
	attempts, err := fs.callAttempts.ListByForm(dbc, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list call attempts: %w", err)
	}
	detail.CallAttempts = attempts
	return detail, nil
}

func (fs *formService) detail(dbc dbctx.Context, form *types.Form) (*FormDetail, error) {
	qs, err := fs.questions.ListByForm(dbc, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := fs.answers.ListByForm(dbc, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return &FormDetail{Form: form, Questions: nonNil(qs), Answers: nonNil(answers)}, nil
}

func (fs *formService) UpdateForm(dbc dbctx.Context, formID uuid.UUID, in UpdateFormInput) (*types.Form, error) {
	form, err := fs.ownedForm(dbc, formID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationError("Title cannot be empty")
		}
		updates["title"] = title
	}
	deadlineChanged := false
	switch {
	case in.ClearDeadline:
		updates["deadline"] = nil
		deadlineChanged = form.Deadline != nil
	case in.Deadline != nil:
		updates["deadline"] = in.Deadline.UTC()
		deadlineChanged = form.Deadline == nil || !form.Deadline.Equal(*in.Deadline)
	}
	if len(updates) == 0 {
		return form, nil
	}
	if err := fs.forms.UpdateFields(dbc, form.ID, updates); err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}
	updated, err := fs.forms.GetByID(dbc, form.ID)
	if err != nil {
		return nil, fmt.Errorf("reload form: %w", err)
	}
	if updated == nil {
		// Deleted between the update and the reload.
		return nil, notFound("Form not found")
	}
	if deadlineChanged && updated.Deadline != nil && !updated.Submitted() && updated.Deadline.After(fs.now()) {
		fs.armDeadline(dbc.Ctx, updated)
	}
	return updated, nil
}

func (fs *formService) DeleteForm(dbc dbctx.Context, formID uuid.UUID) error {
	form, err := fs.ownedForm(dbc, formID)
	if err != nil {
		return err
	}
	if err := fs.forms.DeleteCascade(dbc, form.ID); err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	fs.log.Info("Form deleted", "form_id", form.ID)
	return nil
}

func (fs *formService) AddQuestion(dbc dbctx.Context, formID uuid.UUID, text string, order *int) (*types.Question, error) {
	form, err := fs.ownedForm(dbc, formID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("Question text is required")
	}
	if order != nil && *order < 0 {
		return nil, validationError("Question order must not be negative")
	}
	q := &types.Question{FormID: form.ID, QuestionText: text}
	err = inTx(fs.db, dbc, func(inner dbctx.Context) error {
		if order != nil {
			q.QuestionOrder = *order
		} else {
			next, err := fs.questions.NextOrder(inner, form.ID)
			if err != nil {
				return err
			}
			q.QuestionOrder = next
		}
		_, err := fs.questions.Create(inner, []*types.Question{q})
		return err
	})
	if isDuplicateKey(err) {
		return nil, validationError("Question order already in use")
	}
	if err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (fs *formService) ownedQuestion(dbc dbctx.Context, questionID uuid.UUID) (*types.Question, error) {
	q, err := fs.questions.GetByID(dbc, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if q == nil {
		return nil, notFound("Question not found")
	}
	if _, err := fs.ownedForm(dbc, q.FormID); err != nil {
		if isKind(err, ErrNotFound) {
			return nil, notFound("Question not found")
		}
		return nil, err
	}
	return q, nil
}

func (fs *formService) UpdateQuestion(dbc dbctx.Context, questionID uuid.UUID, in UpdateQuestionInput) (*types.Question, error) {
	q, err := fs.ownedQuestion(dbc, questionID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Text != nil {
		text := strings.TrimSpace(*in.Text)
		if text == "" {
			return nil, validationError("Question text is required")
		}
		updates["question_text"] = text
	}
	if in.Order != nil {
		if *in.Order < 0 {
			return nil, validationError("Question order must not be negative")
		}
		updates["question_order"] = *in.Order
	}
	if len(updates) == 0 {
		return q, nil
	}
	err = fs.questions.UpdateFields(dbc, q.ID, updates)
	if isDuplicateKey(err) {
		return nil, validationError("Question order already in use")
	}
	if err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return fs.questions.GetByID(dbc, q.ID)
}

func (fs *formService) DeleteQuestion(dbc dbctx.Context, questionID uuid.UUID) error {
	q, err := fs.ownedQuestion(dbc, questionID)
	if err != nil {
		return err
	}
	if err := fs.questions.DeleteCascade(dbc, q.ID); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

func (fs *formService) ListAnswers(dbc dbctx.Context, formID uuid.UUID) ([]*types.Answer, error) {
	form, err := fs.ownedForm(dbc, formID)
	if err != nil {
		return nil, err
	}
	answers, err := fs.answers.ListByForm(dbc, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return nonNil(answers), nil
}

func (fs *formService) ListMyForms(dbc dbctx.Context) ([]*PatientFormView, error) {
	patientID, err := actorID(dbc.Ctx, ctxutil.RolePatient)
	if err != nil {
		return nil, err
	}
	forms, err := fs.forms.ListForPatient(dbc, patientID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	doctors, err := fs.doctors.GetByIDs(dbc, lo.Uniq(lo.Map(forms, func(f *types.Form, _ int) uuid.UUID { return f.DoctorID })))
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	names := lo.SliceToMap(doctors, func(d *types.Doctor) (uuid.UUID, string) { return d.ID, d.Name })
	qs, err := fs.questions.ListByForms(dbc, lo.Map(forms, func(f *types.Form, _ int) uuid.UUID { return f.ID }))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	counts := lo.CountValuesBy(qs, func(q *types.Question) uuid.UUID { return q.FormID })
	return lo.Map(forms, func(f *types.Form, _ int) *PatientFormView {
		return &PatientFormView{Form: *f, DoctorName: names[f.DoctorID], QuestionCount: counts[f.ID]}
	}), nil
}

func (fs *formService) GetMyForm(dbc dbctx.Context, formID uuid.UUID) (*FormDetail, error) {
	patientID, err := actorID(dbc.Ctx, ctxutil.RolePatient)
	if err != nil {
		return nil, err
	}
	form, err := fs.forms.GetForPatient(dbc, formID, patientID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form == nil {
		return nil, notFound("Form not found")
	}
	return fs.detail(dbc, form)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
