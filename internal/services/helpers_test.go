package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/data/repos"
	"github.com/yungbote/carecall-backend/internal/data/repos/testutil"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/extraction"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/scheduling"
)

type testRepos struct {
	db           *gorm.DB
	forms        repos.FormRepo
	questions    repos.QuestionRepo
	answers      repos.AnswerRepo
	callAttempts repos.CallAttemptRepo
	patients     repos.PatientRepo
	doctors      repos.DoctorRepo
}

func newTestRepos(t *testing.T, db *gorm.DB) testRepos {
	t.Helper()
	log := testutil.Logger(t)
	return testRepos{
		db:           db,
		forms:        repos.NewFormRepo(db, log),
		questions:    repos.NewQuestionRepo(db, log),
		answers:      repos.NewAnswerRepo(db, log),
		callAttempts: repos.NewCallAttemptRepo(db, log),
		patients:     repos.NewPatientRepo(db, log),
		doctors:      repos.NewDoctorRepo(db, log),
	}
}

func actorCtx(userID uuid.UUID, role string) dbctx.Context {
	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID, Role: role})
	return dbctx.Context{Ctx: ctx}
}

func doctorCtx(id uuid.UUID) dbctx.Context  { return actorCtx(id, ctxutil.RoleDoctor) }
func patientCtx(id uuid.UUID) dbctx.Context { return actorCtx(id, ctxutil.RolePatient) }

func systemCtx() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

func reloadForm(t *testing.T, r testRepos, id uuid.UUID) *types.Form {
	t.Helper()
	f, err := r.forms.GetByID(systemCtx(), id)
	if err != nil {
		t.Fatalf("reload form: %v", err)
	}
	if f == nil {
		t.Fatalf("reload form: %s missing", id)
	}
	return f
}

func answerTexts(t *testing.T, r testRepos, formID uuid.UUID) map[uuid.UUID]string {
	t.Helper()
	as, err := r.answers.ListByForm(systemCtx(), formID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	out := make(map[uuid.UUID]string, len(as))
	for _, a := range as {
		if a.AnswerText == nil {
			out[a.QuestionID] = "<nil>"
			continue
		}
		out[a.QuestionID] = *a.AnswerText
	}
	return out
}

type fakeCalls struct {
	mu       sync.Mutex
	requests []vapi.PlaceCallRequest
	failFor  map[string]error
	call     *vapi.Call
	getErr   error
	gets     []string
	onPlace  func()
}

func (f *fakeCalls) PlaceCall(_ context.Context, req vapi.PlaceCallRequest) (*vapi.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.onPlace != nil {
		f.onPlace()
	}
	if err := f.failFor[req.Metadata.FormID]; err != nil {
		return nil, err
	}
	return &vapi.Call{ID: "call-" + req.Metadata.FormID[:8], Status: "queued"}, nil
}

func (f *fakeCalls) GetCall(_ context.Context, callID string) (*vapi.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, callID)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.call, nil
}

func (f *fakeCalls) placedFor(formID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Metadata.FormID == formID.String() {
			n++
		}
	}
	return n
}

type scheduledCall struct {
	formID uuid.UUID
	when   time.Time
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduledCall
	err   error
}

func (f *fakeScheduler) ScheduleDeadlineCall(_ context.Context, formID uuid.UUID, when time.Time) (*scheduling.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, scheduledCall{formID: formID, when: when})
	return &scheduling.Job{ID: "job-" + formID.String(), DeliverAt: when}, nil
}

func (f *fakeScheduler) ScheduleRecurringSweep(_ context.Context, cron string) (*scheduling.Schedule, error) {
	return &scheduling.Schedule{ID: scheduling.SweepScheduleID, Cron: cron, Created: true}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	forms []uuid.UUID
	err   error
}

func (f *fakeNotifier) NotifyFormAssigned(_ context.Context, form *types.Form, _ *types.Patient, _ *types.Doctor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, form.ID)
	return f.err
}

// fakeExtractor answers every question it is given with the same text.
type fakeExtractor struct {
	answer string
	calls  int
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) Extract(_ context.Context, transcript extraction.Transcript, qs []extraction.Question) []extraction.Answer {
	f.calls++
	if f.answer == "" || transcript.Empty() {
		return nil
	}
	out := make([]extraction.Answer, 0, len(qs))
	for _, q := range qs {
		out = append(out, extraction.Answer{QuestionID: q.ID, Text: f.answer})
	}
	return out
}

var errProviderDown = errors.New("provider down")
