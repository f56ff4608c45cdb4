package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/carecall-backend/internal/data/repos"
	"github.com/yungbote/carecall-backend/internal/data/repos/testutil"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/apierr"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
)

func newFormServiceForTest(t *testing.T) (FormService, testRepos, *fakeScheduler, *fakeNotifier) {
	t.Helper()
	db := testutil.DB(t)
	r := newTestRepos(t, db)
	sched := &fakeScheduler{}
	notif := &fakeNotifier{}
	svc := NewFormService(db, testutil.Logger(t), r.forms, r.questions, r.answers, r.callAttempts, r.patients, r.doctors, sched, notif)
	return svc, r, sched, notif
}

func TestCreateFormArmsDeadlineAndNotifies(t *testing.T) {
	svc, r, sched, notif := newFormServiceForTest(t)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "Meredith", "4155550100")

	deadline := time.Now().Add(2 * time.Hour)
	view, err := svc.CreateForm(doctorCtx(doc.ID), pat.ID, CreateFormInput{
		Questions: []string{"  How are you feeling? ", "", "Any new medications?"},
		Deadline:  &deadline,
	})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if view.Title != types.DefaultFormTitle {
		t.Fatalf("title: want=%q got=%q", types.DefaultFormTitle, view.Title)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("questions: want=2 got=%d", len(view.Questions))
	}
	if view.Questions[0].QuestionText != "How are you feeling?" || view.Questions[1].QuestionOrder != 1 {
		t.Fatalf("questions: unexpected %+v %+v", view.Questions[0], view.Questions[1])
	}
	if len(sched.calls) != 1 || sched.calls[0].formID != view.ID {
		t.Fatalf("scheduled: want one call for %s got=%+v", view.ID, sched.calls)
	}
	if !sched.calls[0].when.Equal(deadline.UTC()) {
		t.Fatalf("scheduled at: want=%v got=%v", deadline.UTC(), sched.calls[0].when)
	}
	if len(notif.forms) != 1 || notif.forms[0] != view.ID {
		t.Fatalf("notified: want=[%s] got=%v", view.ID, notif.forms)
	}
}

func TestCreateFormSideEffectFailuresDoNotFailCreation(t *testing.T) {
	svc, r, sched, notif := newFormServiceForTest(t)
	sched.err = errors.New("temporal down")
	notif.err = errors.New("sendgrid down")
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")

	deadline := time.Now().Add(time.Hour)
	view, err := svc.CreateForm(doctorCtx(doc.ID), pat.ID, CreateFormInput{Title: "Intake", Questions: []string{"Q1"}, Deadline: &deadline})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if got := reloadForm(t, r, view.ID); got.Title != "Intake" {
		t.Fatalf("title: want=Intake got=%q", got.Title)
	}
}

func TestCreateFormValidation(t *testing.T) {
	svc, r, _, _ := newFormServiceForTest(t)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	other := testutil.SeedDoctor(t, ctx, r.db, "House")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")

	_, err := svc.CreateForm(doctorCtx(doc.ID), pat.ID, CreateFormInput{Questions: []string{" ", ""}})
	if apierr.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("no questions: want=400 got=%d (%v)", apierr.StatusCode(err), err)
	}
	_, err = svc.CreateForm(doctorCtx(other.ID), pat.ID, CreateFormInput{Questions: []string{"Q1"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign patient: want=ErrNotFound got=%v", err)
	}
	_, err = svc.CreateForm(patientCtx(pat.ID), pat.ID, CreateFormInput{Questions: []string{"Q1"}})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("patient actor: want=ErrAuthentication got=%v", err)
	}
}

func TestUpdateFormRearmsOnlyOnFutureDeadlineChange(t *testing.T) {
	svc, r, sched, _ := newFormServiceForTest(t)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1")

	title := "Follow-up"
	if _, err := svc.UpdateForm(doctorCtx(doc.ID), form.ID, UpdateFormInput{Title: &title}); err != nil {
		t.Fatalf("UpdateForm title: %v", err)
	}
	if len(sched.calls) != 0 {
		t.Fatalf("title change armed a job: %+v", sched.calls)
	}

	future := time.Now().Add(3 * time.Hour).UTC()
	updated, err := svc.UpdateForm(doctorCtx(doc.ID), form.ID, UpdateFormInput{Deadline: &future})
	if err != nil {
		t.Fatalf("UpdateForm deadline: %v", err)
	}
	if updated.Deadline == nil || len(sched.calls) != 1 {
		t.Fatalf("deadline change: want one job got=%d deadline=%v", len(sched.calls), updated.Deadline)
	}

	past := time.Now().Add(-time.Hour).UTC()
	if _, err := svc.UpdateForm(doctorCtx(doc.ID), form.ID, UpdateFormInput{Deadline: &past}); err != nil {
		t.Fatalf("UpdateForm past deadline: %v", err)
	}
	if len(sched.calls) != 1 {
		t.Fatalf("past deadline armed a job: got=%d", len(sched.calls))
	}

	cleared, err := svc.UpdateForm(doctorCtx(doc.ID), form.ID, UpdateFormInput{ClearDeadline: true})
	if err != nil {
		t.Fatalf("UpdateForm clear: %v", err)
	}
	if cleared.Deadline != nil || cleared.Title != title {
		t.Fatalf("cleared: unexpected %+v", cleared)
	}
}

func TestQuestionEditing(t *testing.T) {
	svc, r, _, _ := newFormServiceForTest(t)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	other := testutil.SeedDoctor(t, ctx, r.db, "House")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")
	form, qs := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1", "Q2")

	added, err := svc.AddQuestion(doctorCtx(doc.ID), form.ID, "Q3", nil)
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if added.QuestionOrder != 2 {
		t.Fatalf("next order: want=2 got=%d", added.QuestionOrder)
	}

	order := 0
	_, err = svc.UpdateQuestion(doctorCtx(doc.ID), added.ID, UpdateQuestionInput{Order: &order})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("order collision: want=ErrValidation got=%v", err)
	}

	text := "How is your sleep?"
	updated, err := svc.UpdateQuestion(doctorCtx(doc.ID), qs[1].ID, UpdateQuestionInput{Text: &text})
	if err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	if updated.QuestionText != text {
		t.Fatalf("text: want=%q got=%q", text, updated.QuestionText)
	}

	if err := svc.DeleteQuestion(doctorCtx(other.ID), qs[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: want=ErrNotFound got=%v", err)
	}
	if err := svc.DeleteQuestion(doctorCtx(doc.ID), qs[0].ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	detail, err := svc.GetForm(doctorCtx(doc.ID), form.ID)
	if err != nil {
		t.Fatalf("GetForm: %v", err)
	}
	if len(detail.Questions) != 2 {
		t.Fatalf("questions after delete: want=2 got=%d", len(detail.Questions))
	}
}

func TestDeleteFormOwnership(t *testing.T) {
	svc, r, _, _ := newFormServiceForTest(t)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	other := testutil.SeedDoctor(t, ctx, r.db, "House")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1")

	if err := svc.DeleteForm(doctorCtx(other.ID), form.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: want=ErrNotFound got=%v", err)
	}
	if err := svc.DeleteForm(doctorCtx(doc.ID), form.ID); err != nil {
		t.Fatalf("DeleteForm: %v", err)
	}
	if f, _ := r.forms.GetByID(systemCtx(), form.ID); f != nil {
		t.Fatalf("form still present after delete")
	}
}

func TestPatientReadModels(t *testing.T) {
	svc, r, _, _ := newFormServiceForTest(t)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "Meredith", "")
	stranger := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1", "Q2", "Q3")

	mine, err := svc.ListMyForms(patientCtx(pat.ID))
	if err != nil {
		t.Fatalf("ListMyForms: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != form.ID {
		t.Fatalf("ListMyForms: want=[%s] got=%d forms", form.ID, len(mine))
	}
	if mine[0].DoctorName != "Grey" || mine[0].QuestionCount != 3 {
		t.Fatalf("ListMyForms: doctor=%q questions=%d", mine[0].DoctorName, mine[0].QuestionCount)
	}

	if _, err := svc.GetMyForm(patientCtx(stranger.ID), form.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger GetMyForm: want=ErrNotFound got=%v", err)
	}
	empty, err := svc.ListMyForms(patientCtx(stranger.ID))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("stranger ListMyForms: want empty slice got=%v err=%v", empty, err)
	}
	_, err = svc.ListMyForms(doctorCtx(doc.ID))
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("doctor ListMyForms: want=ErrAuthentication got=%v", err)
	}
}

// vanishingForms loses every form on point lookup, as if a concurrent delete
// landed right after an update.
type vanishingForms struct {
	repos.FormRepo
}

func (vanishingForms) GetByID(dbctx.Context, uuid.UUID) (*types.Form, error) { return nil, nil }

func TestUpdateFormDeletedMidUpdateIsNotFound(t *testing.T) {
	db := testutil.DB(t)
	r := newTestRepos(t, db)
	svc := NewFormService(db, testutil.Logger(t), vanishingForms{r.forms}, r.questions, r.answers, r.callAttempts, r.patients, r.doctors, &fakeScheduler{}, &fakeNotifier{})
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1")

	title := "Renamed"
	_, err := svc.UpdateForm(doctorCtx(doc.ID), form.ID, UpdateFormInput{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want=ErrNotFound got=%v", err)
	}
	if apierr.StatusCode(err) != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d (%v)", apierr.StatusCode(err), err)
	}
}
