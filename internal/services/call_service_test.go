package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/data/repos/testutil"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/apierr"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
)

const testCallbackURL = "https://carecall.test/api/webhooks/call"

func newCallServiceForTest(t *testing.T, calls vapi.Client) (CallService, testRepos) {
	t.Helper()
	r := newTestRepos(t, testutil.DB(t))
	svc := NewCallService(testutil.Logger(t), r.forms, r.questions, r.patients, r.doctors, r.callAttempts, calls, CallConfig{
		CallbackURL:      testCallbackURL,
		SweepConcurrency: 2,
		SweepBatchLimit:  50,
	})
	return svc, r
}

func resultFor(t *testing.T, report *SweepReport, id string) SweepResult {
	t.Helper()
	for _, res := range report.Results {
		if res.FormID.String() == id {
			return res
		}
	}
	t.Fatalf("no sweep result for %s", id)
	return SweepResult{}
}

func TestTriggerCallPlacesAndStamps(t *testing.T) {
	calls := &fakeCalls{}
	svc, r := newCallServiceForTest(t, calls)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "Meredith", "4155550100")
	form, qs := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "How are you?", "Any pain?")

	res, err := svc.TriggerCall(doctorCtx(doc.ID), form.ID)
	if err != nil {
		t.Fatalf("TriggerCall: %v", err)
	}
	if res.CallID == "" || res.Message != "Call initiated successfully" {
		t.Fatalf("result: unexpected %+v", res)
	}
	if len(calls.requests) != 1 {
		t.Fatalf("calls placed: want=1 got=%d", len(calls.requests))
	}
	req := calls.requests[0]
	if req.CustomerNumber != "4155550100" || req.Metadata.FormID != form.ID.String() {
		t.Fatalf("request: number=%q form=%q", req.CustomerNumber, req.Metadata.FormID)
	}
	if len(req.Metadata.Questions) != 2 || req.Metadata.Questions[0].ID != qs[0].ID.String() {
		t.Fatalf("metadata questions: unexpected %+v", req.Metadata.Questions)
	}
	if req.Assistant.ServerURL != testCallbackURL {
		t.Fatalf("server url: want=%q got=%q", testCallbackURL, req.Assistant.ServerURL)
	}
	if !strings.Contains(req.Assistant.SystemPrompt(), "Dr. Grey") || !strings.Contains(req.Assistant.SystemPrompt(), "Any pain?") {
		t.Fatalf("script missing doctor or question: %q", req.Assistant.SystemPrompt())
	}

	f := reloadForm(t, r, form.ID)
	if !f.CallScheduled || f.CallMadeAt == nil || f.CallSID == nil || *f.CallSID != res.CallID {
		t.Fatalf("form stamps: scheduled=%v made=%v sid=%v", f.CallScheduled, f.CallMadeAt, f.CallSID)
	}
	attempts, _ := r.callAttempts.ListByForm(systemCtx(), form.ID)
	if len(attempts) != 1 || attempts[0].Source != types.CallSourceManual || attempts[0].Status != types.CallStatusPlaced {
		t.Fatalf("attempts: unexpected %+v", attempts)
	}

	// Manual calls may be repeated while the form is open.
	if _, err := svc.TriggerCall(doctorCtx(doc.ID), form.ID); err != nil {
		t.Fatalf("second TriggerCall: %v", err)
	}
	if calls.placedFor(form.ID) != 2 {
		t.Fatalf("repeat manual call: want=2 got=%d", calls.placedFor(form.ID))
	}
}

func TestTriggerCallPreconditions(t *testing.T) {
	calls := &fakeCalls{}
	svc, r := newCallServiceForTest(t, calls)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	other := testutil.SeedDoctor(t, ctx, r.db, "House")
	noPhone := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")
	withPhone := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "+14155550100")

	missingContactForm, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, noPhone.ID, nil, "Q1")
	emptyForm, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, withPhone.ID, nil)
	submittedForm, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, withPhone.ID, nil, "Q1")
	if _, err := r.forms.MarkSubmitted(systemCtx(), submittedForm.ID, types.SubmittedViaManual, time.Now(), ""); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}

	cases := []struct {
		name   string
		run    func() error
		kind   error
		status int
	}{
		{"foreign doctor", func() error { _, err := svc.TriggerCall(doctorCtx(other.ID), emptyForm.ID); return err }, ErrNotFound, http.StatusNotFound},
		{"missing contact", func() error { _, err := svc.TriggerCall(doctorCtx(doc.ID), missingContactForm.ID); return err }, ErrMissingContact, http.StatusUnprocessableEntity},
		{"no questions", func() error { _, err := svc.TriggerCall(doctorCtx(doc.ID), emptyForm.ID); return err }, ErrNoQuestions, http.StatusUnprocessableEntity},
		{"already submitted", func() error { _, err := svc.TriggerCall(doctorCtx(doc.ID), submittedForm.ID); return err }, ErrAlreadySubmitted, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, tc.kind) {
				t.Fatalf("error: want=%v got=%v", tc.kind, err)
			}
			if got := apierr.StatusCode(err); got != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, got)
			}
		})
	}
	if len(calls.requests) != 0 {
		t.Fatalf("calls placed: want=0 got=%d", len(calls.requests))
	}
	if f := reloadForm(t, r, missingContactForm.ID); f.CallScheduled || f.CallMadeAt != nil {
		t.Fatalf("missing contact form mutated: %+v", f)
	}
}

func TestTriggerCallProviderErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid phone", vapi.ErrInvalidPhoneNumber, http.StatusBadRequest},
		{"provider rejected", &vapi.HTTPError{StatusCode: 400, Message: "Bad number"}, http.StatusBadGateway},
		{"transport", errProviderDown, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := &fakeCalls{failFor: map[string]error{}}
			svc, r := newCallServiceForTest(t, calls)
			doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
			pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "+14155550100")
			form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1")
			calls.failFor[form.ID.String()] = tc.err

			_, err := svc.TriggerCall(doctorCtx(doc.ID), form.ID)
			if got := apierr.StatusCode(err); got != tc.status {
				t.Fatalf("status: want=%d got=%d (%v)", tc.status, got, err)
			}
			if f := reloadForm(t, r, form.ID); f.CallMadeAt != nil {
				t.Fatalf("failed call stamped the form")
			}
			attempts, _ := r.callAttempts.ListByForm(systemCtx(), form.ID)
			if len(attempts) != 1 || attempts[0].Status != types.CallStatusFailed {
				t.Fatalf("attempts: want one failed got=%+v", attempts)
			}
		})
	}
}

func TestTriggerCallWithoutProvider(t *testing.T) {
	svc, r := newCallServiceForTest(t, nil)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "+14155550100")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1")

	_, err := svc.TriggerCall(doctorCtx(doc.ID), form.ID)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("no provider: want=ErrConfiguration got=%v", err)
	}
}

func TestRunSweepCallsOnlyOverdueForms(t *testing.T) {
	calls := &fakeCalls{failFor: map[string]error{}}
	svc, r := newCallServiceForTest(t, calls)
	ctx := context.Background()
	now := time.Now().UTC()
	past := testutil.PtrTime(now.Add(-time.Hour))

	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "Meredith", "+14155550100")
	noPhone := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "")

	overdue, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, past, "Q1")
	future, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, testutil.PtrTime(now.Add(time.Hour)), "Q1")
	submitted, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, past, "Q1")
	skipPhone, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, noPhone.ID, past, "Q1")
	skipQuestions, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, past)
	failing, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, past, "Q1")
	calls.failFor[failing.ID.String()] = errProviderDown
	if _, err := r.forms.MarkSubmitted(systemCtx(), submitted.ID, types.SubmittedViaManual, now, ""); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}

	report, err := svc.RunSweep(systemCtx())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if !strings.HasPrefix(report.Message, "Processed ") || report.Count != len(report.Results) {
		t.Fatalf("report: unexpected %+v", report)
	}

	if res := resultFor(t, report, overdue.ID.String()); !res.Success || res.CallID == "" {
		t.Fatalf("overdue: unexpected %+v", res)
	}
	if res := resultFor(t, report, skipPhone.ID.String()); !res.Skipped || res.Reason != SkipMissingPhone {
		t.Fatalf("no phone: unexpected %+v", res)
	}
	if res := resultFor(t, report, skipQuestions.ID.String()); !res.Skipped || res.Reason != SkipNoQuestions {
		t.Fatalf("no questions: unexpected %+v", res)
	}
	if res := resultFor(t, report, failing.ID.String()); res.Success || res.Error == "" {
		t.Fatalf("failing: unexpected %+v", res)
	}
	for _, res := range report.Results {
		if res.FormID == future.ID || res.FormID == submitted.ID {
			t.Fatalf("sweep selected %s", res.FormID)
		}
	}

	if f := reloadForm(t, r, overdue.ID); !f.CallScheduled || f.CallMadeAt == nil {
		t.Fatalf("overdue not stamped: %+v", f)
	}
	if f := reloadForm(t, r, failing.ID); f.CallScheduled {
		t.Fatalf("failed claim not released")
	}

	// A second sweep retries the failed form and leaves the called one alone.
	delete(calls.failFor, failing.ID.String())
	if _, err := svc.RunSweep(systemCtx()); err != nil {
		t.Fatalf("second RunSweep: %v", err)
	}
	if calls.placedFor(overdue.ID) != 1 {
		t.Fatalf("overdue calls: want=1 got=%d", calls.placedFor(overdue.ID))
	}
	if calls.placedFor(failing.ID) != 2 {
		t.Fatalf("failing calls: want=2 got=%d", calls.placedFor(failing.ID))
	}
}

func TestRunSweepReleasesClaimWhenRequestIsCanceled(t *testing.T) {
	calls := &fakeCalls{failFor: map[string]error{}}
	svc, r := newCallServiceForTest(t, calls)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "+14155550100")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, testutil.PtrTime(time.Now().Add(-time.Hour)), "Q1")

	// The job delivery gives up while the provider call is in flight.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	calls.onPlace = cancel
	calls.failFor[form.ID.String()] = context.Canceled

	report, err := svc.RunSweep(dbctx.Context{Ctx: reqCtx})
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if res := resultFor(t, report, form.ID.String()); res.Success {
		t.Fatalf("canceled placement reported success: %+v", res)
	}
	if f := reloadForm(t, r, form.ID); f.CallScheduled || f.CallMadeAt != nil {
		t.Fatalf("claim stranded: scheduled=%v made=%v", f.CallScheduled, f.CallMadeAt)
	}
	attempts, _ := r.callAttempts.ListByForm(systemCtx(), form.ID)
	if len(attempts) != 1 || attempts[0].Status != types.CallStatusFailed {
		t.Fatalf("attempts: unexpected %+v", attempts)
	}

	calls.onPlace = nil
	delete(calls.failFor, form.ID.String())
	report, err = svc.RunSweep(systemCtx())
	if err != nil {
		t.Fatalf("second RunSweep: %v", err)
	}
	if res := resultFor(t, report, form.ID.String()); !res.Success || res.CallID == "" {
		t.Fatalf("retry: unexpected %+v", res)
	}
	if f := reloadForm(t, r, form.ID); !f.CallScheduled || f.CallMadeAt == nil {
		t.Fatalf("retry not stamped: %+v", f)
	}
}

func TestCallForDeadline(t *testing.T) {
	calls := &fakeCalls{}
	svc, r := newCallServiceForTest(t, calls)
	ctx := context.Background()
	now := time.Now().UTC()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "+14155550100")

	due, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, testutil.PtrTime(now.Add(-time.Minute)), "Q1")
	moved, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, testutil.PtrTime(now.Add(time.Hour)), "Q1")
	cleared, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, nil, "Q1")

	res, err := svc.CallForDeadline(systemCtx(), due.ID)
	if err != nil || !res.Success || res.CallID == "" {
		t.Fatalf("due: res=%+v err=%v", res, err)
	}
	res, err = svc.CallForDeadline(systemCtx(), due.ID)
	if err != nil || res.Reason != SkipAlreadyCalled {
		t.Fatalf("due again: res=%+v err=%v", res, err)
	}
	res, err = svc.CallForDeadline(systemCtx(), moved.ID)
	if err != nil || res.Reason != SkipDeadlineMoved {
		t.Fatalf("moved: res=%+v err=%v", res, err)
	}
	res, err = svc.CallForDeadline(systemCtx(), cleared.ID)
	if err != nil || res.Reason != SkipNoDeadline {
		t.Fatalf("cleared: res=%+v err=%v", res, err)
	}
	if _, err := svc.CallForDeadline(systemCtx(), pat.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing form: want=ErrNotFound got=%v", err)
	}
	if calls.placedFor(due.ID) != 1 || len(calls.requests) != 1 {
		t.Fatalf("calls: want=1 got=%d", len(calls.requests))
	}
}

func TestCallForDeadlineReturnsProviderErrors(t *testing.T) {
	calls := &fakeCalls{failFor: map[string]error{}}
	svc, r := newCallServiceForTest(t, calls)
	ctx := context.Background()
	doc := testutil.SeedDoctor(t, ctx, r.db, "Grey")
	pat := testutil.SeedPatient(t, ctx, r.db, doc.ID, "", "+14155550100")
	form, _ := testutil.SeedForm(t, ctx, r.db, doc.ID, pat.ID, testutil.PtrTime(time.Now().Add(-time.Minute)), "Q1")
	calls.failFor[form.ID.String()] = &vapi.HTTPError{StatusCode: 503, Message: "unavailable"}

	_, err := svc.CallForDeadline(systemCtx(), form.ID)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("provider failure: want=ErrProvider got=%v", err)
	}
	if reloadForm(t, r, form.ID).CallScheduled {
		t.Fatalf("claim kept after failure")
	}
}
