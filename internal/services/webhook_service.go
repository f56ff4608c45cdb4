package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/dedupe"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/webhooks"
)

// Webhook outcomes, also used as metric labels.
const (
	WebhookInvalid   = "invalid"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
	WebhookQueued    = "queued"
	WebhookProcessed = "processed"
	WebhookFailed    = "failed"
)

type WebhookConfig struct {
	Async          bool
	DedupeTTL      time.Duration
	ProcessTimeout time.Duration
}

type WebhookOutcome struct {
	Status string
	FormID string
	Result *SubmitResult
}

// CallWebhookService turns provider callbacks into call-triggered submissions.
// Handle never returns an error: the provider retries anything but a 2xx, and
// a retry would mean a second call to the patient.
type CallWebhookService interface {
	Handle(ctx context.Context, raw []byte) *WebhookOutcome
	// Drain waits for detached processing to finish or ctx to end.
	Drain(ctx context.Context) error
}

type callWebhookService struct {
	log         *logger.Logger
	submissions SubmissionService
	calls       vapi.Client
	deduper     dedupe.Deduper
	cfg         WebhookConfig
	wg          sync.WaitGroup
}

func NewCallWebhookService(
	log *logger.Logger,
	submissions SubmissionService,
	calls vapi.Client,
	deduper dedupe.Deduper,
	cfg WebhookConfig,
) CallWebhookService {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = time.Minute
	}
	return &callWebhookService{
		log:         log.With("service", "CallWebhookService"),
		submissions: submissions,
		calls:       calls,
		deduper:     deduper,
		cfg:         cfg,
	}
}

func (ws *callWebhookService) Handle(ctx context.Context, raw []byte) *WebhookOutcome {
	m := observability.Current()
	ev, err := webhooks.Parse(raw)
	if err != nil {
		ws.log.Warn("Unreadable call webhook", "error", err, "bytes", len(raw))
		m.IncWebhookEvent(webhooks.ShapeUnknown, WebhookInvalid)
		return &WebhookOutcome{Status: WebhookInvalid}
	}
	out := &WebhookOutcome{FormID: ev.FormID}
	if !ev.Relevant() {
		ws.log.Debug("Call webhook ignored", "shape", ev.Shape, "event", ev.EventType, "has_form", ev.FormID != "")
		m.IncWebhookEvent(ev.Shape, WebhookIgnored)
		out.Status = WebhookIgnored
		return out
	}

	key := dedupe.Key("webhook:call", raw)
	if ws.deduper != nil {
		claimed, err := ws.deduper.Claim(ctx, key, ws.cfg.DedupeTTL)
		if err != nil {
			// Fall through: the submission flow is idempotent on its own.
			ws.log.Warn("Webhook dedupe unavailable", "error", err)
		} else if !claimed {
			ws.log.Info("Duplicate call webhook dropped", "form_id", ev.FormID, "call_id", ev.CallID)
			m.IncWebhookEvent(ev.Shape, WebhookDuplicate)
			out.Status = WebhookDuplicate
			return out
		}
	}

	if ws.cfg.Async {
		ws.wg.Add(1)
		go func() {
			defer ws.wg.Done()
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ws.cfg.ProcessTimeout)
			defer cancel()
			ws.process(pctx, ev, key)
		}()
		out.Status = WebhookQueued
		return out
	}

	pctx, cancel := context.WithTimeout(ctx, ws.cfg.ProcessTimeout)
	defer cancel()
	return ws.process(pctx, ev, key)
}

func (ws *callWebhookService) process(ctx context.Context, ev *webhooks.CallEvent, key string) (out *WebhookOutcome) {
	m := observability.Current()
	log := ws.log.With(ctxutil.TraceFields(ctx)...)
	out = &WebhookOutcome{FormID: ev.FormID}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Call webhook processing panicked", "form_id", ev.FormID, "panic", r)
			out = &WebhookOutcome{FormID: ev.FormID, Status: WebhookFailed}
			ws.release(key)
			m.IncWebhookEvent(ev.Shape, WebhookFailed)
		}
	}()

	ctx, span := observability.StartSpan(ctx, "webhook.process",
		attribute.String("form.id", ev.FormID),
		attribute.String("call.id", ev.CallID),
		attribute.String("webhook.shape", ev.Shape))
	res, err := ws.dispatch(ctx, ev)
	observability.EndSpan(span, err)
	if err != nil {
		log.Error("Call webhook processing failed", "form_id", ev.FormID, "call_id", ev.CallID, "error", err)
		ws.release(key)
		m.IncWebhookEvent(ev.Shape, WebhookFailed)
		out.Status = WebhookFailed
		return out
	}
	log.Info("Call webhook processed", "form_id", ev.FormID, "call_id", ev.CallID, "status", res.Status, "answers", res.AnswersSaved)
	m.IncWebhookEvent(ev.Shape, WebhookProcessed)
	out.Status = WebhookProcessed
	out.Result = res
	return out
}

func (ws *callWebhookService) dispatch(ctx context.Context, ev *webhooks.CallEvent) (*SubmitResult, error) {
	formID, err := uuid.Parse(ev.FormID)
	if err != nil {
		return nil, validationError(fmt.Sprintf("invalid form id %q", ev.FormID))
	}
	dbc := dbctx.Context{Ctx: ctx}

	if ev.HasAnswers {
		answers := lo.Map(ev.Answers, func(a webhooks.RawAnswer, _ int) AnswerInput {
			text := a.AnswerText
			return AnswerInput{QuestionID: a.QuestionID, AnswerText: &text}
		})
		return ws.submissions.Submit(dbc, formID, CallAnswersSubmission{CallID: ev.CallID, Answers: answers})
	}

	if ev.NeedsCallDetails() && ws.calls != nil {
		call, err := ws.calls.GetCall(ctx, ev.CallID)
		if err != nil {
			// A later delivery can still carry the transcript; release the key.
			return nil, fmt.Errorf("fetch call %s: %w", ev.CallID, err)
		}
		ev.FillFromCall(call)
	}
	return ws.submissions.Submit(dbc, formID, CallTranscriptSubmission{CallID: ev.CallID, Transcript: ev.TranscriptValue()})
}

func (ws *callWebhookService) release(key string) {
	if ws.deduper == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.deduper.Release(ctx, key); err != nil {
		ws.log.Warn("Failed to release webhook dedupe key", "error", err)
	}
}

func (ws *callWebhookService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("webhook drain interrupted"), ctx.Err())
	}
}
