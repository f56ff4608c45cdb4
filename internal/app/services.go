package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/extraction"
	"github.com/yungbote/carecall-backend/internal/platform/dedupe"
	"github.com/yungbote/carecall-backend/internal/platform/jobsig"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/scheduling"
	"github.com/yungbote/carecall-backend/internal/services"
	"github.com/yungbote/carecall-backend/internal/temporalx"
	"github.com/yungbote/carecall-backend/internal/temporalx/jobdelivery"
	"github.com/yungbote/carecall-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Auth     services.AuthService
	Notifier services.NotificationService

	Form       services.FormService
	Submission services.SubmissionService
	Call       services.CallService
	Webhook    services.CallWebhookService

	// Job infra
	Scheduler      scheduling.Scheduler
	JobVerifier    *jobsig.Verifier
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, tcfg temporalx.Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	sigCfg := jobsig.ConfigFromEnv()
	if sigCfg.CurrentKey == "" {
		log.Warn("JOB_CURRENT_SIGNING_KEY not set; scheduled job deliveries are unsigned and unverified")
	}

	scheduler := scheduling.New(log, clients.Temporal, scheduling.Config{
		BaseURL:     cfg.AppURL,
		TaskQueue:   tcfg.TaskQueue,
		MaxAttempts: cfg.JobMaxAttempts,
	})

	var worker *temporalworker.Runner
	if clients.Temporal != nil {
		acts := jobdelivery.NewActivities(log, jobsig.NewSigner(sigCfg), cfg.JobTimeout)
		w, err := temporalworker.NewRunner(log, clients.Temporal, tcfg, acts)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		worker = w
	}

	notifier := services.NewNotificationService(log, clients.Email, clients.SMS, cfg.AppURL)

	formService := services.NewFormService(
		db,
		log,
		reposet.Form,
		reposet.Question,
		reposet.Answer,
		reposet.CallAttempt,
		reposet.Patient,
		reposet.Doctor,
		scheduler,
		notifier,
	)

	submissionService := services.NewSubmissionService(
		db,
		log,
		reposet.Form,
		reposet.Question,
		reposet.Answer,
		wireExtractor(log, cfg, clients),
	)

	callbackURL := cfg.CallbackURL()
	if clients.Calls != nil && callbackURL == "" {
		log.Warn("Calls will be placed without a callback URL; answers will not be captured")
	}
	callService := services.NewCallService(
		log,
		reposet.Form,
		reposet.Question,
		reposet.Patient,
		reposet.Doctor,
		reposet.CallAttempt,
		clients.Calls,
		services.CallConfig{
			CallbackURL:      callbackURL,
			SweepConcurrency: cfg.SweepConcurrency,
			SweepBatchLimit:  cfg.SweepBatchLimit,
		},
	)

	var deduper dedupe.Deduper
	if clients.Redis != nil {
		deduper = dedupe.NewRedis(clients.Redis, "carecall")
	} else {
		log.Warn("Webhook dedupe is in-process only; run a single replica or set REDIS_ADDR")
		deduper = dedupe.NewMemory()
	}
	webhookService := services.NewCallWebhookService(
		log,
		submissionService,
		clients.Calls,
		deduper,
		services.WebhookConfig{
			Async:          cfg.WebhookAsync,
			DedupeTTL:      cfg.WebhookDedupeTTL,
			ProcessTimeout: cfg.WebhookProcessTimeout,
		},
	)

	return Services{
		Auth:           services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Notifier:       notifier,
		Form:           formService,
		Submission:     submissionService,
		Call:           callService,
		Webhook:        webhookService,
		Scheduler:      scheduler,
		JobVerifier:    jobsig.NewVerifier(sigCfg),
		TemporalWorker: worker,
	}, nil
}

func wireExtractor(log *logger.Logger, cfg Config, clients Clients) extraction.Extractor {
	switch {
	case cfg.ExtractionStrategy == "heuristic":
		log.Warn("Using heuristic transcript extraction")
		return extraction.NewTranscriptWalker()
	case clients.LLM == nil:
		log.Warn("OPENAI_API_KEY not set; falling back to heuristic transcript extraction")
		return extraction.NewTranscriptWalker()
	default:
		return extraction.NewLLMExtractor(log, clients.LLM, cfg.ExtractionTimeout)
	}
}
