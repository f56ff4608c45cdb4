package app

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/yungbote/carecall-backend/internal/platform/envutil"
	"github.com/yungbote/carecall-backend/internal/platform/httpx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	// AppURL is the public base URL used for provider callbacks, job
	// destinations and patient links.
	AppURL       string
	CallbackPath string

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	CronSecret     string
	CORSOrigins    []string

	SweepCron        string
	SweepConcurrency int
	SweepBatchLimit  int
	JobMaxAttempts   int
	JobTimeout       time.Duration

	WebhookAsync          bool
	WebhookDedupeTTL      time.Duration
	WebhookProcessTimeout time.Duration

	ExtractionStrategy string
	ExtractionTimeout  time.Duration

	MetricsAddr string
}

func LoadConfig(log *logger.Logger) Config {
	appURL := envutil.String("APP_URL", "")
	if appURL == "" {
		appURL = envutil.String("PUBLIC_HOST", "")
	}
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		AppURL:       strings.TrimRight(appURL, "/"),
		CallbackPath: envutil.String("CALL_CALLBACK_PATH", "/api/webhooks/call"),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),
		CronSecret:     envutil.String("CRON_SECRET", ""),
		CORSOrigins:    splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		SweepCron:        envutil.String("SWEEP_CRON", "0 * * * *"),
		SweepConcurrency: envutil.Int("SWEEP_CONCURRENCY", 4),
		SweepBatchLimit:  envutil.Int("SWEEP_BATCH_LIMIT", 200),
		JobMaxAttempts:   envutil.Int("JOB_MAX_ATTEMPTS", 3),
		JobTimeout:       envutil.Seconds("JOB_DELIVERY_TIMEOUT_SECONDS", 2*time.Minute),

		WebhookAsync:          envutil.Bool("WEBHOOK_ASYNC", true),
		WebhookDedupeTTL:      envutil.Seconds("WEBHOOK_DEDUPE_TTL_SECONDS", 24*time.Hour),
		WebhookProcessTimeout: envutil.Seconds("WEBHOOK_PROCESS_TIMEOUT_SECONDS", time.Minute),

		ExtractionStrategy: strings.ToLower(envutil.String("EXTRACTION_STRATEGY", "llm")),
		ExtractionTimeout:  envutil.Seconds("EXTRACTION_TIMEOUT_SECONDS", 45*time.Second),

		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),
	}

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; authenticated routes will reject every request")
	}
	if cfg.AppURL == "" {
		log.Warn("APP_URL not set; call callbacks and scheduled jobs cannot reach this service")
	}
	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET not set; GET /api/jobs/sweep is open and schedule setup is disabled")
	}
	return cfg
}

// CallbackURL is where the call provider posts end-of-call reports.
func (c Config) CallbackURL() string {
	if c.AppURL == "" {
		return ""
	}
	return httpx.PublicURL(c.AppURL, c.CallbackPath)
}

func splitList(raw string) []string {
	parts := lo.Map(strings.Split(raw, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Compact(parts)
}
