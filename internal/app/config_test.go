package app

import (
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "APP_URL", "PUBLIC_HOST", "SWEEP_CRON", "SWEEP_CONCURRENCY", "WEBHOOK_ASYNC", "CORS_ALLOWED_ORIGINS", "EXTRACTION_STRATEGY", "CALL_CALLBACK_PATH"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.Nop())

	if cfg.Port != "8080" {
		t.Fatalf("Port: want=8080 got=%q", cfg.Port)
	}
	if cfg.SweepCron != "0 * * * *" {
		t.Fatalf("SweepCron: want=hourly got=%q", cfg.SweepCron)
	}
	if cfg.SweepConcurrency != 4 {
		t.Fatalf("SweepConcurrency: want=4 got=%d", cfg.SweepConcurrency)
	}
	if !cfg.WebhookAsync {
		t.Fatalf("WebhookAsync: want=true got=false")
	}
	if cfg.WebhookDedupeTTL != 24*time.Hour {
		t.Fatalf("WebhookDedupeTTL: want=24h got=%v", cfg.WebhookDedupeTTL)
	}
	if cfg.ExtractionStrategy != "llm" {
		t.Fatalf("ExtractionStrategy: want=llm got=%q", cfg.ExtractionStrategy)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Fatalf("CORSOrigins: want empty got=%v", cfg.CORSOrigins)
	}
	if got := cfg.CallbackURL(); got != "" {
		t.Fatalf("CallbackURL without APP_URL: want empty got=%q", got)
	}
}

func TestLoadConfigPublicHostFallback(t *testing.T) {
	t.Setenv("APP_URL", "")
	t.Setenv("PUBLIC_HOST", "https://care.example.com/")
	t.Setenv("CALL_CALLBACK_PATH", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("EXTRACTION_STRATEGY", "Heuristic")

	cfg := LoadConfig(logger.Nop())
	if cfg.AppURL != "https://care.example.com" {
		t.Fatalf("AppURL: want=https://care.example.com got=%q", cfg.AppURL)
	}
	if got := cfg.CallbackURL(); got != "https://care.example.com/api/webhooks/call" {
		t.Fatalf("CallbackURL: got=%q", got)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("CORSOrigins: want=%v got=%v", want, cfg.CORSOrigins)
	}
	if cfg.ExtractionStrategy != "heuristic" {
		t.Fatalf("ExtractionStrategy: want=heuristic got=%q", cfg.ExtractionStrategy)
	}
}

func TestWireExtractorFallsBackWithoutLLM(t *testing.T) {
	ex := wireExtractor(logger.Nop(), Config{ExtractionStrategy: "llm"}, Clients{})
	if ex.Name() != "heuristic" {
		t.Fatalf("extractor: want=heuristic got=%q", ex.Name())
	}
}
