package observability

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/platform/envutil"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec

	callsPlaced    *CounterVec
	sweepRuns      *CounterVec
	sweepLatency   *HistogramVec
	sweepForms     *CounterVec
	webhookEvents  *CounterVec
	extractions    *CounterVec
	submissions    *CounterVec
	jobDeliveries  *CounterVec
	jobLatency     *HistogramVec
	bestEffortFail *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns nil when metrics are disabled; every method is nil-safe.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 15*time.Second)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	return &Metrics{
		apiRequests: NewCounterVec("cc_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("cc_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("cc_api_inflight_requests", "In-flight API requests."),

		llmRequests: NewCounterVec("cc_llm_requests_total", "LLM requests by model/status.", []string{"model", "status"}),
		llmLatency:  NewHistogramVec("cc_llm_request_duration_seconds", "LLM request latency in seconds.", []string{"model", "status"}, latency),

		callsPlaced:    NewCounterVec("cc_calls_placed_total", "Outbound calls by source/status.", []string{"source", "status"}),
		sweepRuns:      NewCounterVec("cc_sweep_runs_total", "Deadline sweep runs by status.", []string{"status"}),
		sweepLatency:   NewHistogramVec("cc_sweep_duration_seconds", "Deadline sweep duration in seconds.", []string{"status"}, latency),
		sweepForms:     NewCounterVec("cc_sweep_forms_total", "Forms handled by the sweep by outcome.", []string{"outcome"}),
		webhookEvents:  NewCounterVec("cc_webhook_events_total", "Call webhook events by shape/outcome.", []string{"shape", "outcome"}),
		extractions:    NewCounterVec("cc_answer_extractions_total", "Answer extraction runs by strategy/outcome.", []string{"strategy", "outcome"}),
		submissions:    NewCounterVec("cc_form_submissions_total", "Form submissions by channel/outcome.", []string{"channel", "outcome"}),
		jobDeliveries:  NewCounterVec("cc_job_deliveries_total", "Scheduled job deliveries by status.", []string{"status"}),
		jobLatency:     NewHistogramVec("cc_job_delivery_duration_seconds", "Scheduled job delivery latency.", []string{"status"}, latency),
		bestEffortFail: NewCounterVec("cc_best_effort_failures_total", "Swallowed side-effect failures by operation.", []string{"operation"}),

		pgStats:   NewGaugeVec("cc_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("cc_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("cc_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.callsPlaced, m.sweepRuns, m.sweepLatency, m.sweepForms,
		m.webhookEvents, m.extractions, m.submissions,
		m.jobDeliveries, m.jobLatency, m.bestEffortFail,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	m.llmLatency.Observe(dur.Seconds(), model, status)
}

// IncCallPlaced counts outbound call attempts. source is manual, sweep or deadline.
func (m *Metrics) IncCallPlaced(source, status string) {
	if m == nil {
		return
	}
	m.callsPlaced.Inc(source, status)
}

func (m *Metrics) ObserveSweep(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc(status)
	m.sweepLatency.Observe(dur.Seconds(), status)
}

func (m *Metrics) IncSweepForm(outcome string) {
	if m == nil {
		return
	}
	m.sweepForms.Inc(outcome)
}

func (m *Metrics) IncWebhookEvent(shape, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Inc(shape, outcome)
}

func (m *Metrics) IncExtraction(strategy, outcome string) {
	if m == nil {
		return
	}
	m.extractions.Inc(strategy, outcome)
}

func (m *Metrics) IncSubmission(channel, outcome string) {
	if m == nil {
		return
	}
	m.submissions.Inc(channel, outcome)
}

func (m *Metrics) ObserveJobDelivery(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobDeliveries.Inc(status)
	m.jobLatency.Observe(dur.Seconds(), status)
}

func (m *Metrics) IncBestEffortFailure(operation string) {
	if m == nil {
		return
	}
	m.bestEffortFail.Inc(operation)
}

// StartPostgresCollector samples the GORM pool on every scrape interval.
func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go every(ctx, scrapeInterval(), func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Warn("metrics: postgres stats unavailable", "error", err)
			return
		}
		m.recordPool(sqlDB.Stats())
	})
}

func (m *Metrics) recordPool(stats sql.DBStats) {
	for name, v := range map[string]float64{
		"open_connections":      float64(stats.OpenConnections),
		"in_use":                float64(stats.InUse),
		"idle":                  float64(stats.Idle),
		"wait_count":            float64(stats.WaitCount),
		"wait_duration_seconds": stats.WaitDuration.Seconds(),
	} {
		m.pgStats.Set(v, name)
	}
}

// StartRedisCollector pings Redis on every scrape interval; the dedupe store
// and webhook claims depend on it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	go every(ctx, scrapeInterval(), func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			log.Warn("metrics: redis ping failed", "error", err)
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// every runs fn on each tick until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
