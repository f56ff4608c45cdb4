package observability

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestWritePrometheusRendersDomainCounters(t *testing.T) {
	m := newMetrics()
	m.IncCallPlaced("sweep", "ok")
	m.IncCallPlaced("sweep", "ok")
	m.IncWebhookEvent("end_of_call_report", "submitted")
	m.ObserveSweep("ok", 250*time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`cc_calls_placed_total{source="sweep",status="ok"} 2.000000`,
		`cc_webhook_events_total{shape="end_of_call_report",outcome="submitted"} 1.000000`,
		`cc_sweep_duration_seconds_bucket{status="ok",le="0.25"} 1`,
		`cc_sweep_duration_seconds_count{status="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncCallPlaced("manual", "ok")
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestLabelStringEscapesAndDefaults(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: got=%s", got)
	}
}

func TestRecordPoolExportsEachStat(t *testing.T) {
	m := newMetrics()
	m.recordPool(sql.DBStats{OpenConnections: 4, InUse: 3, Idle: 1})

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	for _, want := range []string{
		`cc_postgres_pool{stat="open_connections"} 4.000000`,
		`cc_postgres_pool{stat="in_use"} 3.000000`,
		`cc_postgres_pool{stat="idle"} 1.000000`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %q in output:\n%s", want, buf.String())
		}
	}
}
