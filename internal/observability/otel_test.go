package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" api-key = abc ,broken, x=, team=care ")
	if len(got) != 2 || got["api-key"] != "abc" || got["team"] != "care" {
		t.Fatalf("headers: got=%v", got)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty input should give nil")
	}
}

func TestParseRatioClamps(t *testing.T) {
	cases := map[string]float64{"": 0.1, "nope": 0.1, "-2": 0, "0.5": 0.5, "7": 1}
	for in, want := range cases {
		if got := parseRatio(in, 0.1); got != want {
			t.Fatalf("parseRatio(%q): want=%v got=%v", in, want, got)
		}
	}
}

func TestSpansWithoutProviderAreNoops(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "form.call", attribute.String("form.id", "f1"))
	if ctx == nil || span == nil {
		t.Fatalf("StartSpan returned nil")
	}
	EndSpan(span, errors.New("boom"))
}
