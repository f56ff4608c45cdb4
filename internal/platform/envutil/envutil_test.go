package envutil

import (
	"testing"
	"time"
)

func TestHelpersFallBackToDefaults(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "nope")
	t.Setenv("ENVUTIL_BOOL", "off")
	t.Setenv("ENVUTIL_SECS", "0")
	t.Setenv("ENVUTIL_STR", "  ")

	if got := Int("ENVUTIL_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	if got := Bool("ENVUTIL_BOOL", true); got {
		t.Fatalf("Bool: want=false got=%v", got)
	}
	if got := Seconds("ENVUTIL_SECS", 3*time.Second); got != 3*time.Second {
		t.Fatalf("Seconds: want=3s got=%v", got)
	}
	if got := String("ENVUTIL_STR", "x"); got != "x" {
		t.Fatalf("String: want=x got=%q", got)
	}
}
