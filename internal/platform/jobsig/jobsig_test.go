package jobsig

import (
	"errors"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	cfg := Config{CurrentKey: "current-key", NextKey: "next-key"}
	body := []byte(`{"formId":"abc"}`)

	sig, err := NewSigner(cfg).Sign("https://app.example.com/api/jobs/call-form", body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig == "" {
		t.Fatalf("Sign: want signature got empty")
	}
	if err := NewVerifier(cfg).Verify(sig, body); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyAcceptsNextKeyDuringRotation(t *testing.T) {
	body := []byte(`{}`)
	sig, err := NewSigner(Config{CurrentKey: "rotated-in"}).Sign("https://x/api/jobs/sweep", body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v := NewVerifier(Config{CurrentKey: "old", NextKey: "rotated-in"})
	if err := v.Verify(sig, body); err != nil {
		t.Fatalf("Verify with next key: %v", err)
	}
}

func TestVerifyRejectsTamperedBodyAndWrongKey(t *testing.T) {
	cfg := Config{CurrentKey: "k1"}
	sig, _ := NewSigner(cfg).Sign("https://x", []byte(`{"formId":"a"}`))

	err := NewVerifier(cfg).Verify(sig, []byte(`{"formId":"b"}`))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered body: want ErrInvalidSignature got %v", err)
	}
	err = NewVerifier(Config{CurrentKey: "other"}).Verify(sig, []byte(`{"formId":"a"}`))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong key: want ErrInvalidSignature got %v", err)
	}
}

func TestVerifyRejectsExpiredSignature(t *testing.T) {
	cfg := Config{CurrentKey: "k1", TTL: time.Minute}
	s := NewSigner(cfg)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	sig, _ := s.Sign("https://x", []byte(`{}`))

	if err := NewVerifier(cfg).Verify(sig, []byte(`{}`)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expired: want ErrInvalidSignature got %v", err)
	}
}

func TestVerifierPermissiveWithoutKeys(t *testing.T) {
	v := NewVerifier(Config{})
	if v.Enabled() {
		t.Fatalf("Enabled: want=false")
	}
	if err := v.Verify("", []byte(`{}`)); err != nil {
		t.Fatalf("Verify without keys: want nil got %v", err)
	}
	if err := NewVerifier(Config{CurrentKey: "k"}).Verify("", nil); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("missing: want ErrMissingSignature got %v", err)
	}
	sig, err := NewSigner(Config{}).Sign("https://x", nil)
	if err != nil || sig != "" {
		t.Fatalf("Sign without key: want empty,nil got %q,%v", sig, err)
	}
}
