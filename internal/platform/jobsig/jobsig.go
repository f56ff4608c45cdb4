// Package jobsig signs and verifies scheduled job deliveries.
//
// A signature is an HS256 JWT whose "body" claim is the base64url SHA-256 of the
// raw request body and whose subject is the destination URL. Receivers accept a
// signature made with either the current or the next key so keys can rotate
// without dropping in-flight jobs.
package jobsig

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/carecall-backend/internal/platform/envutil"
)

const (
	HeaderName = "Job-Signature"
	issuer     = "carecall"
)

var (
	ErrMissingSignature = errors.New("jobsig: missing signature")
	ErrInvalidSignature = errors.New("jobsig: invalid signature")
)

type Config struct {
	CurrentKey string
	NextKey    string
	TTL        time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		CurrentKey: envutil.String("JOB_CURRENT_SIGNING_KEY", ""),
		NextKey:    envutil.String("JOB_NEXT_SIGNING_KEY", ""),
		TTL:        envutil.Seconds("JOB_SIGNATURE_TTL_SECONDS", 5*time.Minute),
	}
}

type claims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewSigner(cfg Config) *Signer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Signer{key: []byte(strings.TrimSpace(cfg.CurrentKey)), ttl: ttl, now: time.Now}
}

// Sign returns an empty signature when no signing key is configured.
func (s *Signer) Sign(destination string, body []byte) (string, error) {
	if s == nil || len(s.key) == 0 {
		return "", nil
	}
	now := s.now().UTC()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Body: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   destination,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign job: %w", err)
	}
	return signed, nil
}

type Verifier struct {
	keys [][]byte
	now  func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	v := &Verifier{now: time.Now}
	for _, k := range []string{cfg.CurrentKey, cfg.NextKey} {
		if k = strings.TrimSpace(k); k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	return v
}

// Enabled reports whether any verification key is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.keys) > 0
}

// Verify checks signature against body. Without configured keys every request passes.
func (v *Verifier) Verify(signature string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	want := bodyHash(body)
	var lastErr error
	for _, key := range v.keys {
		key := key
		parsed := &claims{}
		_, err := jwt.ParseWithClaims(signature, parsed, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(5*time.Second),
			jwt.WithTimeFunc(v.now),
		)
		if err != nil {
			lastErr = err
			continue
		}
		if subtle.ConstantTimeCompare([]byte(parsed.Body), []byte(want)) != 1 {
			return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}
