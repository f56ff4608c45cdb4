// Package dedupe drops repeated deliveries of the same inbound event.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Deduper interface {
	// Claim records key and reports true when it was not seen within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a later delivery is processed again.
	Release(ctx context.Context, key string) error
}

// Key derives a stable key from a namespace and a raw payload.
func Key(namespace string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return namespace + ":" + hex.EncodeToString(sum[:])
}
