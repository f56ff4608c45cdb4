package services

import (
	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

// BestEffort runs a side effect whose failure must not fail the caller.
// Failures are logged and counted.
func BestEffort(log *logger.Logger, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Best-effort operation panicked", "op", op, "panic", r)
			observability.Current().IncBestEffortFailure(op)
		}
	}()
	if err := fn(); err != nil {
		log.Warn("Best-effort operation failed", "op", op, "error", err)
		observability.Current().IncBestEffortFailure(op)
	}
}
