package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// SleepCtx waits for d or until ctx is done.
func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy bounds Retry. Zero values fall back to a 1s initial backoff
// capped at 10s and IsRetryableError.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
	Retryable  func(error) bool
	// OnRetry runs before each sleep; attempt counts from 1.
	OnRetry func(attempt int, sleep time.Duration, err error)
}

// Retry runs call until it succeeds, fails with a non-retryable error, or the
// retries are spent. call may return the response it got so a Retry-After
// header can stretch the wait.
func Retry[T any](ctx context.Context, p RetryPolicy, call func(ctx context.Context) (T, *http.Response, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := p.Initial
	if backoff <= 0 {
		backoff = time.Second
	}
	maxWait := p.Max
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}

	var zero T
	for attempt := 0; ; attempt++ {
		out, resp, err := call(ctx)
		if err == nil {
			return out, nil
		}
		if !retryable(err) || attempt >= p.MaxRetries {
			return zero, err
		}
		sleepFor := JitterSleep(RetryAfterDuration(resp, backoff, maxWait))
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, sleepFor, err)
		}
		if err := SleepCtx(ctx, sleepFor); err != nil {
			return zero, err
		}
		backoff *= 2
	}
}

// PublicURL joins an externally reachable base (with or without scheme) and a path.
// A base without scheme is assumed to be https.
func PublicURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return path
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
