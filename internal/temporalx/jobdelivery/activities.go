package jobdelivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/httpx"
	"github.com/yungbote/carecall-backend/internal/platform/jobsig"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type Activities struct {
	Log    *logger.Logger
	Signer *jobsig.Signer
	HTTP   *http.Client
}

func NewActivities(log *logger.Logger, signer *jobsig.Signer, timeout time.Duration) *Activities {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Activities{
		Log:    log.With("activity", ActivityPost),
		Signer: signer,
		HTTP:   &http.Client{Timeout: timeout},
	}
}

// Post delivers one job. 2xx succeeds, 408/429/5xx and transport errors are
// retried by the workflow, any other status fails the workflow.
func (a *Activities) Post(ctx context.Context, req DeliveryRequest) (DeliveryResult, error) {
	start := time.Now()
	res, err := a.post(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
		if res.StatusCode > 0 {
			status = strconv.Itoa(res.StatusCode)
		}
	}
	observability.Current().ObserveJobDelivery(status, time.Since(start))
	return res, err
}

func (a *Activities) post(ctx context.Context, req DeliveryRequest) (DeliveryResult, error) {
	var res DeliveryResult
	body := []byte(req.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	sig, err := a.Signer.Sign(req.URL, body)
	if err != nil {
		return res, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return res, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if sig != "" {
		httpReq.Header.Set(jobsig.HeaderName, sig)
	}

	resp, err := a.HTTP.Do(httpReq)
	if err != nil {
		return res, fmt.Errorf("job delivery to %s: %w", req.URL, err)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	res.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return res, nil
	}
	msg := fmt.Sprintf("job delivery to %s: http %d: %s", req.URL, resp.StatusCode, strings.TrimSpace(string(raw)))
	if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
		a.Log.Warn("Job delivery failed; will retry", "url", req.URL, "status", resp.StatusCode)
		return res, errors.New(msg)
	}
	a.Log.Error("Job delivery rejected", "url", req.URL, "status", resp.StatusCode)
	return res, temporal.NewNonRetryableApplicationError(msg, ErrTypeRejected, nil)
}
