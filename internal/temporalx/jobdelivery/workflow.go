package jobdelivery

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

func Workflow(ctx workflow.Context, req DeliveryRequest) error {
	if strings.TrimSpace(req.URL) == "" {
		return temporal.NewNonRetryableApplicationError("jobdelivery: missing url", ErrTypeRejected, nil)
	}
	attempts := req.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        5 * time.Minute,
			MaximumAttempts:        int32(attempts),
			NonRetryableErrorTypes: []string{ErrTypeRejected},
		},
	})

	var out DeliveryResult
	if err := workflow.ExecuteActivity(ctx, ActivityPost, req).Get(ctx, &out); err != nil {
		return err
	}
	workflow.GetLogger(ctx).Info("Job delivered", "url", req.URL, "status", out.StatusCode)
	if out.StatusCode == 0 {
		return fmt.Errorf("jobdelivery: empty result")
	}
	return nil
}
