// Package jobdelivery is the Temporal side of delayed and recurring job
// delivery: a workflow that POSTs a signed JSON body to an HTTP endpoint of
// this service.
package jobdelivery

import "encoding/json"

const (
	WorkflowName = "job_delivery"
	ActivityPost = "job_delivery_post"

	// ErrTypeRejected marks 4xx responses; the endpoint decided and a retry
	// would get the same answer.
	ErrTypeRejected = "JobDeliveryRejected"

	DefaultMaxAttempts = 3
)

type DeliveryRequest struct {
	URL         string          `json:"url"`
	Body        json.RawMessage `json:"body"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

type DeliveryResult struct {
	StatusCode int `json:"status_code"`
}
