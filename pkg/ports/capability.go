package ports

import (
	"context"
	"time"
)

// WebhookRequest is an outbound HTTP call declared by a webhook block,
// with all variable templates already resolved.
type WebhookRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// WebhookResponse is what comes back from a webhook call.
type WebhookResponse struct {
	StatusCode int
	Body       any
}

// WebhookCaller performs outbound HTTP calls on behalf of webhook
// blocks. Implementations must honor the request timeout; the engine
// maps a timeout to the block's error branch, never an unbounded wait.
type WebhookCaller interface {
	Call(ctx context.Context, req WebhookRequest) (*WebhookResponse, error)
}

// ScriptRunner executes a script block's code against the session's
// variables and returns its result value.
type ScriptRunner interface {
	Run(ctx context.Context, code string, vars map[string]any) (any, error)
}

// PaymentStatus is the outcome of a payment confirmation check.
type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentConfirmer validates a payment confirmation token received from
// the client. The engine never calls the payment provider to capture;
// capture happens client side, this only checks the token.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, token string) (PaymentStatus, error)
}
