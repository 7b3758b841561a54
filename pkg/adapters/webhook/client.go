// Package webhook implements the outbound HTTP capability consumed by
// webhook blocks.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chatwalk/chatwalk/pkg/ports"
)

// Caller implements ports.WebhookCaller on a shared resty client.
type Caller struct {
	client *resty.Client
}

// Option configures the Caller.
type Option func(*Caller)

// WithRestyClient injects a preconfigured client (proxies, TLS, retries).
func WithRestyClient(c *resty.Client) Option {
	return func(w *Caller) { w.client = c }
}

// NewCaller creates a webhook caller with sane defaults.
func NewCaller(opts ...Option) *Caller {
	w := &Caller{}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		w.client = resty.New().
			SetHeader("User-Agent", "chatwalk").
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	}
	return w
}

// Call performs the request, honoring the per-call timeout. The response
// body is decoded as JSON when possible and returned raw otherwise.
func (w *Caller) Call(ctx context.Context, req ports.WebhookRequest) (*ports.WebhookResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := w.client.R().SetContext(cctx).SetHeaders(req.Headers)
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("webhook %s %s: %w", req.Method, req.URL, err)
	}

	var body any
	raw := resp.Body()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}
	return &ports.WebhookResponse{StatusCode: resp.StatusCode(), Body: body}, nil
}
