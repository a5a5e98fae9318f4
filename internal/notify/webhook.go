package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
)

// Webhook headers.
const (
	HeaderRequestID     = "X-Request-ID"
	DefaultAuthScheme   = "Bearer"
	maxDrainedRespBytes = 64 << 10
)

// WebhookSink delivers requests as HTTP calls.
type WebhookSink struct {
	client *http.Client
}

// NewWebhookSink returns a sink using client, or a pooled client from
// go-cleanhttp when client is nil. Timeouts come from the delivery context.
func NewWebhookSink(client *http.Client) *WebhookSink {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &WebhookSink{client: client}
}

// Name implements Sink.
func (*WebhookSink) Name() string { return SinkWebhook }

// Deliver sends one request. Any status outside 2xx is an error.
func (w *WebhookSink) Deliver(ctx context.Context, req Request) error {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.Destination, bytes.NewReader(req.Payload))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrDelivery, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.CorrelationID != "" {
		httpReq.Header.Set(HeaderRequestID, req.CorrelationID)
	}
	if req.AuthToken != "" {
		scheme := req.AuthScheme
		if scheme == "" {
			scheme = DefaultAuthScheme
		}
		httpReq.Header.Set("Authorization", scheme+" "+req.AuthToken)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDelivery, method, req.Destination, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainedRespBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrDelivery, method, req.Destination, resp.StatusCode)
	}
	return nil
}
