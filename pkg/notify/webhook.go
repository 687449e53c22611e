package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// WebhookSink POSTs notifications as JSON to an HTTP endpoint, retrying
// transient delivery failures with a bounded fixed-delay policy.
type WebhookSink struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSink) { s.client = client }
}

// WithAttempts sets the total delivery attempts per notification.
func WithAttempts(n uint) WebhookOption {
	return func(s *WebhookSink) { s.attempts = n }
}

// WithRetryDelay sets the delay between delivery attempts.
func WithRetryDelay(d time.Duration) WebhookOption {
	return func(s *WebhookSink) { s.delay = d }
}

// NewWebhookSink creates a webhook sink for the given endpoint.
func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify implements Sink.
func (s *WebhookSink) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("webhook returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
