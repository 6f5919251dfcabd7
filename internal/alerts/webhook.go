package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/haasonsaas/groundedcore/internal/retry"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// WebhookSender dispatches one newly-firing alert notification. Only
// called for new critical/high firings per spec.md §4.11 step 6.
type WebhookSender interface {
	Send(ctx context.Context, event domain.AlertEvent, rule domain.AlertRule) error
}

// webhookPayload is the JSON body posted to the configured URL.
type webhookPayload struct {
	Event domain.AlertEvent `json:"event"`
	Rule  domain.AlertRule  `json:"rule"`
}

// HTTPWebhookSender posts alert notifications to a single configured URL
// with bounded retry, grounded on internal/retry.Do (the same loop the
// resilient tool client and LLM dispatcher use) rather than a bespoke
// backoff implementation.
type HTTPWebhookSender struct {
	URL    string
	Client *http.Client
	Retry  retry.Config
}

// NewHTTPWebhookSender builds a sender with sane defaults: a 5s client
// timeout and the package's default bounded-retry policy.
func NewHTTPWebhookSender(url string) *HTTPWebhookSender {
	return &HTTPWebhookSender{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
		Retry:  retry.DefaultConfig(),
	}
}

func (w *HTTPWebhookSender) Send(ctx context.Context, event domain.AlertEvent, rule domain.AlertRule) error {
	body, err := json.Marshal(webhookPayload{Event: event, Rule: rule})
	if err != nil {
		return fmt.Errorf("alerts: encode webhook payload: %w", err)
	}

	result := retry.Do(ctx, w.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("alerts: webhook %s: server error %d", w.URL, resp.StatusCode)
		case resp.StatusCode >= 400:
			return retry.Permanent(fmt.Errorf("alerts: webhook %s: client error %d", w.URL, resp.StatusCode))
		default:
			return nil
		}
	})
	return result.Err
}
