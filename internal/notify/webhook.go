package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookNotifier posts each message as JSON to an HTTP endpoint, for relaying
// alerts through an external mail or chat gateway.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

type webhookPayload struct {
	Address string `json:"address"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewWebhook returns a notifier posting to url.
func NewWebhook(url string, timeout time.Duration) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required: %w", ErrNotConfigured)
	}

	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &WebhookNotifier{client: client, url: url}, nil
}

// Send implements Notifier. Any non-2xx response is a delivery failure.
func (n *WebhookNotifier) Send(ctx context.Context, address, subject, body string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Address: address, Subject: subject, Body: body}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook responded %s", resp.Status())
	}
	return nil
}
