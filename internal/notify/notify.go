// Package notify delivers expiry warnings to users. Notifiers report transport
// failures synchronously and never retry; retrying is the caller's decision.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Notifier delivers a message to a single address.
type Notifier interface {
	Send(ctx context.Context, address, subject, body string) error
}

// ErrNotConfigured is returned when the selected transport lacks settings.
var ErrNotConfigured = errors.New("notifier not configured")

// Transport names.
const (
	KindSMTP    = "smtp"
	KindWebhook = "webhook"
	KindLog     = "log"
)

// Options selects and configures a Notifier.
type Options struct {
	Kind       string
	SMTP       SMTPConfig
	WebhookURL string
	Timeout    time.Duration
}

// New returns the Notifier selected by opts.Kind.
func New(opts Options) (Notifier, error) {
	switch opts.Kind {
	case KindSMTP:
		n, err := NewSMTP(opts.SMTP)
		if err != nil {
			return nil, err
		}
		return n, nil
	case KindWebhook:
		n, err := NewWebhook(opts.WebhookURL, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return n, nil
	case KindLog, "":
		return NewLog(nil), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", opts.Kind)
	}
}
