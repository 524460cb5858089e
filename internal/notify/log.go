package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLog returns a LogNotifier. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, address, subject, body string) error {
	n.logger.InfoContext(ctx, "notification", "address", address, "subject", subject, "body", body)
	return nil
}
