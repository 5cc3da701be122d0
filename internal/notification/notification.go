package notification

import (
	"context"
	"log/slog"
)

// Channel selects where a notification is delivered.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelExternal Channel = "external"
	ChannelBoth     Channel = "both"
)

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string, channel Channel) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Notify writes the notification to the structured logger.
func (n *LoggerNotifier) Notify(_ context.Context, userID, title, body string, channel Channel) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "user_id", userID, "title", title, "body", body, "channel", string(channel))
	return nil
}
