package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Dispatcher delivers one-time codes and freeform texts to a phone number.
// The real implementation lives outside this service; SendChallenge failures
// must surface to the caller as retryable, SendFreeform is best-effort.
type Dispatcher interface {
	SendChallenge(ctx context.Context, phone, code string) (string, error)
	SendFreeform(ctx context.Context, phone, text string)
}

// LoggerDispatcher is a stub implementation that writes messages to the logger.
type LoggerDispatcher struct {
	logger *slog.Logger
}

// NewLoggerDispatcher constructs a logging dispatcher stub.
func NewLoggerDispatcher(logger *slog.Logger) *LoggerDispatcher {
	return &LoggerDispatcher{logger: logger}
}

// SendChallenge logs the code and returns a synthetic message id.
func (d *LoggerDispatcher) SendChallenge(_ context.Context, phone, code string) (string, error) {
	id := uuid.NewString()
	if d != nil && d.logger != nil {
		d.logger.Info("challenge dispatched", "phone", phone, "code", code, "message_id", id)
	}
	return id, nil
}

// SendFreeform logs the text. Errors are swallowed by contract.
func (d *LoggerDispatcher) SendFreeform(_ context.Context, phone, text string) {
	if d != nil && d.logger != nil {
		d.logger.Info("freeform dispatched", "phone", phone, "text", text)
	}
}
