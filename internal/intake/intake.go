package intake

import (
	"context"
	"log/slog"
	"strings"
)

// Summary is the structured result of summarizing a raw patient intake.
type Summary struct {
	Text     string
	RedFlags []string
}

// Summarizer condenses free-text intake into a structured summary. Opaque
// collaborator; may fail and the failure is retryable.
type Summarizer interface {
	Summarize(ctx context.Context, raw string) (Summary, error)
}

// PassthroughSummarizer is a stub that trims the raw intake and reports no
// red flags.
type PassthroughSummarizer struct {
	logger *slog.Logger
}

// NewPassthroughSummarizer constructs the stub summarizer.
func NewPassthroughSummarizer(logger *slog.Logger) *PassthroughSummarizer {
	return &PassthroughSummarizer{logger: logger}
}

func (s *PassthroughSummarizer) Summarize(_ context.Context, raw string) (Summary, error) {
	if s != nil && s.logger != nil {
		s.logger.Debug("intake summarized", "length", len(raw))
	}
	return Summary{Text: strings.TrimSpace(raw)}, nil
}
