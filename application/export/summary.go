package export

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
)

const summarySystemPrompt = "Summarize the following conversation in a short paragraph. " +
	"Mention any context that was imported from other nodes."

// Summarizer asks the language model for a summary of prepared exchanges
type Summarizer struct {
	completer ports.Completer
	stream    *StreamProcessor
	timeout   time.Duration
	maxTokens int
	logger    *zap.Logger
}

// NewSummarizer creates a summarizer; a nil completer disables summaries
func NewSummarizer(completer ports.Completer, stream *StreamProcessor, timeout time.Duration, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		completer: completer,
		stream:    stream,
		timeout:   timeout,
		maxTokens: 256,
		logger:    logger,
	}
}

// Summarize streams a completion and assembles it through the stream processor
func (s *Summarizer) Summarize(ctx context.Context, exchanges []Exchange) (string, error) {
	if s == nil || s.completer == nil || len(exchanges) == 0 {
		return "", nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	prompt := ports.Prompt{
		System:    summarySystemPrompt,
		MaxTokens: s.maxTokens,
		Messages:  []ports.PromptMessage{{Role: "user", Content: transcript(exchanges)}},
	}

	reader, err := s.completer.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}
	return s.stream.Assemble(ctx, reader)
}

func transcript(exchanges []Exchange) string {
	var b strings.Builder
	for i, ex := range exchanges {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(ex.Role.Label())
		b.WriteString(": ")
		b.WriteString(ex.Content)
	}
	return b.String()
}
