// Package llm adapts hosted language models to ports.Completer.
package llm

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	pkgerrors "canvas-backend/pkg/errors"
)

const defaultModel = openai.GPT4oMini

// BreakerConfig holds the circuit breaker settings for the model client
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "openai",
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// streamAPI is the part of the go-openai client the adapter calls
type streamAPI interface {
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// OpenAICompleter streams chat completions. Opening a stream goes through a
// circuit breaker; once the breaker is open calls fail fast with an
// UNAVAILABLE error.
type OpenAICompleter struct {
	client  streamAPI
	model   string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ ports.Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter builds a completer for apiKey. An empty model selects
// the default.
func NewOpenAICompleter(apiKey, model string, cfg BreakerConfig, logger *zap.Logger) *OpenAICompleter {
	return newOpenAICompleter(openai.NewClient(apiKey), model, cfg, logger)
}

func newOpenAICompleter(client streamAPI, model string, cfg BreakerConfig, logger *zap.Logger) *OpenAICompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = defaultModel
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Caller cancellation says nothing about the upstream's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &OpenAICompleter{
		client:  client,
		model:   model,
		breaker: breaker,
		logger:  logger,
	}
}

// Stream opens a streamed completion for prompt
func (c *OpenAICompleter) Stream(ctx context.Context, prompt ports.Prompt) (ports.ChunkReader, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: prompt.MaxTokens,
		Stream:    true,
		Messages:  toChatMessages(prompt),
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.CreateChatCompletionStream(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.NewUnavailableError("openai").WithCause(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("Opening completion stream failed", zap.String("model", c.model), zap.Error(err))
		return nil, pkgerrors.NewExternalError("openai", err)
	}

	return &chatStream{stream: result.(*openai.ChatCompletionStream)}, nil
}

func toChatMessages(prompt ports.Prompt) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(prompt.Messages)+1)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	for _, m := range prompt.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case openai.ChatMessageRoleAssistant, openai.ChatMessageRoleSystem:
			role = m.Role
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return messages
}

// chatStream adapts a go-openai stream to ports.ChunkReader
type chatStream struct {
	stream *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
		if resp.Choices[0].FinishReason != "" {
			return "", io.EOF
		}
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
