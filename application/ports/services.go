package ports

import (
	"context"
	"time"

	"canvas-backend/domain/events"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching rendered exports
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error
}

// PromptMessage is one turn sent to a language model
type PromptMessage struct {
	Role    string
	Content string
}

// Prompt is a full completion request
type Prompt struct {
	System    string
	Messages  []PromptMessage
	MaxTokens int
}

// ChunkReader yields the pieces of a streamed completion.
// Recv returns io.EOF once the stream is exhausted.
type ChunkReader interface {
	Recv() (string, error)
	Close() error
}

// Completer is the opaque text-completion capability
type Completer interface {
	Stream(ctx context.Context, prompt Prompt) (ChunkReader, error)
}
