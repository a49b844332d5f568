// Package mocks provides testify mocks for the application ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"canvas-backend/application/ports"
	"canvas-backend/domain/events"
)

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

var _ ports.EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// EventTypes returns the event types of every PublishBatch call, in order
func (m *MockEventPublisher) EventTypes() []string {
	var out []string
	for _, call := range m.Calls {
		if call.Method != "PublishBatch" {
			continue
		}
		for _, e := range call.Arguments.Get(1).([]events.DomainEvent) {
			out = append(out, e.GetEventType())
		}
	}
	return out
}

// MockCache is a mock implementation of ports.Cache
type MockCache struct {
	mock.Mock
}

var _ ports.Cache = (*MockCache)(nil)

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]byte), args.Bool(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockCompleter is a mock implementation of ports.Completer
type MockCompleter struct {
	mock.Mock
}

var _ ports.Completer = (*MockCompleter)(nil)

func (m *MockCompleter) Stream(ctx context.Context, prompt ports.Prompt) (ports.ChunkReader, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.ChunkReader), args.Error(1)
}

// MockChunkReader is a mock implementation of ports.ChunkReader
type MockChunkReader struct {
	mock.Mock
}

var _ ports.ChunkReader = (*MockChunkReader)(nil)

func (m *MockChunkReader) Recv() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockChunkReader) Close() error {
	args := m.Called()
	return args.Error(0)
}
