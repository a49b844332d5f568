package eventbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/events"
)

// fakeAPI records every PutEvents call. respond decides the outcome per call.
type fakeAPI struct {
	mu      sync.Mutex
	calls   [][]types.PutEventsRequestEntry
	respond func(call int, entries []types.PutEventsRequestEntry) (*eventbridge.PutEventsOutput, error)
}

func (f *fakeAPI) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params.Entries)
	if f.respond == nil {
		return &eventbridge.PutEventsOutput{}, nil
	}
	return f.respond(len(f.calls), params.Entries)
}

func newTestPublisher(api API) *Publisher {
	p := NewPublisher(api, "canvas-bus", nil)
	p.backoff = time.Millisecond
	return p
}

func edgeEvent(n int) events.DomainEvent {
	id := fmt.Sprintf("edge-%d", n)
	return events.NewEdgeCreated(id, "graph-1", "a", "b", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestPublisher_Publish(t *testing.T) {
	// Arrange
	api := &fakeAPI{}
	p := newTestPublisher(api)

	// Act
	err := p.Publish(context.Background(), edgeEvent(1))

	// Assert
	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	entry := api.calls[0][0]
	assert.Equal(t, "canvas-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeEdgeCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"canvas:edge-1"}, entry.Resources)
	assert.Contains(t, aws.ToString(entry.Detail), `"graph_id":"graph-1"`)
}

func TestPublisher_PublishBatchSplitsIntoTens(t *testing.T) {
	api := &fakeAPI{}
	p := newTestPublisher(api)

	batch := make([]events.DomainEvent, 23)
	for i := range batch {
		batch[i] = edgeEvent(i)
	}

	require.NoError(t, p.PublishBatch(context.Background(), batch))

	require.Len(t, api.calls, 3)
	assert.Len(t, api.calls[0], 10)
	assert.Len(t, api.calls[1], 10)
	assert.Len(t, api.calls[2], 3)
}

func TestPublisher_RetriesOnlyFailedEntries(t *testing.T) {
	api := &fakeAPI{
		respond: func(call int, entries []types.PutEventsRequestEntry) (*eventbridge.PutEventsOutput, error) {
			if call > 1 {
				return &eventbridge.PutEventsOutput{}, nil
			}
			return &eventbridge.PutEventsOutput{
				FailedEntryCount: 1,
				Entries: []types.PutEventsResultEntry{
					{EventId: aws.String("ok")},
					{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")},
				},
			}, nil
		},
	}
	p := newTestPublisher(api)

	err := p.PublishBatch(context.Background(), []events.DomainEvent{edgeEvent(1), edgeEvent(2)})

	require.NoError(t, err)
	require.Len(t, api.calls, 2)
	require.Len(t, api.calls[1], 1)
	assert.Contains(t, aws.ToString(api.calls[1][0].Detail), "edge-2")
}

func TestPublisher_GivesUpAfterMaxRetries(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		api := &fakeAPI{
			respond: func(int, []types.PutEventsRequestEntry) (*eventbridge.PutEventsOutput, error) {
				return nil, errors.New("connection reset")
			},
		}
		p := newTestPublisher(api)

		err := p.Publish(context.Background(), edgeEvent(1))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Len(t, api.calls, p.maxRetries)
	})

	t.Run("entries keep failing", func(t *testing.T) {
		api := &fakeAPI{
			respond: func(int, []types.PutEventsRequestEntry) (*eventbridge.PutEventsOutput, error) {
				return &eventbridge.PutEventsOutput{
					FailedEntryCount: 1,
					Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
				}, nil
			},
		}
		p := newTestPublisher(api)

		err := p.Publish(context.Background(), edgeEvent(1))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 events failed")
		assert.Len(t, api.calls, p.maxRetries)
	})
}

func TestPublisher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{
		respond: func(int, []types.PutEventsRequestEntry) (*eventbridge.PutEventsOutput, error) {
			cancel()
			return nil, context.Canceled
		},
	}
	p := newTestPublisher(api)

	err := p.Publish(ctx, edgeEvent(1))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, api.calls, 1)
}
