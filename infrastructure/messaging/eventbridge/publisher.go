package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/events"
)

// Source is the EventBridge source attached to every event
const Source = "canvas.backend"

// EventBridge limits to 10 events per PutEvents call
const batchSize = 10

// API is the subset of the EventBridge client the publisher uses
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher using AWS EventBridge
type Publisher struct {
	client       API
	eventBusName string
	logger       *zap.Logger
	maxRetries   int
	backoff      time.Duration
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
		maxRetries:   3,
		backoff:      100 * time.Millisecond,
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends multiple events to EventBridge
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}

		entries := p.entries(domainEvents[i:end])
		if err := p.publishWithRetry(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) entries(domainEvents []events.DomainEvent) []types.PutEventsRequestEntry {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))

	for _, event := range domainEvents {
		eventData, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(eventData)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("canvas:%s", event.GetAggregateID())},
		})
	}

	return entries
}

// publishWithRetry resends only the entries EventBridge rejected, with
// exponential backoff
func (p *Publisher) publishWithRetry(ctx context.Context, entries []types.PutEventsRequestEntry) error {
	backoff := p.backoff

	for attempt := 0; len(entries) > 0; attempt++ {
		failed, err := p.put(ctx, entries)
		if err == nil && len(failed) == 0 {
			return nil
		}
		if err != nil && errors.Is(err, context.Canceled) {
			return err
		}
		if attempt >= p.maxRetries-1 {
			if err != nil {
				return fmt.Errorf("failed to publish events to EventBridge: %w", err)
			}
			return fmt.Errorf("%d events failed to publish", len(failed))
		}
		if err == nil {
			entries = failed
		}

		p.logger.Warn("Retrying event publication",
			zap.Int("attempt", attempt+1),
			zap.Int("entries", len(entries)),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Publisher) put(ctx context.Context, entries []types.PutEventsRequestEntry) ([]types.PutEventsRequestEntry, error) {
	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return nil, err
	}

	if result.FailedEntryCount == 0 {
		p.logger.Debug("Events published to EventBridge",
			zap.Int("count", len(entries)),
			zap.String("eventBus", p.eventBusName),
		)
		return nil, nil
	}

	var failed []types.PutEventsRequestEntry
	for i, entry := range result.Entries {
		if entry.ErrorCode == nil || i >= len(entries) {
			continue
		}
		p.logger.Error("Failed to publish event",
			zap.String("eventType", aws.ToString(entries[i].DetailType)),
			zap.String("errorCode", *entry.ErrorCode),
			zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
		)
		failed = append(failed, entries[i])
	}
	return failed, nil
}
