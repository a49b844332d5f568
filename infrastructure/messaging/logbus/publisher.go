// Package logbus publishes domain events to the application log. It is the
// publisher for local runs and the CLI, where no event bus is configured.
package logbus

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/events"
)

// Publisher writes each event as one structured log line
type Publisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

func NewPublisher(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger.Named("events")}
}

func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("event_type", event.GetEventType()),
		zap.String("aggregate_id", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
