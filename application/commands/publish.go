package commands

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/events"
)

// publishCommitted sends events after the transaction that produced them
// committed. Failures are logged, never returned.
func publishCommitted(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts []events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, evts); err != nil {
		logger.Error("Failed to publish domain events",
			zap.Error(err),
			zap.Int("event_count", len(evts)),
		)
	}
}
