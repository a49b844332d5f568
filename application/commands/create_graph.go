package commands

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/ports"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/validators"
	"canvas-backend/pkg/utils"
)

// CreateGraphCommand creates an empty graph owned by UserID
type CreateGraphCommand struct {
	UserID string  `json:"-" validate:"required"`
	Name   string  `json:"name" validate:"max=200"`
	Colors *string `json:"colors,omitempty" validate:"omitempty,max=64"`
}

// Validate validates the command
func (c CreateGraphCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateGraphHandler handles CreateGraphCommand
type CreateGraphHandler struct {
	store     ports.GraphStore
	publisher ports.EventPublisher
	graphs    *validators.GraphValidator
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewCreateGraphHandler creates a new handler instance
func NewCreateGraphHandler(store ports.GraphStore, publisher ports.EventPublisher, cfg *config.DomainConfig, logger *zap.Logger) *CreateGraphHandler {
	return &CreateGraphHandler{
		store:     store,
		publisher: publisher,
		graphs:    validators.NewGraphValidator(cfg),
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle implements bus.CommandHandler. The result is *aggregates.Graph.
func (h *CreateGraphHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(CreateGraphCommand)

	name := cmd.Name
	if name == "" {
		name = h.cfg.DefaultGraphName
	}
	if err := h.graphs.ValidateGraphName(name); err != nil {
		return nil, err
	}
	if err := h.graphs.ValidateColors(cmd.Colors); err != nil {
		return nil, err
	}

	graph, err := aggregates.NewGraph(cmd.UserID, name, cmd.Colors)
	if err != nil {
		return nil, err
	}

	if err := ports.RunInTx(ctx, h.store, func(tx ports.Tx) error {
		return tx.CreateGraph(ctx, graph)
	}); err != nil {
		return nil, err
	}

	h.logger.Info("Graph created",
		zap.String("graph_id", graph.ID().String()),
		zap.String("user_id", cmd.UserID),
	)
	publishCommitted(ctx, h.publisher, h.logger, graph.GetUncommittedEvents())
	graph.MarkEventsAsCommitted()

	return graph, nil
}
