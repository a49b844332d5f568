package commands

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/ports"
	"canvas-backend/application/services"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/validators"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/utils"
)

// CreateNodeCommand adds a typed node to a graph
type CreateNodeCommand struct {
	UserID  string                 `json:"-"`
	GraphID string                 `json:"graph_id" validate:"required,uuid"`
	Type    string                 `json:"type" validate:"required,oneof=document media chat website"`
	Title   string                 `json:"title" validate:"max=200"`
	Payload map[string]interface{} `json:"payload"`
}

// Validate validates the command
func (c CreateNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateNodeHandler handles CreateNodeCommand
type CreateNodeHandler struct {
	store     ports.GraphStore
	publisher ports.EventPublisher
	nodes     *validators.NodeValidator
	logger    *zap.Logger
}

// NewCreateNodeHandler creates a new handler instance
func NewCreateNodeHandler(store ports.GraphStore, publisher ports.EventPublisher, cfg *config.DomainConfig, logger *zap.Logger) *CreateNodeHandler {
	return &CreateNodeHandler{
		store:     store,
		publisher: publisher,
		nodes:     validators.NewNodeValidator(cfg),
		logger:    logger,
	}
}

// Handle implements bus.CommandHandler. The result is *entities.Node.
func (h *CreateNodeHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(CreateNodeCommand)

	nodeType, err := valueobjects.ParseNodeType(cmd.Type)
	if err != nil {
		return nil, err
	}
	payload := valueobjects.Payload(cmd.Payload)
	if err := h.nodes.ValidateNode(nodeType, cmd.Title, payload); err != nil {
		return nil, err
	}

	graphID := valueobjects.GraphID(cmd.GraphID)
	node, err := entities.NewNode(graphID, nodeType, cmd.Title, payload)
	if err != nil {
		return nil, err
	}

	if err := ports.RunInTx(ctx, h.store, func(tx ports.Tx) error {
		if _, err := services.OwnedGraph(ctx, tx, graphID, cmd.UserID); err != nil {
			return err
		}
		return tx.CreateNode(ctx, node)
	}); err != nil {
		return nil, err
	}

	h.logger.Info("Node created",
		zap.String("node_id", node.ID().String()),
		zap.String("graph_id", cmd.GraphID),
		zap.String("type", cmd.Type),
	)
	publishCommitted(ctx, h.publisher, h.logger, node.GetUncommittedEvents())
	node.MarkEventsAsCommitted()

	return node, nil
}
