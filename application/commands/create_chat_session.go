package commands

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/ports"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"
)

// CreateChatSessionCommand starts a conversation in a graph. When NodeID is
// set the session is bound to that chat node.
type CreateChatSessionCommand struct {
	UserID  string `json:"-"`
	GraphID string `json:"graph_id" validate:"required,uuid"`
	NodeID  string `json:"node_id,omitempty" validate:"omitempty,uuid"`
	Title   string `json:"title" validate:"max=200"`
}

// Validate validates the command
func (c CreateChatSessionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateChatSessionHandler handles CreateChatSessionCommand
type CreateChatSessionHandler struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewCreateChatSessionHandler creates a new handler instance
func NewCreateChatSessionHandler(store ports.GraphStore, logger *zap.Logger) *CreateChatSessionHandler {
	return &CreateChatSessionHandler{store: store, logger: logger}
}

// Handle implements bus.CommandHandler. The result is *entities.ChatSession.
func (h *CreateChatSessionHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(CreateChatSessionCommand)
	graphID := valueobjects.GraphID(cmd.GraphID)

	session, err := entities.NewChatSession(graphID, cmd.Title)
	if err != nil {
		return nil, err
	}

	err = ports.RunInTx(ctx, h.store, func(tx ports.Tx) error {
		if _, err := services.OwnedGraph(ctx, tx, graphID, cmd.UserID); err != nil {
			return err
		}
		if err := tx.CreateChatSession(ctx, session); err != nil {
			return err
		}
		if cmd.NodeID == "" {
			return nil
		}
		return h.bind(ctx, tx, cmd.NodeID, graphID, session.ID())
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Chat session created",
		zap.String("session_id", session.ID().String()),
		zap.String("graph_id", cmd.GraphID),
		zap.String("node_id", cmd.NodeID),
	)
	return session, nil
}

func (h *CreateChatSessionHandler) bind(ctx context.Context, tx ports.Tx, rawNodeID string, graphID valueobjects.GraphID, sessionID valueobjects.SessionID) error {
	nodeID, err := valueobjects.NewNodeIDFromString(rawNodeID)
	if err != nil {
		return err
	}
	node, err := tx.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if !node.BelongsTo(graphID) {
		return pkgerrors.NewNodeNotFound(rawNodeID)
	}
	if node.HasChatSession() {
		return pkgerrors.NewConflictError("node already has a chat session").
			WithDetail("node_id", rawNodeID).
			WithDetail("session_id", node.ChatSessionID().String())
	}
	if err := node.BindChatSession(sessionID); err != nil {
		return err
	}
	return tx.BindChatSession(ctx, nodeID, sessionID)
}
