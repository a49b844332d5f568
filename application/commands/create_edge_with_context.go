package commands

import (
	"context"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/utils"
)

// CreateEdgeWithContextCommand links two nodes and moves context along the
// new edge
type CreateEdgeWithContextCommand struct {
	UserID   string  `json:"-"`
	GraphID  string  `json:"graph_id" validate:"required,uuid"`
	SourceID string  `json:"source_id" validate:"required,uuid"`
	TargetID string  `json:"target_id" validate:"required,uuid"`
	Colors   *string `json:"colors,omitempty" validate:"omitempty,max=64"`
}

// Validate validates the command
func (c CreateEdgeWithContextCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateEdgeWithContextHandler hands the command to the EdgeOrchestrator
type CreateEdgeWithContextHandler struct {
	orchestrator *services.EdgeOrchestrator
}

// NewCreateEdgeWithContextHandler creates a new handler instance
func NewCreateEdgeWithContextHandler(orchestrator *services.EdgeOrchestrator) *CreateEdgeWithContextHandler {
	return &CreateEdgeWithContextHandler{orchestrator: orchestrator}
}

// Handle implements bus.CommandHandler. The result is
// *services.EdgeWithContext and may accompany an error when the edge was
// committed but the transfer could not run.
func (h *CreateEdgeWithContextHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(CreateEdgeWithContextCommand)

	result, err := h.orchestrator.CreateEdgeWithContext(ctx, valueobjects.GraphID(cmd.GraphID), services.EdgeSpec{
		SourceID: cmd.SourceID,
		TargetID: cmd.TargetID,
		Colors:   cmd.Colors,
		UserID:   cmd.UserID,
	})
	if result == nil {
		return nil, err
	}
	return result, err
}
