package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/commands"
	"canvas-backend/application/commands/bus"
	"canvas-backend/application/services"
	"canvas-backend/pkg/common"
	pkgerrors "canvas-backend/pkg/errors"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	base
	commandBus *bus.CommandBus
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(commandBus *bus.CommandBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{
		base:       base{errors: errs, logger: logger},
		commandBus: commandBus,
	}
}

// CreateEdgeRequest represents the request body for creating an edge
type CreateEdgeRequest struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Colors   *string `json:"colors,omitempty"`
}

// CreateEdge handles POST /graphs/{graphID}/edges.
//
// The edge is created first and context moves second. A failed transfer
// still answers 201 with the error in the body. When an endpoint vanished
// after the edge was committed the 404 names the committed edge.
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CreateEdgeRequest
	if err := common.DecodeJSON(w, r, &req, 0); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.CreateEdgeWithContextCommand{
		UserID:   userID,
		GraphID:  chi.URLParam(r, "graphID"),
		SourceID: req.SourceID,
		TargetID: req.TargetID,
		Colors:   req.Colors,
	})
	if err != nil {
		if partial, ok := result.(*services.EdgeWithContext); ok && partial != nil && partial.Edge != nil {
			if appErr := pkgerrors.GetAppError(err); appErr != nil {
				appErr.WithDetail("edge_id", partial.Edge.ID().String())
			}
			h.logger.Warn("Edge committed but context transfer could not run",
				zap.String("edge_id", partial.Edge.ID().String()),
				zap.Error(err),
			)
		}
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, toEdgeWithContextResponse(result.(*services.EdgeWithContext)))
}
