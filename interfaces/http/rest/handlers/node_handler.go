package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/commands"
	"canvas-backend/application/commands/bus"
	"canvas-backend/application/queries"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/domain/core/entities"
	"canvas-backend/pkg/common"
	pkgerrors "canvas-backend/pkg/errors"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	base
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		base:       base{errors: errs, logger: logger},
		commandBus: commandBus,
		queryBus:   queryBus,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Payload map[string]interface{} `json:"payload"`
}

// CreateNode handles POST /graphs/{graphID}/nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CreateNodeRequest
	if err := common.DecodeJSON(w, r, &req, 0); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.CreateNodeCommand{
		UserID:  userID,
		GraphID: chi.URLParam(r, "graphID"),
		Type:    req.Type,
		Title:   req.Title,
		Payload: req.Payload,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, toNodeResponse(result.(*entities.Node)))
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeQuery{
		UserID: userID,
		NodeID: chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toNodeResponse(result.(*entities.Node)))
}
