package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/commands"
	"canvas-backend/application/commands/bus"
	"canvas-backend/application/queries"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/pkg/common"
	pkgerrors "canvas-backend/pkg/errors"
)

// GraphHandler handles graph-related HTTP requests
type GraphHandler struct {
	base
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		base:       base{errors: errs, logger: logger},
		commandBus: commandBus,
		queryBus:   queryBus,
	}
}

// CreateGraph handles POST /graphs
func (h *GraphHandler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var cmd commands.CreateGraphCommand
	if err := common.DecodeJSON(w, r, &cmd, 0); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd.UserID = userID

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, toGraphResponse(result.(*aggregates.Graph)))
}

// GetGraph handles GET /graphs/{graphID}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetGraphQuery{
		UserID:  userID,
		GraphID: chi.URLParam(r, "graphID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toGraphResponse(result.(*aggregates.Graph)))
}
