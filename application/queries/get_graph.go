package queries

import (
	"context"

	"canvas-backend/application/ports"
	"canvas-backend/application/queries/bus"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/utils"
)

// GetGraphQuery loads one graph's metadata
type GetGraphQuery struct {
	UserID  string `json:"-"`
	GraphID string `json:"graph_id" validate:"required,uuid"`
}

func (q GetGraphQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetGraphHandler answers GetGraphQuery with *aggregates.Graph
type GetGraphHandler struct {
	store ports.GraphStore
}

func NewGetGraphHandler(store ports.GraphStore) *GetGraphHandler {
	return &GetGraphHandler{store: store}
}

func (h *GetGraphHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(GetGraphQuery)

	var graph *aggregates.Graph
	err := ports.ViewInTx(ctx, h.store, func(tx ports.Tx) error {
		var err error
		graph, err = services.OwnedGraph(ctx, tx, valueobjects.GraphID(query.GraphID), query.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return graph, nil
}
