package queries

import (
	"context"

	"canvas-backend/application/ports"
	"canvas-backend/application/queries/bus"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/utils"
)

// GetNodeQuery represents a query to get a single node
type GetNodeQuery struct {
	UserID string `json:"-"`
	NodeID string `json:"node_id" validate:"required,uuid"`
}

// Validate validates the GetNodeQuery
func (q GetNodeQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetNodeHandler answers GetNodeQuery with *entities.Node
type GetNodeHandler struct {
	store ports.GraphStore
}

func NewGetNodeHandler(store ports.GraphStore) *GetNodeHandler {
	return &GetNodeHandler{store: store}
}

func (h *GetNodeHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(GetNodeQuery)
	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, err
	}

	var node *entities.Node
	err = ports.ViewInTx(ctx, h.store, func(tx ports.Tx) error {
		node, err = services.OwnedNode(ctx, tx, nodeID, query.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}
