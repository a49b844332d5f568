package entities

import (
	"strings"
	"time"

	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

// Edge is a directed relationship between two nodes of one graph.
// Cycles and repeated source/target pairs are allowed.
type Edge struct {
	id        valueobjects.EdgeID
	graphID   valueobjects.GraphID
	sourceID  valueobjects.NodeID
	targetID  valueobjects.NodeID
	colors    *string
	createdAt time.Time

	events []events.DomainEvent
}

// NewEdge creates a new edge. Endpoint membership is checked by the caller
// against the store, since the entity cannot see other rows.
func NewEdge(graphID valueobjects.GraphID, sourceID, targetID valueobjects.NodeID, colors *string) (*Edge, error) {
	if graphID == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	if sourceID.IsZero() || targetID.IsZero() {
		return nil, pkgerrors.NewValidationError("edge requires both source and target node IDs")
	}

	now := time.Now().UTC()
	edge := &Edge{
		id:        valueobjects.NewEdgeID(),
		graphID:   graphID,
		sourceID:  sourceID,
		targetID:  targetID,
		colors:    normalizeColors(colors),
		createdAt: now,
	}
	edge.events = []events.DomainEvent{
		events.NewEdgeCreated(edge.id.String(), graphID.String(), sourceID.String(), targetID.String(), now),
	}
	return edge, nil
}

// ReconstructEdge rebuilds an edge from stored data
func ReconstructEdge(
	id valueobjects.EdgeID,
	graphID valueobjects.GraphID,
	sourceID, targetID valueobjects.NodeID,
	colors *string,
	createdAt time.Time,
) *Edge {
	return &Edge{
		id:        id,
		graphID:   graphID,
		sourceID:  sourceID,
		targetID:  targetID,
		colors:    colors,
		createdAt: createdAt,
	}
}

func (e *Edge) ID() valueobjects.EdgeID                    { return e.id }
func (e *Edge) GraphID() valueobjects.GraphID              { return e.graphID }
func (e *Edge) SourceID() valueobjects.NodeID              { return e.sourceID }
func (e *Edge) TargetID() valueobjects.NodeID              { return e.targetID }
func (e *Edge) CreatedAt() time.Time                       { return e.createdAt }
func (e *Edge) IsSelfLoop() bool                           { return e.sourceID.Equals(e.targetID) }
func (e *Edge) GetUncommittedEvents() []events.DomainEvent { return e.events }

// Colors returns the styling string, nil when unset
func (e *Edge) Colors() *string {
	if e.colors == nil {
		return nil
	}
	c := *e.colors
	return &c
}

// MarkEventsAsCommitted clears the uncommitted events
func (e *Edge) MarkEventsAsCommitted() {
	e.events = []events.DomainEvent{}
}

func normalizeColors(colors *string) *string {
	if colors == nil {
		return nil
	}
	c := strings.TrimSpace(*colors)
	if c == "" {
		return nil
	}
	return &c
}
