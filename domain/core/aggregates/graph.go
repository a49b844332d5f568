package aggregates

import (
	"strings"
	"time"

	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

// Graph is the ownership boundary for nodes, edges and chat sessions.
// Its children are stored as separate rows keyed by the graph id, so the
// aggregate itself only carries graph-level fields.
type Graph struct {
	id        valueobjects.GraphID
	userID    string
	name      string
	colors    *string
	createdAt time.Time
	updatedAt time.Time
	events    []events.DomainEvent
}

// NewGraph creates a new graph aggregate
func NewGraph(userID, name string, colors *string) (*Graph, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.NewValidationError("userID required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.NewValidationError("graph name required")
	}

	now := time.Now().UTC()
	graph := &Graph{
		id:        valueobjects.NewGraphID(),
		userID:    userID,
		name:      name,
		colors:    colors,
		createdAt: now,
		updatedAt: now,
		events:    []events.DomainEvent{},
	}

	graph.addEvent(events.NewGraphCreated(graph.id.String(), userID, name, now))

	return graph, nil
}

// ReconstructGraph rebuilds a graph from stored data
func ReconstructGraph(id valueobjects.GraphID, userID, name string, colors *string, createdAt, updatedAt time.Time) *Graph {
	return &Graph{
		id:        id,
		userID:    userID,
		name:      name,
		colors:    colors,
		createdAt: createdAt,
		updatedAt: updatedAt,
		events:    []events.DomainEvent{},
	}
}

// ID returns the graph ID
func (g *Graph) ID() valueobjects.GraphID {
	return g.id
}

// UserID returns the owner's user ID
func (g *Graph) UserID() string {
	return g.userID
}

// Name returns the graph name
func (g *Graph) Name() string {
	return g.name
}

// Colors returns the styling string, nil when unset
func (g *Graph) Colors() *string {
	return g.colors
}

// CreatedAt returns when the graph was created
func (g *Graph) CreatedAt() time.Time {
	return g.createdAt
}

// UpdatedAt returns when the graph was last updated
func (g *Graph) UpdatedAt() time.Time {
	return g.updatedAt
}

// IsOwnedBy reports whether userID owns the graph
func (g *Graph) IsOwnedBy(userID string) bool {
	return userID != "" && g.userID == userID
}

// GetUncommittedEvents returns all uncommitted domain events
func (g *Graph) GetUncommittedEvents() []events.DomainEvent {
	return g.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (g *Graph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
}

func (g *Graph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}
