package entities

import (
	"strings"
	"time"

	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

// Node is a typed content unit inside a graph.
// The type tag is fixed at creation; the payload belongs to upstream ingestion.
type Node struct {
	id            valueobjects.NodeID
	graphID       valueobjects.GraphID
	nodeType      valueobjects.NodeType
	title         string
	payload       valueobjects.Payload
	chatSessionID valueobjects.SessionID
	createdAt     time.Time
	updatedAt     time.Time

	// Domain events that occurred during this entity's lifetime
	events []events.DomainEvent
}

// NewNode creates a new node with validation
func NewNode(graphID valueobjects.GraphID, nodeType valueobjects.NodeType, title string, payload valueobjects.Payload) (*Node, error) {
	if graphID == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	if !nodeType.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown node type: " + string(nodeType))
	}
	if payload == nil {
		payload = valueobjects.Payload{}
	}

	now := time.Now().UTC()
	node := &Node{
		id:        valueobjects.NewNodeID(),
		graphID:   graphID,
		nodeType:  nodeType,
		title:     strings.TrimSpace(title),
		payload:   payload.Clone(),
		createdAt: now,
		updatedAt: now,
		events:    []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeCreated(node.id.String(), graphID.String(), string(nodeType), now))

	return node, nil
}

// ReconstructNode rebuilds a node from stored data with preserved timestamps
func ReconstructNode(
	id valueobjects.NodeID,
	graphID valueobjects.GraphID,
	nodeType valueobjects.NodeType,
	title string,
	payload valueobjects.Payload,
	chatSessionID valueobjects.SessionID,
	createdAt, updatedAt time.Time,
) *Node {
	if payload == nil {
		payload = valueobjects.Payload{}
	}
	return &Node{
		id:            id,
		graphID:       graphID,
		nodeType:      nodeType,
		title:         title,
		payload:       payload,
		chatSessionID: chatSessionID,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		events:        []events.DomainEvent{},
	}
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// GraphID returns the ID of the graph this node belongs to
func (n *Node) GraphID() valueobjects.GraphID {
	return n.graphID
}

// Type returns the node's immutable type tag
func (n *Node) Type() valueobjects.NodeType {
	return n.nodeType
}

func (n *Node) Title() string {
	return n.title
}

// Payload returns a copy of the node payload
func (n *Node) Payload() valueobjects.Payload {
	return n.payload.Clone()
}

// ChatSessionID returns the bound session, zero when none
func (n *Node) ChatSessionID() valueobjects.SessionID {
	return n.chatSessionID
}

// HasChatSession reports whether a session is bound to the node
func (n *Node) HasChatSession() bool {
	return !n.chatSessionID.IsZero()
}

// BelongsTo reports whether the node lives in the given graph
func (n *Node) BelongsTo(graphID valueobjects.GraphID) bool {
	return n.graphID == graphID
}

// BindChatSession attaches a chat session to a chat node
func (n *Node) BindChatSession(sessionID valueobjects.SessionID) error {
	if n.nodeType != valueobjects.NodeTypeChat {
		return pkgerrors.NewValidationError("only chat nodes can hold a chat session").
			WithDetail("node_type", string(n.nodeType))
	}
	if sessionID.IsZero() {
		return pkgerrors.NewValidationError("session ID cannot be empty")
	}
	if n.chatSessionID == sessionID {
		return nil
	}
	n.chatSessionID = sessionID
	n.updatedAt = time.Now().UTC()
	return nil
}

// PayloadText returns the transferable text held directly in the payload.
// Chat nodes carry their text in the bound session, so this is empty for them.
func (n *Node) PayloadText() string {
	switch n.nodeType {
	case valueobjects.NodeTypeDocument:
		return n.payload.FirstString(valueobjects.PayloadContent, valueobjects.PayloadText)
	case valueobjects.NodeTypeWebsite:
		return n.payload.FirstString(valueobjects.PayloadContent, valueobjects.PayloadText, valueobjects.PayloadURL)
	case valueobjects.NodeTypeMedia:
		return n.payload.FirstString(valueobjects.PayloadTranscript, valueobjects.PayloadCaption, valueobjects.PayloadContent)
	default:
		return ""
	}
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}
