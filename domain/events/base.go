package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event type names as published on the bus
const (
	TypeGraphCreated       = "graph.created"
	TypeNodeCreated        = "node.created"
	TypeEdgeCreated        = "edge.created"
	TypeContextTransferred = "context.transferred"
	TypeChatSessionSpawned = "chat_session.spawned"
)

// Graph Events

// GraphCreated is raised when a new graph is created
type GraphCreated struct {
	BaseEvent
	GraphID string `json:"graph_id"`
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
}

// NewGraphCreated creates a GraphCreated event
func NewGraphCreated(graphID, userID, name string, timestamp time.Time) GraphCreated {
	return GraphCreated{
		BaseEvent: newBase(graphID, TypeGraphCreated, timestamp),
		GraphID:   graphID,
		UserID:    userID,
		Name:      name,
	}
}

// Node Events

// NodeCreated is raised when a new node is created
type NodeCreated struct {
	BaseEvent
	NodeID   string `json:"node_id"`
	GraphID  string `json:"graph_id"`
	NodeType string `json:"node_type"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID, graphID, nodeType string, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: newBase(nodeID, TypeNodeCreated, timestamp),
		NodeID:    nodeID,
		GraphID:   graphID,
		NodeType:  nodeType,
	}
}

// Edge Events

// EdgeCreated is raised once an edge row is committed
type EdgeCreated struct {
	BaseEvent
	EdgeID   string `json:"edge_id"`
	GraphID  string `json:"graph_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(edgeID, graphID, sourceID, targetID string, timestamp time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent: newBase(edgeID, TypeEdgeCreated, timestamp),
		EdgeID:    edgeID,
		GraphID:   graphID,
		SourceID:  sourceID,
		TargetID:  targetID,
	}
}

// ContextTransferred is raised when an edge moved content into its target
type ContextTransferred struct {
	BaseEvent
	EdgeID       string `json:"edge_id"`
	GraphID      string `json:"graph_id"`
	Strategy     string `json:"strategy"`
	SessionID    string `json:"session_id,omitempty"`
	MessageCount int    `json:"message_count"`
}

// NewContextTransferred creates a ContextTransferred event
func NewContextTransferred(edgeID, graphID, strategy, sessionID string, messageCount int, timestamp time.Time) ContextTransferred {
	return ContextTransferred{
		BaseEvent:    newBase(edgeID, TypeContextTransferred, timestamp),
		EdgeID:       edgeID,
		GraphID:      graphID,
		Strategy:     strategy,
		SessionID:    sessionID,
		MessageCount: messageCount,
	}
}

// Chat Session Events

// ChatSessionSpawned is raised when context transfer creates a session
type ChatSessionSpawned struct {
	BaseEvent
	SessionID    string `json:"session_id"`
	GraphID      string `json:"graph_id"`
	OriginNodeID string `json:"origin_node_id"`
	OriginEdgeID string `json:"origin_edge_id"`
}

// NewChatSessionSpawned creates a ChatSessionSpawned event
func NewChatSessionSpawned(sessionID, graphID, originNodeID, originEdgeID string, timestamp time.Time) ChatSessionSpawned {
	return ChatSessionSpawned{
		BaseEvent:    newBase(sessionID, TypeChatSessionSpawned, timestamp),
		SessionID:    sessionID,
		GraphID:      graphID,
		OriginNodeID: originNodeID,
		OriginEdgeID: originEdgeID,
	}
}

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}
