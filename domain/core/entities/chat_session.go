package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

// ChatSession is a conversation bound to a graph. Sessions spawned by context
// transfer remember the node and edge that created them.
type ChatSession struct {
	id           valueobjects.SessionID
	graphID      valueobjects.GraphID
	originNodeID valueobjects.NodeID
	originEdgeID valueobjects.EdgeID
	title        string
	createdAt    time.Time

	events []events.DomainEvent
}

// NewChatSession creates a session started explicitly by a user
func NewChatSession(graphID valueobjects.GraphID, title string) (*ChatSession, error) {
	if graphID == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	return &ChatSession{
		id:        valueobjects.NewSessionID(),
		graphID:   graphID,
		title:     strings.TrimSpace(title),
		createdAt: time.Now().UTC(),
		events:    []events.DomainEvent{},
	}, nil
}

// SpawnChatSession creates a session on behalf of an edge whose target
// needed a conversation that did not exist yet
func SpawnChatSession(graphID valueobjects.GraphID, title string, originNode valueobjects.NodeID, originEdge valueobjects.EdgeID) (*ChatSession, error) {
	s, err := NewChatSession(graphID, title)
	if err != nil {
		return nil, err
	}
	s.originNodeID = originNode
	s.originEdgeID = originEdge
	s.events = append(s.events, events.NewChatSessionSpawned(
		s.id.String(), graphID.String(), originNode.String(), originEdge.String(), s.createdAt,
	))
	return s, nil
}

// ReconstructChatSession rebuilds a session from stored data
func ReconstructChatSession(
	id valueobjects.SessionID,
	graphID valueobjects.GraphID,
	originNodeID valueobjects.NodeID,
	originEdgeID valueobjects.EdgeID,
	title string,
	createdAt time.Time,
) *ChatSession {
	return &ChatSession{
		id:           id,
		graphID:      graphID,
		originNodeID: originNodeID,
		originEdgeID: originEdgeID,
		title:        title,
		createdAt:    createdAt,
		events:       []events.DomainEvent{},
	}
}

func (s *ChatSession) ID() valueobjects.SessionID    { return s.id }
func (s *ChatSession) GraphID() valueobjects.GraphID { return s.graphID }
func (s *ChatSession) Title() string                 { return s.title }
func (s *ChatSession) CreatedAt() time.Time          { return s.createdAt }

// OriginNodeID is the node whose content seeded the session, zero when user-created
func (s *ChatSession) OriginNodeID() valueobjects.NodeID { return s.originNodeID }

// OriginEdgeID is the edge that spawned the session, empty when user-created
func (s *ChatSession) OriginEdgeID() valueobjects.EdgeID { return s.originEdgeID }

// IsSpawned reports whether context transfer created the session
func (s *ChatSession) IsSpawned() bool { return s.originEdgeID != "" }

// GetUncommittedEvents returns all uncommitted domain events
func (s *ChatSession) GetUncommittedEvents() []events.DomainEvent { return s.events }

// MarkEventsAsCommitted clears the uncommitted events
func (s *ChatSession) MarkEventsAsCommitted() { s.events = []events.DomainEvent{} }

// ChatMessage is one entry of a session history. Seq is assigned by the
// store on append and is strictly increasing per session.
type ChatMessage struct {
	ID           string
	SessionID    valueobjects.SessionID
	Role         valueobjects.MessageRole
	Content      string
	Timestamp    time.Time
	Seq          int64
	SourceNodeID valueobjects.NodeID
	StreamID     string
	ChunkIndex   int
}

// NewChatMessage builds an unsaved message
func NewChatMessage(sessionID valueobjects.SessionID, role valueobjects.MessageRole, content string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewContextMessage builds a message carrying content copied from a node
func NewContextMessage(sessionID valueobjects.SessionID, source valueobjects.NodeID, content string) *ChatMessage {
	m := NewChatMessage(sessionID, valueobjects.RoleContext, content)
	m.SourceNodeID = source
	return m
}

// HasSource reports whether the message was copied from a node
func (m *ChatMessage) HasSource() bool { return !m.SourceNodeID.IsZero() }

// IsChunk reports whether the message is one part of a streamed reply
func (m *ChatMessage) IsChunk() bool { return m.StreamID != "" }
