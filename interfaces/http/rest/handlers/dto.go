package handlers

import (
	"time"

	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

// GraphResponse is the JSON form of a graph
type GraphResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Colors    *string   `json:"colors,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toGraphResponse(g *aggregates.Graph) GraphResponse {
	return GraphResponse{
		ID:        g.ID().String(),
		Name:      g.Name(),
		Colors:    g.Colors(),
		CreatedAt: g.CreatedAt(),
		UpdatedAt: g.UpdatedAt(),
	}
}

// NodeResponse is the JSON form of a node
type NodeResponse struct {
	ID            string               `json:"id"`
	GraphID       string               `json:"graph_id"`
	Type          string               `json:"type"`
	Title         string               `json:"title"`
	Payload       valueobjects.Payload `json:"payload"`
	ChatSessionID string               `json:"chat_session_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toNodeResponse(n *entities.Node) NodeResponse {
	return NodeResponse{
		ID:            n.ID().String(),
		GraphID:       n.GraphID().String(),
		Type:          n.Type().String(),
		Title:         n.Title(),
		Payload:       n.Payload(),
		ChatSessionID: n.ChatSessionID().String(),
		CreatedAt:     n.CreatedAt(),
		UpdatedAt:     n.UpdatedAt(),
	}
}

// EdgeResponse is the JSON form of an edge
type EdgeResponse struct {
	ID        string    `json:"id"`
	GraphID   string    `json:"graph_id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Colors    *string   `json:"colors,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toEdgeResponse(e *entities.Edge) EdgeResponse {
	return EdgeResponse{
		ID:        e.ID().String(),
		GraphID:   e.GraphID().String(),
		SourceID:  e.SourceID().String(),
		TargetID:  e.TargetID().String(),
		Colors:    e.Colors(),
		CreatedAt: e.CreatedAt(),
	}
}

// EdgeWithContextResponse is the edge plus the context transfer outcome
type EdgeWithContextResponse struct {
	Edge          EdgeResponse      `json:"edge"`
	Strategy      string            `json:"strategy,omitempty"`
	Messages      []MessageResponse `json:"messages,omitempty"`
	ChatSessionID string            `json:"chat_session_id,omitempty"`
	Placeholder   bool              `json:"placeholder,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func toEdgeWithContextResponse(r *services.EdgeWithContext) EdgeWithContextResponse {
	out := EdgeWithContextResponse{
		Edge:          toEdgeResponse(r.Edge),
		Strategy:      string(r.Strategy),
		ChatSessionID: r.ChatSessionID.String(),
		Placeholder:   r.Placeholder,
		Error:         r.Error,
	}
	for _, m := range r.Messages {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	return out
}

// SessionResponse is the JSON form of a chat session
type SessionResponse struct {
	ID           string    `json:"id"`
	GraphID      string    `json:"graph_id"`
	Title        string    `json:"title"`
	OriginNodeID string    `json:"origin_node_id,omitempty"`
	OriginEdgeID string    `json:"origin_edge_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSessionResponse(s *entities.ChatSession) SessionResponse {
	out := SessionResponse{
		ID:           s.ID().String(),
		GraphID:      s.GraphID().String(),
		Title:        s.Title(),
		OriginEdgeID: s.OriginEdgeID().String(),
		CreatedAt:    s.CreatedAt(),
	}
	if !s.OriginNodeID().IsZero() {
		out.OriginNodeID = s.OriginNodeID().String()
	}
	return out
}

// MessageResponse is the JSON form of a chat message
type MessageResponse struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Seq          int64     `json:"seq"`
	SourceNodeID string    `json:"source_node_id,omitempty"`
	StreamID     string    `json:"stream_id,omitempty"`
	ChunkIndex   int       `json:"chunk_index,omitempty"`
}

func toMessageResponse(m *entities.ChatMessage) MessageResponse {
	out := MessageResponse{
		ID:         m.ID,
		Role:       string(m.Role),
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		Seq:        m.Seq,
		StreamID:   m.StreamID,
		ChunkIndex: m.ChunkIndex,
	}
	if m.HasSource() {
		out.SourceNodeID = m.SourceNodeID.String()
	}
	return out
}
