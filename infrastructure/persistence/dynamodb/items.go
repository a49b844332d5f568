package dynamodb

import (
	"fmt"
	"time"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/utils"
)

// Single-table layout
//
//	GRAPH#<id>    METADATA                  graph
//	GRAPH#<id>    EDGE#<id>                 edge
//	NODE#<id>     METADATA                  node (GSI1: GRAPH#<id> / NODE#<id>)
//	SESSION#<id>  METADATA                  chat session, holds MessageSeq
//	SESSION#<id>  MSG#<ts>#<seq>            chat message
const (
	skMetadata   = "METADATA"
	msgSKPrefix  = "MSG#"
	entityGraph  = "GRAPH"
	entityNode   = "NODE"
	entityEdge   = "EDGE"
	entitySession = "CHAT_SESSION"
	entityMsg    = "CHAT_MESSAGE"
)

func graphPK(id valueobjects.GraphID) string     { return "GRAPH#" + id.String() }
func nodePK(id valueobjects.NodeID) string       { return "NODE#" + id.String() }
func sessionPK(id valueobjects.SessionID) string { return "SESSION#" + id.String() }
func edgeSK(id valueobjects.EdgeID) string       { return "EDGE#" + id.String() }

// messageSK sorts by timestamp then seq when compared as strings
func messageSK(ts time.Time, seq int64) string {
	return fmt.Sprintf("%s%020d#%020d", msgSKPrefix, ts.UTC().UnixNano(), seq)
}

type graphItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	EntityType string  `dynamodbav:"EntityType"`
	GraphID    string  `dynamodbav:"GraphID"`
	UserID     string  `dynamodbav:"UserID"`
	Name       string  `dynamodbav:"Name"`
	Colors     *string `dynamodbav:"Colors,omitempty"`
	CreatedAt  string  `dynamodbav:"CreatedAt"`
	UpdatedAt  string  `dynamodbav:"UpdatedAt"`
}

type nodeItem struct {
	PK            string                 `dynamodbav:"PK"`
	SK            string                 `dynamodbav:"SK"`
	GSI1PK        string                 `dynamodbav:"GSI1PK"`
	GSI1SK        string                 `dynamodbav:"GSI1SK"`
	EntityType    string                 `dynamodbav:"EntityType"`
	NodeID        string                 `dynamodbav:"NodeID"`
	GraphID       string                 `dynamodbav:"GraphID"`
	Type          string                 `dynamodbav:"Type"`
	Title         string                 `dynamodbav:"Title"`
	Payload       map[string]interface{} `dynamodbav:"Payload"`
	ChatSessionID string                 `dynamodbav:"ChatSessionID,omitempty"`
	CreatedAt     string                 `dynamodbav:"CreatedAt"`
	UpdatedAt     string                 `dynamodbav:"UpdatedAt"`
}

type edgeItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	EntityType string  `dynamodbav:"EntityType"`
	EdgeID     string  `dynamodbav:"EdgeID"`
	GraphID    string  `dynamodbav:"GraphID"`
	SourceID   string  `dynamodbav:"SourceID"`
	TargetID   string  `dynamodbav:"TargetID"`
	Colors     *string `dynamodbav:"Colors,omitempty"`
	CreatedAt  string  `dynamodbav:"CreatedAt"`
}

type sessionItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	SessionID    string `dynamodbav:"SessionID"`
	GraphID      string `dynamodbav:"GraphID"`
	OriginNodeID string `dynamodbav:"OriginNodeID,omitempty"`
	OriginEdgeID string `dynamodbav:"OriginEdgeID,omitempty"`
	Title        string `dynamodbav:"Title"`
	MessageSeq   int64  `dynamodbav:"MessageSeq"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
}

type messageItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	MessageID    string `dynamodbav:"MessageID"`
	SessionID    string `dynamodbav:"SessionID"`
	Role         string `dynamodbav:"Role"`
	Content      string `dynamodbav:"Content"`
	Timestamp    string `dynamodbav:"Timestamp"`
	Seq          int64  `dynamodbav:"Seq"`
	SourceNodeID string `dynamodbav:"SourceNodeID,omitempty"`
	StreamID     string `dynamodbav:"StreamID,omitempty"`
	ChunkIndex   int    `dynamodbav:"ChunkIndex"`
}

func newGraphItem(g *aggregates.Graph) graphItem {
	return graphItem{
		PK:         graphPK(g.ID()),
		SK:         skMetadata,
		EntityType: entityGraph,
		GraphID:    g.ID().String(),
		UserID:     g.UserID(),
		Name:       g.Name(),
		Colors:     g.Colors(),
		CreatedAt:  utils.FormatTimestamp(g.CreatedAt()),
		UpdatedAt:  utils.FormatTimestamp(g.UpdatedAt()),
	}
}

func (i graphItem) toGraph() *aggregates.Graph {
	return aggregates.ReconstructGraph(valueobjects.GraphID(i.GraphID), i.UserID, i.Name, i.Colors,
		utils.ParseTimestamp(i.CreatedAt), utils.ParseTimestamp(i.UpdatedAt))
}

func newNodeItem(n *entities.Node) nodeItem {
	return nodeItem{
		PK:            nodePK(n.ID()),
		SK:            skMetadata,
		GSI1PK:        graphPK(n.GraphID()),
		GSI1SK:        "NODE#" + n.ID().String(),
		EntityType:    entityNode,
		NodeID:        n.ID().String(),
		GraphID:       n.GraphID().String(),
		Type:          string(n.Type()),
		Title:         n.Title(),
		Payload:       n.Payload(),
		ChatSessionID: n.ChatSessionID().String(),
		CreatedAt:     utils.FormatTimestamp(n.CreatedAt()),
		UpdatedAt:     utils.FormatTimestamp(n.UpdatedAt()),
	}
}

func (i nodeItem) toNode() (*entities.Node, error) {
	id, err := valueobjects.NewNodeIDFromString(i.NodeID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructNode(id, valueobjects.GraphID(i.GraphID), valueobjects.NodeType(i.Type), i.Title,
		valueobjects.Payload(i.Payload), valueobjects.SessionID(i.ChatSessionID),
		utils.ParseTimestamp(i.CreatedAt), utils.ParseTimestamp(i.UpdatedAt)), nil
}

func newEdgeItem(e *entities.Edge) edgeItem {
	return edgeItem{
		PK:         graphPK(e.GraphID()),
		SK:         edgeSK(e.ID()),
		EntityType: entityEdge,
		EdgeID:     e.ID().String(),
		GraphID:    e.GraphID().String(),
		SourceID:   e.SourceID().String(),
		TargetID:   e.TargetID().String(),
		Colors:     e.Colors(),
		CreatedAt:  utils.FormatTimestamp(e.CreatedAt()),
	}
}

func newSessionItem(s *entities.ChatSession, seq int64) sessionItem {
	item := sessionItem{
		PK:           sessionPK(s.ID()),
		SK:           skMetadata,
		EntityType:   entitySession,
		SessionID:    s.ID().String(),
		GraphID:      s.GraphID().String(),
		OriginEdgeID: s.OriginEdgeID().String(),
		Title:        s.Title(),
		MessageSeq:   seq,
		CreatedAt:    utils.FormatTimestamp(s.CreatedAt()),
	}
	if !s.OriginNodeID().IsZero() {
		item.OriginNodeID = s.OriginNodeID().String()
	}
	return item
}

func (i sessionItem) toSession() (*entities.ChatSession, error) {
	var origin valueobjects.NodeID
	if i.OriginNodeID != "" {
		var err error
		if origin, err = valueobjects.NewNodeIDFromString(i.OriginNodeID); err != nil {
			return nil, err
		}
	}
	return entities.ReconstructChatSession(valueobjects.SessionID(i.SessionID), valueobjects.GraphID(i.GraphID),
		origin, valueobjects.EdgeID(i.OriginEdgeID), i.Title, utils.ParseTimestamp(i.CreatedAt)), nil
}

func newMessageItem(m *entities.ChatMessage) messageItem {
	item := messageItem{
		PK:         sessionPK(m.SessionID),
		SK:         messageSK(m.Timestamp, m.Seq),
		EntityType: entityMsg,
		MessageID:  m.ID,
		SessionID:  m.SessionID.String(),
		Role:       string(m.Role),
		Content:    m.Content,
		Timestamp:  utils.FormatTimestamp(m.Timestamp),
		Seq:        m.Seq,
		StreamID:   m.StreamID,
		ChunkIndex: m.ChunkIndex,
	}
	if m.HasSource() {
		item.SourceNodeID = m.SourceNodeID.String()
	}
	return item
}

func (i messageItem) toMessage() (*entities.ChatMessage, error) {
	m := &entities.ChatMessage{
		ID:         i.MessageID,
		SessionID:  valueobjects.SessionID(i.SessionID),
		Role:       valueobjects.MessageRole(i.Role),
		Content:    i.Content,
		Timestamp:  utils.ParseTimestamp(i.Timestamp),
		Seq:        i.Seq,
		StreamID:   i.StreamID,
		ChunkIndex: i.ChunkIndex,
	}
	if i.SourceNodeID != "" {
		var err error
		if m.SourceNodeID, err = valueobjects.NewNodeIDFromString(i.SourceNodeID); err != nil {
			return nil, err
		}
	}
	return m, nil
}
