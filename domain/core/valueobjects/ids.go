package valueobjects

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "canvas-backend/pkg/errors"
)

// NodeID identifies a node. Like the other ids it is a string type; values
// from outside the process go through NewNodeIDFromString.
type NodeID string

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID(uuid.New().String())
}

// NewNodeIDFromString parses a NodeID, rejecting anything that is not a UUID
func NewNodeIDFromString(id string) (NodeID, error) {
	canonical, err := parseUUID("node", id)
	if err != nil {
		return "", err
	}
	return NodeID(canonical), nil
}

func (id NodeID) String() string { return string(id) }

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool { return id == other }

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool { return id == "" }

// MarshalText implements encoding.TextMarshaler
func (id NodeID) MarshalText() ([]byte, error) { return []byte(id), nil }

// UnmarshalText validates node ids arriving in JSON bodies
func (id *NodeID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = ""
		return nil
	}
	parsed, err := NewNodeIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// GraphID identifies a graph
type GraphID string

// NewGraphID creates a new random GraphID
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// ParseGraphID validates a raw graph identifier
func ParseGraphID(raw string) (GraphID, error) {
	canonical, err := parseUUID("graph", raw)
	if err != nil {
		return "", err
	}
	return GraphID(canonical), nil
}

func (id GraphID) String() string { return string(id) }

// EdgeID identifies an edge
type EdgeID string

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

func (id EdgeID) String() string { return string(id) }

// SessionID identifies a chat session
type SessionID string

// NewSessionID creates a new random SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// ParseSessionID validates a raw session identifier. A malformed value is a
// validation error, never a lookup miss.
func ParseSessionID(raw string) (SessionID, error) {
	canonical, err := parseUUID("session", raw)
	if err != nil {
		return "", err
	}
	return SessionID(canonical), nil
}

func (id SessionID) String() string { return string(id) }

// IsZero reports whether no session is set
func (id SessionID) IsZero() bool { return id == "" }

func parseUUID(kind, raw string) (string, error) {
	if raw == "" {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("%s ID cannot be empty", kind)).
			WithCode(pkgerrors.CodeMalformedID)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("%s ID must be a valid UUID", kind)).
			WithCode(pkgerrors.CodeMalformedID).
			WithDetail("value", raw)
	}
	return parsed.String(), nil
}
