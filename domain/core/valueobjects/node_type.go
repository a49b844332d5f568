package valueobjects

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	pkgerrors "canvas-backend/pkg/errors"
)

// NodeType is the closed set of content units a graph can hold
type NodeType string

const (
	NodeTypeDocument NodeType = "document"
	NodeTypeMedia    NodeType = "media"
	NodeTypeChat     NodeType = "chat"
	NodeTypeWebsite  NodeType = "website"
)

// AllNodeTypes lists every supported node type in a stable order
func AllNodeTypes() []NodeType {
	return []NodeType{NodeTypeDocument, NodeTypeMedia, NodeTypeChat, NodeTypeWebsite}
}

// ParseNodeType normalizes and validates a raw type tag
func ParseNodeType(raw string) (NodeType, error) {
	t := NodeType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", pkgerrors.NewValidationError("unknown node type: " + raw)
	}
	return t, nil
}

// IsValid reports whether the type is part of the enumeration
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeDocument, NodeTypeMedia, NodeTypeChat, NodeTypeWebsite:
		return true
	default:
		return false
	}
}

func (t NodeType) String() string { return string(t) }

// MessageRole identifies the author of a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	// RoleContext marks content copied in from another node
	RoleContext MessageRole = "context"
)

// NormalizeRole maps the aliases seen in stored histories onto the canonical
// roles. Unknown roles are kept lowercased so nothing is silently dropped.
func NormalizeRole(raw string) MessageRole {
	switch r := strings.ToLower(strings.TrimSpace(raw)); r {
	case "human", "user":
		return RoleUser
	case "ai", "bot", "model", "assistant":
		return RoleAssistant
	case "system":
		return RoleSystem
	case "context":
		return RoleContext
	case "":
		return RoleUser
	default:
		return MessageRole(r)
	}
}

// Label is the display form used by exporters
func (r MessageRole) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleContext:
		return "Context"
	default:
		s := strings.Join(strings.Fields(string(r)), " ")
		if s == "" {
			return "Unknown"
		}
		first, size := utf8.DecodeRuneInString(s)
		return string(unicode.ToUpper(first)) + s[size:]
	}
}

var roleTag = regexp.MustCompile(`^[a-z_]+$`)

// IsTag reports whether r is a lowercase ASCII tag such as "tool" or
// "function_call". New messages must carry a tag role.
func (r MessageRole) IsTag() bool {
	return roleTag.MatchString(string(r))
}
