package export

import (
	"canvas-backend/domain/core/valueobjects"
)

// Format selects the renderer
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatDiagram  Format = "diagram"
)

// Content types of the rendered documents
const (
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeMermaid  = "text/vnd.mermaid; charset=utf-8"
)

// ParseFormat maps a request value onto a Format
func ParseFormat(raw string) (Format, bool) {
	switch raw {
	case "markdown", "md":
		return FormatMarkdown, true
	case "diagram", "mermaid":
		return FormatDiagram, true
	default:
		return "", false
	}
}

// Diagram directions
const (
	DirectionTopDown   = "TD"
	DirectionLeftRight = "LR"
)

// ExportOptions tune one export. The zero value exports everything.
type ExportOptions struct {
	Title           string `json:"title,omitempty" validate:"max=200"`
	MaxMessages     int    `json:"max_messages,omitempty" validate:"gte=0"`
	MaxMessageRunes int    `json:"max_message_runes,omitempty" validate:"gte=0"`
	AllowEmpty      bool   `json:"allow_empty,omitempty"`

	// Diagram only
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=TD LR"`
	PairMode  bool   `json:"pair_mode,omitempty"`

	// Summary asks the language model for a short summary section
	Summary bool `json:"summary,omitempty"`
}

// Part is one chunk of a streamed reply
type Part struct {
	Index int
	Text  string
}

// Exchange is one normalized entry of a session, ready for rendering
type Exchange struct {
	Role          valueobjects.MessageRole
	Content       string
	SourceNodeIDs []string

	// Set while a streamed reply is still in pieces
	StreamID string
	Parts    []Part
}

// Streamed reports whether the exchange still needs assembly
func (e Exchange) Streamed() bool {
	return e.StreamID != ""
}

// RenderedDocument is the output of an export
type RenderedDocument struct {
	SessionID    valueobjects.SessionID `json:"session_id"`
	Format       Format                 `json:"format"`
	ContentType  string                 `json:"content_type"`
	Title        string                 `json:"title"`
	Body         string                 `json:"body"`
	MessageCount int                    `json:"message_count"`
	Cached       bool                   `json:"cached,omitempty"`
}
