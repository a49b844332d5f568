package export

import (
	"sort"
	"strings"
	"unicode/utf8"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

const ellipsis = "…"

// OrderMessages sorts a history chronologically, breaking timestamp ties by
// insertion sequence. The input slice is not modified.
func OrderMessages(messages []*entities.ChatMessage) []*entities.ChatMessage {
	ordered := make([]*entities.ChatMessage, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
	return ordered
}

// PrepareOptions are the limits applied while normalizing
type PrepareOptions struct {
	MaxMessageRunes int
}

// InputPreparer turns an ordered history into normalized exchanges
type InputPreparer struct{}

// NewInputPreparer creates a new input preparer
func NewInputPreparer() *InputPreparer {
	return &InputPreparer{}
}

// Prepare normalizes roles, cleans content and truncates it. Control tokens
// are stripped before truncation so a cut can never leave half a token.
// Chunks of one streamed reply are gathered into a single exchange at the
// position of the first chunk and left raw for the stream processor.
func (p *InputPreparer) Prepare(messages []*entities.ChatMessage, opts PrepareOptions) []Exchange {
	exchanges := make([]Exchange, 0, len(messages))
	streams := make(map[string]int)

	for _, m := range messages {
		role := valueobjects.NormalizeRole(string(m.Role))

		if m.IsChunk() {
			idx, seen := streams[m.StreamID]
			if !seen {
				exchanges = append(exchanges, Exchange{Role: role, StreamID: m.StreamID})
				idx = len(exchanges) - 1
				streams[m.StreamID] = idx
			}
			exchanges[idx].Parts = append(exchanges[idx].Parts, Part{Index: m.ChunkIndex, Text: m.Content})
			exchanges[idx].SourceNodeIDs = addSource(exchanges[idx].SourceNodeIDs, m)
			continue
		}

		content := cleanText(m.Content)
		if content == "" {
			continue
		}
		exchanges = append(exchanges, Exchange{
			Role:          role,
			Content:       Truncate(content, opts.MaxMessageRunes),
			SourceNodeIDs: addSource(nil, m),
		})
	}

	return exchanges
}

// Limit keeps the most recent maxMessages exchanges. It runs on finalized
// exchanges so replies that cleaned down to nothing do not use up the
// budget. A non-positive limit keeps everything.
func (p *InputPreparer) Limit(exchanges []Exchange, maxMessages int) []Exchange {
	if maxMessages <= 0 || len(exchanges) <= maxMessages {
		return exchanges
	}
	return exchanges[len(exchanges)-maxMessages:]
}

func addSource(ids []string, m *entities.ChatMessage) []string {
	if !m.HasSource() {
		return ids
	}
	id := m.SourceNodeID.String()
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Truncate cuts s to at most limit runes, the last being an ellipsis.
// A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit == 1 {
		return ellipsis
	}
	return strings.TrimRightFunc(string(runes[:limit-1]), isSpace) + ellipsis
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
