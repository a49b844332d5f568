package services

import (
	"context"
	"strings"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// TransferStrategy names the action a context transfer takes
type TransferStrategy string

const (
	StrategyCopyMessages TransferStrategy = "copy_messages"
	StrategySpawnSession TransferStrategy = "spawn_session"
	StrategyPlaceholder  TransferStrategy = "placeholder"
	StrategyUnsupported  TransferStrategy = "unsupported"
)

func (s TransferStrategy) String() string { return string(s) }

// RuleKind is the variant tag of a TransferRule
type RuleKind int

const (
	// RuleChatContext moves source text into the target chat node, copying
	// into its live session or spawning one when there is none
	RuleChatContext RuleKind = iota + 1
	// RulePlaceholder records the relationship without moving content
	RulePlaceholder
)

// TextExtractor reads the transferable text of a source node
type TextExtractor func(ctx context.Context, tx ports.Tx, source *entities.Node) (string, error)

// TransferRule is the entry stored for one (source type, target type) pair
type TransferRule struct {
	Kind    RuleKind
	Extract TextExtractor
}

// ChatContextRule builds a chat-context rule. A nil extractor reads the payload.
func ChatContextRule(extract TextExtractor) TransferRule {
	if extract == nil {
		extract = PayloadText
	}
	return TransferRule{Kind: RuleChatContext, Extract: extract}
}

// PlaceholderRule builds a placeholder rule
func PlaceholderRule() TransferRule {
	return TransferRule{Kind: RulePlaceholder}
}

type typePair struct {
	source valueobjects.NodeType
	target valueobjects.NodeType
}

// defaultRules is the built-in table. Pairs absent here are unsupported.
func defaultRules() map[typePair]TransferRule {
	return map[typePair]TransferRule{
		{valueobjects.NodeTypeDocument, valueobjects.NodeTypeChat}: ChatContextRule(PayloadText),
		{valueobjects.NodeTypeWebsite, valueobjects.NodeTypeChat}:  ChatContextRule(PayloadText),
		{valueobjects.NodeTypeMedia, valueobjects.NodeTypeChat}:    ChatContextRule(PayloadText),
		{valueobjects.NodeTypeChat, valueobjects.NodeTypeChat}:     ChatContextRule(SessionTranscript),

		{valueobjects.NodeTypeMedia, valueobjects.NodeTypeDocument}:    PlaceholderRule(),
		{valueobjects.NodeTypeWebsite, valueobjects.NodeTypeDocument}:  PlaceholderRule(),
		{valueobjects.NodeTypeDocument, valueobjects.NodeTypeDocument}: PlaceholderRule(),
		{valueobjects.NodeTypeChat, valueobjects.NodeTypeDocument}:     PlaceholderRule(),
	}
}

// PayloadText extracts the text held in the node payload
func PayloadText(_ context.Context, _ ports.Tx, source *entities.Node) (string, error) {
	return source.PayloadText(), nil
}

// SessionTranscript flattens the history of the source chat node's session
// into "Role: text" paragraphs. A chat node with no session has no text.
func SessionTranscript(ctx context.Context, tx ports.Tx, source *entities.Node) (string, error) {
	if !source.HasChatSession() {
		return "", nil
	}
	messages, err := tx.GetMessagesOrdered(ctx, source.ChatSessionID())
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}

	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(valueobjects.NormalizeRole(string(m.Role)).Label())
		b.WriteString(": ")
		b.WriteString(content)
	}
	return b.String(), nil
}

// splitRunes cuts text into ordered pieces of at most limit runes,
// never splitting inside a UTF-8 sequence
func splitRunes(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
