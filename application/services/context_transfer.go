package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// Messages used in error results
const (
	errNoTransferableContent = "source node has no transferable content"
	errChatTargetRequired    = "chat context requires a chat target node"
)

// ContextTransferResult is the outcome of one transfer. Exactly one of
// Messages, ChatSessionID, Placeholder or Error is set.
type ContextTransferResult struct {
	Messages      []*entities.ChatMessage `json:"messages,omitempty"`
	ChatSessionID valueobjects.SessionID  `json:"chatSessionId,omitempty"`
	Placeholder   bool                    `json:"placeholder,omitempty"`
	Error         string                  `json:"error,omitempty"`

	// Strategy is the action that ran, or was about to run when Error is set
	Strategy TransferStrategy `json:"-"`

	spawned *entities.ChatSession
	seeded  int
}

// Failed reports whether the transfer ended in an error result
func (r ContextTransferResult) Failed() bool {
	return r.Error != ""
}

// SpawnedSession returns the session created by a spawn, nil otherwise
func (r ContextTransferResult) SpawnedSession() *entities.ChatSession {
	return r.spawned
}

func errorResult(strategy TransferStrategy, reason string) ContextTransferResult {
	return ContextTransferResult{Strategy: strategy, Error: reason}
}

// ContextTransferEngine decides what an edge does to its target based on the
// ordered pair of endpoint types, and carries it out inside the caller's
// transaction. It keeps no per-call state.
type ContextTransferEngine struct {
	mu     sync.RWMutex
	rules  map[typePair]TransferRule
	config *config.DomainConfig
	logger *zap.Logger
}

// NewContextTransferEngine creates an engine loaded with the built-in rules
func NewContextTransferEngine(cfg *config.DomainConfig, logger *zap.Logger) *ContextTransferEngine {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextTransferEngine{
		rules:  defaultRules(),
		config: cfg,
		logger: logger,
	}
}

// RegisterRule adds or replaces the rule for a type pair
func (e *ContextTransferEngine) RegisterRule(sourceType, targetType valueobjects.NodeType, rule TransferRule) error {
	if !sourceType.IsValid() || !targetType.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("cannot register rule for %s -> %s", sourceType, targetType))
	}
	if rule.Kind != RuleChatContext && rule.Kind != RulePlaceholder {
		return pkgerrors.NewValidationError("unknown transfer rule kind")
	}
	if rule.Kind == RuleChatContext && rule.Extract == nil {
		rule.Extract = PayloadText
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[typePair{sourceType, targetType}] = rule
	return nil
}

func (e *ContextTransferEngine) lookup(source, target valueobjects.NodeType) (TransferRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.rules[typePair{source, target}]
	return rule, ok
}

// Plan reports the strategy Transfer would pick for the two nodes without
// touching the store. A bound session that has since been deleted still
// plans as a copy; Transfer falls back to a spawn in that case.
func (e *ContextTransferEngine) Plan(source, target *entities.Node) TransferStrategy {
	rule, ok := e.lookup(source.Type(), target.Type())
	if !ok {
		return StrategyUnsupported
	}
	switch rule.Kind {
	case RulePlaceholder:
		return StrategyPlaceholder
	case RuleChatContext:
		if target.HasChatSession() {
			return StrategyCopyMessages
		}
		return StrategySpawnSession
	default:
		return StrategyUnsupported
	}
}

// Transfer runs the rule for (source.Type, target.Type). It never returns a
// Go error: unsupported pairs and failures are reported in the result.
// When the result carries an Error the caller must roll back tx.
func (e *ContextTransferEngine) Transfer(ctx context.Context, tx ports.Tx, source, target *entities.Node, edge *entities.Edge) ContextTransferResult {
	rule, ok := e.lookup(source.Type(), target.Type())
	if !ok {
		return errorResult(StrategyUnsupported,
			fmt.Sprintf("no context transfer defined for %s -> %s", source.Type(), target.Type()))
	}

	switch rule.Kind {
	case RulePlaceholder:
		return ContextTransferResult{Strategy: StrategyPlaceholder, Placeholder: true}
	case RuleChatContext:
		return e.transferChatContext(ctx, tx, rule, source, target, edge)
	default:
		return errorResult(StrategyUnsupported,
			fmt.Sprintf("no context transfer defined for %s -> %s", source.Type(), target.Type()))
	}
}

func (e *ContextTransferEngine) transferChatContext(
	ctx context.Context,
	tx ports.Tx,
	rule TransferRule,
	source, target *entities.Node,
	edge *entities.Edge,
) ContextTransferResult {
	strategy := e.Plan(source, target)
	if target.Type() != valueobjects.NodeTypeChat {
		return errorResult(strategy, errChatTargetRequired)
	}

	text, err := rule.Extract(ctx, tx, source)
	if err != nil {
		e.logger.Warn("Failed to read source content",
			zap.String("source_id", source.ID().String()),
			zap.Error(err),
		)
		return errorResult(strategy, "failed to read source content: "+err.Error())
	}
	if text == "" {
		return errorResult(strategy, errNoTransferableContent)
	}
	chunks := splitRunes(text, e.config.MaxContextMessageRunes)

	if target.HasChatSession() {
		session, err := tx.GetChatSession(ctx, target.ChatSessionID())
		switch {
		case err == nil:
			return e.copyMessages(ctx, tx, session, source, chunks)
		case pkgerrors.IsNotFound(err):
			e.logger.Info("Bound chat session is gone, spawning a new one",
				zap.String("target_id", target.ID().String()),
				zap.String("session_id", target.ChatSessionID().String()),
			)
		default:
			return errorResult(StrategyCopyMessages, "failed to load target session: "+err.Error())
		}
	}

	return e.spawnSession(ctx, tx, source, target, edge, chunks)
}

func (e *ContextTransferEngine) copyMessages(
	ctx context.Context,
	tx ports.Tx,
	session *entities.ChatSession,
	source *entities.Node,
	chunks []string,
) ContextTransferResult {
	messages, err := appendContext(ctx, tx, session.ID(), source.ID(), chunks)
	if err != nil {
		return errorResult(StrategyCopyMessages, "failed to copy context messages: "+err.Error())
	}

	e.logger.Debug("Copied context into chat session",
		zap.String("session_id", session.ID().String()),
		zap.String("source_id", source.ID().String()),
		zap.Int("messages", len(messages)),
	)
	return ContextTransferResult{Strategy: StrategyCopyMessages, Messages: messages}
}

func (e *ContextTransferEngine) spawnSession(
	ctx context.Context,
	tx ports.Tx,
	source, target *entities.Node,
	edge *entities.Edge,
	chunks []string,
) ContextTransferResult {
	title := target.Title()
	if title == "" {
		title = e.config.SpawnedSessionTitle
	}

	session, err := entities.SpawnChatSession(target.GraphID(), title, source.ID(), edge.ID())
	if err != nil {
		return errorResult(StrategySpawnSession, err.Error())
	}
	if err := tx.CreateChatSession(ctx, session); err != nil {
		return errorResult(StrategySpawnSession, "failed to create chat session: "+err.Error())
	}
	if _, err := appendContext(ctx, tx, session.ID(), source.ID(), chunks); err != nil {
		return errorResult(StrategySpawnSession, "failed to seed chat session: "+err.Error())
	}

	e.logger.Debug("Spawned chat session from context",
		zap.String("session_id", session.ID().String()),
		zap.String("source_id", source.ID().String()),
		zap.String("target_id", target.ID().String()),
	)
	return ContextTransferResult{
		Strategy:      StrategySpawnSession,
		ChatSessionID: session.ID(),
		spawned:       session,
		seeded:        len(chunks),
	}
}

func appendContext(
	ctx context.Context,
	tx ports.Tx,
	sessionID valueobjects.SessionID,
	sourceID valueobjects.NodeID,
	chunks []string,
) ([]*entities.ChatMessage, error) {
	messages := make([]*entities.ChatMessage, 0, len(chunks))
	for _, chunk := range chunks {
		m := entities.NewContextMessage(sessionID, sourceID, chunk)
		if err := tx.AppendMessage(ctx, m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}
