package export

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// SessionValidator checks session identifiers and loads histories
type SessionValidator struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewSessionValidator creates a new session validator
func NewSessionValidator(store ports.GraphStore, logger *zap.Logger) *SessionValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionValidator{store: store, logger: logger}
}

// Validate parses rawID and loads the session. A malformed id is a
// validation error; a well-formed unknown id is a not-found error.
func (v *SessionValidator) Validate(ctx context.Context, rawID string) (*entities.ChatSession, error) {
	id, err := valueobjects.ParseSessionID(rawID)
	if err != nil {
		return nil, err
	}

	var session *entities.ChatSession
	err = ports.ViewInTx(ctx, v.store, func(tx ports.Tx) error {
		var err error
		session, err = tx.GetChatSession(ctx, id)
		return err
	})
	if err != nil {
		return nil, pkgerrors.FromStore("get chat session", err)
	}
	return session, nil
}

// GetMessages returns the session history in store order. A session with no
// messages yields an empty slice together with a NO_MESSAGES error, which
// callers may treat as fatal or not.
func (v *SessionValidator) GetMessages(ctx context.Context, sessionID valueobjects.SessionID) ([]*entities.ChatMessage, error) {
	var messages []*entities.ChatMessage
	err := ports.ViewInTx(ctx, v.store, func(tx ports.Tx) error {
		var err error
		messages, err = tx.GetMessagesOrdered(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.FromStore("get chat messages", err)
	}
	if len(messages) == 0 {
		v.logger.Debug("Chat session has no messages", zap.String("session_id", sessionID.String()))
		return []*entities.ChatMessage{}, pkgerrors.NewNoMessages(sessionID.String())
	}
	return messages, nil
}
