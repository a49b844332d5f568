package queries

import (
	"context"

	"canvas-backend/application/ports"
	"canvas-backend/application/queries/bus"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/pkg/utils"
)

// GetSessionMessagesQuery lists a session's history in export order
type GetSessionMessagesQuery struct {
	UserID    string `json:"-"`
	SessionID string `json:"session_id" validate:"required,uuid"`
}

func (q GetSessionMessagesQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// SessionMessages is the result of GetSessionMessagesQuery
type SessionMessages struct {
	Session  *entities.ChatSession
	Messages []*entities.ChatMessage
}

// GetSessionMessagesHandler answers GetSessionMessagesQuery. An empty
// history is a normal result here, not an error.
type GetSessionMessagesHandler struct {
	store ports.GraphStore
}

func NewGetSessionMessagesHandler(store ports.GraphStore) *GetSessionMessagesHandler {
	return &GetSessionMessagesHandler{store: store}
}

func (h *GetSessionMessagesHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(GetSessionMessagesQuery)
	sessionID, err := valueobjects.ParseSessionID(query.SessionID)
	if err != nil {
		return nil, err
	}

	var out SessionMessages
	err = ports.ViewInTx(ctx, h.store, func(tx ports.Tx) error {
		session, err := services.OwnedSession(ctx, tx, sessionID, query.UserID)
		if err != nil {
			return err
		}
		messages, err := tx.GetMessagesOrdered(ctx, sessionID)
		if err != nil {
			return err
		}
		out = SessionMessages{Session: session, Messages: messages}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []*entities.ChatMessage{}
	}
	return &out, nil
}
