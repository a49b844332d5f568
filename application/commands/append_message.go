package commands

import (
	"context"

	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/ports"
	"canvas-backend/application/services"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"
)

// AppendMessageCommand adds one message to a chat session. StreamID and
// ChunkIndex mark the message as one piece of a streamed reply.
type AppendMessageCommand struct {
	UserID     string `json:"-"`
	SessionID  string `json:"session_id" validate:"required,uuid"`
	Role       string `json:"role" validate:"required,max=32"`
	Content    string `json:"content"`
	StreamID   string `json:"stream_id,omitempty" validate:"max=128"`
	ChunkIndex int    `json:"chunk_index,omitempty" validate:"gte=0"`
}

// Validate validates the command
func (c AppendMessageCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// AppendMessageHandler handles AppendMessageCommand
type AppendMessageHandler struct {
	store  ports.GraphStore
	cfg    *config.DomainConfig
	logger *zap.Logger
}

// NewAppendMessageHandler creates a new handler instance
func NewAppendMessageHandler(store ports.GraphStore, cfg *config.DomainConfig, logger *zap.Logger) *AppendMessageHandler {
	return &AppendMessageHandler{store: store, cfg: cfg, logger: logger}
}

// Handle implements bus.CommandHandler. The result is *entities.ChatMessage
// with its Seq assigned.
func (h *AppendMessageHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(AppendMessageCommand)

	sessionID, err := valueobjects.ParseSessionID(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if len(cmd.Content) > h.cfg.MaxPayloadBytes {
		return nil, pkgerrors.NewValidationError("message content too large").
			WithDetail("max_bytes", h.cfg.MaxPayloadBytes)
	}
	if cmd.StreamID == "" && cmd.Content == "" {
		return nil, pkgerrors.NewValidationError("content is required")
	}

	role := valueobjects.NormalizeRole(cmd.Role)
	if !role.IsTag() {
		return nil, pkgerrors.NewValidationError("role must be a lowercase tag of letters and underscores").
			WithDetail("role", cmd.Role)
	}

	msg := entities.NewChatMessage(sessionID, role, cmd.Content)
	msg.StreamID = cmd.StreamID
	msg.ChunkIndex = cmd.ChunkIndex

	if err := ports.RunInTx(ctx, h.store, func(tx ports.Tx) error {
		if _, err := services.OwnedSession(ctx, tx, sessionID, cmd.UserID); err != nil {
			return err
		}
		return tx.AppendMessage(ctx, msg)
	}); err != nil {
		return nil, err
	}

	h.logger.Debug("Message appended",
		zap.String("session_id", cmd.SessionID),
		zap.Int64("seq", msg.Seq),
	)
	return msg, nil
}
