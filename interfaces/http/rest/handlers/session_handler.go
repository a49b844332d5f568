package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/commands"
	"canvas-backend/application/commands/bus"
	"canvas-backend/application/queries"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/domain/core/entities"
	"canvas-backend/pkg/common"
	pkgerrors "canvas-backend/pkg/errors"
)

// SessionHandler handles chat session requests
type SessionHandler struct {
	base
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		base:       base{errors: errs, logger: logger},
		commandBus: commandBus,
		queryBus:   queryBus,
	}
}

// CreateSessionRequest represents the request body for starting a session
type CreateSessionRequest struct {
	NodeID string `json:"node_id,omitempty"`
	Title  string `json:"title"`
}

// CreateSession handles POST /graphs/{graphID}/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := common.DecodeJSON(w, r, &req, 0); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.CreateChatSessionCommand{
		UserID:  userID,
		GraphID: chi.URLParam(r, "graphID"),
		NodeID:  req.NodeID,
		Title:   req.Title,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, toSessionResponse(result.(*entities.ChatSession)))
}

// AppendMessageRequest represents one message posted to a session
type AppendMessageRequest struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	StreamID   string `json:"stream_id,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
}

// AppendMessage handles POST /sessions/{sessionID}/messages
func (h *SessionHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req AppendMessageRequest
	if err := common.DecodeJSON(w, r, &req, 0); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.AppendMessageCommand{
		UserID:     userID,
		SessionID:  chi.URLParam(r, "sessionID"),
		Role:       req.Role,
		Content:    req.Content,
		StreamID:   req.StreamID,
		ChunkIndex: req.ChunkIndex,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, toMessageResponse(result.(*entities.ChatMessage)))
}

// ListMessagesResponse is a session with its ordered history
type ListMessagesResponse struct {
	Session  SessionResponse   `json:"session"`
	Messages []MessageResponse `json:"messages"`
}

// ListMessages handles GET /sessions/{sessionID}/messages
func (h *SessionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetSessionMessagesQuery{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	history := result.(*queries.SessionMessages)
	out := ListMessagesResponse{
		Session:  toSessionResponse(history.Session),
		Messages: make([]MessageResponse, 0, len(history.Messages)),
	}
	for _, m := range history.Messages {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	common.RespondJSON(w, r, http.StatusOK, out)
}
