package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-backend/application/export"
	"canvas-backend/application/queries"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/pkg/common"
	pkgerrors "canvas-backend/pkg/errors"
)

// ExportHandler renders chat sessions as Markdown or Mermaid
type ExportHandler struct {
	base
	queryBus *querybus.QueryBus
}

// NewExportHandler creates a new export handler
func NewExportHandler(queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		base:     base{errors: errs, logger: logger},
		queryBus: queryBus,
	}
}

// ExportSession handles GET /sessions/{sessionID}/export.
//
// Query parameters: format (markdown|diagram), title, max_messages,
// max_message_runes, allow_empty, direction, pair_mode, summary. The raw
// document is returned unless the client asks for application/json.
func (h *ExportHandler) ExportSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	opts, err := exportOptionsFromQuery(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(export.FormatMarkdown)
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ExportSessionQuery{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		Format:    format,
		Options:   opts,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	doc := result.(*export.RenderedDocument)
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		common.RespondJSON(w, r, http.StatusOK, doc)
		return
	}
	if doc.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	common.RespondText(w, http.StatusOK, doc.ContentType, doc.Body)
}

func exportOptionsFromQuery(r *http.Request) (export.ExportOptions, error) {
	q := r.URL.Query()
	opts := export.ExportOptions{
		Title:     q.Get("title"),
		Direction: strings.ToUpper(q.Get("direction")),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"max_messages", &opts.MaxMessages},
		{"max_message_runes", &opts.MaxMessageRunes},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, pkgerrors.NewValidationError(p.name + " must be an integer")
		}
		*p.dst = n
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"allow_empty", &opts.AllowEmpty},
		{"pair_mode", &opts.PairMode},
		{"summary", &opts.Summary},
	}
	for _, p := range bools {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, pkgerrors.NewValidationError(p.name + " must be a boolean")
		}
		*p.dst = b
	}

	return opts, nil
}

// ExportRequest is the body of POST /sessions/{sessionID}/export
type ExportRequest struct {
	Format  string               `json:"format"`
	Options export.ExportOptions `json:"options"`
}

// ExportSessionJSON handles POST /sessions/{sessionID}/export and always
// answers with the JSON envelope
func (h *ExportHandler) ExportSessionJSON(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req ExportRequest
	if err := common.DecodeJSON(w, r, &req, 0); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if req.Format == "" {
		req.Format = string(export.FormatMarkdown)
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ExportSessionQuery{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		Format:    req.Format,
		Options:   req.Options,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, result.(*export.RenderedDocument))
}
