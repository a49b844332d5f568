package queries

import (
	"context"
	"fmt"

	"canvas-backend/application/export"
	"canvas-backend/application/ports"
	"canvas-backend/application/queries/bus"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"
)

// ExportSessionQuery renders a chat session in one of the export formats
type ExportSessionQuery struct {
	UserID    string               `json:"-"`
	SessionID string               `json:"session_id"`
	Format    string               `json:"format" validate:"required"`
	Options   export.ExportOptions `json:"options"`
}

// Validate checks the format and options. The session id is checked by the
// export pipeline so malformed ids get its error.
func (q ExportSessionQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ExportSessionHandler answers ExportSessionQuery with *export.RenderedDocument
type ExportSessionHandler struct {
	store     ports.GraphStore
	exporters map[export.Format]*export.Exporter
}

// NewExportSessionHandler registers one exporter per format
func NewExportSessionHandler(store ports.GraphStore, exporters ...*export.Exporter) *ExportSessionHandler {
	h := &ExportSessionHandler{
		store:     store,
		exporters: make(map[export.Format]*export.Exporter, len(exporters)),
	}
	for _, e := range exporters {
		h.exporters[e.Format()] = e
	}
	return h
}

func (h *ExportSessionHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(ExportSessionQuery)

	format, ok := export.ParseFormat(query.Format)
	if !ok {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown export format %q", query.Format))
	}
	exporter, ok := h.exporters[format]
	if !ok {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("export format %q is not enabled", query.Format))
	}

	if query.UserID != "" {
		if err := h.checkAccess(ctx, query); err != nil {
			return nil, err
		}
	}

	return exporter.Export(ctx, query.SessionID, query.Options)
}

func (h *ExportSessionHandler) checkAccess(ctx context.Context, query ExportSessionQuery) error {
	sessionID, err := valueobjects.ParseSessionID(query.SessionID)
	if err != nil {
		return err
	}
	return ports.ViewInTx(ctx, h.store, func(tx ports.Tx) error {
		_, err := services.OwnedSession(ctx, tx, sessionID, query.UserID)
		return err
	})
}
