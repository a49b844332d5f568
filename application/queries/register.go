package queries

import "canvas-backend/application/queries/bus"

// Handlers groups every query handler for registration
type Handlers struct {
	GetGraph           *GetGraphHandler
	GetNode            *GetNodeHandler
	GetSessionMessages *GetSessionMessagesHandler
	ExportSession      *ExportSessionHandler
}

// Register binds each handler to its query type on b
func (h Handlers) Register(b *bus.QueryBus) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{GetGraphQuery{}, h.GetGraph},
		{GetNodeQuery{}, h.GetNode},
		{GetSessionMessagesQuery{}, h.GetSessionMessages},
		{ExportSessionQuery{}, h.ExportSession},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}
