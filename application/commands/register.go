package commands

import (
	"canvas-backend/application/commands/bus"
)

// Handlers groups every command handler for registration
type Handlers struct {
	CreateGraph       *CreateGraphHandler
	CreateNode        *CreateNodeHandler
	CreateChatSession *CreateChatSessionHandler
	AppendMessage     *AppendMessageHandler
	CreateEdge        *CreateEdgeWithContextHandler
}

// Register binds each handler to its command type on b
func (h Handlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{CreateGraphCommand{}, h.CreateGraph},
		{CreateNodeCommand{}, h.CreateNode},
		{CreateChatSessionCommand{}, h.CreateChatSession},
		{AppendMessageCommand{}, h.AppendMessage},
		{CreateEdgeWithContextCommand{}, h.CreateEdge},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}
