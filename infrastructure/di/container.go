package di

import (
	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/ports"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/infrastructure/config"
	"canvas-backend/interfaces/http/rest"
	"canvas-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      ports.GraphStore
	Publisher  ports.EventPublisher
	Cache      ports.Cache
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Router     *rest.Router
	Metrics    *observability.Collector
}
