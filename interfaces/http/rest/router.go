package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/interfaces/http/rest/handlers"
	"canvas-backend/interfaces/http/rest/middleware"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/observability"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(r *http.Request) error

// RouterConfig carries the HTTP-facing settings
type RouterConfig struct {
	Auth           middleware.AuthConfig
	EnableCORS     bool
	AllowedOrigins []string
	Debug          bool
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	metrics    *observability.Collector
	ready      ReadinessCheck
	cfg        RouterConfig
	logger     *zap.Logger
}

// NewRouter creates a new router instance. metrics and ready may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics *observability.Collector,
	ready ReadinessCheck,
	cfg RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		metrics:    metrics,
		ready:      ready,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.cfg.EnableCORS {
		origins := rt.cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Cache"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	graphHandler := handlers.NewGraphHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(rt.commandBus, errs, rt.logger)
	sessionHandler := handlers.NewSessionHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
	exportHandler := handlers.NewExportHandler(rt.queryBus, errs, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.cfg.Auth, errs, rt.logger))

		r.Route("/graphs", func(r chi.Router) {
			r.Post("/", graphHandler.CreateGraph)
			r.Route("/{graphID}", func(r chi.Router) {
				r.Get("/", graphHandler.GetGraph)
				r.Post("/nodes", nodeHandler.CreateNode)
				r.Post("/edges", edgeHandler.CreateEdge)
				r.Post("/sessions", sessionHandler.CreateSession)
			})
		})

		r.Get("/nodes/{nodeID}", nodeHandler.GetNode)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/messages", sessionHandler.AppendMessage)
			r.Get("/messages", sessionHandler.ListMessages)
			r.Get("/export", exportHandler.ExportSession)
			r.Post("/export", exportHandler.ExportSessionJSON)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		if err := rt.ready(req); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "reason": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
