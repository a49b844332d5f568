package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"canvas-backend/application/commands"
	"canvas-backend/application/commands/bus"
	"canvas-backend/application/export"
	"canvas-backend/application/ports"
	"canvas-backend/application/queries"
	querybus "canvas-backend/application/queries/bus"
	"canvas-backend/application/services"
	domainconfig "canvas-backend/domain/config"
	"canvas-backend/infrastructure/cache"
	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/llm"
	"canvas-backend/infrastructure/messaging/eventbridge"
	"canvas-backend/infrastructure/messaging/logbus"
	"canvas-backend/infrastructure/persistence/dynamodb"
	"canvas-backend/infrastructure/persistence/memory"
	"canvas-backend/infrastructure/persistence/sqlite"
	"canvas-backend/interfaces/http/rest"
	"canvas-backend/interfaces/http/rest/middleware"
	"canvas-backend/pkg/auth"
	"canvas-backend/pkg/observability"
)

const (
	serviceName      = "canvas-backend"
	cacheKeyPrefix   = "canvas:"
	cacheSweepPeriod = time.Minute
	slowQuery        = 500 * time.Millisecond
)

// Exporters is the set of enabled export formats
type Exporters []*export.Exporter

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}

// ProvideDomainConfig applies process overrides to the environment's limits
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	domain := domainconfig.LoadDomainConfig(cfg.Environment)
	domain.AtomicEdgeTransfer = cfg.AtomicEdgeTransfer
	domain.ExportCacheTTL = cfg.ExportCacheTTL
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	return domain, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideGraphStore opens the store selected by STORE_DRIVER
func ProvideGraphStore(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (ports.GraphStore, func(), error) {
	var store ports.GraphStore
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		store = s
	case config.StoreDynamoDB:
		store = dynamodb.NewStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	default:
		store = memory.NewStore()
	}

	logger.Info("Graph store ready", zap.String("driver", cfg.StoreDriver))
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Closing graph store failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and to the log otherwise
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return logbus.NewPublisher(logger)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideCache uses Redis when REDIS_ADDR is set. An unreachable Redis
// falls back to the in-process cache.
func ProvideCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Cache, func(), error) {
	if cfg.RedisAddr != "" {
		client, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			c := cache.NewRedisCache(client, cacheKeyPrefix, logger)
			return c, func() { _ = c.Close() }, nil
		}
		logger.Warn("Redis unavailable, using in-memory export cache",
			zap.String("addr", cfg.RedisAddr),
			zap.Error(err),
		)
	}

	c := cache.NewInMemoryCache(cacheSweepPeriod)
	return c, func() { _ = c.Close() }, nil
}

// ProvideCompleter returns nil unless summaries are enabled
func ProvideCompleter(cfg *config.Config, logger *zap.Logger) ports.Completer {
	if !cfg.EnableSummary || cfg.OpenAIKey == "" {
		return nil
	}
	return llm.NewOpenAICompleter(cfg.OpenAIKey, cfg.OpenAIModel, llm.DefaultBreakerConfig(), logger)
}

// ProvideMetrics returns nil when metrics are disabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("canvas")
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideContextTransferEngine creates the transfer engine
func ProvideContextTransferEngine(domain *domainconfig.DomainConfig, logger *zap.Logger) *services.ContextTransferEngine {
	return services.NewContextTransferEngine(domain, logger)
}

// ProvideEdgeOrchestrator creates the edge orchestrator
func ProvideEdgeOrchestrator(
	store ports.GraphStore,
	engine *services.ContextTransferEngine,
	publisher ports.EventPublisher,
	domain *domainconfig.DomainConfig,
	tracer *observability.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.EdgeOrchestrator {
	return services.NewEdgeOrchestrator(store, engine, publisher, domain, logger,
		services.WithTracer(tracer),
		services.WithMetrics(metrics),
	)
}

// ProvideExportPipeline wires the shared export stages
func ProvideExportPipeline(store ports.GraphStore, domain *domainconfig.DomainConfig, logger *zap.Logger) *export.Pipeline {
	return export.NewPipeline(
		export.NewSessionValidator(store, logger),
		export.NewInputPreparer(),
		export.NewStreamProcessor(),
		domain,
		logger,
	)
}

// ProvideExporters builds the Markdown and diagram exporters
func ProvideExporters(
	pipeline *export.Pipeline,
	c ports.Cache,
	completer ports.Completer,
	domain *domainconfig.DomainConfig,
	tracer *observability.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) Exporters {
	opts := []export.ExporterOption{
		export.WithCache(c, domain.ExportCacheTTL),
		export.WithTracer(tracer),
		export.WithMetrics(metrics),
		export.WithLogger(logger),
	}
	if completer != nil {
		opts = append(opts, export.WithSummarizer(
			export.NewSummarizer(completer, pipeline.Stream(), domain.SummaryTimeout, logger),
		))
	}
	return Exporters{
		export.NewMarkdownExporter(pipeline, opts...),
		export.NewDiagramExporter(pipeline, opts...),
	}
}

// ProvideCommandBus creates the command bus with every handler registered
func ProvideCommandBus(
	store ports.GraphStore,
	publisher ports.EventPublisher,
	orchestrator *services.EdgeOrchestrator,
	domain *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger))

	handlers := commands.Handlers{
		CreateGraph:       commands.NewCreateGraphHandler(store, publisher, domain, logger),
		CreateNode:        commands.NewCreateNodeHandler(store, publisher, domain, logger),
		CreateChatSession: commands.NewCreateChatSessionHandler(store, logger),
		AppendMessage:     commands.NewAppendMessageHandler(store, domain, logger),
		CreateEdge:        commands.NewCreateEdgeWithContextHandler(orchestrator),
	}
	if err := handlers.Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus with every handler registered
func ProvideQueryBus(store ports.GraphStore, exporters Exporters, logger *zap.Logger) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.LoggingMiddleware(logger, slowQuery))

	handlers := queries.Handlers{
		GetGraph:           queries.NewGetGraphHandler(store),
		GetNode:            queries.NewGetNodeHandler(store),
		GetSessionMessages: queries.NewGetSessionMessagesHandler(store),
		ExportSession:      queries.NewExportSessionHandler(store, exporters...),
	}
	if err := handlers.Register(queryBus); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideAuthConfig builds the authentication settings. Without a JWT
// secret requests run as a fixed development user.
func ProvideAuthConfig(cfg *config.Config) (middleware.AuthConfig, error) {
	authCfg := middleware.AuthConfig{
		TrustGateway: cfg.IsLambda,
		DevUserID:    "dev-user",
	}
	if cfg.JWTSecret == "" {
		return authCfg, nil
	}

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		return authCfg, err
	}
	authCfg.Validator = validator
	return authCfg, nil
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	authCfg middleware.AuthConfig,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store ports.GraphStore,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(commandBus, queryBus, metrics, storeReadiness(store), rest.RouterConfig{
		Auth:       authCfg,
		EnableCORS: cfg.EnableCORS,
		Debug:      cfg.IsDevelopment(),
	}, logger)
}

// storeReadiness opens and abandons a transaction
func storeReadiness(store ports.GraphStore) rest.ReadinessCheck {
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return ports.ViewInTx(ctx, store, func(ports.Tx) error { return nil })
	}
}
