package services

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/validators"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/observability"
	"canvas-backend/pkg/utils"
)

// EdgeSpec describes the edge a caller wants to create
type EdgeSpec struct {
	SourceID string  `json:"source_id" validate:"required,uuid"`
	TargetID string  `json:"target_id" validate:"required,uuid"`
	Colors   *string `json:"colors,omitempty" validate:"omitempty,max=64"`

	// UserID, when set, must own the graph
	UserID string `json:"-"`
}

// EdgeWithContext is the persisted edge plus whatever the context transfer
// produced. Every transfer field is independently optional.
type EdgeWithContext struct {
	Edge          *entities.Edge
	Messages      []*entities.ChatMessage
	Error         string
	ChatSessionID valueobjects.SessionID
	Placeholder   bool
	Strategy      TransferStrategy
}

func (r *EdgeWithContext) merge(t ContextTransferResult) {
	r.Strategy = t.Strategy
	if t.Failed() {
		r.Error = t.Error
		return
	}
	r.Messages = t.Messages
	r.ChatSessionID = t.ChatSessionID
	r.Placeholder = t.Placeholder
}

// errTransferAborted signals RunInTx to roll back after an error result
var errTransferAborted = stderrors.New("context transfer aborted")

// OrchestratorOption configures an EdgeOrchestrator
type OrchestratorOption func(*EdgeOrchestrator)

// WithAtomicTransfer runs edge persistence and context transfer in one
// transaction, so a failed transfer also discards the edge
func WithAtomicTransfer(atomic bool) OrchestratorOption {
	return func(o *EdgeOrchestrator) { o.atomic = atomic }
}

// WithTracer traces each call as an X-Ray subsegment
func WithTracer(t *observability.Tracer) OrchestratorOption {
	return func(o *EdgeOrchestrator) { o.tracer = t }
}

// WithMetrics records edge and transfer counters
func WithMetrics(m *observability.Collector) OrchestratorOption {
	return func(o *EdgeOrchestrator) { o.metrics = m }
}

// EdgeOrchestrator is the entry point for edge creation. By default the edge
// commits first and the transfer runs in a second transaction, so a failed
// transfer never removes the edge.
type EdgeOrchestrator struct {
	store     ports.GraphStore
	engine    *ContextTransferEngine
	publisher ports.EventPublisher
	graphs    *validators.GraphValidator
	tracer    *observability.Tracer
	metrics   *observability.Collector
	logger    *zap.Logger
	atomic    bool
}

// NewEdgeOrchestrator creates a new orchestrator
func NewEdgeOrchestrator(
	store ports.GraphStore,
	engine *ContextTransferEngine,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	opts ...OrchestratorOption,
) *EdgeOrchestrator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &EdgeOrchestrator{
		store:     store,
		engine:    engine,
		publisher: publisher,
		graphs:    validators.NewGraphValidator(cfg),
		logger:    logger,
		atomic:    cfg.AtomicEdgeTransfer,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateEdgeWithContext persists an edge between two nodes of graphID and
// propagates context from the source into the target.
//
// When an endpoint disappears between the edge commit and the transfer, the
// committed edge is returned together with a NODE_NOT_FOUND error.
func (o *EdgeOrchestrator) CreateEdgeWithContext(ctx context.Context, graphID valueobjects.GraphID, spec EdgeSpec) (*EdgeWithContext, error) {
	var result *EdgeWithContext
	err := o.tracer.TraceFunction(ctx, "EdgeOrchestrator.CreateEdgeWithContext", func(ctx context.Context) error {
		var err error
		result, err = o.createEdgeWithContext(ctx, graphID, spec)
		return err
	})
	return result, err
}

func (o *EdgeOrchestrator) createEdgeWithContext(ctx context.Context, graphID valueobjects.GraphID, spec EdgeSpec) (*EdgeWithContext, error) {
	start := time.Now()

	sourceID, targetID, err := o.validateSpec(spec)
	if err != nil {
		return nil, err
	}

	if o.atomic {
		return o.createAtomic(ctx, graphID, sourceID, targetID, spec)
	}

	// Step 1: persist the edge on its own
	var edge *entities.Edge
	err = ports.RunInTx(ctx, o.store, func(tx ports.Tx) error {
		var err error
		edge, _, _, err = o.persistEdge(ctx, tx, graphID, sourceID, targetID, spec)
		return err
	})
	if err != nil {
		return nil, pkgerrors.FromStore("create edge", err)
	}
	o.metrics.RecordEdgeCreated()

	result := &EdgeWithContext{Edge: edge}
	pending := edge.GetUncommittedEvents()

	// Step 2: resolve endpoints again and run the transfer
	var transfer ContextTransferResult
	err = ports.RunInTx(ctx, o.store, func(tx ports.Tx) error {
		source, err := tx.GetNode(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := tx.GetNode(ctx, targetID)
		if err != nil {
			return err
		}
		transfer, err = o.runTransfer(ctx, tx, source, target, edge)
		return err
	})

	switch {
	case err == nil, stderrors.Is(err, errTransferAborted):
		result.merge(transfer)
	case pkgerrors.IsNotFound(err):
		o.logger.Warn("Edge endpoint vanished before context transfer",
			zap.String("edge_id", edge.ID().String()),
			zap.String("graph_id", graphID.String()),
			zap.Error(err),
		)
		o.publish(ctx, pending)
		return result, err
	default:
		o.logger.Error("Context transfer failed",
			zap.String("edge_id", edge.ID().String()),
			zap.Error(err),
		)
		o.metrics.RecordTransfer(strategyLabel(transfer), "error")
		o.publish(ctx, pending)
		return result, pkgerrors.FromStore("context transfer", err)
	}

	o.recordTransfer(transfer)
	o.publish(ctx, append(pending, o.transferEvents(edge, transfer)...))

	o.logger.Info("Edge created",
		zap.String("edge_id", edge.ID().String()),
		zap.String("graph_id", graphID.String()),
		zap.String("strategy", string(transfer.Strategy)),
		zap.Bool("transfer_failed", transfer.Failed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// createAtomic runs both steps in one transaction. Unsupported pairs keep
// the edge because nothing was attempted; any other transfer error rolls
// back the edge as well.
func (o *EdgeOrchestrator) createAtomic(
	ctx context.Context,
	graphID valueobjects.GraphID,
	sourceID, targetID valueobjects.NodeID,
	spec EdgeSpec,
) (*EdgeWithContext, error) {
	var (
		edge     *entities.Edge
		transfer ContextTransferResult
	)
	err := ports.RunInTx(ctx, o.store, func(tx ports.Tx) error {
		var (
			source, target *entities.Node
			err            error
		)
		edge, source, target, err = o.persistEdge(ctx, tx, graphID, sourceID, targetID, spec)
		if err != nil {
			return err
		}
		transfer, err = o.runTransfer(ctx, tx, source, target, edge)
		if stderrors.Is(err, errTransferAborted) && transfer.Strategy == StrategyUnsupported {
			return nil
		}
		return err
	})

	if stderrors.Is(err, errTransferAborted) {
		o.metrics.RecordTransfer(strategyLabel(transfer), "error")
		return nil, pkgerrors.NewValidationError("context transfer failed: "+transfer.Error).
			WithCode(pkgerrors.CodeTransferFailed).
			WithDetail("strategy", string(transfer.Strategy))
	}
	if err != nil {
		return nil, pkgerrors.FromStore("create edge", err)
	}

	o.metrics.RecordEdgeCreated()
	o.recordTransfer(transfer)

	result := &EdgeWithContext{Edge: edge}
	result.merge(transfer)
	o.publish(ctx, append(edge.GetUncommittedEvents(), o.transferEvents(edge, transfer)...))
	return result, nil
}

func (o *EdgeOrchestrator) validateSpec(spec EdgeSpec) (valueobjects.NodeID, valueobjects.NodeID, error) {
	if err := utils.ValidateStruct(spec); err != nil {
		return "", "", err
	}
	if err := o.graphs.ValidateColors(spec.Colors); err != nil {
		return "", "", err
	}
	sourceID, err := valueobjects.NewNodeIDFromString(spec.SourceID)
	if err != nil {
		return "", "", err
	}
	targetID, err := valueobjects.NewNodeIDFromString(spec.TargetID)
	if err != nil {
		return "", "", err
	}
	return sourceID, targetID, nil
}

// persistEdge checks the graph and both endpoints, then writes the edge
func (o *EdgeOrchestrator) persistEdge(
	ctx context.Context,
	tx ports.Tx,
	graphID valueobjects.GraphID,
	sourceID, targetID valueobjects.NodeID,
	spec EdgeSpec,
) (*entities.Edge, *entities.Node, *entities.Node, error) {
	graph, err := tx.GetGraph(ctx, graphID)
	if err != nil {
		return nil, nil, nil, err
	}
	if spec.UserID != "" && !graph.IsOwnedBy(spec.UserID) {
		return nil, nil, nil, pkgerrors.NewGraphNotFound(graphID.String())
	}

	source, err := tx.GetNode(ctx, sourceID)
	if err != nil {
		return nil, nil, nil, err
	}
	target, err := tx.GetNode(ctx, targetID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, n := range []*entities.Node{source, target} {
		if !n.BelongsTo(graphID) {
			return nil, nil, nil, pkgerrors.NewValidationError("edge endpoints must belong to the edge's graph").
				WithCode(pkgerrors.CodeCrossGraphEdge).
				WithDetail("node_id", n.ID().String()).
				WithDetail("graph_id", graphID.String())
		}
	}

	edge, err := entities.NewEdge(graphID, sourceID, targetID, spec.Colors)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := tx.CreateEdge(ctx, edge); err != nil {
		return nil, nil, nil, err
	}
	return edge, source, target, nil
}

// runTransfer invokes the engine and binds a spawned session to the target.
// An error result is reported through errTransferAborted so the transaction
// rolls back.
func (o *EdgeOrchestrator) runTransfer(
	ctx context.Context,
	tx ports.Tx,
	source, target *entities.Node,
	edge *entities.Edge,
) (ContextTransferResult, error) {
	transfer := o.engine.Transfer(ctx, tx, source, target, edge)
	if transfer.Failed() {
		return transfer, errTransferAborted
	}
	if !transfer.ChatSessionID.IsZero() {
		if err := target.BindChatSession(transfer.ChatSessionID); err != nil {
			return transfer, err
		}
		if err := tx.BindChatSession(ctx, target.ID(), transfer.ChatSessionID); err != nil {
			return transfer, err
		}
	}
	return transfer, nil
}

func (o *EdgeOrchestrator) recordTransfer(t ContextTransferResult) {
	outcome := "ok"
	if t.Failed() {
		outcome = "error"
	}
	o.metrics.RecordTransfer(strategyLabel(t), outcome)
}

// strategyLabel names the strategy for metrics. A transfer that failed before
// the engine picked a strategy is counted as "unknown".
func strategyLabel(t ContextTransferResult) string {
	if t.Strategy == "" {
		return "unknown"
	}
	return string(t.Strategy)
}

func (o *EdgeOrchestrator) transferEvents(edge *entities.Edge, t ContextTransferResult) []events.DomainEvent {
	if t.Failed() || t.Placeholder {
		return nil
	}

	var out []events.DomainEvent
	sessionID := t.ChatSessionID
	if s := t.SpawnedSession(); s != nil {
		out = append(out, s.GetUncommittedEvents()...)
	}
	count := len(t.Messages) + t.seeded
	if len(t.Messages) > 0 {
		sessionID = t.Messages[0].SessionID
	}
	out = append(out, events.NewContextTransferred(
		edge.ID().String(),
		edge.GraphID().String(),
		string(t.Strategy),
		sessionID.String(),
		count,
		time.Now().UTC(),
	))
	return out
}

// publish sends events after commit. Failures are logged only.
func (o *EdgeOrchestrator) publish(ctx context.Context, evts []events.DomainEvent) {
	if o.publisher == nil || len(evts) == 0 {
		return
	}
	if err := o.publisher.PublishBatch(ctx, evts); err != nil {
		o.logger.Error("Failed to publish domain events",
			zap.Error(err),
			zap.Int("event_count", len(evts)),
		)
	}
}
