package export

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/pkg/observability"
)

// Renderer is the only format-specific stage of an export
type Renderer interface {
	Format() Format
	ContentType() string
	Render(doc *Document) (string, error)
}

// ExporterOption configures an Exporter
type ExporterOption func(*Exporter)

// WithCache stores rendered output keyed by session state and options
func WithCache(cache ports.Cache, ttl time.Duration) ExporterOption {
	return func(e *Exporter) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

// WithSummarizer enables ExportOptions.Summary
func WithSummarizer(s *Summarizer) ExporterOption {
	return func(e *Exporter) { e.summarizer = s }
}

// WithMetrics records export counters
func WithMetrics(m *observability.Collector) ExporterOption {
	return func(e *Exporter) { e.metrics = m }
}

// WithTracer traces each export as an X-Ray subsegment
func WithTracer(t *observability.Tracer) ExporterOption {
	return func(e *Exporter) { e.tracer = t }
}

// WithLogger sets the exporter logger
func WithLogger(l *zap.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// Exporter runs the shared pipeline and hands the result to its renderer
type Exporter struct {
	pipeline   *Pipeline
	renderer   Renderer
	cache      ports.Cache
	cacheTTL   time.Duration
	summarizer *Summarizer
	metrics    *observability.Collector
	tracer     *observability.Tracer
	logger     *zap.Logger
}

// NewExporter creates an exporter for an arbitrary renderer
func NewExporter(pipeline *Pipeline, renderer Renderer, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		pipeline: pipeline,
		renderer: renderer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewMarkdownExporter creates the Markdown exporter
func NewMarkdownExporter(pipeline *Pipeline, opts ...ExporterOption) *Exporter {
	return NewExporter(pipeline, MarkdownRenderer{}, opts...)
}

// NewDiagramExporter creates the Mermaid diagram exporter
func NewDiagramExporter(pipeline *Pipeline, opts ...ExporterOption) *Exporter {
	return NewExporter(pipeline, DiagramRenderer{LabelRunes: pipeline.Config().DiagramLabelRunes}, opts...)
}

// Format returns the renderer's format
func (e *Exporter) Format() Format {
	return e.renderer.Format()
}

// Export renders a session. Any validation or lookup error is returned
// before rendering starts; no partial document is ever produced.
func (e *Exporter) Export(ctx context.Context, sessionID string, opts ExportOptions) (*RenderedDocument, error) {
	var doc *RenderedDocument
	start := time.Now()
	err := e.tracer.TraceFunction(ctx, "Export."+string(e.renderer.Format()), func(ctx context.Context) error {
		var err error
		doc, err = e.export(ctx, sessionID, opts)
		return err
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordExport(string(e.renderer.Format()), status, time.Since(start))
	return doc, err
}

func (e *Exporter) export(ctx context.Context, rawID string, opts ExportOptions) (*RenderedDocument, error) {
	session, messages, err := e.pipeline.Load(ctx, rawID, opts)
	if err != nil {
		return nil, err
	}

	var key string
	if e.cache != nil {
		key = CacheKey(session.ID(), e.renderer.Format(), opts, messages)
		if doc, ok := e.fromCache(ctx, key); ok {
			e.metrics.RecordCache(true)
			return doc, nil
		}
		e.metrics.RecordCache(false)
	}

	doc, err := e.pipeline.Process(ctx, session, messages, opts)
	if err != nil {
		return nil, err
	}

	// A body missing its requested summary is served but not cached
	cacheable := e.cache != nil
	if opts.Summary && e.summarizer != nil {
		summary, err := e.summarizer.Summarize(ctx, doc.Exchanges)
		if err != nil {
			e.logger.Warn("Summary generation failed",
				zap.String("session_id", session.ID().String()),
				zap.Error(err),
			)
			cacheable = false
		}
		doc.Summary = summary
	}

	body, err := e.renderer.Render(doc)
	if err != nil {
		return nil, err
	}

	rendered := &RenderedDocument{
		SessionID:    session.ID(),
		Format:       e.renderer.Format(),
		ContentType:  e.renderer.ContentType(),
		Title:        doc.Title,
		Body:         body,
		MessageCount: len(doc.Exchanges),
	}
	if cacheable {
		e.toCache(ctx, key, rendered)
	}
	return rendered, nil
}

func (e *Exporter) fromCache(ctx context.Context, key string) (*RenderedDocument, bool) {
	raw, ok := e.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var doc RenderedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		e.logger.Warn("Discarding unreadable cached export", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	doc.Cached = true
	return &doc, true
}

func (e *Exporter) toCache(ctx context.Context, key string, doc *RenderedDocument) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		e.logger.Warn("Failed to cache export", zap.String("key", key), zap.Error(err))
	}
}
