package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"
)

// Document is what a renderer receives: a validated session and its
// finalized exchanges in order
type Document struct {
	Session   *entities.ChatSession
	Title     string
	Exchanges []Exchange
	Summary   string
	Options   ExportOptions
}

// Pipeline holds the stages shared by every export format. Renderers get a
// Document out of it and never touch the store themselves.
type Pipeline struct {
	validator *SessionValidator
	preparer  *InputPreparer
	stream    *StreamProcessor
	config    *config.DomainConfig
	logger    *zap.Logger
}

// NewPipeline wires the shared stages together
func NewPipeline(
	validator *SessionValidator,
	preparer *InputPreparer,
	stream *StreamProcessor,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		validator: validator,
		preparer:  preparer,
		stream:    stream,
		config:    cfg,
		logger:    logger,
	}
}

// Stream exposes the stream processor for summary assembly
func (p *Pipeline) Stream() *StreamProcessor {
	return p.stream
}

// Config returns the domain limits the pipeline runs with
func (p *Pipeline) Config() *config.DomainConfig {
	return p.config
}

// Load validates the session id and loads its history in chronological order
func (p *Pipeline) Load(ctx context.Context, rawID string, opts ExportOptions) (*entities.ChatSession, []*entities.ChatMessage, error) {
	if err := utils.ValidateStruct(opts); err != nil {
		return nil, nil, err
	}

	session, err := p.validator.Validate(ctx, rawID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := p.validator.GetMessages(ctx, session.ID())
	if err != nil {
		if !pkgerrors.IsNoMessages(err) || !opts.AllowEmpty {
			return nil, nil, err
		}
	}
	return session, OrderMessages(messages), nil
}

// Process runs prepare, finalize and the message limit over a loaded history
func (p *Pipeline) Process(ctx context.Context, session *entities.ChatSession, messages []*entities.ChatMessage, opts ExportOptions) (*Document, error) {
	maxMessages := opts.MaxMessages
	if maxMessages == 0 {
		maxMessages = p.config.DefaultMaxMessages
	}
	maxRunes := opts.MaxMessageRunes
	if maxRunes == 0 {
		maxRunes = p.config.MaxMessageRunes
	}

	exchanges := p.preparer.Prepare(messages, PrepareOptions{MaxMessageRunes: maxRunes})

	exchanges, err := p.stream.Finalize(ctx, exchanges, maxRunes)
	if err != nil {
		return nil, err
	}
	exchanges = p.preparer.Limit(exchanges, maxMessages)
	if len(exchanges) == 0 && !opts.AllowEmpty {
		return nil, pkgerrors.NewNoMessages(session.ID().String())
	}

	return &Document{
		Session:   session,
		Title:     documentTitle(session, opts),
		Exchanges: exchanges,
		Options:   opts,
	}, nil
}

func documentTitle(session *entities.ChatSession, opts ExportOptions) string {
	switch {
	case opts.Title != "":
		return opts.Title
	case session.Title() != "":
		return session.Title()
	default:
		return fmt.Sprintf("Chat session %s", session.ID())
	}
}
