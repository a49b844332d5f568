package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvas-backend/application/export"
	"canvas-backend/application/ports"
	"canvas-backend/application/queries/bus"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/infrastructure/persistence/memory"
	pkgerrors "canvas-backend/pkg/errors"
)

const owner = "user-1"

type seeded struct {
	ctx     context.Context
	store   *memory.Store
	bus     *bus.QueryBus
	graph   *aggregates.Graph
	node    *entities.Node
	session *entities.ChatSession
}

func seed(t *testing.T) *seeded {
	t.Helper()
	s := &seeded{ctx: context.Background(), store: memory.NewStore()}

	var err error
	s.graph, err = aggregates.NewGraph(owner, "Graph", nil)
	require.NoError(t, err)
	s.node, err = entities.NewNode(s.graph.ID(), valueobjects.NodeTypeChat, "Chat", nil)
	require.NoError(t, err)
	s.session, err = entities.NewChatSession(s.graph.ID(), "Talk")
	require.NoError(t, err)

	require.NoError(t, ports.RunInTx(s.ctx, s.store, func(tx ports.Tx) error {
		if err := tx.CreateGraph(s.ctx, s.graph); err != nil {
			return err
		}
		if err := tx.CreateNode(s.ctx, s.node); err != nil {
			return err
		}
		return tx.CreateChatSession(s.ctx, s.session)
	}))

	pipeline := export.NewPipeline(export.NewSessionValidator(s.store, nil), export.NewInputPreparer(), export.NewStreamProcessor(), nil, nil)
	s.bus = bus.NewQueryBus(bus.LoggingMiddleware(zap.NewNop(), 0))
	require.NoError(t, Handlers{
		GetGraph:           NewGetGraphHandler(s.store),
		GetNode:            NewGetNodeHandler(s.store),
		GetSessionMessages: NewGetSessionMessagesHandler(s.store),
		ExportSession: NewExportSessionHandler(s.store,
			export.NewMarkdownExporter(pipeline),
			export.NewDiagramExporter(pipeline)),
	}.Register(s.bus))
	return s
}

func (s *seeded) say(t *testing.T, role valueobjects.MessageRole, content string) {
	t.Helper()
	require.NoError(t, ports.RunInTx(s.ctx, s.store, func(tx ports.Tx) error {
		return tx.AppendMessage(s.ctx, entities.NewChatMessage(s.session.ID(), role, content))
	}))
}

func TestGetGraph(t *testing.T) {
	s := seed(t)

	result, err := s.bus.Ask(s.ctx, GetGraphQuery{UserID: owner, GraphID: s.graph.ID().String()})
	require.NoError(t, err)
	assert.Equal(t, s.graph.ID(), result.(*aggregates.Graph).ID())

	_, err = s.bus.Ask(s.ctx, GetGraphQuery{UserID: "other", GraphID: s.graph.ID().String()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGraphNotFound))

	_, err = s.bus.Ask(s.ctx, GetGraphQuery{UserID: owner, GraphID: "nope"})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestGetNode(t *testing.T) {
	s := seed(t)

	result, err := s.bus.Ask(s.ctx, GetNodeQuery{UserID: owner, NodeID: s.node.ID().String()})
	require.NoError(t, err)
	assert.True(t, result.(*entities.Node).ID().Equals(s.node.ID()))

	_, err = s.bus.Ask(s.ctx, GetNodeQuery{UserID: "other", NodeID: s.node.ID().String()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNodeNotFound))
}

func TestGetSessionMessages(t *testing.T) {
	s := seed(t)

	result, err := s.bus.Ask(s.ctx, GetSessionMessagesQuery{UserID: owner, SessionID: s.session.ID().String()})
	require.NoError(t, err)
	empty := result.(*SessionMessages)
	assert.NotNil(t, empty.Messages)
	assert.Empty(t, empty.Messages)

	s.say(t, valueobjects.RoleUser, "one")
	s.say(t, valueobjects.RoleAssistant, "two")

	result, err = s.bus.Ask(s.ctx, GetSessionMessagesQuery{UserID: owner, SessionID: s.session.ID().String()})
	require.NoError(t, err)
	messages := result.(*SessionMessages).Messages
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)

	_, err = s.bus.Ask(s.ctx, GetSessionMessagesQuery{UserID: "other", SessionID: s.session.ID().String()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionNotFound))
}

func TestExportSession(t *testing.T) {
	s := seed(t)
	s.say(t, valueobjects.RoleUser, "question")
	s.say(t, valueobjects.RoleAssistant, "answer")

	t.Run("markdown", func(t *testing.T) {
		result, err := s.bus.Ask(s.ctx, ExportSessionQuery{UserID: owner, SessionID: s.session.ID().String(), Format: "md"})

		require.NoError(t, err)
		doc := result.(*export.RenderedDocument)
		assert.Equal(t, export.FormatMarkdown, doc.Format)
		assert.Equal(t, "# Talk\n\n## User\n\nquestion\n\n## Assistant\n\nanswer\n", doc.Body)
	})

	t.Run("mermaid", func(t *testing.T) {
		result, err := s.bus.Ask(s.ctx, ExportSessionQuery{UserID: owner, SessionID: s.session.ID().String(), Format: "mermaid"})

		require.NoError(t, err)
		assert.Equal(t, export.FormatDiagram, result.(*export.RenderedDocument).Format)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := s.bus.Ask(s.ctx, ExportSessionQuery{UserID: owner, SessionID: s.session.ID().String(), Format: "pdf"})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("malformed session id", func(t *testing.T) {
		_, err := s.bus.Ask(s.ctx, ExportSessionQuery{UserID: owner, SessionID: "not-a-uuid", Format: "markdown"})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedID))
	})

	t.Run("session of another user", func(t *testing.T) {
		_, err := s.bus.Ask(s.ctx, ExportSessionQuery{UserID: "other", SessionID: s.session.ID().String(), Format: "markdown"})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionNotFound))
	})
}
