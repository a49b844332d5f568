package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvas-backend/application/commands/bus"
	"canvas-backend/application/ports"
	"canvas-backend/application/ports/mocks"
	"canvas-backend/application/services"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	"canvas-backend/infrastructure/persistence/memory"
	pkgerrors "canvas-backend/pkg/errors"
)

const owner = "user-1"

type harness struct {
	ctx       context.Context
	store     *memory.Store
	bus       *bus.CommandBus
	publisher *mocks.MockEventPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	cfg := config.DefaultDomainConfig()
	logger := zap.NewNop()

	publisher := new(mocks.MockEventPublisher)
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(nil)

	engine := services.NewContextTransferEngine(cfg, logger)
	orchestrator := services.NewEdgeOrchestrator(store, engine, publisher, cfg, logger)

	b := bus.NewCommandBus(bus.LoggingMiddleware(logger))
	require.NoError(t, Handlers{
		CreateGraph:       NewCreateGraphHandler(store, publisher, cfg, logger),
		CreateNode:        NewCreateNodeHandler(store, publisher, cfg, logger),
		CreateChatSession: NewCreateChatSessionHandler(store, logger),
		AppendMessage:     NewAppendMessageHandler(store, cfg, logger),
		CreateEdge:        NewCreateEdgeWithContextHandler(orchestrator),
	}.Register(b))

	return &harness{ctx: context.Background(), store: store, bus: b, publisher: publisher}
}

func (h *harness) graph(t *testing.T) *aggregates.Graph {
	t.Helper()
	result, err := h.bus.Send(h.ctx, CreateGraphCommand{UserID: owner, Name: "Research"})
	require.NoError(t, err)
	return result.(*aggregates.Graph)
}

func (h *harness) node(t *testing.T, graphID valueobjects.GraphID, nodeType string, payload map[string]interface{}) *entities.Node {
	t.Helper()
	result, err := h.bus.Send(h.ctx, CreateNodeCommand{UserID: owner, GraphID: graphID.String(), Type: nodeType, Payload: payload})
	require.NoError(t, err)
	return result.(*entities.Node)
}

func TestCreateGraph(t *testing.T) {
	h := newHarness(t)

	result, err := h.bus.Send(h.ctx, CreateGraphCommand{UserID: owner})

	require.NoError(t, err)
	graph := result.(*aggregates.Graph)
	assert.Equal(t, "Untitled Graph", graph.Name())
	assert.True(t, graph.IsOwnedBy(owner))
	assert.Empty(t, graph.GetUncommittedEvents())
	assert.Equal(t, []string{events.TypeGraphCreated}, h.publisher.EventTypes())
}

func TestCreateGraph_RequiresUser(t *testing.T) {
	h := newHarness(t)

	_, err := h.bus.Send(h.ctx, CreateGraphCommand{Name: "x"})

	assert.True(t, pkgerrors.IsValidation(err))
	h.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestCreateNode(t *testing.T) {
	h := newHarness(t)
	graph := h.graph(t)

	t.Run("valid", func(t *testing.T) {
		node := h.node(t, graph.ID(), "document", map[string]interface{}{"content": "notes"})

		assert.Equal(t, valueobjects.NodeTypeDocument, node.Type())
		assert.Equal(t, "notes", node.PayloadText())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := h.bus.Send(h.ctx, CreateNodeCommand{UserID: owner, GraphID: graph.ID().String(), Type: "sheet"})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("unknown graph", func(t *testing.T) {
		_, err := h.bus.Send(h.ctx, CreateNodeCommand{UserID: owner, GraphID: valueobjects.NewGraphID().String(), Type: "chat"})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGraphNotFound))
	})

	t.Run("graph of another user", func(t *testing.T) {
		_, err := h.bus.Send(h.ctx, CreateNodeCommand{UserID: "someone-else", GraphID: graph.ID().String(), Type: "chat"})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGraphNotFound))
	})
}

func TestCreateChatSession_BindsNode(t *testing.T) {
	h := newHarness(t)
	graph := h.graph(t)
	chat := h.node(t, graph.ID(), "chat", nil)
	doc := h.node(t, graph.ID(), "document", nil)

	result, err := h.bus.Send(h.ctx, CreateChatSessionCommand{UserID: owner, GraphID: graph.ID().String(), NodeID: chat.ID().String(), Title: "Talk"})
	require.NoError(t, err)
	session := result.(*entities.ChatSession)
	assert.Equal(t, "Talk", session.Title())

	// A second session for the same node conflicts
	_, err = h.bus.Send(h.ctx, CreateChatSessionCommand{UserID: owner, GraphID: graph.ID().String(), NodeID: chat.ID().String()})
	assert.True(t, pkgerrors.IsConflict(err))

	// Only chat nodes hold sessions
	_, err = h.bus.Send(h.ctx, CreateChatSessionCommand{UserID: owner, GraphID: graph.ID().String(), NodeID: doc.ID().String()})
	assert.True(t, pkgerrors.IsValidation(err))

	assert.Equal(t, 1, h.store.SessionCount())
}

func TestAppendMessage(t *testing.T) {
	h := newHarness(t)
	graph := h.graph(t)
	result, err := h.bus.Send(h.ctx, CreateChatSessionCommand{UserID: owner, GraphID: graph.ID().String()})
	require.NoError(t, err)
	session := result.(*entities.ChatSession)

	first, err := h.bus.Send(h.ctx, AppendMessageCommand{UserID: owner, SessionID: session.ID().String(), Role: "Human", Content: "hi"})
	require.NoError(t, err)
	second, err := h.bus.Send(h.ctx, AppendMessageCommand{UserID: owner, SessionID: session.ID().String(), Role: "assistant", StreamID: "s1", ChunkIndex: 0})
	require.NoError(t, err)

	m1, m2 := first.(*entities.ChatMessage), second.(*entities.ChatMessage)
	assert.Equal(t, valueobjects.RoleUser, m1.Role)
	assert.Greater(t, m2.Seq, m1.Seq)
	assert.True(t, m2.IsChunk())

	tests := []struct {
		name  string
		cmd   AppendMessageCommand
		check func(error) bool
	}{
		{"empty content", AppendMessageCommand{UserID: owner, SessionID: session.ID().String(), Role: "user"}, pkgerrors.IsValidation},
		{"non-ascii role", AppendMessageCommand{UserID: owner, SessionID: session.ID().String(), Role: "élève", Content: "x"}, pkgerrors.IsValidation},
		{"multi-line role", AppendMessageCommand{UserID: owner, SessionID: session.ID().String(), Role: "x\n## Injected", Content: "x"}, pkgerrors.IsValidation},
		{"malformed session", AppendMessageCommand{UserID: owner, SessionID: "abc", Role: "user", Content: "x"}, pkgerrors.IsValidation},
		{"unknown session", AppendMessageCommand{UserID: owner, SessionID: valueobjects.NewSessionID().String(), Role: "user", Content: "x"}, pkgerrors.IsNotFound},
		{"foreign session", AppendMessageCommand{UserID: "intruder", SessionID: session.ID().String(), Role: "user", Content: "x"}, pkgerrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.bus.Send(h.ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestCreateEdgeWithContext(t *testing.T) {
	// Arrange
	h := newHarness(t)
	graph := h.graph(t)
	doc := h.node(t, graph.ID(), "document", map[string]interface{}{"content": "lore text"})
	chat := h.node(t, graph.ID(), "chat", nil)

	// Act
	result, err := h.bus.Send(h.ctx, CreateEdgeWithContextCommand{
		UserID:   owner,
		GraphID:  graph.ID().String(),
		SourceID: doc.ID().String(),
		TargetID: chat.ID().String(),
	})

	// Assert
	require.NoError(t, err)
	edge := result.(*services.EdgeWithContext)
	assert.False(t, edge.ChatSessionID.IsZero())
	assert.Equal(t, services.StrategySpawnSession, edge.Strategy)
	assert.Equal(t, 1, h.store.EdgeCount())

	var history []*entities.ChatMessage
	require.NoError(t, ports.ViewInTx(h.ctx, h.store, func(tx ports.Tx) error {
		var err error
		history, err = tx.GetMessagesOrdered(h.ctx, edge.ChatSessionID)
		return err
	}))
	require.Len(t, history, 1)
	assert.Equal(t, "lore text", history[0].Content)
}

func TestCreateEdgeWithContext_Validation(t *testing.T) {
	h := newHarness(t)

	result, err := h.bus.Send(h.ctx, CreateEdgeWithContextCommand{GraphID: "x", SourceID: "y", TargetID: "z"})

	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 0, h.store.EdgeCount())
}
