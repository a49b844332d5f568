package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/infrastructure/persistence/memory"
)

const testUser = "user-123"

type fixture struct {
	ctx   context.Context
	store *memory.Store
	graph *aggregates.Graph
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: memory.NewStore()}
	f.graph = f.newGraph(t, testUser)
	return f
}

func (f *fixture) newGraph(t *testing.T, userID string) *aggregates.Graph {
	t.Helper()
	g, err := aggregates.NewGraph(userID, "Test Graph", nil)
	require.NoError(t, err)
	require.NoError(t, ports.RunInTx(f.ctx, f.store, func(tx ports.Tx) error {
		return tx.CreateGraph(f.ctx, g)
	}))
	return g
}

func (f *fixture) nodeIn(t *testing.T, graphID valueobjects.GraphID, nodeType valueobjects.NodeType, payload valueobjects.Payload) *entities.Node {
	t.Helper()
	n, err := entities.NewNode(graphID, nodeType, "", payload)
	require.NoError(t, err)
	require.NoError(t, ports.RunInTx(f.ctx, f.store, func(tx ports.Tx) error {
		return tx.CreateNode(f.ctx, n)
	}))
	return n
}

func (f *fixture) node(t *testing.T, nodeType valueobjects.NodeType, payload valueobjects.Payload) *entities.Node {
	t.Helper()
	return f.nodeIn(t, f.graph.ID(), nodeType, payload)
}

func (f *fixture) document(t *testing.T, content string) *entities.Node {
	t.Helper()
	return f.node(t, valueobjects.NodeTypeDocument, valueobjects.NewTextPayload(content))
}

// chatWithSession creates a chat node bound to a session holding msgs as
// alternating user and assistant turns
func (f *fixture) chatWithSession(t *testing.T, msgs ...string) (*entities.Node, *entities.ChatSession) {
	t.Helper()
	n := f.node(t, valueobjects.NodeTypeChat, nil)
	s, err := entities.NewChatSession(f.graph.ID(), "Chat")
	require.NoError(t, err)

	require.NoError(t, ports.RunInTx(f.ctx, f.store, func(tx ports.Tx) error {
		if err := tx.CreateChatSession(f.ctx, s); err != nil {
			return err
		}
		if err := tx.BindChatSession(f.ctx, n.ID(), s.ID()); err != nil {
			return err
		}
		for i, text := range msgs {
			role := valueobjects.RoleUser
			if i%2 == 1 {
				role = valueobjects.RoleAssistant
			}
			if err := tx.AppendMessage(f.ctx, entities.NewChatMessage(s.ID(), role, text)); err != nil {
				return err
			}
		}
		return nil
	}))
	return f.reload(t, n.ID()), s
}

func (f *fixture) reload(t *testing.T, id valueobjects.NodeID) *entities.Node {
	t.Helper()
	var n *entities.Node
	require.NoError(t, ports.ViewInTx(f.ctx, f.store, func(tx ports.Tx) error {
		var err error
		n, err = tx.GetNode(f.ctx, id)
		return err
	}))
	return n
}

func (f *fixture) messages(t *testing.T, id valueobjects.SessionID) []*entities.ChatMessage {
	t.Helper()
	var out []*entities.ChatMessage
	require.NoError(t, ports.ViewInTx(f.ctx, f.store, func(tx ports.Tx) error {
		var err error
		out, err = tx.GetMessagesOrdered(f.ctx, id)
		return err
	}))
	return out
}

// transfer runs the engine for a fresh edge and commits whatever it wrote
func (f *fixture) transfer(t *testing.T, engine *ContextTransferEngine, source, target *entities.Node) ContextTransferResult {
	t.Helper()
	edge, err := entities.NewEdge(f.graph.ID(), source.ID(), target.ID(), nil)
	require.NoError(t, err)

	var result ContextTransferResult
	require.NoError(t, ports.RunInTx(f.ctx, f.store, func(tx ports.Tx) error {
		result = engine.Transfer(f.ctx, tx, source, target, edge)
		return nil
	}))
	return result
}

// hookedStore runs beforeBegin ahead of the n-th Begin call. When nodeErr is
// set, GetNode on that transaction fails with it.
type hookedStore struct {
	*memory.Store
	calls       int
	on          int
	beforeBegin func()
	nodeErr     error
}

func (s *hookedStore) Begin(ctx context.Context) (ports.Tx, error) {
	s.calls++
	if s.calls != s.on {
		return s.Store.Begin(ctx)
	}
	if s.beforeBegin != nil {
		s.beforeBegin()
	}
	tx, err := s.Store.Begin(ctx)
	if err != nil || s.nodeErr == nil {
		return tx, err
	}
	return &failingNodeTx{Tx: tx, err: s.nodeErr}, nil
}

type failingNodeTx struct {
	ports.Tx
	err error
}

func (t *failingNodeTx) GetNode(context.Context, valueobjects.NodeID) (*entities.Node, error) {
	return nil, t.err
}
