// Package storetest holds the behavior every ports.GraphStore implementation
// must share. Store packages run it from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// Factory returns a fresh, empty store
type Factory func(t *testing.T) ports.GraphStore

// Run exercises the full GraphStore contract against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("graph round trip", func(t *testing.T) { testGraphRoundTrip(t, newStore(t)) })
	t.Run("node round trip", func(t *testing.T) { testNodeRoundTrip(t, newStore(t)) })
	t.Run("node requires graph", func(t *testing.T) { testNodeRequiresGraph(t, newStore(t)) })
	t.Run("bind chat session", func(t *testing.T) { testBindChatSession(t, newStore(t)) })
	t.Run("session round trip", func(t *testing.T) { testSessionRoundTrip(t, newStore(t)) })
	t.Run("messages ordered", func(t *testing.T) { testMessagesOrdered(t, newStore(t)) })
	t.Run("message fields", func(t *testing.T) { testMessageFields(t, newStore(t)) })
	t.Run("missing session", func(t *testing.T) { testMissingSession(t, newStore(t)) })
	t.Run("rollback discards writes", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("reads see own writes", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
}

type seed struct {
	graph   *aggregates.Graph
	chat    *entities.Node
	doc     *entities.Node
	session *entities.ChatSession
}

func seedGraph(t *testing.T, store ports.GraphStore) seed {
	t.Helper()
	ctx := context.Background()
	colors := "#112233"

	g, err := aggregates.NewGraph("user-1", "Graph", &colors)
	require.NoError(t, err)
	chat, err := entities.NewNode(g.ID(), valueobjects.NodeTypeChat, "Chat", nil)
	require.NoError(t, err)
	doc, err := entities.NewNode(g.ID(), valueobjects.NodeTypeDocument, "Doc", valueobjects.Payload{
		"content": "lore text",
		"tags":    []interface{}{"a", "b"},
	})
	require.NoError(t, err)
	session, err := entities.NewChatSession(g.ID(), "Talk")
	require.NoError(t, err)

	require.NoError(t, ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		if err := tx.CreateGraph(ctx, g); err != nil {
			return err
		}
		if err := tx.CreateNode(ctx, chat); err != nil {
			return err
		}
		if err := tx.CreateNode(ctx, doc); err != nil {
			return err
		}
		return tx.CreateChatSession(ctx, session)
	}))
	return seed{graph: g, chat: chat, doc: doc, session: session}
}

func view(t *testing.T, store ports.GraphStore, fn func(ctx context.Context, tx ports.Tx)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ports.ViewInTx(ctx, store, func(tx ports.Tx) error {
		fn(ctx, tx)
		return nil
	}))
}

func appendAll(t *testing.T, store ports.GraphStore, messages ...*entities.ChatMessage) {
	t.Helper()
	ctx := context.Background()
	for _, m := range messages {
		require.NoError(t, ports.RunInTx(ctx, store, func(tx ports.Tx) error {
			return tx.AppendMessage(ctx, m)
		}))
	}
}

func testGraphRoundTrip(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		got, err := tx.GetGraph(ctx, s.graph.ID())
		require.NoError(t, err)
		assert.Equal(t, s.graph.ID(), got.ID())
		assert.Equal(t, "user-1", got.UserID())
		assert.Equal(t, "Graph", got.Name())
		require.NotNil(t, got.Colors())
		assert.Equal(t, "#112233", *got.Colors())
		assert.WithinDuration(t, s.graph.CreatedAt(), got.CreatedAt(), time.Millisecond)

		_, err = tx.GetGraph(ctx, valueobjects.NewGraphID())
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGraphNotFound))
	})
}

func testNodeRoundTrip(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		got, err := tx.GetNode(ctx, s.doc.ID())
		require.NoError(t, err)
		assert.True(t, got.ID().Equals(s.doc.ID()))
		assert.Equal(t, s.graph.ID(), got.GraphID())
		assert.Equal(t, valueobjects.NodeTypeDocument, got.Type())
		assert.Equal(t, "Doc", got.Title())
		assert.Equal(t, "lore text", got.PayloadText())
		assert.Len(t, got.Payload()["tags"], 2)
		assert.False(t, got.HasChatSession())

		_, err = tx.GetNode(ctx, valueobjects.NewNodeID())
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNodeNotFound))
	})
}

func testNodeRequiresGraph(t *testing.T, store ports.GraphStore) {
	ctx := context.Background()
	orphan, err := entities.NewNode(valueobjects.NewGraphID(), valueobjects.NodeTypeChat, "", nil)
	require.NoError(t, err)

	err = ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		return tx.CreateNode(ctx, orphan)
	})

	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGraphNotFound))
}

func testBindChatSession(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)
	ctx := context.Background()

	require.NoError(t, ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		return tx.BindChatSession(ctx, s.chat.ID(), s.session.ID())
	}))

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		got, err := tx.GetNode(ctx, s.chat.ID())
		require.NoError(t, err)
		assert.Equal(t, s.session.ID(), got.ChatSessionID())
	})

	err := ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		return tx.BindChatSession(ctx, valueobjects.NewNodeID(), s.session.ID())
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNodeNotFound))
}

func testSessionRoundTrip(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)
	ctx := context.Background()

	edge, err := entities.NewEdge(s.graph.ID(), s.doc.ID(), s.chat.ID(), nil)
	require.NoError(t, err)
	spawned, err := entities.SpawnChatSession(s.graph.ID(), "Spawned", s.doc.ID(), edge.ID())
	require.NoError(t, err)
	require.NoError(t, ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		if err := tx.CreateEdge(ctx, edge); err != nil {
			return err
		}
		return tx.CreateChatSession(ctx, spawned)
	}))

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		plain, err := tx.GetChatSession(ctx, s.session.ID())
		require.NoError(t, err)
		assert.Equal(t, "Talk", plain.Title())
		assert.Equal(t, s.graph.ID(), plain.GraphID())
		assert.False(t, plain.IsSpawned())

		got, err := tx.GetChatSession(ctx, spawned.ID())
		require.NoError(t, err)
		assert.True(t, got.IsSpawned())
		assert.True(t, got.OriginNodeID().Equals(s.doc.ID()))
		assert.Equal(t, edge.ID(), got.OriginEdgeID())
	})
}

func testMessagesOrdered(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	at := func(content string, ts time.Time) *entities.ChatMessage {
		m := entities.NewChatMessage(s.session.ID(), valueobjects.RoleUser, content)
		m.Timestamp = ts
		return m
	}
	// Appended out of time order; B and C share a timestamp
	c := at("C", base.Add(time.Second))
	a := at("A", base)
	b := at("B", base.Add(time.Second))
	appendAll(t, store, a, c, b)

	assert.Less(t, a.Seq, c.Seq)
	assert.Less(t, c.Seq, b.Seq)

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		got, err := tx.GetMessagesOrdered(ctx, s.session.ID())
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"A", "C", "B"}, []string{got[0].Content, got[1].Content, got[2].Content})
		assert.Equal(t, a.Seq, got[0].Seq)
	})
}

func testMessageFields(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)

	ctxMsg := entities.NewContextMessage(s.session.ID(), s.doc.ID(), "lore text")
	chunk := entities.NewChatMessage(s.session.ID(), valueobjects.RoleAssistant, "part")
	chunk.StreamID = "stream-1"
	chunk.ChunkIndex = 3
	chunk.Timestamp = ctxMsg.Timestamp.Add(time.Millisecond)
	appendAll(t, store, ctxMsg, chunk)

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		got, err := tx.GetMessagesOrdered(ctx, s.session.ID())
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, ctxMsg.ID, got[0].ID)
		assert.Equal(t, valueobjects.RoleContext, got[0].Role)
		assert.True(t, got[0].SourceNodeID.Equals(s.doc.ID()))
		assert.Equal(t, s.session.ID(), got[0].SessionID)
		assert.WithinDuration(t, ctxMsg.Timestamp, got[0].Timestamp, time.Microsecond)

		assert.True(t, got[1].IsChunk())
		assert.Equal(t, "stream-1", got[1].StreamID)
		assert.Equal(t, 3, got[1].ChunkIndex)
		assert.False(t, got[1].HasSource())
	})
}

func testMissingSession(t *testing.T, store ports.GraphStore) {
	seedGraph(t, store)
	ctx := context.Background()
	missing := valueobjects.NewSessionID()

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		_, err := tx.GetChatSession(ctx, missing)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionNotFound))
		_, err = tx.GetMessagesOrdered(ctx, missing)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionNotFound))
	})

	err := ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		return tx.AppendMessage(ctx, entities.NewChatMessage(missing, valueobjects.RoleUser, "x"))
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionNotFound))
}

func testRollback(t *testing.T, store ports.GraphStore) {
	s := seedGraph(t, store)
	ctx := context.Background()
	extra, err := entities.NewNode(s.graph.ID(), valueobjects.NodeTypeMedia, "", nil)
	require.NoError(t, err)

	err = ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		if err := tx.CreateNode(ctx, extra); err != nil {
			return err
		}
		if err := tx.AppendMessage(ctx, entities.NewChatMessage(s.session.ID(), valueobjects.RoleUser, "gone")); err != nil {
			return err
		}
		return pkgerrors.NewValidationError("abort")
	})
	require.True(t, pkgerrors.IsValidation(err))

	view(t, store, func(ctx context.Context, tx ports.Tx) {
		_, err := tx.GetNode(ctx, extra.ID())
		assert.True(t, pkgerrors.IsNotFound(err))
		messages, err := tx.GetMessagesOrdered(ctx, s.session.ID())
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func testReadYourWrites(t *testing.T, store ports.GraphStore) {
	ctx := context.Background()
	g, err := aggregates.NewGraph("user-1", "Fresh", nil)
	require.NoError(t, err)
	chat, err := entities.NewNode(g.ID(), valueobjects.NodeTypeChat, "", nil)
	require.NoError(t, err)
	session, err := entities.NewChatSession(g.ID(), "")
	require.NoError(t, err)

	require.NoError(t, ports.RunInTx(ctx, store, func(tx ports.Tx) error {
		require.NoError(t, tx.CreateGraph(ctx, g))
		require.NoError(t, tx.CreateNode(ctx, chat))
		require.NoError(t, tx.CreateChatSession(ctx, session))
		require.NoError(t, tx.BindChatSession(ctx, chat.ID(), session.ID()))
		require.NoError(t, tx.AppendMessage(ctx, entities.NewChatMessage(session.ID(), valueobjects.RoleUser, "first")))

		node, err := tx.GetNode(ctx, chat.ID())
		require.NoError(t, err)
		assert.Equal(t, session.ID(), node.ChatSessionID())

		messages, err := tx.GetMessagesOrdered(ctx, session.ID())
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "first", messages[0].Content)
		return nil
	}))
}
