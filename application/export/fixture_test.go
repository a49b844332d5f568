package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/infrastructure/persistence/memory"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type history struct {
	ctx     context.Context
	store   *memory.Store
	session *entities.ChatSession
	next    time.Time
}

func newHistory(t *testing.T, title string) *history {
	t.Helper()
	h := &history{ctx: context.Background(), store: memory.NewStore(), next: baseTime}

	g, err := aggregates.NewGraph("user-1", "Graph", nil)
	require.NoError(t, err)
	h.session, err = entities.NewChatSession(g.ID(), title)
	require.NoError(t, err)

	require.NoError(t, ports.RunInTx(h.ctx, h.store, func(tx ports.Tx) error {
		if err := tx.CreateGraph(h.ctx, g); err != nil {
			return err
		}
		return tx.CreateChatSession(h.ctx, h.session)
	}))
	return h
}

func (h *history) id() string {
	return h.session.ID().String()
}

// add appends a message one second after the previous one
func (h *history) add(t *testing.T, role, content string) *entities.ChatMessage {
	t.Helper()
	m := entities.NewChatMessage(h.session.ID(), valueobjects.MessageRole(role), content)
	m.Timestamp = h.next
	h.next = h.next.Add(time.Second)
	h.append(t, m)
	return m
}

func (h *history) addChunk(t *testing.T, streamID string, index int, content string) {
	t.Helper()
	m := entities.NewChatMessage(h.session.ID(), valueobjects.RoleAssistant, content)
	m.Timestamp = h.next
	m.StreamID = streamID
	m.ChunkIndex = index
	h.append(t, m)
}

func (h *history) addContext(t *testing.T, source valueobjects.NodeID, content string) {
	t.Helper()
	m := entities.NewContextMessage(h.session.ID(), source, content)
	m.Timestamp = h.next
	h.next = h.next.Add(time.Second)
	h.append(t, m)
}

func (h *history) append(t *testing.T, m *entities.ChatMessage) {
	t.Helper()
	require.NoError(t, ports.RunInTx(h.ctx, h.store, func(tx ports.Tx) error {
		return tx.AppendMessage(h.ctx, m)
	}))
}

func (h *history) pipeline() *Pipeline {
	return NewPipeline(NewSessionValidator(h.store, nil), NewInputPreparer(), NewStreamProcessor(), nil, nil)
}
