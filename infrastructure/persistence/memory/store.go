// Package memory provides an in-process GraphStore for tests, local runs
// and the CLI dry-run mode.
package memory

import (
	"context"
	"sync"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

type graphRow struct {
	id        valueobjects.GraphID
	userID    string
	name      string
	colors    *string
	createdAt time.Time
	updatedAt time.Time
}

type nodeRow struct {
	id            valueobjects.NodeID
	graphID       valueobjects.GraphID
	nodeType      valueobjects.NodeType
	title         string
	payload       valueobjects.Payload
	chatSessionID valueobjects.SessionID
	createdAt     time.Time
	updatedAt     time.Time
}

type edgeRow struct {
	id        valueobjects.EdgeID
	graphID   valueobjects.GraphID
	sourceID  valueobjects.NodeID
	targetID  valueobjects.NodeID
	colors    *string
	createdAt time.Time
}

type sessionRow struct {
	id           valueobjects.SessionID
	graphID      valueobjects.GraphID
	originNodeID valueobjects.NodeID
	originEdgeID valueobjects.EdgeID
	title        string
	createdAt    time.Time
}

type state struct {
	graphs   map[valueobjects.GraphID]graphRow
	nodes    map[string]nodeRow
	edges    map[valueobjects.EdgeID]edgeRow
	sessions map[valueobjects.SessionID]sessionRow
	messages map[valueobjects.SessionID][]entities.ChatMessage
	seq      int64
}

func newState() *state {
	return &state{
		graphs:   make(map[valueobjects.GraphID]graphRow),
		nodes:    make(map[string]nodeRow),
		edges:    make(map[valueobjects.EdgeID]edgeRow),
		sessions: make(map[valueobjects.SessionID]sessionRow),
		messages: make(map[valueobjects.SessionID][]entities.ChatMessage),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.graphs {
		c.graphs[k] = v
	}
	for k, v := range s.nodes {
		c.nodes[k] = v
	}
	for k, v := range s.edges {
		c.edges[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = append([]entities.ChatMessage(nil), v...)
	}
	c.seq = s.seq
	return c
}

// Store is a GraphStore kept in memory. Transactions are serialized: Begin
// blocks until the previous transaction commits or rolls back, and each
// transaction works on a private copy that Commit swaps in.
type Store struct {
	txLock sync.Mutex
	mu     sync.RWMutex
	state  *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// Begin implements ports.GraphStore
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txLock.Lock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	return &tx{store: s, state: working}, nil
}

// Close implements ports.GraphStore
func (s *Store) Close() error { return nil }

// EdgeCount returns the number of committed edges
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.edges)
}

// SessionCount returns the number of committed chat sessions
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.sessions)
}

// DeleteNode removes a node outright. Edges pointing at it are kept, the
// same as a concurrent delete elsewhere in the system would leave them.
func (s *Store) DeleteNode(id valueobjects.NodeID) {
	s.txLock.Lock()
	defer s.txLock.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.nodes, id.String())
}

type tx struct {
	store *Store
	state *state
	done  bool
}

var _ ports.Tx = (*tx)(nil)

func (t *tx) check(ctx context.Context) error {
	if t.done {
		return pkgerrors.NewInternalError("transaction already finished")
	}
	return ctx.Err()
}

func (t *tx) CreateGraph(ctx context.Context, g *aggregates.Graph) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, exists := t.state.graphs[g.ID()]; exists {
		return pkgerrors.NewConflictError("graph already exists")
	}
	t.state.graphs[g.ID()] = graphRow{
		id:        g.ID(),
		userID:    g.UserID(),
		name:      g.Name(),
		colors:    g.Colors(),
		createdAt: g.CreatedAt(),
		updatedAt: g.UpdatedAt(),
	}
	return nil
}

func (t *tx) GetGraph(ctx context.Context, id valueobjects.GraphID) (*aggregates.Graph, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	r, ok := t.state.graphs[id]
	if !ok {
		return nil, pkgerrors.NewGraphNotFound(id.String())
	}
	return aggregates.ReconstructGraph(r.id, r.userID, r.name, r.colors, r.createdAt, r.updatedAt), nil
}

func (t *tx) CreateNode(ctx context.Context, n *entities.Node) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.state.graphs[n.GraphID()]; !ok {
		return pkgerrors.NewGraphNotFound(n.GraphID().String())
	}
	if _, exists := t.state.nodes[n.ID().String()]; exists {
		return pkgerrors.NewConflictError("node already exists")
	}
	t.state.nodes[n.ID().String()] = nodeRow{
		id:            n.ID(),
		graphID:       n.GraphID(),
		nodeType:      n.Type(),
		title:         n.Title(),
		payload:       n.Payload(),
		chatSessionID: n.ChatSessionID(),
		createdAt:     n.CreatedAt(),
		updatedAt:     n.UpdatedAt(),
	}
	return nil
}

func (t *tx) GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	r, ok := t.state.nodes[id.String()]
	if !ok {
		return nil, pkgerrors.NewNodeNotFound(id.String())
	}
	return entities.ReconstructNode(r.id, r.graphID, r.nodeType, r.title, r.payload.Clone(), r.chatSessionID, r.createdAt, r.updatedAt), nil
}

func (t *tx) BindChatSession(ctx context.Context, nodeID valueobjects.NodeID, sessionID valueobjects.SessionID) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	r, ok := t.state.nodes[nodeID.String()]
	if !ok {
		return pkgerrors.NewNodeNotFound(nodeID.String())
	}
	if _, ok := t.state.sessions[sessionID]; !ok {
		return pkgerrors.NewSessionNotFound(sessionID.String())
	}
	r.chatSessionID = sessionID
	r.updatedAt = time.Now().UTC()
	t.state.nodes[nodeID.String()] = r
	return nil
}

func (t *tx) CreateEdge(ctx context.Context, e *entities.Edge) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.state.graphs[e.GraphID()]; !ok {
		return pkgerrors.NewGraphNotFound(e.GraphID().String())
	}
	t.state.edges[e.ID()] = edgeRow{
		id:        e.ID(),
		graphID:   e.GraphID(),
		sourceID:  e.SourceID(),
		targetID:  e.TargetID(),
		colors:    e.Colors(),
		createdAt: e.CreatedAt(),
	}
	return nil
}

func (t *tx) CreateChatSession(ctx context.Context, s *entities.ChatSession) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.state.graphs[s.GraphID()]; !ok {
		return pkgerrors.NewGraphNotFound(s.GraphID().String())
	}
	t.state.sessions[s.ID()] = sessionRow{
		id:           s.ID(),
		graphID:      s.GraphID(),
		originNodeID: s.OriginNodeID(),
		originEdgeID: s.OriginEdgeID(),
		title:        s.Title(),
		createdAt:    s.CreatedAt(),
	}
	return nil
}

func (t *tx) GetChatSession(ctx context.Context, id valueobjects.SessionID) (*entities.ChatSession, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	r, ok := t.state.sessions[id]
	if !ok {
		return nil, pkgerrors.NewSessionNotFound(id.String())
	}
	return entities.ReconstructChatSession(r.id, r.graphID, r.originNodeID, r.originEdgeID, r.title, r.createdAt), nil
}

func (t *tx) AppendMessage(ctx context.Context, m *entities.ChatMessage) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.state.sessions[m.SessionID]; !ok {
		return pkgerrors.NewSessionNotFound(m.SessionID.String())
	}
	t.state.seq++
	m.Seq = t.state.seq
	t.state.messages[m.SessionID] = append(t.state.messages[m.SessionID], *m)
	return nil
}

func (t *tx) GetMessagesOrdered(ctx context.Context, id valueobjects.SessionID) ([]*entities.ChatMessage, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if _, ok := t.state.sessions[id]; !ok {
		return nil, pkgerrors.NewSessionNotFound(id.String())
	}
	stored := t.state.messages[id]
	out := make([]*entities.ChatMessage, 0, len(stored))
	for i := range stored {
		m := stored[i]
		out = append(out, &m)
	}
	sortMessages(out)
	return out, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return pkgerrors.NewInternalError("transaction already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.state = nil
	t.store.txLock.Unlock()
}
