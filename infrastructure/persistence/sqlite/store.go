// Package sqlite implements the GraphStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

// Store wraps a SQLite connection.
// SQLite has a single writer, so the pool is held to one connection; this
// also keeps the per-connection pragmas in force.
type Store struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and applies the schema
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Fail early if connection is bad
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("SQLite store ready", zap.String("path", path))
	return &Store{conn: conn, logger: logger}, nil
}

// Begin implements ports.GraphStore
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &tx{tx: sqlTx}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

type tx struct {
	tx *sql.Tx
}

var _ ports.Tx = (*tx)(nil)

func (t *tx) CreateGraph(ctx context.Context, g *aggregates.Graph) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO graphs (id, user_id, name, colors, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.ID().String(), g.UserID(), g.Name(), nullString(g.Colors()), toUnix(g.CreatedAt()), toUnix(g.UpdatedAt()))
	if err != nil {
		return fmt.Errorf("inserting graph: %w", err)
	}
	return nil
}

func (t *tx) GetGraph(ctx context.Context, id valueobjects.GraphID) (*aggregates.Graph, error) {
	var (
		userID, name         string
		colors               sql.NullString
		createdAt, updatedAt int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT user_id, name, colors, created_at, updated_at FROM graphs WHERE id = ?
	`, id.String()).Scan(&userID, &name, &colors, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewGraphNotFound(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying graph: %w", err)
	}
	return aggregates.ReconstructGraph(id, userID, name, stringPtr(colors), fromUnix(createdAt), fromUnix(updatedAt)), nil
}

func (t *tx) CreateNode(ctx context.Context, n *entities.Node) error {
	payload, err := n.Payload().JSON()
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	var session *string
	if n.HasChatSession() {
		s := n.ChatSessionID().String()
		session = &s
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO nodes (id, graph_id, type, title, payload, chat_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID().String(), n.GraphID().String(), string(n.Type()), n.Title(), payload,
		nullString(session), toUnix(n.CreatedAt()), toUnix(n.UpdatedAt()))
	if err != nil {
		if isForeignKeyError(err) {
			return pkgerrors.NewGraphNotFound(n.GraphID().String())
		}
		return fmt.Errorf("inserting node: %w", err)
	}
	return nil
}

func (t *tx) GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	var (
		graphID, nodeType, title, payload string
		session                           sql.NullString
		createdAt, updatedAt              int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT graph_id, type, title, payload, chat_session_id, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id.String()).Scan(&graphID, &nodeType, &title, &payload, &session, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNodeNotFound(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying node: %w", err)
	}

	decoded, err := valueobjects.ParsePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding payload of node %s: %w", id, err)
	}
	return entities.ReconstructNode(
		id,
		valueobjects.GraphID(graphID),
		valueobjects.NodeType(nodeType),
		title,
		decoded,
		valueobjects.SessionID(session.String),
		fromUnix(createdAt),
		fromUnix(updatedAt),
	), nil
}

func (t *tx) BindChatSession(ctx context.Context, nodeID valueobjects.NodeID, sessionID valueobjects.SessionID) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE nodes SET chat_session_id = ?, updated_at = ? WHERE id = ?
	`, sessionID.String(), toUnix(time.Now()), nodeID.String())
	if err != nil {
		return fmt.Errorf("binding chat session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewNodeNotFound(nodeID.String())
	}
	return nil
}

func (t *tx) CreateEdge(ctx context.Context, e *entities.Edge) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO edges (id, graph_id, source_id, target_id, colors, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID().String(), e.GraphID().String(), e.SourceID().String(), e.TargetID().String(),
		nullString(e.Colors()), toUnix(e.CreatedAt()))
	if err != nil {
		if isForeignKeyError(err) {
			return pkgerrors.NewGraphNotFound(e.GraphID().String())
		}
		return fmt.Errorf("inserting edge: %w", err)
	}
	return nil
}

func (t *tx) CreateChatSession(ctx context.Context, s *entities.ChatSession) error {
	var originNode, originEdge *string
	if !s.OriginNodeID().IsZero() {
		v := s.OriginNodeID().String()
		originNode = &v
	}
	if s.OriginEdgeID() != "" {
		v := s.OriginEdgeID().String()
		originEdge = &v
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, graph_id, origin_node_id, origin_edge_id, title, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID().String(), s.GraphID().String(), nullString(originNode), nullString(originEdge),
		s.Title(), toUnix(s.CreatedAt()))
	if err != nil {
		if isForeignKeyError(err) {
			return pkgerrors.NewGraphNotFound(s.GraphID().String())
		}
		return fmt.Errorf("inserting chat session: %w", err)
	}
	return nil
}

func (t *tx) GetChatSession(ctx context.Context, id valueobjects.SessionID) (*entities.ChatSession, error) {
	var (
		graphID, title         string
		originNode, originEdge sql.NullString
		createdAt              int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT graph_id, origin_node_id, origin_edge_id, title, created_at
		FROM chat_sessions WHERE id = ?
	`, id.String()).Scan(&graphID, &originNode, &originEdge, &title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewSessionNotFound(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat session: %w", err)
	}

	var origin valueobjects.NodeID
	if originNode.Valid {
		if origin, err = valueobjects.NewNodeIDFromString(originNode.String); err != nil {
			return nil, fmt.Errorf("decoding origin node of session %s: %w", id, err)
		}
	}
	return entities.ReconstructChatSession(
		id,
		valueobjects.GraphID(graphID),
		origin,
		valueobjects.EdgeID(originEdge.String),
		title,
		fromUnix(createdAt),
	), nil
}

func (t *tx) AppendMessage(ctx context.Context, m *entities.ChatMessage) error {
	var source, stream *string
	if m.HasSource() {
		v := m.SourceNodeID.String()
		source = &v
	}
	if m.StreamID != "" {
		stream = &m.StreamID
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, ts, source_node_id, stream_id, chunk_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID.String(), string(m.Role), m.Content, toUnix(m.Timestamp),
		nullString(source), nullString(stream), m.ChunkIndex)
	if err != nil {
		if isForeignKeyError(err) {
			return pkgerrors.NewSessionNotFound(m.SessionID.String())
		}
		return fmt.Errorf("inserting chat message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message seq: %w", err)
	}
	m.Seq = seq
	return nil
}

func (t *tx) GetMessagesOrdered(ctx context.Context, id valueobjects.SessionID) ([]*entities.ChatMessage, error) {
	var exists int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?`, id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewSessionNotFound(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat session: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT seq, id, role, content, ts, source_node_id, stream_id, chunk_index
		FROM chat_messages WHERE session_id = ?
		ORDER BY ts ASC, seq ASC
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*entities.ChatMessage
	for rows.Next() {
		var (
			m              entities.ChatMessage
			role           string
			ts             int64
			source, stream sql.NullString
		)
		if err := rows.Scan(&m.Seq, &m.ID, &role, &m.Content, &ts, &source, &stream, &m.ChunkIndex); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.SessionID = id
		m.Role = valueobjects.MessageRole(role)
		m.Timestamp = fromUnix(ts)
		m.StreamID = stream.String
		if source.Valid {
			if m.SourceNodeID, err = valueobjects.NewNodeIDFromString(source.String); err != nil {
				return nil, fmt.Errorf("decoding source node of message %s: %w", m.ID, err)
			}
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat messages: %w", err)
	}
	return messages, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func isForeignKeyError(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
