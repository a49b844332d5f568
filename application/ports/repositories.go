package ports

import (
	"context"
	"fmt"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// GraphStore is the transactional persistence port for graphs, nodes, edges
// and chat sessions. This is a port in hexagonal architecture - the
// application doesn't know about the implementation.
type GraphStore interface {
	// Begin opens a transaction. Every read and write of one logical step
	// goes through the returned Tx.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the underlying connection
	Close() error
}

// Tx is one unit of work against the GraphStore.
// Lookups of unknown rows return pkg/errors not-found errors carrying the
// NODE_NOT_FOUND, GRAPH_NOT_FOUND or SESSION_NOT_FOUND code.
type Tx interface {
	// CreateGraph persists a new graph
	CreateGraph(ctx context.Context, graph *aggregates.Graph) error

	// GetGraph retrieves a graph by its ID
	GetGraph(ctx context.Context, id valueobjects.GraphID) (*aggregates.Graph, error)

	// CreateNode persists a new node
	CreateNode(ctx context.Context, node *entities.Node) error

	// GetNode retrieves a node by its ID
	GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error)

	// BindChatSession records the session held by a chat node
	BindChatSession(ctx context.Context, nodeID valueobjects.NodeID, sessionID valueobjects.SessionID) error

	// CreateEdge persists a new edge
	CreateEdge(ctx context.Context, edge *entities.Edge) error

	// CreateChatSession persists a new chat session
	CreateChatSession(ctx context.Context, session *entities.ChatSession) error

	// GetChatSession retrieves a chat session by its ID
	GetChatSession(ctx context.Context, id valueobjects.SessionID) (*entities.ChatSession, error)

	// AppendMessage stores a message and assigns its per-session Seq
	AppendMessage(ctx context.Context, message *entities.ChatMessage) error

	// GetMessagesOrdered returns the session history ordered by timestamp,
	// ties broken by Seq
	GetMessagesOrdered(ctx context.Context, sessionID valueobjects.SessionID) ([]*entities.ChatMessage, error)

	// Commit makes the transaction's writes durable
	Commit(ctx context.Context) error

	// Rollback discards the transaction's writes. Calling it after Commit is a no-op.
	Rollback() error
}

// RunInTx runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back when fn fails or panics. A panic is turned
// into an internal error.
func RunInTx(ctx context.Context, store GraphStore, fn func(tx Tx) error) (err error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return pkgerrors.FromStore("begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = pkgerrors.NewInternalError("transaction aborted").
				WithCause(fmt.Errorf("panic: %v", r))
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		_ = tx.Rollback()
		return pkgerrors.FromStore("commit transaction", err)
	}
	return nil
}

// ViewInTx runs a read-only fn and always rolls back
func ViewInTx(ctx context.Context, store GraphStore, fn func(tx Tx) error) (err error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return pkgerrors.FromStore("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
		if r := recover(); r != nil {
			err = pkgerrors.NewInternalError("read aborted").
				WithCause(fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(tx)
}
