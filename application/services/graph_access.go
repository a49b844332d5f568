package services

import (
	"context"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// OwnedGraph loads a graph visible to userID. Graphs owned by someone else
// are reported as not found. An empty userID skips the ownership check.
func OwnedGraph(ctx context.Context, tx ports.Tx, graphID valueobjects.GraphID, userID string) (*aggregates.Graph, error) {
	graph, err := tx.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if userID != "" && !graph.IsOwnedBy(userID) {
		return nil, pkgerrors.NewGraphNotFound(graphID.String())
	}
	return graph, nil
}

// OwnedSession loads a chat session whose graph is visible to userID
func OwnedSession(ctx context.Context, tx ports.Tx, sessionID valueobjects.SessionID, userID string) (*entities.ChatSession, error) {
	session, err := tx.GetChatSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := OwnedGraph(ctx, tx, session.GraphID(), userID); err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewSessionNotFound(sessionID.String())
		}
		return nil, err
	}
	return session, nil
}

// OwnedNode loads a node whose graph is visible to userID
func OwnedNode(ctx context.Context, tx ports.Tx, nodeID valueobjects.NodeID, userID string) (*entities.Node, error) {
	node, err := tx.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if _, err := OwnedGraph(ctx, tx, node.GraphID(), userID); err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNodeNotFound(nodeID.String())
		}
		return nil, err
	}
	return node, nil
}
