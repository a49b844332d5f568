// Package dynamodb implements the GraphStore on a single DynamoDB table.
//
// Reads go straight to the table with consistent reads. Writes are buffered
// on the transaction and flushed as one TransactWriteItems call on Commit,
// so a transaction is all-or-nothing and limited to maxTransactItems writes.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"
)

const maxTransactItems = 100

// Client is the subset of the DynamoDB API the store uses
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements ports.GraphStore using DynamoDB
type Store struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

// NewStore creates a store over tableName
func NewStore(client Client, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

// Begin implements ports.GraphStore
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	return &tx{
		store:        s,
		newNodes:     make(map[string]*nodeItem),
		newSessions:  make(map[valueobjects.SessionID]*sessionItem),
		newGraphs:    make(map[valueobjects.GraphID]*graphItem),
		bindings:     make(map[string]valueobjects.SessionID),
		seqs:         make(map[valueobjects.SessionID]*seqUpdate),
		pendingMsgs:  make(map[valueobjects.SessionID][]messageItem),
		requestToken: uuid.New().String(),
	}, nil
}

// Close is a no-op; the SDK client holds no connection state
func (s *Store) Close() error { return nil }

type seqUpdate struct {
	old  int64
	next int64
}

type tx struct {
	store *Store

	// Items created in this transaction, readable before commit
	newGraphs   map[valueobjects.GraphID]*graphItem
	newNodes    map[string]*nodeItem
	newSessions map[valueobjects.SessionID]*sessionItem
	pendingMsgs map[valueobjects.SessionID][]messageItem
	// order of creation for puts
	putOrder []interface{}

	// Updates to items that existed before the transaction
	bindings map[string]valueobjects.SessionID
	seqs     map[valueobjects.SessionID]*seqUpdate

	requestToken string
	done         bool
}

var _ ports.Tx = (*tx)(nil)

func (t *tx) CreateGraph(ctx context.Context, g *aggregates.Graph) error {
	item := newGraphItem(g)
	t.newGraphs[g.ID()] = &item
	t.putOrder = append(t.putOrder, &item)
	return nil
}

func (t *tx) GetGraph(ctx context.Context, id valueobjects.GraphID) (*aggregates.Graph, error) {
	if item, ok := t.newGraphs[id]; ok {
		return item.toGraph(), nil
	}
	var item graphItem
	found, err := t.getItem(ctx, graphPK(id), &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NewGraphNotFound(id.String())
	}
	return item.toGraph(), nil
}

func (t *tx) CreateNode(ctx context.Context, n *entities.Node) error {
	if _, err := t.GetGraph(ctx, n.GraphID()); err != nil {
		return err
	}
	item := newNodeItem(n)
	t.newNodes[n.ID().String()] = &item
	t.putOrder = append(t.putOrder, &item)
	return nil
}

func (t *tx) GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	item, err := t.loadNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if sid, ok := t.bindings[id.String()]; ok {
		item.ChatSessionID = sid.String()
	}
	return item.toNode()
}

func (t *tx) loadNode(ctx context.Context, id valueobjects.NodeID) (nodeItem, error) {
	if item, ok := t.newNodes[id.String()]; ok {
		return *item, nil
	}
	var item nodeItem
	found, err := t.getItem(ctx, nodePK(id), &item)
	if err != nil {
		return nodeItem{}, err
	}
	if !found {
		return nodeItem{}, pkgerrors.NewNodeNotFound(id.String())
	}
	return item, nil
}

func (t *tx) BindChatSession(ctx context.Context, nodeID valueobjects.NodeID, sessionID valueobjects.SessionID) error {
	if item, ok := t.newNodes[nodeID.String()]; ok {
		item.ChatSessionID = sessionID.String()
		item.UpdatedAt = utils.FormatTimestamp(time.Now())
		return nil
	}
	if _, err := t.loadNode(ctx, nodeID); err != nil {
		return err
	}
	t.bindings[nodeID.String()] = sessionID
	return nil
}

func (t *tx) CreateEdge(ctx context.Context, e *entities.Edge) error {
	item := newEdgeItem(e)
	t.putOrder = append(t.putOrder, &item)
	return nil
}

func (t *tx) CreateChatSession(ctx context.Context, s *entities.ChatSession) error {
	item := newSessionItem(s, 0)
	t.newSessions[s.ID()] = &item
	t.putOrder = append(t.putOrder, &item)
	return nil
}

func (t *tx) GetChatSession(ctx context.Context, id valueobjects.SessionID) (*entities.ChatSession, error) {
	item, err := t.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return item.toSession()
}

func (t *tx) loadSession(ctx context.Context, id valueobjects.SessionID) (sessionItem, error) {
	if item, ok := t.newSessions[id]; ok {
		return *item, nil
	}
	var item sessionItem
	found, err := t.getItem(ctx, sessionPK(id), &item)
	if err != nil {
		return sessionItem{}, err
	}
	if !found {
		return sessionItem{}, pkgerrors.NewSessionNotFound(id.String())
	}
	return item, nil
}

// AppendMessage assigns the next per-session Seq. For sessions that existed
// before the transaction the counter update is guarded on its old value, so
// two concurrent appenders cannot both commit.
func (t *tx) AppendMessage(ctx context.Context, m *entities.ChatMessage) error {
	if item, ok := t.newSessions[m.SessionID]; ok {
		item.MessageSeq++
		m.Seq = item.MessageSeq
	} else {
		upd, ok := t.seqs[m.SessionID]
		if !ok {
			session, err := t.loadSession(ctx, m.SessionID)
			if err != nil {
				return err
			}
			upd = &seqUpdate{old: session.MessageSeq, next: session.MessageSeq}
			t.seqs[m.SessionID] = upd
		}
		upd.next++
		m.Seq = upd.next
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	t.pendingMsgs[m.SessionID] = append(t.pendingMsgs[m.SessionID], newMessageItem(m))
	return nil
}

func (t *tx) GetMessagesOrdered(ctx context.Context, sessionID valueobjects.SessionID) ([]*entities.ChatMessage, error) {
	if _, err := t.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var items []messageItem
	if _, isNew := t.newSessions[sessionID]; !isNew {
		keyCond := expression.Key("PK").Equal(expression.Value(sessionPK(sessionID))).
			And(expression.Key("SK").BeginsWith(msgSKPrefix))
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
		if err != nil {
			return nil, fmt.Errorf("building message query: %w", err)
		}

		paginator := dynamodb.NewQueryPaginator(t.store.client, &dynamodb.QueryInput{
			TableName:                 aws.String(t.store.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("querying messages: %w", err)
			}
			var batch []messageItem
			if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
				return nil, fmt.Errorf("decoding messages: %w", err)
			}
			items = append(items, batch...)
		}
	}

	if pending := t.pendingMsgs[sessionID]; len(pending) > 0 {
		items = append(items, pending...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].SK < items[j].SK })
	}

	out := make([]*entities.ChatMessage, 0, len(items))
	for _, item := range items {
		m, err := item.toMessage()
		if err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", item.MessageID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true

	items, err := t.writeItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxTransactItems {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("transaction has %d writes, limit is %d", len(items), maxTransactItems))
	}

	_, err = t.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(t.requestToken),
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			t.store.logger.Warn("DynamoDB transaction canceled",
				zap.Int("items", len(items)),
				zap.Error(err),
			)
			return pkgerrors.NewConflictError("concurrent modification, retry the request").WithCause(err)
		}
		return fmt.Errorf("transact write: %w", err)
	}

	t.store.logger.Debug("DynamoDB transaction committed", zap.Int("items", len(items)))
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	t.putOrder = nil
	t.pendingMsgs = nil
	return nil
}

func (t *tx) writeItems() ([]types.TransactWriteItem, error) {
	var out []types.TransactWriteItem

	notExists, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, err
	}

	put := func(v interface{}) error {
		av, err := attributevalue.MarshalMap(v)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		out = append(out, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                aws.String(t.store.tableName),
				Item:                     av,
				ConditionExpression:      notExists.Condition(),
				ExpressionAttributeNames: notExists.Names(),
			},
		})
		return nil
	}

	for _, v := range t.putOrder {
		if err := put(v); err != nil {
			return nil, err
		}
	}
	for _, msgs := range t.pendingMsgs {
		for i := range msgs {
			if err := put(&msgs[i]); err != nil {
				return nil, err
			}
		}
	}

	for nodeID, sessionID := range t.bindings {
		update := expression.
			Set(expression.Name("ChatSessionID"), expression.Value(sessionID.String())).
			Set(expression.Name("UpdatedAt"), expression.Value(utils.FormatTimestamp(time.Now())))
		expr, err := expression.NewBuilder().
			WithUpdate(update).
			WithCondition(expression.AttributeExists(expression.Name("PK"))).
			Build()
		if err != nil {
			return nil, err
		}
		out = append(out, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(t.store.tableName),
				Key:                       itemKey("NODE#"+nodeID, skMetadata),
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}

	for sessionID, upd := range t.seqs {
		expr, err := expression.NewBuilder().
			WithUpdate(expression.Set(expression.Name("MessageSeq"), expression.Value(upd.next))).
			WithCondition(expression.Name("MessageSeq").Equal(expression.Value(upd.old))).
			Build()
		if err != nil {
			return nil, err
		}
		out = append(out, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(t.store.tableName),
				Key:                       itemKey(sessionPK(sessionID), skMetadata),
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}

	return out, nil
}

func (t *tx) getItem(ctx context.Context, pk string, out interface{}) (bool, error) {
	result, err := t.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.store.tableName),
		Key:            itemKey(pk, skMetadata),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("get item %s: %w", pk, err)
	}
	if len(result.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("decoding item %s: %w", pk, err)
	}
	return true, nil
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
