// Package dynamodb is the production ports.KeyValueStore: one DynamoDB table
// with a string partition key PK (the scope) and a string sort key SK.
package dynamodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

const (
	attrPK = "PK"
	attrSK = "SK"

	reasonConditionalCheckFailed = "ConditionalCheckFailed"
)

// API is the subset of the DynamoDB client the store calls.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Store implements ports.KeyValueStore on a DynamoDB table.
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	consistentReads bool
}

// Option configures a Store.
type Option func(*Store)

// WithUnprocessedRetries sets how often BatchWrite resubmits items DynamoDB
// left unprocessed, and the first wait between attempts.
func WithUnprocessedRetries(max uint64, initial time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = max
		if initial > 0 {
			s.initialInterval = initial
			if s.maxInterval < initial {
				s.maxInterval = initial
			}
		}
	}
}

// WithConsistentReads makes Get and QueryPrefix strongly consistent.
func WithConsistentReads(enabled bool) Option {
	return func(s *Store) { s.consistentReads = enabled }
}

// NewStore creates a store over tableName.
func NewStore(client API, tableName string, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		client:          client,
		tableName:       tableName,
		logger:          logger,
		maxRetries:      5,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            marshalKey(key),
		ConsistentRead: aws.Bool(s.consistentReads),
	})
	if err != nil {
		return keyspace.Item{}, s.classify("get", err)
	}
	if len(out.Item) == 0 {
		return keyspace.Item{}, pkgerrors.NewNotFoundError(key.Sort)
	}
	return s.unmarshalItem(key.Scope, out.Item)
}

func (s *Store) Put(ctx context.Context, item keyspace.Item) error {
	av, err := marshalItem(item)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		return s.classify("put", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key keyspace.Key) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       marshalKey(key),
	}); err != nil {
		return s.classify("delete", err)
	}
	return nil
}

func (s *Store) QueryPrefix(ctx context.Context, input ports.QueryInput) (ports.Page, error) {
	startKey, err := decodeCursor(input.Scope, input.Cursor)
	if err != nil {
		return ports.Page{}, err
	}

	keyCond := expression.Key(attrPK).Equal(expression.Value(string(input.Scope)))
	if input.Prefix != "" {
		keyCond = keyCond.And(expression.KeyBeginsWith(expression.Key(attrSK), input.Prefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(input.Projection) > 0 {
		proj := expression.NamesList(expression.Name(attrPK), expression.Name(attrSK))
		for _, f := range input.Projection {
			proj = proj.AddNames(expression.Name(f))
		}
		builder = builder.WithProjection(proj)
	}
	expr, err := builder.Build()
	if err != nil {
		return ports.Page{}, pkgerrors.NewInternalError("failed to build query expression").WithCause(err)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ExclusiveStartKey:         startKey,
		ConsistentRead:            aws.Bool(s.consistentReads),
		ScanIndexForward:          aws.Bool(true),
	}
	if input.Limit > 0 {
		in.Limit = aws.Int32(int32(input.Limit))
	}

	out, err := s.client.Query(ctx, in)
	if err != nil {
		return ports.Page{}, s.classify("query", err)
	}

	page := ports.Page{Items: make([]keyspace.Item, 0, len(out.Items))}
	for _, raw := range out.Items {
		item, err := s.unmarshalItem(input.Scope, raw)
		if err != nil {
			return ports.Page{}, err
		}
		page.Items = append(page.Items, item)
	}
	if len(out.LastEvaluatedKey) > 0 {
		page.NextCursor, err = encodeCursor(out.LastEvaluatedKey)
		if err != nil {
			return ports.Page{}, err
		}
	}
	return page, nil
}

func (s *Store) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	if _, err := ports.ValidateTransaction(ops); err != nil {
		return err
	}

	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		twi, err := s.transactItem(op)
		if err != nil {
			return err
		}
		items = append(items, twi)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return s.classify("transact_write", err)
	}
	return nil
}

func (s *Store) transactItem(op ports.WriteOp) (types.TransactWriteItem, error) {
	cond, err := conditionExpression(op.Condition)
	if err != nil {
		return types.TransactWriteItem{}, err
	}

	switch op.Type {
	case ports.OpPut:
		av, err := marshalItem(op.Item)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		put := &types.Put{TableName: aws.String(s.tableName), Item: av}
		if cond != nil {
			put.ConditionExpression = cond.Condition()
			put.ExpressionAttributeNames = cond.Names()
			put.ExpressionAttributeValues = cond.Values()
		}
		return types.TransactWriteItem{Put: put}, nil

	case ports.OpDelete:
		del := &types.Delete{TableName: aws.String(s.tableName), Key: marshalKey(op.Key)}
		if cond != nil {
			del.ConditionExpression = cond.Condition()
			del.ExpressionAttributeNames = cond.Names()
			del.ExpressionAttributeValues = cond.Values()
		}
		return types.TransactWriteItem{Delete: del}, nil

	case ports.OpConditionCheck:
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(s.tableName),
			Key:                       marshalKey(op.Key),
			ConditionExpression:       cond.Condition(),
			ExpressionAttributeNames:  cond.Names(),
			ExpressionAttributeValues: cond.Values(),
		}}, nil

	default:
		return types.TransactWriteItem{}, pkgerrors.NewValidationErrorf("unsupported operation %s", op.Type)
	}
}

func (s *Store) BatchWrite(ctx context.Context, ops []ports.WriteOp) error {
	if err := ports.ValidateBatch(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(ops))
	for _, op := range ops {
		switch op.Type {
		case ports.OpPut:
			av, err := marshalItem(op.Item)
			if err != nil {
				return err
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
		case ports.OpDelete:
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: marshalKey(op.Key)}})
		}
	}

	pending := map[string][]types.WriteRequest{s.tableName: requests}
	attempt := 0
	operation := func() error {
		attempt++
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return backoff.Permanent(s.classify("batch_write", err))
		}
		if len(out.UnprocessedItems[s.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		s.logger.Debug("Retrying unprocessed batch items",
			zap.Int("attempt", attempt),
			zap.Int("unprocessed", len(pending[s.tableName])))
		return errUnprocessed
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)); err != nil {
		if errors.Is(err, errUnprocessed) {
			s.logger.Warn("Batch items left unprocessed",
				zap.Int("attempts", attempt),
				zap.Int("unprocessed", len(pending[s.tableName])))
			return pkgerrors.NewTransientStoreError("batch_write", err).
				WithDetail("unprocessed", len(pending[s.tableName]))
		}
		if pkgerrors.IsAppError(err) {
			return err
		}
		return pkgerrors.NewTransientStoreError("batch_write", err)
	}
	return nil
}

var errUnprocessed = errors.New("batch items left unprocessed")

func (s *Store) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	b.MaxInterval = s.maxInterval
	b.MaxElapsedTime = 0
	return b
}

// classify maps driver errors onto the store contract: failed conditions
// become ports.ErrConditionFailed, anything else is a transient store error.
func (s *Store) classify(op string, err error) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == reasonConditionalCheckFailed {
				return fmt.Errorf("operation %d: %w", i, ports.ErrConditionFailed)
			}
		}
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ports.ErrConditionFailed
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn("DynamoDB request failed",
			zap.String("operation", op),
			zap.String("code", apiErr.ErrorCode()),
			zap.String("fault", apiErr.ErrorFault().String()),
			zap.Error(err))
		if apiErr.ErrorCode() == "ValidationException" {
			return pkgerrors.NewInternalError(fmt.Sprintf("store rejected %s request", op)).WithCause(err)
		}
	}
	return pkgerrors.NewTransientStoreError(op, err)
}

func conditionExpression(cond *ports.Condition) (*expression.Expression, error) {
	if cond == nil {
		return nil, nil
	}
	var c expression.ConditionBuilder
	switch cond.Type {
	case ports.ConditionMustNotExist:
		c = expression.AttributeNotExists(expression.Name(attrPK))
	case ports.ConditionMustExist:
		c = expression.AttributeExists(expression.Name(attrPK))
	case ports.ConditionAttributeEquals:
		c = expression.Name(cond.Attribute).Equal(expression.Value(cond.Value))
	default:
		return nil, pkgerrors.NewValidationErrorf("unsupported condition type %d", cond.Type)
	}
	expr, err := expression.NewBuilder().WithCondition(c).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build condition expression").WithCause(err)
	}
	return &expr, nil
}

func marshalKey(key keyspace.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: string(key.Scope)},
		attrSK: &types.AttributeValueMemberS{Value: key.Sort},
	}
}

func marshalItem(item keyspace.Item) (map[string]types.AttributeValue, error) {
	attrs := item.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	av, err := attributevalue.MarshalMap(attrs)
	if err != nil {
		return nil, pkgerrors.NewValidationErrorf("item %s cannot be stored: %v", item.Key, err)
	}
	for k, v := range marshalKey(item.Key) {
		av[k] = v
	}
	return av, nil
}

func (s *Store) unmarshalItem(scope keyspace.Scope, raw map[string]types.AttributeValue) (keyspace.Item, error) {
	var attrs map[string]any
	if err := attributevalue.UnmarshalMap(raw, &attrs); err != nil {
		return keyspace.Item{}, pkgerrors.NewInternalError("failed to decode stored item").WithCause(err)
	}
	sk, _ := attrs[attrSK].(string)
	delete(attrs, attrPK)
	delete(attrs, attrSK)
	return keyspace.Item{Key: keyspace.Key{Scope: scope, Sort: sk}, Attributes: attrs}, nil
}

// cursor is the JSON body of an opaque pagination cursor. The partition key
// is not part of it, so a cursor cannot move a scan to another scope.
type cursor struct {
	SK string `json:"sk"`
}

func encodeCursor(lastKey map[string]types.AttributeValue) (string, error) {
	sk, ok := lastKey[attrSK].(*types.AttributeValueMemberS)
	if !ok {
		return "", pkgerrors.NewInternalError("last evaluated key has no sort key")
	}
	raw, err := json.Marshal(cursor{SK: sk.Value})
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to encode cursor").WithCause(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(scope keyspace.Scope, raw string) (map[string]types.AttributeValue, error) {
	if raw == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid pagination cursor")
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil || c.SK == "" {
		return nil, pkgerrors.NewValidationError("invalid pagination cursor")
	}
	return marshalKey(keyspace.Key{Scope: scope, Sort: c.SK}), nil
}
