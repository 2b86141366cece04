// Package memory is an in-process ports.KeyValueStore. It backs local
// development and tests, and honours the same pagination, batch and
// transaction contracts as the production driver.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	"cms-backend/infrastructure/persistence"
	pkgerrors "cms-backend/pkg/errors"
)

// DefaultPageSize is used when a query does not set a limit.
const DefaultPageSize = 100

// Store keeps items in a map keyed by scope and sort key.
type Store struct {
	mu       sync.RWMutex
	items    map[keyspace.Scope]map[string]map[string]any
	pageSize int
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the page size used when a query has no limit.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		items:    make(map[keyspace.Scope]map[string]map[string]any),
		pageSize: DefaultPageSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error) {
	if err := ctx.Err(); err != nil {
		return keyspace.Item{}, pkgerrors.NewTransientStoreError("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.lookup(key)
	if !ok {
		return keyspace.Item{}, pkgerrors.NewNotFoundError(key.Sort)
	}
	return keyspace.Item{Key: key, Attributes: keyspace.CloneAttributes(attrs)}, nil
}

func (s *Store) Put(ctx context.Context, item keyspace.Item) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("put", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(item)
	return nil
}

func (s *Store) Delete(ctx context.Context, key keyspace.Key) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delete(key)
	return nil
}

func (s *Store) QueryPrefix(ctx context.Context, input ports.QueryInput) (ports.Page, error) {
	if err := ctx.Err(); err != nil {
		return ports.Page{}, pkgerrors.NewTransientStoreError("query", err)
	}
	after, err := decodeCursor(input.Cursor)
	if err != nil {
		return ports.Page{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	partition := s.items[input.Scope]
	keys := make([]string, 0, len(partition))
	for k := range partition {
		keys = append(keys, k)
	}
	matches := persistence.SortedMatches(keys, input.Prefix, after)

	var page ports.Page
	for i, sk := range matches {
		if i == limit {
			page.NextCursor = encodeCursor(page.Items[len(page.Items)-1].Key.Sort)
			break
		}
		attrs := keyspace.CloneAttributes(partition[sk])
		page.Items = append(page.Items, keyspace.Item{
			Key:        keyspace.Key{Scope: input.Scope, Sort: sk},
			Attributes: persistence.Project(attrs, input.Projection),
		})
	}
	return page, nil
}

func (s *Store) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	if _, err := ports.ValidateTransaction(ops); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("transact_write", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, op := range ops {
		existing, _ := s.lookup(op.TargetKey())
		if !persistence.ConditionHolds(op.Condition, existing) {
			s.logger.Debug("Transaction condition failed",
				zap.Int("index", i),
				zap.String("key", op.TargetKey().String()))
			return fmt.Errorf("operation %d on %s: %w", i, op.TargetKey(), ports.ErrConditionFailed)
		}
	}
	for _, op := range ops {
		s.apply(op)
	}
	return nil
}

func (s *Store) BatchWrite(ctx context.Context, ops []ports.WriteOp) error {
	if err := ports.ValidateBatch(ops); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("batch_write", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		s.apply(op)
	}
	return nil
}

// Len returns the number of items stored under scope.
func (s *Store) Len(scope keyspace.Scope) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items[scope])
}

func (s *Store) apply(op ports.WriteOp) {
	switch op.Type {
	case ports.OpPut:
		s.put(op.Item)
	case ports.OpDelete:
		s.delete(op.Key)
	}
}

func (s *Store) lookup(key keyspace.Key) (map[string]any, bool) {
	attrs, ok := s.items[key.Scope][key.Sort]
	return attrs, ok
}

func (s *Store) put(item keyspace.Item) {
	partition, ok := s.items[item.Key.Scope]
	if !ok {
		partition = make(map[string]map[string]any)
		s.items[item.Key.Scope] = partition
	}
	attrs := keyspace.CloneAttributes(item.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	partition[item.Key.Sort] = attrs
}

func (s *Store) delete(key keyspace.Key) {
	if partition, ok := s.items[key.Scope]; ok {
		delete(partition, key.Sort)
	}
}

func encodeCursor(sortKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sortKey))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", pkgerrors.NewValidationError("invalid pagination cursor")
	}
	return string(raw), nil
}
