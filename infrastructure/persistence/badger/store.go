// Package badger is an embedded ports.KeyValueStore on BadgerDB for local
// development against data that survives restarts.
package badger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	"cms-backend/infrastructure/persistence"
	pkgerrors "cms-backend/pkg/errors"
)

// DefaultPageSize is used when a query does not set a limit.
const DefaultPageSize = 100

// keySeparator splits the scope from the sort key. Neither may contain it.
const keySeparator = 0x00

// Config holds the BadgerDB settings.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM, for tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// PageSize is used when a query has no limit.
	PageSize int
}

// Store implements ports.KeyValueStore with one Badger key per record.
type Store struct {
	db       *badger.DB
	pageSize int
	logger   *zap.Logger
}

// Open opens (creating if needed) the database described by cfg.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapLogger{logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger.Info("Badger store opened", zap.String("path", cfg.Path), zap.Bool("inMemory", cfg.InMemory))
	return &Store{db: db, pageSize: pageSize, logger: logger}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error) {
	if err := ctx.Err(); err != nil {
		return keyspace.Item{}, pkgerrors.NewTransientStoreError("get", err)
	}
	var attrs map[string]any
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		attrs, err = read(txn, key)
		return err
	})
	if err != nil {
		return keyspace.Item{}, transient("get", err)
	}
	if attrs == nil {
		return keyspace.Item{}, pkgerrors.NewNotFoundError(key.Sort)
	}
	return keyspace.Item{Key: key, Attributes: attrs}, nil
}

func (s *Store) Put(ctx context.Context, item keyspace.Item) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("put", err)
	}
	return transient("put", s.db.Update(func(txn *badger.Txn) error {
		return write(txn, item)
	}))
}

func (s *Store) Delete(ctx context.Context, key keyspace.Key) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("delete", err)
	}
	return transient("delete", s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(encodeKey(key))
	}))
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

	prefix := encodeKey(keyspace.Key{Scope: input.Scope, Sort: input.Prefix})
	start := prefix
	if after != "" {
		start = encodeKey(keyspace.Key{Scope: input.Scope, Sort: after})
	}

	var page ports.Page
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if after != "" && bytes.Equal(item.Key(), start) {
				continue
			}
			if len(page.Items) == limit {
				page.NextCursor = encodeCursor(page.Items[len(page.Items)-1].Key.Sort)
				return nil
			}
			key, err := decodeKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			var attrs map[string]any
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &attrs)
			}); err != nil {
				return err
			}
			page.Items = append(page.Items, keyspace.Item{Key: key, Attributes: persistence.Project(attrs, input.Projection)})
		}
		return nil
	})
	if err != nil {
		return ports.Page{}, transient("query", err)
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

	err := s.db.Update(func(txn *badger.Txn) error {
		for i, op := range ops {
			existing, err := read(txn, op.TargetKey())
			if err != nil {
				return err
			}
			if !persistence.ConditionHolds(op.Condition, existing) {
				return fmt.Errorf("operation %d on %s: %w", i, op.TargetKey(), ports.ErrConditionFailed)
			}
		}
		for _, op := range ops {
			if err := apply(txn, op); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ports.ErrConditionFailed) {
		s.logger.Debug("Transaction condition failed", zap.Error(err))
		return err
	}
	return transient("transact_write", err)
}

func (s *Store) BatchWrite(ctx context.Context, ops []ports.WriteOp) error {
	if err := ports.ValidateBatch(ops); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTransientStoreError("batch_write", err)
	}
	return transient("batch_write", s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			if err := apply(txn, op); err != nil {
				return err
			}
		}
		return nil
	}))
}

func apply(txn *badger.Txn, op ports.WriteOp) error {
	switch op.Type {
	case ports.OpPut:
		return write(txn, op.Item)
	case ports.OpDelete:
		return txn.Delete(encodeKey(op.Key))
	}
	return nil
}

// read returns nil attributes when nothing is stored at key.
func read(txn *badger.Txn, key keyspace.Key) (map[string]any, error) {
	item, err := txn.Get(encodeKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &attrs)
	})
	if attrs == nil && err == nil {
		attrs = map[string]any{}
	}
	return attrs, err
}

func write(txn *badger.Txn, item keyspace.Item) error {
	attrs := item.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	val, err := json.Marshal(attrs)
	if err != nil {
		return pkgerrors.NewValidationErrorf("item %s cannot be stored: %v", item.Key, err)
	}
	return txn.Set(encodeKey(item.Key), val)
}

// transient passes nil and AppErrors through and classifies the rest.
func transient(op string, err error) error {
	if err == nil || pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewTransientStoreError(op, err)
}

func encodeKey(key keyspace.Key) []byte {
	buf := make([]byte, 0, len(key.Scope)+1+len(key.Sort))
	buf = append(buf, key.Scope...)
	buf = append(buf, keySeparator)
	return append(buf, key.Sort...)
}

func decodeKey(raw []byte) (keyspace.Key, error) {
	i := bytes.IndexByte(raw, keySeparator)
	if i < 0 {
		return keyspace.Key{}, fmt.Errorf("malformed badger key %q", raw)
	}
	return keyspace.Key{Scope: keyspace.Scope(raw[:i]), Sort: string(raw[i+1:])}, nil
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

// zapLogger adapts zap to badger's logger interface.
type zapLogger struct {
	*zap.SugaredLogger
}

func (l zapLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
