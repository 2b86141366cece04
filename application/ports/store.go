package ports

import (
	"context"
	"errors"
	"fmt"

	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

const (
	// MaxBatchWriteItems is the largest number of operations one BatchWrite
	// call accepts.
	MaxBatchWriteItems = 25

	// MaxTransactItems is the largest number of operations one TransactWrite
	// call accepts.
	MaxTransactItems = 100
)

// ErrConditionFailed is returned (wrapped) by TransactWrite when any
// operation's condition does not hold. Nothing is written in that case.
var ErrConditionFailed = errors.New("transaction condition failed")

// KeyValueStore is the only persistence primitive the core depends on: a
// partitioned table with exact lookup, prefix range scans in key order,
// fixed-size batch writes and single-scope atomic transactions.
//
// Implementations report infrastructure failures as TRANSIENT_STORE errors
// and missing records from Get as NOT_FOUND errors.
type KeyValueStore interface {
	// Get returns the item stored at key
	Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error)

	// Put overwrites the item at its key
	Put(ctx context.Context, item keyspace.Item) error

	// Delete removes the item at key; deleting a missing item is not an error
	Delete(ctx context.Context, key keyspace.Key) error

	// QueryPrefix returns one page of items whose sort key starts with the prefix
	QueryPrefix(ctx context.Context, input QueryInput) (Page, error)

	// TransactWrite applies every operation or none of them
	TransactWrite(ctx context.Context, ops []WriteOp) error

	// BatchWrite applies up to MaxBatchWriteItems puts and deletes without atomicity
	BatchWrite(ctx context.Context, ops []WriteOp) error
}

// QueryInput describes a prefix scan within one scope.
type QueryInput struct {
	Scope  keyspace.Scope
	Prefix string
	// Cursor continues a previous scan; empty starts from the beginning.
	Cursor string
	// Limit caps the page size; zero lets the store choose.
	Limit int
	// Projection restricts the returned attributes; empty returns all.
	Projection []string
}

// Page is one slice of a prefix scan. NextCursor is empty on the last page.
type Page struct {
	Items      []keyspace.Item
	NextCursor string
}

// OpType is the kind of a write operation.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
	OpConditionCheck
)

func (t OpType) String() string {
	switch t {
	case OpPut:
		return "PUT"
	case OpDelete:
		return "DELETE"
	case OpConditionCheck:
		return "CONDITION_CHECK"
	default:
		return fmt.Sprintf("OpType(%d)", int(t))
	}
}

// ConditionType selects the precondition evaluated against the stored item.
type ConditionType int

const (
	ConditionMustNotExist ConditionType = iota + 1
	ConditionMustExist
	ConditionAttributeEquals
)

// Condition is a precondition on the item currently stored at an operation's key.
type Condition struct {
	Type      ConditionType
	Attribute string
	Value     any
}

// MustNotExist holds when no item is stored at the key.
func MustNotExist() *Condition { return &Condition{Type: ConditionMustNotExist} }

// MustExist holds when an item is stored at the key.
func MustExist() *Condition { return &Condition{Type: ConditionMustExist} }

// AttributeEquals holds when the stored item exists and its attribute equals value.
func AttributeEquals(attribute string, value any) *Condition {
	return &Condition{Type: ConditionAttributeEquals, Attribute: attribute, Value: value}
}

// WriteOp is one operation of a batch or transaction. Put operations carry
// the full item; delete and condition-check operations only need Key.
type WriteOp struct {
	Type      OpType
	Item      keyspace.Item
	Key       keyspace.Key
	Condition *Condition
}

// PutOp builds a put of item with an optional condition.
func PutOp(item keyspace.Item, cond *Condition) WriteOp {
	return WriteOp{Type: OpPut, Item: item, Key: item.Key, Condition: cond}
}

// DeleteOp builds a delete of key with an optional condition.
func DeleteOp(key keyspace.Key, cond *Condition) WriteOp {
	return WriteOp{Type: OpDelete, Key: key, Condition: cond}
}

// CheckOp builds a condition check that writes nothing.
func CheckOp(key keyspace.Key, cond *Condition) WriteOp {
	return WriteOp{Type: OpConditionCheck, Key: key, Condition: cond}
}

// TargetKey returns the key the operation acts on.
func (op WriteOp) TargetKey() keyspace.Key {
	if op.Type == OpPut {
		return op.Item.Key
	}
	return op.Key
}

// ValidateTransaction checks the shape of a transaction and returns its scope.
func ValidateTransaction(ops []WriteOp) (keyspace.Scope, error) {
	if len(ops) == 0 {
		return "", pkgerrors.NewValidationError("transaction has no operations")
	}
	if len(ops) > MaxTransactItems {
		return "", pkgerrors.NewValidationErrorf("transaction has %d operations, limit is %d", len(ops), MaxTransactItems)
	}

	scope := ops[0].TargetKey().Scope
	seen := make(map[keyspace.Key]struct{}, len(ops))
	for _, op := range ops {
		key := op.TargetKey()
		if key.Scope != scope {
			return "", pkgerrors.NewValidationErrorf("transaction spans scopes %s and %s", scope, key.Scope)
		}
		if _, dup := seen[key]; dup {
			return "", pkgerrors.NewValidationErrorf("transaction touches %s more than once", key)
		}
		seen[key] = struct{}{}
		if op.Type == OpConditionCheck && op.Condition == nil {
			return "", pkgerrors.NewValidationErrorf("condition check on %s has no condition", key)
		}
	}
	return scope, nil
}

// ValidateBatch checks the shape of a batch write.
func ValidateBatch(ops []WriteOp) error {
	if len(ops) > MaxBatchWriteItems {
		return pkgerrors.NewValidationErrorf("batch has %d operations, limit is %d", len(ops), MaxBatchWriteItems)
	}
	seen := make(map[keyspace.Key]struct{}, len(ops))
	for _, op := range ops {
		if op.Type == OpConditionCheck || op.Condition != nil {
			return pkgerrors.NewValidationError("batch writes cannot carry conditions")
		}
		key := op.TargetKey()
		if _, dup := seen[key]; dup {
			return pkgerrors.NewValidationErrorf("batch touches %s more than once", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Chunk splits ops into consecutive groups of at most size operations.
func Chunk(ops []WriteOp, size int) [][]WriteOp {
	if size <= 0 {
		size = MaxBatchWriteItems
	}
	var chunks [][]WriteOp
	for start := 0; start < len(ops); start += size {
		end := start + size
		if end > len(ops) {
			end = len(ops)
		}
		chunks = append(chunks, ops[start:end])
	}
	return chunks
}
