package projection

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cms-backend/application/collector"
	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// Projector writes entities together with the derived records their indexers
// imply, and answers queries over those derived records.
type Projector struct {
	store     ports.KeyValueStore
	collector *collector.Collector
	registry  *Registry
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewProjector creates a projector.
func NewProjector(store ports.KeyValueStore, coll *collector.Collector, registry *Registry, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Projector{
		store:     store,
		collector: coll,
		registry:  registry,
		logger:    logger,
		tracer:    otel.Tracer("cms-backend/projection"),
	}
}

// Registry returns the indexer registry in use.
func (p *Projector) Registry() *Registry { return p.registry }

// diff is the minimal set of derived-record writes moving from one entity
// state to another.
type diff struct {
	puts    []derived
	deletes []derived
}

type derived struct {
	item   keyspace.Item
	unique bool
	shared SharedIndexer
}

func (d diff) empty() bool { return len(d.puts) == 0 && len(d.deletes) == 0 }

// ops returns the diff as unconditioned writes: deletes first, then puts.
func (d diff) ops() []ports.WriteOp {
	ops := make([]ports.WriteOp, 0, len(d.puts)+len(d.deletes))
	for _, del := range d.deletes {
		ops = append(ops, ports.DeleteOp(del.item.Key, nil))
	}
	for _, put := range d.puts {
		ops = append(ops, ports.PutOp(put.item, nil))
	}
	return ops
}

// compute diffs the records implied by previous against those implied by
// current. Either side may be nil.
func (p *Projector) compute(scope keyspace.Scope, kind keyspace.Kind, previous, current *keyspace.Item) (diff, error) {
	var d diff
	for _, ix := range p.registry.For(kind) {
		shared, _ := ix.(SharedIndexer)
		before, err := desiredByKey(ix, scope, previous)
		if err != nil {
			return diff{}, err
		}
		after, err := desiredByKey(ix, scope, current)
		if err != nil {
			return diff{}, err
		}

		for key, item := range after {
			if old, ok := before[key]; ok && sameAttributes(old.Attributes, item.Attributes) {
				continue
			}
			d.puts = append(d.puts, derived{item: item, unique: ix.Unique(), shared: shared})
		}
		for key, item := range before {
			if _, ok := after[key]; !ok {
				d.deletes = append(d.deletes, derived{item: item, unique: ix.Unique(), shared: shared})
			}
		}
	}
	sortDerived(d.puts)
	sortDerived(d.deletes)
	return d, nil
}

// sameAttributes compares attribute maps after normalizing numbers and
// lists, so a record read back from a store that decodes every number as
// float64 equals the one an entity implies.
func sameAttributes(a, b map[string]any) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

func canonical(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = canonical(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonical(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case string, bool, nil:
		return t
	}
	if f, ok := Number(v); ok {
		return f
	}
	return v
}

func desiredByKey(ix Indexer, scope keyspace.Scope, entity *keyspace.Item) (map[keyspace.Key]keyspace.Item, error) {
	out := map[keyspace.Key]keyspace.Item{}
	if entity == nil {
		return out, nil
	}
	items, err := ix.Desired(scope, *entity)
	if err != nil {
		return nil, fmt.Errorf("indexer %s: %w", ix.Name(), err)
	}
	for _, it := range items {
		out[it.Key] = it
	}
	return out, nil
}

func sortDerived(list []derived) {
	sort.Slice(list, func(i, j int) bool { return list[i].item.Key.Sort < list[j].item.Key.Sort })
}

func (p *Projector) validate(scope keyspace.Scope, previous *keyspace.Item, current keyspace.Item) (keyspace.Kind, error) {
	if err := scope.Validate(); err != nil {
		return keyspace.KindUnknown, err
	}
	if current.Key.Scope != scope {
		return keyspace.KindUnknown, pkgerrors.NewValidationErrorf("entity %s is not in scope %s", current.Key, scope)
	}
	kind := current.Key.Kind()
	if kind == keyspace.KindUnknown {
		return kind, pkgerrors.NewValidationErrorf("entity key %q has no known kind", current.Key.Sort)
	}
	if previous != nil && previous.Key != current.Key {
		return kind, pkgerrors.NewValidationErrorf("previous state %s does not match entity %s", previous.Key, current.Key)
	}
	return kind, nil
}

// Save writes current and brings its derived records from the state implied
// by previous to the state implied by current. previous is the entity as it
// was stored before this change, or nil on create.
//
// For kinds with unique keys, every new key is checked first and a key owned
// by another entity fails the call with a Conflict before anything is
// written. The entity, the removal of stale keys and the creation of new keys
// then commit in one transaction. Other kinds write the entity first and the
// derived records in batches; repeating the call repairs a partial failure.
func (p *Projector) Save(ctx context.Context, scope keyspace.Scope, previous *keyspace.Item, current keyspace.Item) error {
	kind, err := p.validate(scope, previous, current)
	if err != nil {
		return err
	}
	ctx, span := p.tracer.Start(ctx, "projection.Save", trace.WithAttributes(
		attribute.String("scope", string(scope)),
		attribute.String("key", current.Key.Sort),
	))
	defer span.End()

	d, err := p.compute(scope, kind, previous, &current)
	if err != nil {
		return err
	}
	if d, err = p.resolveShared(ctx, scope, current.Key.EntityID(), d); err != nil {
		return err
	}

	if p.registry.HasUnique(kind) {
		return p.commitUnique(ctx, current.Key.EntityID(), []ports.WriteOp{ports.PutOp(current, nil)}, d)
	}

	if err := p.store.Put(ctx, current); err != nil {
		return storeError("put", err)
	}
	return p.writeBatches(ctx, d.ops())
}

// Reproject is Save without the entity write, for callers that persisted the
// entity themselves.
func (p *Projector) Reproject(ctx context.Context, scope keyspace.Scope, previous *keyspace.Item, current keyspace.Item) error {
	kind, err := p.validate(scope, previous, current)
	if err != nil {
		return err
	}
	d, err := p.compute(scope, kind, previous, &current)
	if err != nil {
		return err
	}
	if d.empty() {
		return nil
	}
	if d, err = p.resolveShared(ctx, scope, current.Key.EntityID(), d); err != nil {
		return err
	}
	if p.registry.HasUnique(kind) {
		return p.commitUnique(ctx, current.Key.EntityID(), nil, d)
	}
	return p.writeBatches(ctx, d.ops())
}

// Remove deletes current and every derived record computed from it.
func (p *Projector) Remove(ctx context.Context, scope keyspace.Scope, current keyspace.Item) error {
	kind, err := p.validate(scope, nil, current)
	if err != nil {
		return err
	}
	ctx, span := p.tracer.Start(ctx, "projection.Remove", trace.WithAttributes(
		attribute.String("scope", string(scope)),
		attribute.String("key", current.Key.Sort),
	))
	defer span.End()

	d, err := p.compute(scope, kind, &current, nil)
	if err != nil {
		return err
	}
	if d, err = p.resolveShared(ctx, scope, current.Key.EntityID(), d); err != nil {
		return err
	}

	if p.registry.HasUnique(kind) {
		return p.commitUnique(ctx, current.Key.EntityID(), []ports.WriteOp{ports.DeleteOp(current.Key, nil)}, d)
	}

	// Derived records go first so a retry still sees the entity.
	if err := p.writeBatches(ctx, d.ops()); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, current.Key); err != nil {
		return storeError("delete", err)
	}
	return nil
}

// commitUnique applies entityOps and d in a single transaction, guarding
// unique keys so that no key ever points at two entities.
func (p *Projector) commitUnique(ctx context.Context, ownerID string, entityOps []ports.WriteOp, d diff) error {
	ops := append([]ports.WriteOp(nil), entityOps...)

	for _, put := range d.puts {
		if !put.unique {
			ops = append(ops, ports.PutOp(put.item, nil))
			continue
		}
		cond, err := p.claimCondition(ctx, put.item.Key, ownerID)
		if err != nil {
			return err
		}
		ops = append(ops, ports.PutOp(put.item, cond))
	}

	for _, del := range d.deletes {
		if !del.unique {
			ops = append(ops, ports.DeleteOp(del.item.Key, nil))
			continue
		}
		owned, err := p.ownedBy(ctx, del.item.Key, ownerID)
		if err != nil {
			return err
		}
		if !owned {
			p.logger.Warn("Skipping release of key not owned by entity",
				zap.String("key", del.item.Key.String()),
				zap.String("ownerId", ownerID))
			continue
		}
		ops = append(ops, ports.DeleteOp(del.item.Key, ports.AttributeEquals(OwnerAttribute, ownerID)))
	}

	if len(ops) == 0 {
		return nil
	}
	if len(ops) > ports.MaxTransactItems {
		return pkgerrors.NewValidationErrorf("change needs %d writes, a transaction allows %d", len(ops), ports.MaxTransactItems)
	}

	if err := p.store.TransactWrite(ctx, ops); err != nil {
		if errors.Is(err, ports.ErrConditionFailed) {
			p.logger.Info("Unique key claimed concurrently", zap.String("ownerId", ownerID), zap.Error(err))
			return pkgerrors.NewConflictError("unique key is already in use").
				WithCode(pkgerrors.CodeUniqueKeyTaken).
				WithCause(err)
		}
		return storeError("transact_write", err)
	}
	return nil
}

// claimCondition checks a unique key before it is written. A key held by a
// different entity is a Conflict. A key already held by ownerID is rewritten
// only if it is still held by ownerID at commit; a free key must still be free.
func (p *Projector) claimCondition(ctx context.Context, key keyspace.Key, ownerID string) (*ports.Condition, error) {
	existing, err := p.store.Get(ctx, key)
	switch {
	case pkgerrors.IsNotFound(err):
		return ports.MustNotExist(), nil
	case err != nil:
		return nil, storeError("get", err)
	}
	holder := existing.String(OwnerAttribute)
	if holder != ownerID {
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("%s is already in use", key.Sort)).
			WithCode(pkgerrors.CodeUniqueKeyTaken).
			WithDetail("key", key.Sort)
	}
	return ports.AttributeEquals(OwnerAttribute, ownerID), nil
}

func (p *Projector) ownedBy(ctx context.Context, key keyspace.Key, ownerID string) (bool, error) {
	existing, found, err := p.lookup(ctx, key)
	if err != nil || !found {
		return false, err
	}
	return existing.String(OwnerAttribute) == ownerID, nil
}

// lookup reads key, reporting a missing item as found == false.
func (p *Projector) lookup(ctx context.Context, key keyspace.Key) (keyspace.Item, bool, error) {
	item, err := p.store.Get(ctx, key)
	switch {
	case pkgerrors.IsNotFound(err):
		return keyspace.Item{}, false, nil
	case err != nil:
		return keyspace.Item{}, false, storeError("get", err)
	}
	return item, true, nil
}

func (p *Projector) writeBatches(ctx context.Context, ops []ports.WriteOp) error {
	for i, chunk := range ports.Chunk(ops, ports.MaxBatchWriteItems) {
		if err := p.store.BatchWrite(ctx, chunk); err != nil {
			p.logger.Warn("Derived record batch failed",
				zap.Int("batch", i),
				zap.Int("size", len(chunk)),
				zap.Error(err))
			return storeError("batch_write", err)
		}
	}
	return nil
}

// storeError keeps classified errors and marks anything else transient.
func storeError(op string, err error) error {
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewTransientStoreError(op, err)
}
