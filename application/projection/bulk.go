package projection

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// Change is one entity transition in a bulk write.
type Change struct {
	Previous *keyspace.Item
	Current  keyspace.Item
}

// BatchFailure reports a batch that could not be written.
type BatchFailure struct {
	Batch     int      `json:"batch"`
	EntityIDs []string `json:"entityIds"`
	Err       error    `json:"-"`
	Message   string   `json:"error"`
}

// BulkResult summarises a bulk write. Batches are independent: a failed batch
// leaves earlier ones applied, and re-running the affected changes repairs it.
type BulkResult struct {
	Batches   int            `json:"batches"`
	Succeeded int            `json:"succeeded"`
	Failed    []BatchFailure `json:"failed,omitempty"`
}

// HasFailures reports whether any batch failed.
func (r BulkResult) HasFailures() bool { return len(r.Failed) > 0 }

// FailedEntityIDs lists the ids of every entity in a failed batch.
func (r BulkResult) FailedEntityIDs() []string {
	var ids []string
	for _, f := range r.Failed {
		ids = append(ids, f.EntityIDs...)
	}
	return ids
}

type unit struct {
	entityID string
	ops      []ports.WriteOp
}

type batch struct {
	ops       []ports.WriteOp
	entityIDs []string
}

// BulkSave writes many entities and their derived records in store-sized
// batches. An entity's own writes share a batch whenever they fit in one.
// Kinds with unique keys or shared records are rejected because they need
// the read-before-write path of Save.
func (p *Projector) BulkSave(ctx context.Context, scope keyspace.Scope, changes []Change) (BulkResult, error) {
	units := make([]unit, 0, len(changes))
	seen := make(map[keyspace.Key]struct{}, len(changes))
	for _, ch := range changes {
		kind, err := p.validate(scope, ch.Previous, ch.Current)
		if err != nil {
			return BulkResult{}, err
		}
		if p.registry.HasUnique(kind) || p.registry.HasShared(kind) {
			return BulkResult{}, pkgerrors.NewValidationErrorf("%s entities cannot be written in bulk", kind)
		}
		if _, dup := seen[ch.Current.Key]; dup {
			return BulkResult{}, pkgerrors.NewValidationErrorf("entity %s appears twice", ch.Current.Key.Sort)
		}
		seen[ch.Current.Key] = struct{}{}

		current := ch.Current
		d, err := p.compute(scope, kind, ch.Previous, &current)
		if err != nil {
			return BulkResult{}, err
		}
		ops := append([]ports.WriteOp{ports.PutOp(current, nil)}, d.ops()...)
		units = append(units, unit{entityID: current.Key.EntityID(), ops: ops})
	}

	ctx, span := p.tracer.Start(ctx, "projection.BulkSave", trace.WithAttributes(
		attribute.String("scope", string(scope)),
		attribute.Int("entities", len(units)),
	))
	defer span.End()

	batches := pack(units, ports.MaxBatchWriteItems)
	result := BulkResult{Batches: len(batches)}
	for i, b := range batches {
		if err := p.store.BatchWrite(ctx, b.ops); err != nil {
			p.logger.Warn("Bulk batch failed",
				zap.String("scope", string(scope)),
				zap.Int("batch", i),
				zap.Strings("entityIds", b.entityIDs),
				zap.Error(err))
			err = storeError("batch_write", err)
			result.Failed = append(result.Failed, BatchFailure{
				Batch:     i,
				EntityIDs: b.entityIDs,
				Err:       err,
				Message:   err.Error(),
			})
			continue
		}
		result.Succeeded++
	}
	span.SetAttributes(attribute.Int("batches", result.Batches), attribute.Int("failed", len(result.Failed)))

	p.logger.Info("Bulk save finished",
		zap.String("scope", string(scope)),
		zap.Int("entities", len(units)),
		zap.Int("batches", result.Batches),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// pack groups units into batches of at most size operations. A unit that
// does not fit in the current batch starts a new one; a unit larger than
// size is split across consecutive batches of its own.
func pack(units []unit, size int) []batch {
	var out []batch
	var cur batch
	flush := func() {
		if len(cur.ops) > 0 {
			out = append(out, cur)
			cur = batch{}
		}
	}

	for _, u := range units {
		if len(u.ops) > size {
			flush()
			for _, chunk := range ports.Chunk(u.ops, size) {
				out = append(out, batch{ops: chunk, entityIDs: []string{u.entityID}})
			}
			continue
		}
		if len(cur.ops)+len(u.ops) > size {
			flush()
		}
		cur.ops = append(cur.ops, u.ops...)
		cur.entityIDs = append(cur.entityIDs, u.entityID)
	}
	flush()
	return out
}
