package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/application/projection"
	"cms-backend/application/services"
	"cms-backend/domain/events"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// Auditor records completed mutations.
type Auditor interface {
	Record(ctx context.Context, scope keyspace.Scope, kind keyspace.Kind, entityID string, action events.Action, details map[string]any) (services.AuditEntry, error)
}

// Saved is the result of a save command: the record as stored.
type Saved struct {
	Kind   string         `json:"kind"`
	ID     string         `json:"id"`
	Record map[string]any `json:"record"`
}

// Dependencies are shared by every catalog handler.
type Dependencies struct {
	Authorizer ports.Authorizer
	Store      ports.KeyValueStore
	Projector  *projection.Projector
	Settings   ports.TenantSettingsReader
	Audit      Auditor
	Logger     *zap.Logger
	Now        func() time.Time
}

type base struct {
	deps Dependencies
}

func newBase(deps Dependencies) base {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return base{deps: deps}
}

// authorize resolves the tenant scope and checks the caller may act on it.
func (b base) authorize(ctx context.Context, tenantID string, perm ports.Permission) (keyspace.Scope, error) {
	scope, err := keyspace.Tenant(tenantID)
	if err != nil {
		return "", err
	}
	if err := b.deps.Authorizer.Authorize(ctx, scope, perm); err != nil {
		return "", err
	}
	return scope, nil
}

// previous loads the stored version of an entity, or nil when there is none.
func (b base) previous(ctx context.Context, key keyspace.Key) (*keyspace.Item, error) {
	item, err := b.deps.Store.Get(ctx, key)
	if pkgerrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// existing loads the stored version of an entity that must exist.
func (b base) existing(ctx context.Context, key keyspace.Key, resource string) (keyspace.Item, error) {
	item, err := b.deps.Store.Get(ctx, key)
	if pkgerrors.IsNotFound(err) {
		return keyspace.Item{}, pkgerrors.NewNotFoundError(resource).WithDetail("id", key.EntityID())
	}
	return item, err
}

func (b base) save(ctx context.Context, scope keyspace.Scope, current keyspace.Item, details map[string]any) (Saved, error) {
	prev, err := b.previous(ctx, current.Key)
	if err != nil {
		return Saved{}, err
	}
	if err := b.deps.Projector.Save(ctx, scope, prev, current); err != nil {
		return Saved{}, err
	}
	b.audit(ctx, scope, current.Key.Kind(), current.Key.EntityID(), events.ActionSaved, details)
	return Saved{
		Kind:   string(current.Key.Kind()),
		ID:     current.Key.EntityID(),
		Record: current.Attributes,
	}, nil
}

func (b base) remove(ctx context.Context, scope keyspace.Scope, key keyspace.Key, resource string) error {
	current, err := b.existing(ctx, key, resource)
	if err != nil {
		return err
	}
	if err := b.deps.Projector.Remove(ctx, scope, current); err != nil {
		return err
	}
	b.audit(ctx, scope, key.Kind(), key.EntityID(), events.ActionDeleted, nil)
	return nil
}

// audit records a mutation that already happened; its failure is logged and
// never reported to the caller.
func (b base) audit(ctx context.Context, scope keyspace.Scope, kind keyspace.Kind, id string, action events.Action, details map[string]any) {
	if b.deps.Audit == nil {
		return
	}
	if _, err := b.deps.Audit.Record(ctx, scope, kind, id, action, details); err != nil {
		b.deps.Logger.Warn("Audit entry not recorded",
			zap.String("scope", scope.String()),
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.Error(err))
	}
}
