package ports

import (
	"context"

	"cms-backend/domain/events"
	"cms-backend/domain/keyspace"
)

// Permission is an action a principal may take within a scope.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAudit Permission = "audit"
)

// Authorizer rejects callers that may not act on a scope. It is consulted
// before any projector or graph call.
type Authorizer interface {
	Authorize(ctx context.Context, scope keyspace.Scope, perm Permission) error
}

// EventPublisher defines the interface for publishing domain events.
// Publishers are informed after a mutation succeeded; their failures never
// undo the mutation.
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// TenantSettings is the part of a tenant's site configuration the core reads.
type TenantSettings struct {
	NavigationLinks []string
	FooterLinks     []string
	// ReservedPrefixes are path prefixes owned by the platform, e.g. "/api".
	ReservedPrefixes []string
}

// TenantSettingsReader supplies per-tenant site configuration.
type TenantSettingsReader interface {
	Settings(ctx context.Context, scope keyspace.Scope) (TenantSettings, error)
}
