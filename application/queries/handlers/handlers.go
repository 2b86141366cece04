package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"cms-backend/application/linkgraph"
	"cms-backend/application/listing"
	"cms-backend/application/ports"
	"cms-backend/application/projection"
	"cms-backend/application/queries"
	"cms-backend/application/queries/bus"
	"cms-backend/application/services"
	"cms-backend/domain/keyspace"
)

// AuditReader lists audit entries.
type AuditReader interface {
	Entries(ctx context.Context, scope keyspace.Scope) ([]services.AuditEntry, error)
}

// Dependencies are shared by every query handler.
type Dependencies struct {
	Authorizer   ports.Authorizer
	Projector    *projection.Projector
	Graph        *linkgraph.Builder
	Content      linkgraph.NodeLoader
	Audit        AuditReader
	DefaultLimit int
	Logger       *zap.Logger
}

// QueryHandler answers every read-side query.
type QueryHandler struct {
	deps Dependencies
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(deps Dependencies) *QueryHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.DefaultLimit <= 0 {
		deps.DefaultLimit = listing.DefaultLimit
	}
	return &QueryHandler{deps: deps}
}

// Register wires every query to the handler.
func Register(b *bus.QueryBus, deps Dependencies) error {
	h := NewQueryHandler(deps)
	return errors.Join(
		b.Register(queries.GetLinkGraphQuery{}, bus.Typed(h.LinkGraph)),
		b.Register(queries.ListCategoryProductsQuery{}, bus.Typed(h.CategoryProducts)),
		b.Register(queries.FindCouponByCodeQuery{}, bus.Typed(h.CouponByCode)),
		b.Register(queries.FindFormBySlugQuery{}, bus.Typed(h.FormBySlug)),
		b.Register(queries.LookupMediaQuery{}, bus.Typed(h.Media)),
		b.Register(queries.ResolveListingQuery{}, bus.Typed(h.Listing)),
		b.Register(queries.ListAuditLogQuery{}, bus.Typed(h.AuditLog)),
	)
}

func (h *QueryHandler) authorize(ctx context.Context, tenantID string, perm ports.Permission) (keyspace.Scope, error) {
	scope, err := keyspace.Tenant(tenantID)
	if err != nil {
		return "", err
	}
	if err := h.deps.Authorizer.Authorize(ctx, scope, perm); err != nil {
		return "", err
	}
	return scope, nil
}

// LinkGraph handles GetLinkGraphQuery
func (h *QueryHandler) LinkGraph(ctx context.Context, q queries.GetLinkGraphQuery) (linkgraph.Result, error) {
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionRead)
	if err != nil {
		return linkgraph.Result{}, err
	}
	return h.deps.Graph.Build(ctx, scope)
}

// CategoryProducts handles ListCategoryProductsQuery
func (h *QueryHandler) CategoryProducts(ctx context.Context, q queries.ListCategoryProductsQuery) ([]projection.ProductCard, error) {
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionRead)
	if err != nil {
		return nil, err
	}
	return h.deps.Projector.CategoryProducts(ctx, scope, q.CategoryID)
}

// CouponByCode handles FindCouponByCodeQuery
func (h *QueryHandler) CouponByCode(ctx context.Context, q queries.FindCouponByCodeQuery) (queries.CouponLookup, error) {
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionRead)
	if err != nil {
		return queries.CouponLookup{}, err
	}
	id, err := h.deps.Projector.LookupCouponByCode(ctx, scope, q.Code)
	if err != nil {
		return queries.CouponLookup{}, err
	}
	return queries.CouponLookup{Code: keyspace.NormalizeCouponCode(q.Code), CouponID: id}, nil
}

// FormBySlug handles FindFormBySlugQuery
func (h *QueryHandler) FormBySlug(ctx context.Context, q queries.FindFormBySlugQuery) (queries.FormLookup, error) {
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionRead)
	if err != nil {
		return queries.FormLookup{}, err
	}
	id, err := h.deps.Projector.LookupFormBySlug(ctx, scope, q.Slug)
	if err != nil {
		return queries.FormLookup{}, err
	}
	return queries.FormLookup{Slug: keyspace.NormalizeFormSlug(q.Slug), FormID: id}, nil
}

// Media handles LookupMediaQuery
func (h *QueryHandler) Media(ctx context.Context, q queries.LookupMediaQuery) (projection.MediaMapping, error) {
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionRead)
	if err != nil {
		return projection.MediaMapping{}, err
	}
	return h.deps.Projector.LookupMedia(ctx, scope, q.URL)
}

// Listing handles ResolveListingQuery
func (h *QueryHandler) Listing(ctx context.Context, q queries.ResolveListingQuery) (queries.ListingResult, error) {
	limit, err := listing.ParseLimitWithDefault(q.Limit, h.deps.DefaultLimit)
	if err != nil {
		return queries.ListingResult{}, err
	}
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionRead)
	if err != nil {
		return queries.ListingResult{}, err
	}
	nodes, err := h.deps.Content.LatestContent(ctx, scope)
	if err != nil {
		return queries.ListingResult{}, err
	}
	return queries.ListingResult{
		FilterTag: q.FilterTag,
		Limit:     int(limit),
		Entries:   listing.Resolve(listing.Published(nodes), q.FilterTag, limit, q.Exclude),
	}, nil
}

// AuditLog handles ListAuditLogQuery
func (h *QueryHandler) AuditLog(ctx context.Context, q queries.ListAuditLogQuery) ([]services.AuditEntry, error) {
	scope, err := h.authorize(ctx, q.TenantID, ports.PermissionAudit)
	if err != nil {
		return nil, err
	}
	return h.deps.Audit.Entries(ctx, scope)
}
