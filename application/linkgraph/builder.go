// Package linkgraph derives the internal link graph of a tenant's site from
// the block trees of its content nodes, and reports pages nothing links to.
package linkgraph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cms-backend/application/listing"
	"cms-backend/application/ports"
	"cms-backend/domain/blocks"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/core/valueobjects"
	"cms-backend/domain/keyspace"
)

// ContactPath is always treated as linked from every page.
const ContactPath = "/contact"

// NodeLoader returns the LATEST record of every content node in a scope.
type NodeLoader interface {
	LatestContent(ctx context.Context, scope keyspace.Scope) ([]entities.ContentNode, error)
}

// Observer is told about every finished build.
type Observer func(scope keyspace.Scope, result Result, elapsed time.Duration)

// Builder computes link graphs. It holds no state between builds.
type Builder struct {
	loader       NodeLoader
	settings     ports.TenantSettingsReader
	logger       *zap.Logger
	tracer       trace.Tracer
	defaultLimit int
	observe      Observer
}

// Option configures a Builder.
type Option func(*Builder)

// WithDefaultListingLimit sets the limit used by listing blocks that do not
// configure one.
func WithDefaultListingLimit(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.defaultLimit = n
		}
	}
}

// WithObserver registers a callback invoked after each successful build.
func WithObserver(fn Observer) Option {
	return func(b *Builder) { b.observe = fn }
}

// NewBuilder creates a builder.
func NewBuilder(loader NodeLoader, settings ports.TenantSettingsReader, logger *zap.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{
		loader:       loader,
		settings:     settings,
		logger:       logger,
		tracer:       otel.Tracer("cms-backend/linkgraph"),
		defaultLimit: listing.DefaultLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the graph for one scope. Store failures abort the build; a
// node whose block tree cannot be read is reported in Result.Failures and
// contributes no edges.
func (b *Builder) Build(ctx context.Context, scope keyspace.Scope) (Result, error) {
	started := time.Now()
	ctx, span := b.tracer.Start(ctx, "linkgraph.Build", trace.WithAttributes(
		attribute.String("scope", string(scope)),
	))
	defer span.End()

	result, err := b.build(ctx, scope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("nodes", len(result.Nodes)),
		attribute.Int("edges", len(result.Edges)),
		attribute.Int("orphans", len(result.Orphans)),
		attribute.Int("failures", len(result.Failures)),
	)
	b.logger.Info("Link graph built",
		zap.String("scope", string(scope)),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("edges", len(result.Edges)),
		zap.Int("orphans", len(result.Orphans)),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("elapsed", time.Since(started)))
	if b.observe != nil {
		b.observe(scope, result, time.Since(started))
	}
	return result, nil
}

func (b *Builder) build(ctx context.Context, scope keyspace.Scope) (Result, error) {
	nodes, err := b.loader.LatestContent(ctx, scope)
	if err != nil {
		return Result{}, err
	}
	settings, err := b.settings.Settings(ctx, scope)
	if err != nil {
		return Result{}, err
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	slugs := make(map[string]string, len(nodes))
	incoming := make(map[string]int, len(nodes))
	outgoing := make(map[string]int, len(nodes))
	for _, n := range nodes {
		incoming[n.ID] = 0
		if n.Slug.IsZero() {
			continue
		}
		if owner, taken := slugs[n.Slug.String()]; taken {
			b.logger.Warn("Duplicate slug",
				zap.String("slug", n.Slug.String()),
				zap.String("kept", owner),
				zap.String("ignored", n.ID))
			continue
		}
		slugs[n.Slug.String()] = n.ID
	}

	published := listing.Published(nodes)

	for _, path := range implicitPaths(settings) {
		if id, ok := slugs[path]; ok {
			incoming[id]++
		}
	}

	var result Result
	for _, n := range nodes {
		if !n.IsTraversable() {
			continue
		}
		targets, err := b.traverse(n, slugs, published)
		if err != nil {
			b.logger.Warn("Skipping node with unreadable blocks",
				zap.String("scope", string(scope)),
				zap.String("nodeId", n.ID),
				zap.String("slug", n.Slug.String()),
				zap.Error(err))
			result.Failures = append(result.Failures, TraversalFailure{
				NodeID: n.ID,
				Slug:   n.Slug.String(),
				Reason: err.Error(),
			})
			continue
		}
		for _, target := range targets {
			result.Edges = append(result.Edges, Edge{
				ID:     EdgeID(n.ID, target),
				Source: n.ID,
				Target: target,
			})
			incoming[target]++
			outgoing[n.ID]++
		}
	}

	for _, n := range nodes {
		result.Nodes = append(result.Nodes, Node{
			ID:       n.ID,
			Title:    n.Title,
			Slug:     n.Slug.String(),
			Status:   string(n.Status),
			Incoming: incoming[n.ID],
			Outgoing: outgoing[n.ID],
		})
		if n.IsPublished() && incoming[n.ID] == 0 && !n.Slug.IsRoot() {
			result.Orphans = append(result.Orphans, Orphan{ID: n.ID, Title: n.Title, Slug: n.Slug.String()})
		}
	}

	result.sort()
	return result, nil
}

// traverse returns the sorted, de-duplicated targets of one node. Malformed
// data, including data that would panic a visitor, is reported as an error.
func (b *Builder) traverse(n entities.ContentNode, slugs map[string]string, published []listing.Entry) (targets []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			targets = nil
			err = fmt.Errorf("traversal panicked: %v", r)
		}
	}()

	tree, err := blocks.Parse(n.Blocks)
	if err != nil {
		return nil, err
	}
	x := newExtractor(n.ID, slugs, published, b.defaultLimit)
	if err := blocks.Walk(tree, x); err != nil {
		return nil, err
	}

	targets = make([]string, 0, len(x.targets))
	for id := range x.targets {
		targets = append(targets, id)
	}
	sort.Strings(targets)
	return targets, nil
}

// implicitPaths returns the normalized, distinct paths every site links to
// outside its content: the home page, the contact page, and the tenant's
// navigation and footer links.
func implicitPaths(settings ports.TenantSettings) []string {
	raw := []string{valueobjects.RootPath, ContactPath}
	raw = append(raw, settings.NavigationLinks...)
	raw = append(raw, settings.FooterLinks...)

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		p := valueobjects.NormalizePath(r)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
