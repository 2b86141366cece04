// Package collector enumerates every record under a scope and sort-key
// prefix, following the store's continuation cursors page by page.
package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// DefaultMaxPages bounds a single collection.
const DefaultMaxPages = 1000

var (
	// ErrPageLimitExceeded is returned when a scan needs more pages than allowed.
	ErrPageLimitExceeded = errors.New("page limit exceeded")

	// ErrCursorLoop is returned when the store hands back a cursor it has
	// already returned during the same scan.
	ErrCursorLoop = errors.New("store returned a repeated cursor")
)

// PageObserver is told how many pages a finished scan read.
type PageObserver func(prefix string, pages int, err error)

// Collector reads whole prefix ranges from a store.
type Collector struct {
	store    ports.KeyValueStore
	logger   *zap.Logger
	tracer   trace.Tracer
	maxPages int
	pageSize int
	observe  PageObserver
}

// Option configures a Collector.
type Option func(*Collector)

// WithMaxPages overrides DefaultMaxPages. Non-positive values are ignored.
func WithMaxPages(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithPageSize sets the limit sent with every page request.
func WithPageSize(n int) Option {
	return func(c *Collector) { c.pageSize = n }
}

// WithPageObserver registers a callback invoked once per scan.
func WithPageObserver(fn PageObserver) Option {
	return func(c *Collector) { c.observe = fn }
}

// New creates a collector over store.
func New(store ports.KeyValueStore, logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer("cms-backend/collector"),
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxPages returns the page cap in effect.
func (c *Collector) MaxPages() int { return c.maxPages }

// Page reads one page starting at cursor. It is the single step Scan repeats.
func (c *Collector) Page(ctx context.Context, scope keyspace.Scope, prefix, cursor string, projection []string) (ports.Page, error) {
	page, err := c.store.QueryPrefix(ctx, ports.QueryInput{
		Scope:      scope,
		Prefix:     prefix,
		Cursor:     cursor,
		Limit:      c.pageSize,
		Projection: projection,
	})
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return ports.Page{}, err
		}
		return ports.Page{}, pkgerrors.NewTransientStoreError("query", err)
	}
	return page, nil
}

// Scan returns a lazy sequence over every item under (scope, prefix), in key
// order. On failure the sequence yields a single error and stops; callers
// must treat everything received before it as incomplete. Each range over
// the sequence starts a fresh scan.
func (c *Collector) Scan(ctx context.Context, scope keyspace.Scope, prefix string, projection ...string) iter.Seq2[keyspace.Item, error] {
	return func(yield func(keyspace.Item, error) bool) {
		ctx, span := c.tracer.Start(ctx, "collector.Scan", trace.WithAttributes(
			attribute.String("scope", string(scope)),
			attribute.String("prefix", prefix),
		))
		defer span.End()

		pages, err := c.scan(ctx, scope, prefix, projection, yield)
		span.SetAttributes(attribute.Int("pages", pages))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("Scan aborted",
				zap.String("scope", string(scope)),
				zap.String("prefix", prefix),
				zap.Int("pages", pages),
				zap.Error(err))
			yield(keyspace.Item{}, err)
		}
		if c.observe != nil {
			c.observe(prefix, pages, err)
		}
	}
}

func (c *Collector) scan(ctx context.Context, scope keyspace.Scope, prefix string, projection []string, yield func(keyspace.Item, error) bool) (int, error) {
	seen := make(map[string]struct{})
	cursor := ""
	for pages := 0; ; {
		if pages == c.maxPages {
			return pages, pkgerrors.NewInternalError(
				fmt.Sprintf("scan of %s under %s exceeded %d pages", prefix, scope, c.maxPages)).
				WithCause(ErrPageLimitExceeded)
		}
		if err := ctx.Err(); err != nil {
			return pages, pkgerrors.NewTransientStoreError("query", err)
		}

		page, err := c.Page(ctx, scope, prefix, cursor, projection)
		pages++
		if err != nil {
			return pages, err
		}
		for _, item := range page.Items {
			if !yield(item, nil) {
				return pages, nil
			}
		}
		if page.NextCursor == "" {
			return pages, nil
		}
		if _, dup := seen[page.NextCursor]; dup {
			return pages, pkgerrors.NewInternalError(
				fmt.Sprintf("scan of %s under %s did not advance", prefix, scope)).
				WithCause(ErrCursorLoop)
		}
		seen[page.NextCursor] = struct{}{}
		cursor = page.NextCursor
	}
}

// Collect drains Scan into a slice. It returns nil and the error if any page
// fails; partial results are never returned.
func (c *Collector) Collect(ctx context.Context, scope keyspace.Scope, prefix string, projection ...string) ([]keyspace.Item, error) {
	var items []keyspace.Item
	for item, err := range c.Scan(ctx, scope, prefix, projection...) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
