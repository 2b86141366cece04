package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "cms-backend/pkg/errors"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// ErrHandlerNotFound is returned for a query type nothing was registered for.
var ErrHandlerNotFound = errors.New("query handler not found")

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers    map[reflect.Type]QueryHandler
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus(middlewares ...Middleware) *QueryBus {
	return &QueryBus{
		handlers:    make(map[reflect.Type]QueryHandler),
		middlewares: middlewares,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	for i := len(b.middlewares) - 1; i >= 0; i-- {
		handler = b.middlewares[i](handler)
	}
	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("query validation failed: %w", err)
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, query)
	}

	result, err := handler.Handle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query handler failed: %w", err)
	}
	return result, nil
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// Typed adapts a handler method for one concrete query type.
func Typed[Q Query, R any](fn func(ctx context.Context, query Q) (R, error)) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		typed, ok := query.(Q)
		if !ok {
			return nil, fmt.Errorf("unexpected query type %T", query)
		}
		return fn(ctx, typed)
	})
}

// Middleware wraps a query handler
type Middleware func(next QueryHandler) QueryHandler

// Observer is told the outcome of every query.
type Observer interface {
	ObserveQuery(name string, duration time.Duration, err error)
}

// MetricsMiddleware reports query outcomes to an observer
func MetricsMiddleware(observer Observer) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			started := time.Now()
			result, err := next.Handle(ctx, query)
			observer.ObserveQuery(reflect.TypeOf(query).Name(), time.Since(started), err)
			return result, err
		})
	}
}

// LoggingMiddleware logs answered queries at Debug, caller mistakes at Info
// and store or internal failures at Warn.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			queryType := reflect.TypeOf(query).Name()
			started := time.Now()

			result, err := next.Handle(ctx, query)
			if err != nil {
				log := logger.Info
				if pkgerrors.StatusOf(err) >= 500 {
					log = logger.Warn
				}
				log("Query failed",
					zap.String("type", queryType),
					zap.Duration("duration", time.Since(started)),
					zap.Error(err))
			} else {
				logger.Debug("Query answered",
					zap.String("type", queryType),
					zap.Duration("duration", time.Since(started)))
			}
			return result, err
		})
	}
}
