package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// CircuitBreakerConfig holds configuration for the store circuit breaker
type CircuitBreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests calls were seen in the current interval.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns a default configuration for the breaker
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      10,
	}
}

// CircuitBreakerStore wraps a store and stops calling it while it keeps
// failing. Only TRANSIENT_STORE errors count as failures: a missing item or a
// failed condition is a healthy answer.
type CircuitBreakerStore struct {
	next ports.KeyValueStore
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreakerStore decorates next with a circuit breaker.
func NewCircuitBreakerStore(next ports.KeyValueStore, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsTransient(err)
		},
	})
	return &CircuitBreakerStore{next: next, cb: cb}
}

var _ ports.KeyValueStore = (*CircuitBreakerStore)(nil)

// State reports the breaker state, e.g. for readiness checks.
func (s *CircuitBreakerStore) State() gobreaker.State {
	return s.cb.State()
}

// Ready fails while the breaker is open.
func (s *CircuitBreakerStore) Ready(context.Context) error {
	if s.cb.State() == gobreaker.StateOpen {
		return pkgerrors.NewTransientStoreError("ready", gobreaker.ErrOpenState)
	}
	return nil
}

func (s *CircuitBreakerStore) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	out, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.NewTransientStoreError(op, err)
	}
	return out, err
}

func (s *CircuitBreakerStore) Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error) {
	out, err := s.execute("get", func() (interface{}, error) {
		return s.next.Get(ctx, key)
	})
	if err != nil {
		return keyspace.Item{}, err
	}
	return out.(keyspace.Item), nil
}

func (s *CircuitBreakerStore) Put(ctx context.Context, item keyspace.Item) error {
	_, err := s.execute("put", func() (interface{}, error) {
		return nil, s.next.Put(ctx, item)
	})
	return err
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, key keyspace.Key) error {
	_, err := s.execute("delete", func() (interface{}, error) {
		return nil, s.next.Delete(ctx, key)
	})
	return err
}

func (s *CircuitBreakerStore) QueryPrefix(ctx context.Context, input ports.QueryInput) (ports.Page, error) {
	out, err := s.execute("query", func() (interface{}, error) {
		return s.next.QueryPrefix(ctx, input)
	})
	if err != nil {
		return ports.Page{}, err
	}
	return out.(ports.Page), nil
}

func (s *CircuitBreakerStore) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	_, err := s.execute("transact_write", func() (interface{}, error) {
		return nil, s.next.TransactWrite(ctx, ops)
	})
	return err
}

func (s *CircuitBreakerStore) BatchWrite(ctx context.Context, ops []ports.WriteOp) error {
	_, err := s.execute("batch_write", func() (interface{}, error) {
		return nil, s.next.BatchWrite(ctx, ops)
	})
	return err
}
