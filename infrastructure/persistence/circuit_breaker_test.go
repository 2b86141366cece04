package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	"cms-backend/infrastructure/persistence"
	"cms-backend/infrastructure/persistence/memory"
	pkgerrors "cms-backend/pkg/errors"
)

// flakyStore fails every call with a transient error while down is set.
type flakyStore struct {
	ports.KeyValueStore
	down  bool
	calls int
}

func (f *flakyStore) Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error) {
	f.calls++
	if f.down {
		return keyspace.Item{}, pkgerrors.NewTransientStoreError("get", errors.New("unreachable"))
	}
	return f.KeyValueStore.Get(ctx, key)
}

func breakerConfig() persistence.CircuitBreakerConfig {
	cfg := persistence.DefaultCircuitBreakerConfig("store")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 1
	cfg.Timeout = time.Hour
	return cfg
}

func TestCircuitBreakerStore_TripsOnTransientFailures(t *testing.T) {
	flaky := &flakyStore{KeyValueStore: memory.NewStore(zap.NewNop()), down: true}
	store := persistence.NewCircuitBreakerStore(flaky, breakerConfig(), zap.NewNop())
	key := keyspace.Key{Scope: "TENANT#t1", Sort: "PRODUCT#p1"}

	for i := 0; i < 3; i++ {
		_, err := store.Get(context.Background(), key)
		assert.True(t, pkgerrors.IsTransient(err))
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())
	assert.True(t, pkgerrors.IsTransient(store.Ready(context.Background())))

	_, err := store.Get(context.Background(), key)
	assert.True(t, pkgerrors.IsTransient(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, flaky.calls)
}

func TestCircuitBreakerStore_IgnoresDomainOutcomes(t *testing.T) {
	inner := memory.NewStore(zap.NewNop())
	store := persistence.NewCircuitBreakerStore(inner, breakerConfig(), zap.NewNop())
	ctx := context.Background()
	key := keyspace.Key{Scope: "TENANT#t1", Sort: "COUPON_CODE#A"}

	require.NoError(t, store.Put(ctx, keyspace.NewItem(key, map[string]any{"couponId": "c1"})))
	for i := 0; i < 5; i++ {
		_, err := store.Get(ctx, keyspace.Key{Scope: "TENANT#t1", Sort: "PRODUCT#missing"})
		assert.True(t, pkgerrors.IsNotFound(err))

		err = store.TransactWrite(ctx, []ports.WriteOp{ports.PutOp(keyspace.NewItem(key, nil), ports.MustNotExist())})
		assert.ErrorIs(t, err, ports.ErrConditionFailed)
	}
	assert.Equal(t, gobreaker.StateClosed, store.State())
	assert.NoError(t, store.Ready(ctx))

	page, err := store.QueryPrefix(ctx, ports.QueryInput{Scope: "TENANT#t1", Prefix: "COUPON_CODE#"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
