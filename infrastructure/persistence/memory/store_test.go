package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

func tenant(t *testing.T, id string) keyspace.Scope {
	t.Helper()
	s, err := keyspace.Tenant(id)
	require.NoError(t, err)
	return s
}

func product(t *testing.T, scope keyspace.Scope, id string) keyspace.Item {
	t.Helper()
	key, err := keyspace.ProductKey(scope, id)
	require.NoError(t, err)
	return keyspace.NewItem(key, map[string]any{"id": id, "title": "Product " + id})
}

func TestStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	scope := tenant(t, "t1")
	item := product(t, scope, "p1")

	_, err := store.Get(ctx, item.Key)
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, store.Put(ctx, item))
	got, err := store.Get(ctx, item.Key)
	require.NoError(t, err)
	assert.Equal(t, "Product p1", got.String("title"))

	// Returned items are copies
	got.Attributes["title"] = "changed"
	again, err := store.Get(ctx, item.Key)
	require.NoError(t, err)
	assert.Equal(t, "Product p1", again.String("title"))

	require.NoError(t, store.Delete(ctx, item.Key))
	require.NoError(t, store.Delete(ctx, item.Key))
	_, err = store.Get(ctx, item.Key)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_QueryPrefix_Paginates(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop(), WithPageSize(2))
	scope := tenant(t, "t1")

	for _, id := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, store.Put(ctx, product(t, scope, id)))
	}
	catKey, err := keyspace.CategoryKey(scope, "x")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, keyspace.NewItem(catKey, nil)))

	var ids []string
	cursor := ""
	pages := 0
	for {
		page, err := store.QueryPrefix(ctx, ports.QueryInput{Scope: scope, Prefix: "PRODUCT#", Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, it := range page.Items {
			ids = append(ids, it.ID())
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
	assert.Equal(t, 3, pages)
}

func TestStore_QueryPrefix_ProjectionAndIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	a := tenant(t, "a")
	b := tenant(t, "b")

	require.NoError(t, store.Put(ctx, product(t, a, "p1")))
	require.NoError(t, store.Put(ctx, product(t, b, "p2")))

	page, err := store.QueryPrefix(ctx, ports.QueryInput{Scope: a, Prefix: "PRODUCT#", Projection: []string{"id"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, map[string]any{"id": "p1"}, page.Items[0].Attributes)
	assert.Empty(t, page.NextCursor)

	_, err = store.QueryPrefix(ctx, ports.QueryInput{Scope: a, Prefix: "PRODUCT#", Cursor: "%%%"})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestStore_TransactWrite(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	scope := tenant(t, "t1")
	p1 := product(t, scope, "p1")
	p2 := product(t, scope, "p2")
	require.NoError(t, store.Put(ctx, p1))

	t.Run("Should apply nothing when a condition fails", func(t *testing.T) {
		err := store.TransactWrite(ctx, []ports.WriteOp{
			ports.PutOp(p2, nil),
			ports.PutOp(p1, ports.MustNotExist()),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrConditionFailed))

		_, err = store.Get(ctx, p2.Key)
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("Should apply every operation when conditions hold", func(t *testing.T) {
		err := store.TransactWrite(ctx, []ports.WriteOp{
			ports.PutOp(p2, ports.MustNotExist()),
			ports.DeleteOp(p1.Key, ports.AttributeEquals("id", "p1")),
		})
		require.NoError(t, err)

		_, err = store.Get(ctx, p1.Key)
		assert.True(t, pkgerrors.IsNotFound(err))
		_, err = store.Get(ctx, p2.Key)
		assert.NoError(t, err)
	})

	t.Run("Should reject cross-scope transactions", func(t *testing.T) {
		other := product(t, tenant(t, "t2"), "p9")
		err := store.TransactWrite(ctx, []ports.WriteOp{ports.PutOp(p1, nil), ports.PutOp(other, nil)})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestStore_BatchWrite(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	scope := tenant(t, "t1")

	ops := make([]ports.WriteOp, 0, ports.MaxBatchWriteItems)
	for i := 0; i < ports.MaxBatchWriteItems; i++ {
		ops = append(ops, ports.PutOp(product(t, scope, fmt.Sprintf("p%02d", i)), nil))
	}
	require.NoError(t, store.BatchWrite(ctx, ops))
	assert.Equal(t, ports.MaxBatchWriteItems, store.Len(scope))

	ops = append(ops, ports.PutOp(product(t, scope, "overflow"), nil))
	assert.True(t, pkgerrors.IsValidation(store.BatchWrite(ctx, ops)))
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore(zap.NewNop())
	_, err := store.QueryPrefix(ctx, ports.QueryInput{Scope: tenant(t, "t1"), Prefix: "X#"})
	assert.True(t, pkgerrors.IsTransient(err))
}
