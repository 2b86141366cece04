package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

var (
	tenant = keyspace.Scope("TENANT#t1")
	other  = keyspace.Scope("TENANT#t2")
)

func openStore(t *testing.T, pageSize int) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, PageSize: pageSize}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func key(scope keyspace.Scope, sk string) keyspace.Key {
	return keyspace.Key{Scope: scope, Sort: sk}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestGetPutDelete(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()
	k := key(tenant, "PRODUCT#p1")

	_, err := s.Get(ctx, k)
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, s.Put(ctx, keyspace.NewItem(k, map[string]any{"title": "Mug", "price": 12.5})))
	item, err := s.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "Mug", item.Attributes["title"])
	assert.Equal(t, 12.5, item.Attributes["price"])

	// Scopes never see each other's records.
	_, err = s.Get(ctx, key(other, "PRODUCT#p1"))
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, s.Delete(ctx, k))
	require.NoError(t, s.Delete(ctx, k))
	_, err = s.Get(ctx, k)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestQueryPrefix_Pagination(t *testing.T) {
	s := openStore(t, 2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, keyspace.NewItem(key(tenant, fmt.Sprintf("CATEGORY#c1#PRODUCT#p%d", i)), map[string]any{"n": i})))
	}
	require.NoError(t, s.Put(ctx, keyspace.NewItem(key(tenant, "CATEGORY#c2#PRODUCT#p9"), nil)))
	require.NoError(t, s.Put(ctx, keyspace.NewItem(key(other, "CATEGORY#c1#PRODUCT#p7"), nil)))

	var (
		sorts  []string
		cursor string
		pages  int
	)
	for {
		page, err := s.QueryPrefix(ctx, ports.QueryInput{Scope: tenant, Prefix: "CATEGORY#c1#", Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			sorts = append(sorts, item.Key.Sort)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{
		"CATEGORY#c1#PRODUCT#p0", "CATEGORY#c1#PRODUCT#p1", "CATEGORY#c1#PRODUCT#p2",
		"CATEGORY#c1#PRODUCT#p3", "CATEGORY#c1#PRODUCT#p4",
	}, sorts)

	t.Run("Should apply the projection", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, keyspace.NewItem(key(tenant, "COUPON#x"), map[string]any{"code": "A", "note": "n"})))
		page, err := s.QueryPrefix(ctx, ports.QueryInput{Scope: tenant, Prefix: "COUPON#", Projection: []string{"code"}})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, map[string]any{"code": "A"}, page.Items[0].Attributes)
	})

	t.Run("Should reject a malformed cursor", func(t *testing.T) {
		_, err := s.QueryPrefix(ctx, ports.QueryInput{Scope: tenant, Cursor: "***"})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestTransactWrite(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()
	coupon := key(tenant, "COUPON#c1")
	code := key(tenant, "COUPON_CODE#SAVE10")

	require.NoError(t, s.TransactWrite(ctx, []ports.WriteOp{
		ports.PutOp(keyspace.NewItem(coupon, map[string]any{"code": "SAVE10"}), nil),
		ports.PutOp(keyspace.NewItem(code, map[string]any{"couponId": "c1"}), ports.MustNotExist()),
	}))

	t.Run("Should write nothing when a condition fails", func(t *testing.T) {
		err := s.TransactWrite(ctx, []ports.WriteOp{
			ports.PutOp(keyspace.NewItem(key(tenant, "COUPON#c2"), map[string]any{"code": "SAVE10"}), nil),
			ports.PutOp(keyspace.NewItem(code, map[string]any{"couponId": "c2"}), ports.MustNotExist()),
		})
		assert.ErrorIs(t, err, ports.ErrConditionFailed)

		_, err = s.Get(ctx, key(tenant, "COUPON#c2"))
		assert.True(t, pkgerrors.IsNotFound(err))
		owner, err := s.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "c1", owner.Attributes["couponId"])
	})

	t.Run("Should honour attribute conditions", func(t *testing.T) {
		require.NoError(t, s.TransactWrite(ctx, []ports.WriteOp{
			ports.DeleteOp(code, ports.AttributeEquals("couponId", "c1")),
			ports.CheckOp(coupon, ports.MustExist()),
		}))
		_, err := s.Get(ctx, code)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestBatchWrite(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	ops := make([]ports.WriteOp, 0, ports.MaxBatchWriteItems)
	for i := 0; i < ports.MaxBatchWriteItems; i++ {
		ops = append(ops, ports.PutOp(keyspace.NewItem(key(tenant, fmt.Sprintf("PRODUCT#%02d", i)), nil), nil))
	}
	require.NoError(t, s.BatchWrite(ctx, ops))

	page, err := s.QueryPrefix(ctx, ports.QueryInput{Scope: tenant, Prefix: "PRODUCT#"})
	require.NoError(t, err)
	assert.Len(t, page.Items, ports.MaxBatchWriteItems)

	err = s.BatchWrite(ctx, append(ops, ports.DeleteOp(key(tenant, "PRODUCT#99"), nil)))
	assert.True(t, pkgerrors.IsValidation(err))
}
