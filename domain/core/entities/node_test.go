package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

func TestContentNodeFromItem(t *testing.T) {
	scope, err := keyspace.Tenant("t1")
	require.NoError(t, err)
	key, err := keyspace.ContentLatestKey(scope, "n1")
	require.NoError(t, err)

	node, err := ContentNodeFromItem(keyspace.NewItem(key, map[string]any{
		"title":     "About",
		"slug":      "https://site.example.com/about/",
		"status":    "Published",
		"tags":      []any{"news", "", "team"},
		"createdAt": "2024-03-01T10:00:00Z",
		"blocks":    []any{},
	}))
	require.NoError(t, err)

	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, "/about", node.Slug.String())
	assert.True(t, node.IsPublished())
	assert.True(t, node.IsTraversable())
	assert.Equal(t, []string{"news", "team"}, node.Tags)
	assert.True(t, node.HasTag("team"))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), node.CreatedAt)
}

func TestContentNodeFromItem_Variants(t *testing.T) {
	scope, err := keyspace.Tenant("t1")
	require.NoError(t, err)
	key, err := keyspace.ContentLatestKey(scope, "n2")
	require.NoError(t, err)

	node, err := ContentNodeFromItem(keyspace.NewItem(key, map[string]any{
		"status":    "archived",
		"tags":      "a, b",
		"createdAt": float64(1700000000000),
		"content":   "[]",
	}))
	require.NoError(t, err)

	assert.False(t, node.IsTraversable())
	assert.Equal(t, []string{"a", "b"}, node.Tags)
	assert.Equal(t, int64(1700000000000), node.CreatedAt.UnixMilli())
	assert.Equal(t, "[]", node.Blocks)
	assert.True(t, node.Slug.IsZero())

	productKey, err := keyspace.ProductKey(scope, "p1")
	require.NoError(t, err)
	_, err = ContentNodeFromItem(keyspace.NewItem(productKey, nil))
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCatalogToItem(t *testing.T) {
	scope, err := keyspace.Tenant("t1")
	require.NoError(t, err)

	coupon, err := Coupon{ID: "c1", Code: " save10 "}.ToItem(scope)
	require.NoError(t, err)
	assert.Equal(t, "COUPON#c1", coupon.Key.Sort)
	assert.Equal(t, "SAVE10", coupon.String("code"))

	form, err := Form{ID: "f1", Slug: "/Contact/"}.ToItem(scope)
	require.NoError(t, err)
	assert.Equal(t, "contact", form.String("slug"))

	product, err := Product{ID: "p1", CategoryIDs: []string{"a", "b"}}.ToItem(scope)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, product.Attributes["categoryIds"])
	_, hasSlug := product.Attributes["slug"]
	assert.False(t, hasSlug)

	_, err = Resource{ID: ""}.ToItem(scope)
	assert.True(t, pkgerrors.IsValidation(err))
}
