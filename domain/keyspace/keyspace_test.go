package keyspace

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "cms-backend/pkg/errors"
)

func mustTenant(t *testing.T, id string) Scope {
	t.Helper()
	s, err := Tenant(id)
	require.NoError(t, err)
	return s
}

func TestTenant(t *testing.T) {
	t.Run("Should prefix tenant id", func(t *testing.T) {
		s := mustTenant(t, "acme")
		assert.Equal(t, Scope("TENANT#acme"), s)
		assert.Equal(t, "acme", s.TenantID())
		assert.False(t, s.IsSystem())
	})

	t.Run("Should reject empty and separator ids", func(t *testing.T) {
		for _, id := range []string{"", "  ", "a#b"} {
			_, err := Tenant(id)
			assert.True(t, pkgerrors.IsValidation(err), "id %q", id)
		}
	})
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("SYSTEM")
	require.NoError(t, err)
	assert.True(t, s.IsSystem())

	s, err = ParseScope("TENANT#t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", s.TenantID())

	_, err = ParseScope("t1")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestBuilders(t *testing.T) {
	scope := mustTenant(t, "t1")
	at := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)

	tests := []struct {
		name string
		key  func() (Key, error)
		sort string
		kind Kind
	}{
		{"content latest", func() (Key, error) { return ContentLatestKey(scope, "n1") }, "CONTENT#n1#LATEST", KindContent},
		{"content version", func() (Key, error) { return ContentVersionKey(scope, "n1", 3) }, "CONTENT#n1#v3", KindContent},
		{"category", func() (Key, error) { return CategoryKey(scope, "c1") }, "CATEGORY#c1", KindCategory},
		{"category product", func() (Key, error) { return CategoryProductKey(scope, "c1", "p1") }, "CATPROD#c1#p1", KindCategoryProduct},
		{"product", func() (Key, error) { return ProductKey(scope, "p1") }, "PRODUCT#p1", KindProduct},
		{"coupon", func() (Key, error) { return CouponKey(scope, "cp1") }, "COUPON#cp1", KindCoupon},
		{"coupon code", func() (Key, error) { return CouponCodeKey(scope, " save10 ") }, "COUPONCODE#SAVE10", KindCouponCode},
		{"form", func() (Key, error) { return FormKey(scope, "f1") }, "FORM#f1", KindForm},
		{"form slug", func() (Key, error) { return FormSlugKey(scope, "/Contact-Us/") }, "FORMSLUG#contact-us", KindFormSlug},
		{"form submission", func() (Key, error) { return FormSubmissionKey(scope, "f1", "s1") }, "FORMSUB#f1#s1", KindFormSubmission},
		{"resource", func() (Key, error) { return ResourceKey(scope, "r1") }, "RESOURCE#r1", KindResource},
		{"audit", func() (Key, error) { return AuditKey(scope, at, "a1") }, "AUDIT#2024-05-01T12:00:00.000000500Z#a1", KindAudit},
		{"settings", func() (Key, error) { return SettingsKey(scope) }, "SETTINGS#SITE", KindSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := tt.key()
			require.NoError(t, err)
			assert.Equal(t, scope, key.Scope)
			assert.Equal(t, tt.sort, key.Sort)
			assert.Equal(t, tt.kind, key.Kind())
			assert.True(t, strings.HasPrefix(key.Sort, PrefixFor(tt.kind)))
		})
	}
}

func TestBuilders_RejectInvalidComponents(t *testing.T) {
	scope := mustTenant(t, "t1")

	_, err := ProductKey(scope, "")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = CategoryProductKey(scope, "c#1", "p1")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = ContentVersionKey(scope, "n1", 0)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = ProductKey(Scope("bogus"), "p1")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestMediaMapKey(t *testing.T) {
	scope := mustTenant(t, "t1")

	a, err := MediaMapKey(scope, "https://cdn.example.com/a.png")
	require.NoError(t, err)
	b, err := MediaMapKey(scope, "https://cdn.example.com/a.png")
	require.NoError(t, err)
	c, err := MediaMapKey(scope, "https://cdn.example.com/b.png")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Sort, c.Sort)
	assert.Len(t, strings.TrimPrefix(a.Sort, "MEDIAMAP#"), 16)

	_, err = MediaMapKey(scope, "")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAuditKey_SortsChronologically(t *testing.T) {
	scope := mustTenant(t, "t1")
	base := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	offsets := []time.Duration{0, 100 * time.Millisecond, 120 * time.Millisecond, time.Second}

	var previous string
	for i, d := range offsets {
		key, err := AuditKey(scope, base.Add(d), "x")
		require.NoError(t, err)
		if i > 0 {
			assert.Less(t, previous, key.Sort, "offset %s", d)
		}
		previous = key.Sort
	}

	local := base.In(time.FixedZone("CEST", 2*60*60))
	a, err := AuditKey(scope, base, "x")
	require.NoError(t, err)
	b, err := AuditKey(scope, local, "x")
	require.NoError(t, err)
	assert.Equal(t, a.Sort, b.Sort)
}

func TestTenantIsolation(t *testing.T) {
	a, err := ProductKey(mustTenant(t, "a"), "p1")
	require.NoError(t, err)
	b, err := ProductKey(mustTenant(t, "b"), "p1")
	require.NoError(t, err)

	assert.Equal(t, a.Sort, b.Sort)
	assert.NotEqual(t, a, b)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindCouponCode, KindOf("COUPONCODE#X"))
	assert.Equal(t, KindCoupon, KindOf("COUPON#X"))
	assert.Equal(t, KindUnknown, KindOf("NOPE#X"))
	assert.Equal(t, KindUnknown, KindOf("PRODUCT"))
}

func TestIsLatestContent(t *testing.T) {
	assert.True(t, IsLatestContent("CONTENT#n1#LATEST"))
	assert.False(t, IsLatestContent("CONTENT#n1#v2"))
	assert.False(t, IsLatestContent("PRODUCT#LATEST"))
}

func TestItem(t *testing.T) {
	key, err := ProductKey(mustTenant(t, "t1"), "p1")
	require.NoError(t, err)

	item := NewItem(key, map[string]any{
		"title":       "Mug",
		"categoryIds": []any{"c1"},
		"meta":        map[string]any{"x": 1},
	})
	assert.Equal(t, "p1", item.ID())
	assert.Equal(t, "Mug", item.String("title"))
	assert.Equal(t, "", item.String("missing"))

	clone := item.Clone()
	clone.Attributes["categoryIds"].([]any)[0] = "c2"
	clone.Attributes["meta"].(map[string]any)["x"] = 2

	assert.Equal(t, "c1", item.Attributes["categoryIds"].([]any)[0])
	assert.Equal(t, 1, item.Attributes["meta"].(map[string]any)["x"])
}
