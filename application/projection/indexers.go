package projection

import (
	"strings"

	"cms-backend/domain/keyspace"
)

// Card fields copied from a product onto each of its category memberships.
var cardFields = []string{"title", "price", "image", "sortOrder", "slug"}

// CategoryMembershipIndexer writes one CATPROD record per category a product
// belongs to, carrying the fields a category listing renders.
type CategoryMembershipIndexer struct{}

func (CategoryMembershipIndexer) Name() string              { return "category-membership" }
func (CategoryMembershipIndexer) SourceKind() keyspace.Kind { return keyspace.KindProduct }
func (CategoryMembershipIndexer) Unique() bool              { return false }

func (CategoryMembershipIndexer) Desired(scope keyspace.Scope, product keyspace.Item) ([]keyspace.Item, error) {
	productID := product.Key.EntityID()
	var out []keyspace.Item
	for _, categoryID := range StringList(product.Attributes["categoryIds"]) {
		key, err := keyspace.CategoryProductKey(scope, categoryID, productID)
		if err != nil {
			return nil, err
		}
		attrs := map[string]any{
			"productId":  productID,
			"categoryId": categoryID,
		}
		for _, f := range cardFields {
			if v, ok := product.Attributes[f]; ok && v != nil {
				attrs[f] = v
			}
		}
		out = append(out, keyspace.NewItem(key, attrs))
	}
	return out, nil
}

// CouponCodeIndexer maintains the unique COUPONCODE pointer of a coupon.
type CouponCodeIndexer struct{}

func (CouponCodeIndexer) Name() string              { return "coupon-code" }
func (CouponCodeIndexer) SourceKind() keyspace.Kind { return keyspace.KindCoupon }
func (CouponCodeIndexer) Unique() bool              { return true }

func (CouponCodeIndexer) Desired(scope keyspace.Scope, coupon keyspace.Item) ([]keyspace.Item, error) {
	code := keyspace.NormalizeCouponCode(coupon.String("code"))
	if code == "" {
		return nil, nil
	}
	key, err := keyspace.CouponCodeKey(scope, code)
	if err != nil {
		return nil, err
	}
	return []keyspace.Item{keyspace.NewItem(key, map[string]any{
		OwnerAttribute: coupon.Key.EntityID(),
		"code":         code,
	})}, nil
}

// FormSlugIndexer maintains the unique FORMSLUG pointer of a form.
type FormSlugIndexer struct{}

func (FormSlugIndexer) Name() string              { return "form-slug" }
func (FormSlugIndexer) SourceKind() keyspace.Kind { return keyspace.KindForm }
func (FormSlugIndexer) Unique() bool              { return true }

func (FormSlugIndexer) Desired(scope keyspace.Scope, form keyspace.Item) ([]keyspace.Item, error) {
	slug := keyspace.NormalizeFormSlug(form.String("slug"))
	if slug == "" {
		return nil, nil
	}
	key, err := keyspace.FormSlugKey(scope, slug)
	if err != nil {
		return nil, err
	}
	return []keyspace.Item{keyspace.NewItem(key, map[string]any{
		OwnerAttribute: form.Key.EntityID(),
		"slug":         slug,
	})}, nil
}

// MediaMapIndexer records, for an imported resource, which external URL it
// replaced so the import can skip URLs it has already fetched. Resources
// imported from the same URL share the record; the latest import owns it.
type MediaMapIndexer struct{}

func (MediaMapIndexer) Name() string              { return "media-map" }
func (MediaMapIndexer) SourceKind() keyspace.Kind { return keyspace.KindResource }
func (MediaMapIndexer) Unique() bool              { return false }

func (MediaMapIndexer) HolderKey(scope keyspace.Scope, id string) (keyspace.Key, error) {
	return keyspace.ResourceKey(scope, id)
}

func (MediaMapIndexer) Desired(scope keyspace.Scope, resource keyspace.Item) ([]keyspace.Item, error) {
	oldURL := strings.TrimSpace(resource.String("sourceUrl"))
	if oldURL == "" {
		return nil, nil
	}
	key, err := keyspace.MediaMapKey(scope, oldURL)
	if err != nil {
		return nil, err
	}
	return []keyspace.Item{keyspace.NewItem(key, map[string]any{
		"oldUrl":     oldURL,
		"newUrl":     resource.String("url"),
		"resourceId": resource.Key.EntityID(),
	})}, nil
}

// StringList reads a list-of-strings attribute. Blank and duplicate entries
// are dropped; order is preserved.
func StringList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = []string{t}
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
