package projection

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// Query returns every derived record under prefix, ordered by the record's
// own sortOrder, then title, then key. Records are not joined back to their
// source entities.
func (p *Projector) Query(ctx context.Context, scope keyspace.Scope, prefix string) ([]keyspace.Item, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	items, err := p.collector.Collect(ctx, scope, prefix)
	if err != nil {
		return nil, err
	}
	SortBySortOrder(items)
	return items, nil
}

// ProductCard is the listing view of a product inside a category.
type ProductCard struct {
	ProductID  string   `json:"productId"`
	CategoryID string   `json:"categoryId"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug,omitempty"`
	Image      string   `json:"image,omitempty"`
	Price      any      `json:"price,omitempty"`
	SortOrder  *float64 `json:"sortOrder,omitempty"`
}

// CategoryProducts lists the products of a category from its membership
// records alone.
func (p *Projector) CategoryProducts(ctx context.Context, scope keyspace.Scope, categoryID string) ([]ProductCard, error) {
	prefix, err := keyspace.CategoryProductPrefix(categoryID)
	if err != nil {
		return nil, err
	}
	items, err := p.Query(ctx, scope, prefix)
	if err != nil {
		return nil, err
	}
	cards := make([]ProductCard, 0, len(items))
	for _, it := range items {
		card := ProductCard{
			ProductID:  it.String("productId"),
			CategoryID: it.String("categoryId"),
			Title:      it.String("title"),
			Slug:       it.String("slug"),
			Image:      it.String("image"),
			Price:      it.Attributes["price"],
		}
		if order, ok := Number(it.Attributes["sortOrder"]); ok {
			card.SortOrder = &order
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// LookupCouponByCode returns the id of the coupon owning code.
func (p *Projector) LookupCouponByCode(ctx context.Context, scope keyspace.Scope, code string) (string, error) {
	key, err := keyspace.CouponCodeKey(scope, code)
	if err != nil {
		return "", err
	}
	return p.owner(ctx, key, "coupon code")
}

// LookupFormBySlug returns the id of the form owning slug.
func (p *Projector) LookupFormBySlug(ctx context.Context, scope keyspace.Scope, slug string) (string, error) {
	key, err := keyspace.FormSlugKey(scope, slug)
	if err != nil {
		return "", err
	}
	return p.owner(ctx, key, "form slug")
}

func (p *Projector) owner(ctx context.Context, key keyspace.Key, resource string) (string, error) {
	item, err := p.store.Get(ctx, key)
	if err != nil {
		return "", storeError("get", err)
	}
	owner := item.String(OwnerAttribute)
	if owner == "" {
		return "", pkgerrors.NewNotFoundError(resource)
	}
	return owner, nil
}

// MediaMapping is an imported media URL and its replacement.
type MediaMapping struct {
	OldURL     string `json:"oldUrl"`
	NewURL     string `json:"newUrl"`
	ResourceID string `json:"resourceId"`
}

// LookupMedia returns the replacement for an external media URL. A record
// whose stored URL differs from url (a hash collision) counts as absent.
func (p *Projector) LookupMedia(ctx context.Context, scope keyspace.Scope, url string) (MediaMapping, error) {
	key, err := keyspace.MediaMapKey(scope, url)
	if err != nil {
		return MediaMapping{}, err
	}
	item, err := p.store.Get(ctx, key)
	if err != nil {
		return MediaMapping{}, storeError("get", err)
	}
	m := MediaMapping{
		OldURL:     item.String("oldUrl"),
		NewURL:     item.String("newUrl"),
		ResourceID: item.String("resourceId"),
	}
	if m.OldURL != strings.TrimSpace(url) {
		p.logger.Warn("Media map hash collision",
			zap.String("key", key.Sort),
			zap.String("stored", m.OldURL),
			zap.String("requested", url))
		return MediaMapping{}, pkgerrors.NewNotFoundError("media mapping")
	}
	return m, nil
}

// SortBySortOrder orders records by sortOrder ascending (missing or
// non-numeric values last), then title, then sort key.
func SortBySortOrder(items []keyspace.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		oa, _ := Number(a.Attributes["sortOrder"])
		ob, _ := Number(b.Attributes["sortOrder"])
		if oa != ob {
			return oa < ob
		}
		if ta, tb := a.String("title"), b.String("title"); ta != tb {
			return ta < tb
		}
		return a.Key.Sort < b.Key.Sort
	})
}

// Number reads a numeric attribute that may be stored as any Go number or a
// numeric string. Absent, unparsable and non-finite values read as +Inf.
func Number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.Inf(1), false
		}
		f = parsed
	default:
		return math.Inf(1), false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.Inf(1), false
	}
	return f, true
}
