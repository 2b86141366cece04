package entities

import (
	"time"

	"cms-backend/domain/keyspace"
)

// Product is a sellable item listed in zero or more categories.
type Product struct {
	ID          string
	Title       string
	Slug        string
	Price       float64
	Image       string
	SortOrder   int
	CategoryIDs []string
	Description string
	UpdatedAt   time.Time
}

// ToItem renders the product as a PRODUCT record.
func (p Product) ToItem(scope keyspace.Scope) (keyspace.Item, error) {
	key, err := keyspace.ProductKey(scope, p.ID)
	if err != nil {
		return keyspace.Item{}, err
	}
	cats := make([]any, 0, len(p.CategoryIDs))
	for _, c := range p.CategoryIDs {
		cats = append(cats, c)
	}
	attrs := map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"price":       p.Price,
		"sortOrder":   p.SortOrder,
		"categoryIds": cats,
		"updatedAt":   p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	setIfNotEmpty(attrs, "slug", p.Slug)
	setIfNotEmpty(attrs, "image", p.Image)
	setIfNotEmpty(attrs, "description", p.Description)
	return keyspace.NewItem(key, attrs), nil
}

// Coupon is a discount redeemable by a unique code.
type Coupon struct {
	ID         string
	Code       string
	PercentOff float64
	AmountOff  float64
	ExpiresAt  *time.Time
	UpdatedAt  time.Time
}

// ToItem renders the coupon as a COUPON record. The code is stored in its
// canonical upper-case form.
func (c Coupon) ToItem(scope keyspace.Scope) (keyspace.Item, error) {
	key, err := keyspace.CouponKey(scope, c.ID)
	if err != nil {
		return keyspace.Item{}, err
	}
	attrs := map[string]any{
		"id":         c.ID,
		"code":       keyspace.NormalizeCouponCode(c.Code),
		"percentOff": c.PercentOff,
		"amountOff":  c.AmountOff,
		"updatedAt":  c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if c.ExpiresAt != nil {
		attrs["expiresAt"] = c.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return keyspace.NewItem(key, attrs), nil
}

// Form is a public form addressed by a unique slug.
type Form struct {
	ID        string
	Title     string
	Slug      string
	Fields    []map[string]any
	UpdatedAt time.Time
}

// ToItem renders the form as a FORM record.
func (f Form) ToItem(scope keyspace.Scope) (keyspace.Item, error) {
	key, err := keyspace.FormKey(scope, f.ID)
	if err != nil {
		return keyspace.Item{}, err
	}
	fields := make([]any, 0, len(f.Fields))
	for _, fld := range f.Fields {
		fields = append(fields, keyspace.CloneAttributes(fld))
	}
	return keyspace.NewItem(key, map[string]any{
		"id":        f.ID,
		"title":     f.Title,
		"slug":      keyspace.NormalizeFormSlug(f.Slug),
		"fields":    fields,
		"updatedAt": f.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}), nil
}

// Resource is an uploaded or imported media file.
type Resource struct {
	ID          string
	URL         string
	SourceURL   string
	ContentType string
	UpdatedAt   time.Time
}

// ToItem renders the resource as a RESOURCE record.
func (r Resource) ToItem(scope keyspace.Scope) (keyspace.Item, error) {
	key, err := keyspace.ResourceKey(scope, r.ID)
	if err != nil {
		return keyspace.Item{}, err
	}
	attrs := map[string]any{
		"id":        r.ID,
		"url":       r.URL,
		"updatedAt": r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	setIfNotEmpty(attrs, "sourceUrl", r.SourceURL)
	setIfNotEmpty(attrs, "contentType", r.ContentType)
	return keyspace.NewItem(key, attrs), nil
}

func setIfNotEmpty(attrs map[string]any, name, value string) {
	if value != "" {
		attrs[name] = value
	}
}
