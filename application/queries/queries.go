package queries

import (
	"strings"

	"cms-backend/application/listing"
	pkgerrors "cms-backend/pkg/errors"
)

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return pkgerrors.NewValidationErrorf("%s is required", name)
	}
	return nil
}

// GetLinkGraphQuery builds the internal link graph of a tenant's site.
type GetLinkGraphQuery struct {
	TenantID string
}

// Validate validates the GetLinkGraphQuery
func (q GetLinkGraphQuery) Validate() error {
	return required("tenant ID", q.TenantID)
}

// ListCategoryProductsQuery lists the products of a category.
type ListCategoryProductsQuery struct {
	TenantID   string
	CategoryID string
}

// Validate validates the ListCategoryProductsQuery
func (q ListCategoryProductsQuery) Validate() error {
	if err := required("tenant ID", q.TenantID); err != nil {
		return err
	}
	return required("category ID", q.CategoryID)
}

// FindCouponByCodeQuery finds the coupon holding a code.
type FindCouponByCodeQuery struct {
	TenantID string
	Code     string
}

// Validate validates the FindCouponByCodeQuery
func (q FindCouponByCodeQuery) Validate() error {
	if err := required("tenant ID", q.TenantID); err != nil {
		return err
	}
	return required("code", q.Code)
}

// FindFormBySlugQuery finds the form holding a slug.
type FindFormBySlugQuery struct {
	TenantID string
	Slug     string
}

// Validate validates the FindFormBySlugQuery
func (q FindFormBySlugQuery) Validate() error {
	if err := required("tenant ID", q.TenantID); err != nil {
		return err
	}
	return required("slug", q.Slug)
}

// LookupMediaQuery finds the replacement of an imported media URL.
type LookupMediaQuery struct {
	TenantID string
	URL      string
}

// Validate validates the LookupMediaQuery
func (q LookupMediaQuery) Validate() error {
	if err := required("tenant ID", q.TenantID); err != nil {
		return err
	}
	return required("url", q.URL)
}

// ResolveListingQuery resolves a dynamic post listing the way a rendered
// listing block would. Limit takes the raw configured value: nil or "" for
// the default, 0 for every match.
type ResolveListingQuery struct {
	TenantID  string
	FilterTag string
	Limit     any
	Exclude   string
}

// Validate validates the ResolveListingQuery. An invalid limit is rejected
// here, before any store access.
func (q ResolveListingQuery) Validate() error {
	if err := required("tenant ID", q.TenantID); err != nil {
		return err
	}
	_, err := listing.ParseLimit(q.Limit)
	return err
}

// ListAuditLogQuery lists the audit log of a tenant.
type ListAuditLogQuery struct {
	TenantID string
}

// Validate validates the ListAuditLogQuery
func (q ListAuditLogQuery) Validate() error {
	return required("tenant ID", q.TenantID)
}

// CouponLookup is the result of FindCouponByCodeQuery.
type CouponLookup struct {
	Code     string `json:"code"`
	CouponID string `json:"couponId"`
}

// FormLookup is the result of FindFormBySlugQuery.
type FormLookup struct {
	Slug   string `json:"slug"`
	FormID string `json:"formId"`
}

// ListingResult is the result of ResolveListingQuery.
type ListingResult struct {
	FilterTag string          `json:"filterTag,omitempty"`
	Limit     int             `json:"limit"`
	Entries   []listing.Entry `json:"entries"`
}
