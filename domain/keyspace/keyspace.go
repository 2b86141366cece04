// Package keyspace defines the addressing scheme of the shared table: every
// record lives under a scope (the partition key) at a sort key built from its
// kind and identity.
package keyspace

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	pkgerrors "cms-backend/pkg/errors"
)

const (
	tenantPrefix = "TENANT#"
	separator    = "#"

	// SystemScope is the namespace for records that belong to no tenant.
	SystemScope Scope = "SYSTEM"

	latestSuffix = "LATEST"
)

// Scope is the partition every key carries. A key built under one scope can
// never address a record under another.
type Scope string

// Tenant returns the scope of the given tenant.
func Tenant(tenantID string) (Scope, error) {
	if err := validateComponent("tenantId", tenantID); err != nil {
		return "", err
	}
	return Scope(tenantPrefix + tenantID), nil
}

// ParseScope validates a raw partition key value.
func ParseScope(raw string) (Scope, error) {
	if raw == string(SystemScope) {
		return SystemScope, nil
	}
	if !strings.HasPrefix(raw, tenantPrefix) {
		return "", pkgerrors.NewValidationErrorf("invalid scope %q", raw)
	}
	return Tenant(strings.TrimPrefix(raw, tenantPrefix))
}

// TenantID returns the tenant identifier, or "" for the system scope.
func (s Scope) TenantID() string {
	if !strings.HasPrefix(string(s), tenantPrefix) {
		return ""
	}
	return strings.TrimPrefix(string(s), tenantPrefix)
}

// IsSystem reports whether s is the system-wide scope.
func (s Scope) IsSystem() bool { return s == SystemScope }

// Validate checks that s was produced by Tenant or is SystemScope.
func (s Scope) Validate() error {
	_, err := ParseScope(string(s))
	return err
}

func (s Scope) String() string { return string(s) }

// Key addresses exactly one record.
type Key struct {
	Scope Scope
	Sort  string
}

func (k Key) String() string { return string(k.Scope) + "|" + k.Sort }

// Kind returns the kind encoded in the sort key.
func (k Key) Kind() Kind { return KindOf(k.Sort) }

// EntityID returns the first component after the kind prefix, which for
// entity keys is the entity's id.
func (k Key) EntityID() string {
	parts := strings.SplitN(k.Sort, separator, 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Item is a record: its key plus untyped, possibly nested attributes.
type Item struct {
	Key        Key
	Attributes map[string]any
}

// NewItem builds an item, allocating an empty attribute map when attrs is nil.
func NewItem(key Key, attrs map[string]any) Item {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return Item{Key: key, Attributes: attrs}
}

// ID returns the "id" attribute or, failing that, the key's entity id.
func (i Item) ID() string {
	if id := i.String("id"); id != "" {
		return id
	}
	return i.Key.EntityID()
}

// String returns a string attribute, or "" when absent or not a string.
func (i Item) String(name string) string {
	if v, ok := i.Attributes[name].(string); ok {
		return v
	}
	return ""
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	return Item{Key: i.Key, Attributes: CloneAttributes(i.Attributes)}
}

// CloneAttributes deep-copies maps and slices; scalar values are shared.
func CloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneAttributes(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Kind is the closed set of record kinds stored in a scope.
type Kind string

const (
	KindUnknown         Kind = ""
	KindContent         Kind = "CONTENT"
	KindCategory        Kind = "CATEGORY"
	KindCategoryProduct Kind = "CATPROD"
	KindProduct         Kind = "PRODUCT"
	KindCoupon          Kind = "COUPON"
	KindCouponCode      Kind = "COUPONCODE"
	KindForm            Kind = "FORM"
	KindFormSlug        Kind = "FORMSLUG"
	KindFormSubmission  Kind = "FORMSUB"
	KindResource        Kind = "RESOURCE"
	KindMediaMap        Kind = "MEDIAMAP"
	KindAudit           Kind = "AUDIT"
	KindSettings        Kind = "SETTINGS"
)

var kinds = []Kind{
	KindContent, KindCategory, KindCategoryProduct, KindProduct,
	KindCoupon, KindCouponCode, KindForm, KindFormSlug, KindFormSubmission,
	KindResource, KindMediaMap, KindAudit, KindSettings,
}

// Kinds returns every known kind.
func Kinds() []Kind { return append([]Kind(nil), kinds...) }

// PrefixFor returns the sort-key prefix shared by every record of kind k.
func PrefixFor(k Kind) string {
	return string(k) + separator
}

// KindOf classifies a sort key. Unrecognised keys yield KindUnknown.
func KindOf(sortKey string) Kind {
	head, _, found := strings.Cut(sortKey, separator)
	if !found {
		return KindUnknown
	}
	for _, k := range kinds {
		if string(k) == head {
			return k
		}
	}
	return KindUnknown
}

func validateComponent(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return pkgerrors.NewValidationErrorf("%s is required", name)
	}
	if strings.Contains(value, separator) {
		return pkgerrors.NewValidationErrorf("%s must not contain %q", name, separator)
	}
	return nil
}

func build(scope Scope, kind Kind, parts ...[2]string) (Key, error) {
	if err := scope.Validate(); err != nil {
		return Key{}, err
	}
	var b strings.Builder
	b.WriteString(string(kind))
	for _, p := range parts {
		if err := validateComponent(p[0], p[1]); err != nil {
			return Key{}, err
		}
		b.WriteString(separator)
		b.WriteString(p[1])
	}
	return Key{Scope: scope, Sort: b.String()}, nil
}

func part(name, value string) [2]string { return [2]string{name, value} }

// ContentLatestKey addresses the current version of a content node.
func ContentLatestKey(scope Scope, nodeID string) (Key, error) {
	return build(scope, KindContent, part("nodeId", nodeID), part("version", latestSuffix))
}

// ContentVersionKey addresses historical version n of a content node.
func ContentVersionKey(scope Scope, nodeID string, n int) (Key, error) {
	if n < 1 {
		return Key{}, pkgerrors.NewValidationErrorf("version must be positive, got %d", n)
	}
	return build(scope, KindContent, part("nodeId", nodeID), part("version", fmt.Sprintf("v%d", n)))
}

// IsLatestContent reports whether sortKey addresses a LATEST content record.
func IsLatestContent(sortKey string) bool {
	return KindOf(sortKey) == KindContent && strings.HasSuffix(sortKey, separator+latestSuffix)
}

func CategoryKey(scope Scope, categoryID string) (Key, error) {
	return build(scope, KindCategory, part("categoryId", categoryID))
}

// CategoryProductKey addresses the membership projection of one product in
// one category.
func CategoryProductKey(scope Scope, categoryID, productID string) (Key, error) {
	return build(scope, KindCategoryProduct, part("categoryId", categoryID), part("productId", productID))
}

// CategoryProductPrefix is the prefix shared by every membership record of a
// category.
func CategoryProductPrefix(categoryID string) (string, error) {
	if err := validateComponent("categoryId", categoryID); err != nil {
		return "", err
	}
	return PrefixFor(KindCategoryProduct) + categoryID + separator, nil
}

func ProductKey(scope Scope, productID string) (Key, error) {
	return build(scope, KindProduct, part("productId", productID))
}

func CouponKey(scope Scope, couponID string) (Key, error) {
	return build(scope, KindCoupon, part("couponId", couponID))
}

// CouponCodeKey addresses the unique pointer for a coupon code. Codes are
// case-insensitive and stored upper-cased.
func CouponCodeKey(scope Scope, code string) (Key, error) {
	return build(scope, KindCouponCode, part("code", NormalizeCouponCode(code)))
}

// NormalizeCouponCode returns the canonical form of a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func FormKey(scope Scope, formID string) (Key, error) {
	return build(scope, KindForm, part("formId", formID))
}

// FormSlugKey addresses the unique pointer for a form slug. Slugs are stored
// lower-cased.
func FormSlugKey(scope Scope, slug string) (Key, error) {
	return build(scope, KindFormSlug, part("slug", NormalizeFormSlug(slug)))
}

// NormalizeFormSlug returns the canonical form of a form slug.
func NormalizeFormSlug(slug string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(slug), "/"))
}

func FormSubmissionKey(scope Scope, formID, submissionID string) (Key, error) {
	return build(scope, KindFormSubmission, part("formId", formID), part("submissionId", submissionID))
}

func ResourceKey(scope Scope, resourceID string) (Key, error) {
	return build(scope, KindResource, part("resourceId", resourceID))
}

// MediaMapKey addresses the dedup record of an imported media URL. The sort
// key carries a 64-bit hash of the URL; the record itself stores the URL so
// readers can detect collisions.
func MediaMapKey(scope Scope, oldURL string) (Key, error) {
	if strings.TrimSpace(oldURL) == "" {
		return Key{}, pkgerrors.NewValidationError("url is required")
	}
	return build(scope, KindMediaMap, part("hash", HashURL(oldURL)))
}

// HashURL returns the 16 hex character digest used in media map keys.
func HashURL(u string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.TrimSpace(u)))
}

// AuditTimeLayout is a fixed-width UTC timestamp, so audit sort keys
// compare in time order.
const AuditTimeLayout = "2006-01-02T15:04:05.000000000Z"

// AuditKey addresses an audit log entry. Entries sort chronologically.
func AuditKey(scope Scope, at time.Time, id string) (Key, error) {
	return build(scope, KindAudit, part("timestamp", at.UTC().Format(AuditTimeLayout)), part("auditId", id))
}

// SettingsKey addresses the site settings record of a scope.
func SettingsKey(scope Scope) (Key, error) {
	return build(scope, KindSettings, part("name", "SITE"))
}
