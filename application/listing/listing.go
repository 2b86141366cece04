// Package listing resolves dynamic post listings: a tag filter and a limit
// applied to the published nodes of a site, newest first. The same
// resolution backs rendered listings and the link graph's postGrid edges.
package listing

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"cms-backend/domain/core/entities"
	pkgerrors "cms-backend/pkg/errors"
)

// DefaultLimit applies when a listing does not configure one.
const DefaultLimit = 6

// Unbounded is the limit value that selects every matching node.
const Unbounded Limit = 0

// Limit is a validated listing size. Zero means unbounded.
type Limit int

// Entry is a published node as a listing sees it.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasTag reports whether the entry carries tag.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ParseLimit reads a configured limit with DefaultLimit as the default.
func ParseLimit(raw any) (Limit, error) {
	return ParseLimitWithDefault(raw, DefaultLimit)
}

// ParseLimitWithDefault reads a configured limit. nil and blank strings give
// def; numbers and numeric strings must be non-negative integers.
func ParseLimitWithDefault(raw any, def int) (Limit, error) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return Limit(def), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" || s == "null" {
			return Limit(def), nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, pkgerrors.NewValidationErrorf("limit %q is not a number", v)
		}
		f = parsed
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, pkgerrors.NewValidationErrorf("limit %q is not a number", v)
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, pkgerrors.NewValidationErrorf("limit has unsupported type %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, pkgerrors.NewValidationErrorf("limit must be an integer, got %v", f)
	}
	if f < 0 {
		return 0, pkgerrors.NewValidationErrorf("limit must not be negative, got %v", f)
	}
	if f > math.MaxInt32 {
		return Unbounded, nil
	}
	return Limit(f), nil
}

// Resolve selects from sorted, which must already be newest first, the
// entries carrying filterTag (when non-empty), never including exclude, and
// keeps the first limit of them. A zero limit keeps all.
func Resolve(sorted []Entry, filterTag string, limit Limit, exclude string) []Entry {
	filterTag = strings.TrimSpace(filterTag)
	out := make([]Entry, 0)
	for _, e := range sorted {
		if e.ID == exclude {
			continue
		}
		if filterTag != "" && !e.HasTag(filterTag) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == int(limit) {
			break
		}
	}
	return out
}

// Published returns the published nodes as entries, newest first.
func Published(nodes []entities.ContentNode) []Entry {
	var out []Entry
	for _, n := range nodes {
		if !n.IsPublished() {
			continue
		}
		out = append(out, Entry{
			ID:        n.ID,
			Title:     n.Title,
			Slug:      n.Slug.String(),
			Tags:      n.Tags,
			CreatedAt: n.CreatedAt,
		})
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders entries by creation time descending, ties by id.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
