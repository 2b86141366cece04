package valueobjects

import (
	"net/url"
	"strings"
)

// RootPath is the slug of the site's home page.
const RootPath = "/"

var nonNavigableSchemes = []string{"mailto:", "tel:", "javascript:", "sms:", "data:"}

// NormalizePath reduces a link target or slug to the canonical path form used
// to match content nodes: query and fragment removed, scheme and host removed,
// exactly one leading slash and no trailing slash except for the root.
// It returns "" when the input cannot address a page.
func NormalizePath(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	for _, scheme := range nonNavigableSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") || strings.HasPrefix(s, "//") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Path
		if s == "" {
			return RootPath
		}
	}

	s = "/" + strings.TrimLeft(s, "/")
	if len(s) > 1 {
		s = strings.TrimRight(s, "/")
		if s == "" {
			s = RootPath
		}
	}
	return s
}

// Slug is the normalized public path of a content node.
type Slug struct {
	value string
}

// NewSlug normalizes raw into a slug. The zero Slug is returned for input
// that does not address a page.
func NewSlug(raw string) Slug {
	return Slug{value: NormalizePath(raw)}
}

func (s Slug) String() string { return s.value }

// IsRoot reports whether the slug is the home page.
func (s Slug) IsRoot() bool { return s.value == RootPath }

// IsZero reports whether the slug is unresolvable.
func (s Slug) IsZero() bool { return s.value == "" }

// Equals checks if two slugs are equal
func (s Slug) Equals(other Slug) bool { return s.value == other.value }
