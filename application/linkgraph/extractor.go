package linkgraph

import (
	"cms-backend/application/listing"
	"cms-backend/domain/blocks"
	"cms-backend/domain/core/valueobjects"
)

var (
	// linkAttributes name block attributes whose value is a link target.
	linkAttributes = []string{"ctaLink", "buttonLink", "link"}

	// listAttributes name block attributes holding lists of items (pricing
	// plans, feature items, table rows) that carry their own links.
	listAttributes = []string{"plans", "items", "columns", "rows"}
)

// extractor walks one node's block tree and collects the ids of every other
// node it links to.
type extractor struct {
	self         string
	slugs        map[string]string
	published    []listing.Entry
	defaultLimit int
	targets      map[string]struct{}
}

func newExtractor(self string, slugs map[string]string, published []listing.Entry, defaultLimit int) *extractor {
	return &extractor{
		self:         self,
		slugs:        slugs,
		published:    published,
		defaultLimit: defaultLimit,
		targets:      make(map[string]struct{}),
	}
}

func (x *extractor) VisitText(b *blocks.TextBlock) error {
	for _, m := range b.Marks {
		if m.Type != "link" {
			continue
		}
		x.addHref(m.Attrs["href"])
	}
	return nil
}

func (x *extractor) VisitElement(b *blocks.ElementBlock) (bool, error) {
	x.addLinkAttributes(b.Attrs)
	for _, name := range listAttributes {
		list, ok := b.Attrs[name].([]any)
		if !ok {
			continue
		}
		for _, entry := range list {
			if attrs, ok := entry.(map[string]any); ok {
				x.addLinkAttributes(attrs)
			}
		}
	}
	return true, nil
}

func (x *extractor) VisitPostGrid(b *blocks.PostGridBlock) error {
	limit, err := listing.ParseLimitWithDefault(b.Limit, x.defaultLimit)
	if err != nil {
		return err
	}
	for _, e := range listing.Resolve(x.published, b.FilterTag, limit, x.self) {
		x.add(e.ID)
	}
	return nil
}

func (x *extractor) addLinkAttributes(attrs map[string]any) {
	for _, name := range linkAttributes {
		if v, ok := attrs[name]; ok {
			x.addHref(v)
		}
	}
}

// addHref accepts a plain href string or a link object {href} / {url}.
func (x *extractor) addHref(v any) {
	switch t := v.(type) {
	case string:
		x.resolve(t)
	case map[string]any:
		if href, ok := t["href"].(string); ok {
			x.resolve(href)
		} else if u, ok := t["url"].(string); ok {
			x.resolve(u)
		}
	}
}

func (x *extractor) resolve(href string) {
	path := valueobjects.NormalizePath(href)
	if path == "" {
		return
	}
	if id, ok := x.slugs[path]; ok {
		x.add(id)
	}
}

func (x *extractor) add(id string) {
	if id == "" || id == x.self {
		return
	}
	x.targets[id] = struct{}{}
}
