package linkgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/core/valueobjects"
	"cms-backend/domain/keyspace"
)

var (
	scope = mustScope("t1")
	epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func mustScope(id string) keyspace.Scope {
	s, err := keyspace.Tenant(id)
	if err != nil {
		panic(err)
	}
	return s
}

type fakeLoader struct {
	nodes []entities.ContentNode
	err   error
}

func (f *fakeLoader) LatestContent(context.Context, keyspace.Scope) ([]entities.ContentNode, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entities.ContentNode, len(f.nodes))
	copy(out, f.nodes)
	return out, nil
}

type fakeSettings struct {
	settings ports.TenantSettings
	err      error
}

func (f *fakeSettings) Settings(context.Context, keyspace.Scope) (ports.TenantSettings, error) {
	return f.settings, f.err
}

func page(id, slug string, blocks any) entities.ContentNode {
	return entities.ContentNode{
		ID:        id,
		Title:     id,
		Slug:      valueobjects.NewSlug(slug),
		Status:    entities.StatusPublished,
		CreatedAt: epoch,
		Blocks:    blocks,
	}
}

func doc(children ...map[string]any) map[string]any {
	content := make([]any, 0, len(children))
	for _, c := range children {
		content = append(content, c)
	}
	return map[string]any{"type": "doc", "content": content}
}

func linkText(href string) map[string]any {
	return map[string]any{
		"type": "paragraph",
		"content": []any{map[string]any{
			"type":  "text",
			"text":  "link",
			"marks": []any{map[string]any{"type": "link", "attrs": map[string]any{"href": href}}},
		}},
	}
}

func postGrid(filterTag string, limit any) map[string]any {
	return map[string]any{"type": "postGrid", "attrs": map[string]any{"filterTag": filterTag, "limit": limit}}
}

func build(t *testing.T, nodes []entities.ContentNode, settings ports.TenantSettings) Result {
	t.Helper()
	b := NewBuilder(&fakeLoader{nodes: nodes}, &fakeSettings{settings: settings}, zap.NewNop())
	result, err := b.Build(context.Background(), scope)
	require.NoError(t, err)
	return result
}

func edgePairs(r Result) []string {
	out := make([]string, 0, len(r.Edges))
	for _, e := range r.Edges {
		out = append(out, e.Source+"->"+e.Target)
	}
	return out
}

func orphanIDs(r Result) []string {
	out := make([]string, 0, len(r.Orphans))
	for _, o := range r.Orphans {
		out = append(out, o.ID)
	}
	return out
}

func nodeByID(r Result, id string) Node {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n
		}
	}
	return Node{}
}

func TestBuild_NavigationWhitelist(t *testing.T) {
	nodes := []entities.ContentNode{
		page("home", "/", nil),
		page("about", "/about", nil),
		page("blog", "/blog", doc(linkText("/about"))),
	}

	result := build(t, nodes, ports.TenantSettings{NavigationLinks: []string{"/about"}})

	assert.Equal(t, []string{"blog->about"}, edgePairs(result))
	assert.Equal(t, "blog-about", result.Edges[0].ID)
	assert.Equal(t, []string{"blog"}, orphanIDs(result))
	assert.Equal(t, 2, nodeByID(result, "about").Incoming)
	assert.Equal(t, 1, nodeByID(result, "home").Incoming)
	assert.Equal(t, 1, nodeByID(result, "blog").Outgoing)

	t.Run("Should clear the orphan once the footer links it", func(t *testing.T) {
		result := build(t, nodes, ports.TenantSettings{
			NavigationLinks: []string{"/about"},
			FooterLinks:     []string{"https://example.com/blog/"},
		})
		assert.Empty(t, result.Orphans)
		assert.NotNil(t, result.Orphans)
	})
}

func TestBuild_DeduplicatesLinksToOneTarget(t *testing.T) {
	nodes := []entities.ContentNode{
		page("a", "/a", doc(
			linkText("/b"),
			linkText("/b/?utm=1"),
			map[string]any{"type": "hero", "attrs": map[string]any{"ctaLink": "https://site.test/b#top"}},
		)),
		page("b", "/b", nil),
	}

	result := build(t, nodes, ports.TenantSettings{})

	assert.Equal(t, []string{"a->b"}, edgePairs(result))
	assert.Equal(t, 1, nodeByID(result, "b").Incoming)
	assert.Equal(t, 1, nodeByID(result, "a").Outgoing)
}

func TestBuild_LinkSources(t *testing.T) {
	nodes := []entities.ContentNode{
		page("src", "/src", doc(
			map[string]any{"type": "button", "attrs": map[string]any{"buttonLink": map[string]any{"href": "/one"}}},
			map[string]any{"type": "pricing", "attrs": map[string]any{"plans": []any{
				map[string]any{"name": "basic", "link": "/two"},
				"not a plan",
			}}},
			map[string]any{"type": "mysteryWidget", "content": []any{linkText("/three")}},
			linkText("mailto:hi@example.com"),
			linkText("/missing"),
			linkText("/src"),
		)),
		page("one", "/one", nil),
		page("two", "/two", nil),
		page("three", "/three", nil),
	}

	result := build(t, nodes, ports.TenantSettings{})

	assert.Equal(t, []string{"src->one", "src->three", "src->two"}, edgePairs(result))
	assert.Equal(t, 0, nodeByID(result, "src").Incoming)
}

func TestBuild_PostGridEdges(t *testing.T) {
	var nodes []entities.ContentNode
	for i := 0; i < 5; i++ {
		n := page(fmt.Sprintf("news%d", i), fmt.Sprintf("/news/%d", i), nil)
		n.Tags = []string{"news"}
		n.CreatedAt = epoch.Add(-time.Duration(i) * time.Hour)
		nodes = append(nodes, n)
	}
	nodes = append(nodes,
		page("other1", "/other1", nil),
		page("other2", "/other2", nil),
	)

	t.Run("Should link every tagged node when the limit is zero", func(t *testing.T) {
		grid := page("index", "/news", doc(postGrid("news", 0)))
		result := build(t, append([]entities.ContentNode{grid}, nodes...), ports.TenantSettings{})
		assert.Equal(t, []string{
			"index->news0", "index->news1", "index->news2", "index->news3", "index->news4",
		}, edgePairs(result))
	})

	t.Run("Should link the newest N when limited", func(t *testing.T) {
		grid := page("index", "/news", doc(postGrid("news", "2")))
		result := build(t, append([]entities.ContentNode{grid}, nodes...), ports.TenantSettings{})
		assert.Equal(t, []string{"index->news0", "index->news1"}, edgePairs(result))
	})

	t.Run("Should use the default limit when none is configured", func(t *testing.T) {
		grid := page("index", "/news", doc(postGrid("", nil)))
		b := NewBuilder(
			&fakeLoader{nodes: append([]entities.ContentNode{grid}, nodes...)},
			&fakeSettings{}, zap.NewNop(), WithDefaultListingLimit(3))
		result, err := b.Build(context.Background(), scope)
		require.NoError(t, err)
		assert.Len(t, result.Edges, 3)
	})

	t.Run("Should never link a listing to itself", func(t *testing.T) {
		grid := page("index", "/news", doc(postGrid("", 0)))
		grid.CreatedAt = epoch.Add(time.Hour)
		result := build(t, append([]entities.ContentNode{grid}, nodes...), ports.TenantSettings{})
		assert.Len(t, result.Edges, 7)
		for _, e := range result.Edges {
			assert.NotEqual(t, e.Source, e.Target)
		}
	})
}

func TestBuild_TraversalFailures(t *testing.T) {
	nodes := []entities.ContentNode{
		page("good", "/good", doc(linkText("/target"))),
		page("broken", "/broken", `{"type":"doc","content":`),
		page("badlimit", "/badlimit", doc(postGrid("", -1))),
		page("target", "/target", nil),
	}

	result := build(t, nodes, ports.TenantSettings{})

	assert.Equal(t, []string{"good->target"}, edgePairs(result))
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "badlimit", result.Failures[0].NodeID)
	assert.Equal(t, "broken", result.Failures[1].NodeID)
	assert.NotEmpty(t, result.Failures[0].Reason)
	assert.Len(t, result.Nodes, 4)
}

func TestBuild_StatusRules(t *testing.T) {
	draft := page("draft", "/draft", doc(linkText("/live")))
	draft.Status = entities.StatusDraft
	archived := page("archived", "/archived", doc(linkText("/live")))
	archived.Status = entities.StatusArchived
	hidden := page("hidden", "/hidden", nil)
	hidden.Status = entities.StatusDraft

	result := build(t, []entities.ContentNode{draft, archived, hidden, page("live", "/live", nil)}, ports.TenantSettings{})

	assert.Equal(t, []string{"draft->live"}, edgePairs(result))
	assert.Empty(t, result.Orphans, "unpublished nodes are never orphans")
}

func TestBuild_DuplicateSlugKeepsLowestID(t *testing.T) {
	nodes := []entities.ContentNode{
		page("z", "/dup", nil),
		page("a", "/dup", nil),
		page("src", "/src", doc(linkText("/dup"))),
	}

	result := build(t, nodes, ports.TenantSettings{})

	assert.Equal(t, []string{"src->a"}, edgePairs(result))
}

func TestBuild_Deterministic(t *testing.T) {
	nodes := []entities.ContentNode{
		page("c", "/c", doc(linkText("/a"), linkText("/b"))),
		page("b", "/b", doc(linkText("/a"))),
		page("a", "/a", doc(postGrid("", 0))),
		page("home", "/", nil),
	}
	reversed := make([]entities.ContentNode, len(nodes))
	for i := range nodes {
		reversed[len(nodes)-1-i] = nodes[i]
	}

	first, err := json.Marshal(build(t, nodes, ports.TenantSettings{}))
	require.NoError(t, err)
	second, err := json.Marshal(build(t, reversed, ports.TenantSettings{}))
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, string(first), string(second))
}

func TestBuild_EmptyScope(t *testing.T) {
	result := build(t, nil, ports.TenantSettings{})

	out, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[],"orphans":[]}`, string(out))
}

func TestBuild_Errors(t *testing.T) {
	boom := errors.New("store down")

	t.Run("Should abort when nodes cannot be loaded", func(t *testing.T) {
		b := NewBuilder(&fakeLoader{err: boom}, &fakeSettings{}, zap.NewNop())
		_, err := b.Build(context.Background(), scope)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Should abort when settings cannot be read", func(t *testing.T) {
		b := NewBuilder(&fakeLoader{}, &fakeSettings{err: boom}, zap.NewNop())
		_, err := b.Build(context.Background(), scope)
		assert.ErrorIs(t, err, boom)
	})
}

func TestBuild_Observer(t *testing.T) {
	var seen Result
	calls := 0
	b := NewBuilder(
		&fakeLoader{nodes: []entities.ContentNode{page("x", "/x", nil)}},
		&fakeSettings{}, zap.NewNop(),
		WithObserver(func(_ keyspace.Scope, r Result, _ time.Duration) {
			calls++
			seen = r
		}))

	_, err := b.Build(context.Background(), scope)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"x"}, orphanIDs(seen))
}

func TestImplicitPaths(t *testing.T) {
	got := implicitPaths(ports.TenantSettings{
		NavigationLinks: []string{"/about/", "https://x.test/contact", "tel:123"},
		FooterLinks:     []string{"about", "/"},
	})

	assert.Equal(t, []string{"/", "/contact", "/about"}, got)
}
