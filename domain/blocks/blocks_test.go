package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "cms-backend/pkg/errors"
)

const docJSON = `{
  "type": "doc",
  "content": [
    {"type": "paragraph", "content": [
      {"type": "text", "text": "see ", "marks": [{"type": "bold"}]},
      {"type": "text", "text": "about", "marks": [{"type": "link", "attrs": {"href": "/about"}}]}
    ]},
    {"type": "hero", "attrs": {"ctaLink": "/shop"}, "content": []},
    {"type": "postGrid", "attrs": {"filterTag": "news", "limit": 3}},
    {"type": "mystery", "buttonLink": "/x", "content": [{"type": "text", "text": "hi"}]}
  ]
}`

func TestParse_JSONDocument(t *testing.T) {
	tree, err := Parse(docJSON)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	doc, ok := tree[0].(*ElementBlock)
	require.True(t, ok)
	assert.Equal(t, TypeDoc, doc.Type())
	require.Len(t, doc.Children, 4)

	para := doc.Children[0].(*ElementBlock)
	link := para.Children[1].(*TextBlock)
	assert.Equal(t, "about", link.Text)
	assert.Equal(t, "link", link.Marks[0].Type)
	assert.Equal(t, "/about", link.Marks[0].Attrs["href"])

	hero := doc.Children[1].(*ElementBlock)
	assert.Equal(t, TypeHero, hero.Type())
	assert.Equal(t, "/shop", hero.Attrs["ctaLink"])

	grid := doc.Children[2].(*PostGridBlock)
	assert.Equal(t, "news", grid.FilterTag)
	assert.Equal(t, float64(3), grid.Limit)

	unknown := doc.Children[3].(*ElementBlock)
	assert.Equal(t, TypeUnknown, unknown.Type())
	assert.Equal(t, "mystery", unknown.Tag)
	assert.Equal(t, "/x", unknown.Attrs["buttonLink"])
	assert.Len(t, unknown.Children, 1)

	assert.Equal(t, 8, Count(tree))
}

func TestParse_Shapes(t *testing.T) {
	t.Run("Should accept nil and empty string", func(t *testing.T) {
		tree, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, tree)

		tree, err = Parse("  ")
		require.NoError(t, err)
		assert.Empty(t, tree)
	})

	t.Run("Should accept a native array", func(t *testing.T) {
		tree, err := Parse([]any{
			map[string]any{"type": "section", "children": []any{
				map[string]any{"type": "text", "text": "x"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, tree, 1)
		assert.Len(t, tree[0].(*ElementBlock).Children, 1)
	})

	t.Run("Should treat missing type as unknown container", func(t *testing.T) {
		tree, err := Parse([]any{map[string]any{"content": []any{}}})
		require.NoError(t, err)
		assert.Equal(t, TypeUnknown, tree[0].Type())
	})
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"invalid json", `{"type":`},
		{"json scalar string", `"hello"`},
		{"non-object block", []any{"oops"}},
		{"non-string type", []any{map[string]any{"type": 7}}},
		{"content not array", []any{map[string]any{"type": "section", "content": "x"}}},
		{"marks not array", []any{map[string]any{"type": "text", "marks": map[string]any{}}}},
		{"mark not object", []any{map[string]any{"type": "text", "marks": []any{1}}}},
		{"attrs not object", []any{map[string]any{"type": "hero", "attrs": []any{}}}},
		{"filterTag not string", []any{map[string]any{"type": "postGrid", "attrs": map[string]any{"filterTag": 1}}}},
		{"unsupported type", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

type hrefCollector struct {
	BaseVisitor
	hrefs []string
	grids int
}

func (c *hrefCollector) VisitText(b *TextBlock) error {
	for _, m := range b.Marks {
		if m.Type == "link" {
			c.hrefs = append(c.hrefs, m.Attrs["href"].(string))
		}
	}
	return nil
}

func (c *hrefCollector) VisitPostGrid(*PostGridBlock) error {
	c.grids++
	return nil
}

func TestWalk(t *testing.T) {
	tree, err := Parse(docJSON)
	require.NoError(t, err)

	c := &hrefCollector{}
	require.NoError(t, Walk(tree, c))
	assert.Equal(t, []string{"/about"}, c.hrefs)
	assert.Equal(t, 1, c.grids)
}

type skipUnknown struct {
	BaseVisitor
	texts int
}

func (s *skipUnknown) VisitElement(b *ElementBlock) (bool, error) {
	return b.Type() != TypeUnknown, nil
}

func (s *skipUnknown) VisitText(*TextBlock) error {
	s.texts++
	return nil
}

func TestWalk_NoDescend(t *testing.T) {
	tree, err := Parse(docJSON)
	require.NoError(t, err)

	v := &skipUnknown{}
	require.NoError(t, Walk(tree, v))
	assert.Equal(t, 2, v.texts)
}
