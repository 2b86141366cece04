// Package blocks models the body of a content node as a tree of typed blocks.
//
// Block is a closed sum type with three variants. Code that inspects a tree
// should go through Walk and a Visitor rather than switching on raw type tags.
package blocks

// BlockType is the tag carried by every block.
type BlockType string

const (
	TypeDoc       BlockType = "doc"
	TypeParagraph BlockType = "paragraph"
	TypeHeading   BlockType = "heading"
	TypeText      BlockType = "text"
	TypeHero      BlockType = "hero"
	TypeCTA       BlockType = "cta"
	TypePricing   BlockType = "pricing"
	TypeFeatures  BlockType = "features"
	TypeColumns   BlockType = "columns"
	TypeTable     BlockType = "table"
	TypeList      BlockType = "list"
	TypeImage     BlockType = "image"
	TypeButton    BlockType = "button"
	TypeSection   BlockType = "section"
	TypePostGrid  BlockType = "postGrid"

	// TypeUnknown covers any tag outside the known set. Such blocks behave as
	// plain containers.
	TypeUnknown BlockType = "unknown"
)

var knownTypes = map[string]BlockType{
	string(TypeDoc):       TypeDoc,
	string(TypeParagraph): TypeParagraph,
	string(TypeHeading):   TypeHeading,
	string(TypeText):      TypeText,
	string(TypeHero):      TypeHero,
	string(TypeCTA):       TypeCTA,
	string(TypePricing):   TypePricing,
	string(TypeFeatures):  TypeFeatures,
	string(TypeColumns):   TypeColumns,
	string(TypeTable):     TypeTable,
	string(TypeList):      TypeList,
	string(TypeImage):     TypeImage,
	string(TypeButton):    TypeButton,
	string(TypeSection):   TypeSection,
	string(TypePostGrid):  TypePostGrid,
}

// TypeOf maps a raw tag to its BlockType.
func TypeOf(tag string) BlockType {
	if t, ok := knownTypes[tag]; ok {
		return t
	}
	return TypeUnknown
}

// Block is implemented only by *TextBlock, *ElementBlock and *PostGridBlock.
type Block interface {
	Type() BlockType
	isBlock()
}

// Mark is an inline annotation on a text run, e.g. a link.
type Mark struct {
	Type  string
	Attrs map[string]any
}

// TextBlock is a leaf run of text.
type TextBlock struct {
	Text  string
	Marks []Mark
}

func (*TextBlock) Type() BlockType { return TypeText }
func (*TextBlock) isBlock()        {}

// ElementBlock is any container block: paragraphs, sections, hero banners,
// pricing tables and unknown tags alike.
type ElementBlock struct {
	Kind     BlockType
	Tag      string
	Attrs    map[string]any
	Children []Block
}

func (b *ElementBlock) Type() BlockType { return b.Kind }
func (*ElementBlock) isBlock()          {}

// PostGridBlock is a dynamic listing whose entries are computed from the
// published content at render time.
type PostGridBlock struct {
	FilterTag string
	// Limit is the raw configured value; nil when absent.
	Limit any
	Attrs map[string]any
}

func (*PostGridBlock) Type() BlockType { return TypePostGrid }
func (*PostGridBlock) isBlock()        {}
