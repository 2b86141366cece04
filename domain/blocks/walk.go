package blocks

import "fmt"

// Visitor receives each block of a tree during Walk.
//
// VisitElement returns whether Walk should descend into the element's
// children. Returning an error stops the walk.
type Visitor interface {
	VisitText(b *TextBlock) error
	VisitElement(b *ElementBlock) (descend bool, err error)
	VisitPostGrid(b *PostGridBlock) error
}

// BaseVisitor ignores every block and always recurses. Embed it to override
// only the hooks you need.
type BaseVisitor struct{}

func (BaseVisitor) VisitText(*TextBlock) error { return nil }
func (BaseVisitor) VisitElement(*ElementBlock) (bool, error) { return true, nil }
func (BaseVisitor) VisitPostGrid(*PostGridBlock) error { return nil }

// Walk visits blocks depth-first in document order.
func Walk(tree []Block, v Visitor) error {
	for _, b := range tree {
		if err := walk(b, v); err != nil {
			return err
		}
	}
	return nil
}

func walk(b Block, v Visitor) error {
	switch blk := b.(type) {
	case *TextBlock:
		return v.VisitText(blk)
	case *PostGridBlock:
		return v.VisitPostGrid(blk)
	case *ElementBlock:
		descend, err := v.VisitElement(blk)
		if err != nil || !descend {
			return err
		}
		return Walk(blk.Children, v)
	case nil:
		return nil
	default:
		return fmt.Errorf("blocks: unsupported block %T", b)
	}
}

// Count returns the number of blocks in the tree.
func Count(tree []Block) int {
	c := &counter{}
	_ = Walk(tree, c)
	return c.n
}

type counter struct{ n int }

func (c *counter) VisitText(*TextBlock) error { c.n++; return nil }
func (c *counter) VisitElement(*ElementBlock) (bool, error) {
	c.n++
	return true, nil
}
func (c *counter) VisitPostGrid(*PostGridBlock) error { c.n++; return nil }
