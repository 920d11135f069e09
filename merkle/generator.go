package merkle

import (
	"github.com/DistributedWeb/ddatabase/flattree"
)

// Generator grows a feed's tree one leaf at a time, tracking the current
// full roots as it goes. It is seeded from the persisted root nodes when a
// feed opens and then fed every appended block in order.
type Generator struct {
	roots []*Node
}

// NewGenerator returns a generator whose tree already contains the given
// full roots. Pass nil for an empty tree.
func NewGenerator(roots []*Node) *Generator {
	return &Generator{roots: append([]*Node(nil), roots...)}
}

// Roots returns the current full roots, ascending by index. The slice is
// shared; callers must not modify it.
func (g *Generator) Roots() []*Node { return g.roots }

// ByteLength returns the total byte size of all leaves in the tree.
func (g *Generator) ByteLength() uint64 {
	var n uint64
	for _, r := range g.roots {
		n += r.Size
	}
	return n
}

// Append adds one block to the tree. It returns the new leaf node followed
// by every interior node the addition completed, in bottom up order.
//
// The back fill works because a new leaf can only ever close sub trees
// 'above and to the left' of it: whenever the two right most roots share a
// parent they collapse into it, and the collapse can cascade.
func (g *Generator) Append(data []byte) []*Node {
	index := uint64(0)
	if len(g.roots) > 0 {
		index = flattree.RightSpan(g.roots[len(g.roots)-1].Index) + 2
	}

	leaf := NewLeaf(index/2, data)
	g.roots = append(g.roots, leaf)
	nodes := []*Node{leaf}

	for len(g.roots) >= 2 {
		left := g.roots[len(g.roots)-2]
		right := g.roots[len(g.roots)-1]
		if flattree.Parent(left.Index) != flattree.Parent(right.Index) {
			break
		}
		parent := NewParent(left, right)
		g.roots = append(g.roots[:len(g.roots)-2], parent)
		nodes = append(nodes, parent)
	}
	return nodes
}
