package flattree

// Iterator walks a tree from node to node without re-deriving the (depth,
// offset) pair on every move. It is a convenience over the pure functions
// for callers, like bitfield scans, that take many steps in a row.
type Iterator struct {
	index  uint64
	offset uint64
	factor uint64 // 1 << depth
}

// NewIterator returns an iterator positioned at index i.
func NewIterator(i uint64) *Iterator {
	it := &Iterator{}
	it.Seek(i)
	return it
}

// Index returns the node the iterator is currently positioned at.
func (it *Iterator) Index() uint64 { return it.index }

// Seek repositions the iterator at index i.
func (it *Iterator) Seek(i uint64) {
	it.index = i
	it.offset = Offset(i)
	it.factor = 1 << Depth(i)
}

// IsLeft reports whether the current node is a left child.
func (it *Iterator) IsLeft() bool { return it.offset&1 == 0 }

// Next moves to the next node at the same depth and returns its index.
func (it *Iterator) Next() uint64 {
	it.offset++
	it.index += it.factor << 1
	return it.index
}

// Prev moves to the previous node at the same depth and returns its index.
// It is a no-op at offset zero.
func (it *Iterator) Prev() uint64 {
	if it.offset == 0 {
		return it.index
	}
	it.offset--
	it.index -= it.factor << 1
	return it.index
}

// Parent moves up one level and returns the new index.
func (it *Iterator) Parent() uint64 {
	if it.offset&1 == 1 {
		it.index -= it.factor
	} else {
		it.index += it.factor
	}
	it.offset >>= 1
	it.factor <<= 1
	return it.index
}

// Sibling moves to the other child of the parent and returns its index.
func (it *Iterator) Sibling() uint64 {
	if it.IsLeft() {
		return it.Next()
	}
	return it.Prev()
}

// LeftChild descends to the left child. At a leaf it stays put.
func (it *Iterator) LeftChild() uint64 {
	if it.factor == 1 {
		return it.index
	}
	it.factor >>= 1
	it.index -= it.factor
	it.offset <<= 1
	return it.index
}

// RightChild descends to the right child. At a leaf it stays put.
func (it *Iterator) RightChild() uint64 {
	if it.factor == 1 {
		return it.index
	}
	it.factor >>= 1
	it.index += it.factor
	it.offset = it.offset<<1 + 1
	return it.index
}

// LeftSpan descends to the left most leaf of the current sub tree and
// returns its index.
func (it *Iterator) LeftSpan() uint64 {
	it.index = it.index + 1 - it.factor
	it.offset = it.index >> 1
	it.factor = 1
	return it.index
}

// RightSpan descends to the right most leaf of the current sub tree and
// returns its index.
func (it *Iterator) RightSpan() uint64 {
	it.index = it.index + it.factor - 1
	it.offset = it.index >> 1
	it.factor = 1
	return it.index
}
