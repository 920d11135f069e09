package flattree

import (
	"errors"
	"math/bits"
)

var ErrOddTreeSize = errors.New("a tree boundary must be an even index")

// FullRoots returns the indices of the minimal set of perfect sub tree
// roots that together cover the first n/2 leaves. n is a tree boundary: it
// must be even, and names the leaf index at which the covered region ends.
//
// The decomposition is always 'largest first'. For n = 14 (seven leaves)
// the roots are [3, 9, 12]:
//
//	2       3
//	      /   \
//	1    1     5      9
//	    / \   / \    / \
//	0  0   2 4   6  8  10  12
//
// Apart from NewIterator, the returned slice is the only allocation made by
// this package.
func FullRoots(n uint64) ([]uint64, error) {
	if n&1 == 1 {
		return nil, ErrOddTreeSize
	}
	var roots []uint64
	offset := uint64(0)
	leaves := n >> 1
	for leaves > 0 {
		// the largest perfect sub tree still covered by the remainder
		factor := uint64(1) << (bits.Len64(leaves) - 1)
		roots = append(roots, offset+factor-1)
		offset += 2 * factor
		leaves -= factor
	}
	return roots, nil
}
