// Package flattree implements the index arithmetic for an in-order
// numbering of a perfect binary tree.
//
// In this numbering the leaves are the even integers and the interior nodes
// are the odd integers. The tree for eight leaves looks like this:
//
//	3              7
//	             /   \
//	           /       \
//	         /           \
//	2       3             11
//	      /   \          /   \
//	1    1     5        9     13
//	    / \   / \      / \   /  \
//	0  0   2 4   6    8  10 12  14
//
// The depth of a node is recoverable directly from the binary encoding of
// its index: it is the length of the trailing run of one bits. Everything
// else - parents, siblings, children and the spans covered by a sub tree -
// follows from the (depth, offset) pair with simple shifts. As with any
// implicit tree encoding of this kind, no part of the tree is ever
// materialized; navigation from any index is constant time and allocation
// free.
//
// A tree that currently holds n leaves is summarized by FullRoots, the
// minimal set of perfect sub tree roots covering leaves 0..n-1. Roots are
// produced in ascending index order, largest sub tree first.
package flattree
