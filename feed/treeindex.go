package feed

import (
	"errors"
	"math/bits"

	"github.com/DistributedWeb/ddatabase/bitfield"
	"github.com/DistributedWeb/ddatabase/flattree"
)

var ErrNodeUnavailable = errors.New("requested tree node is not stored locally")

// TreeIndex answers membership and proof planning questions over the tree
// bitfield: which node hashes are stored, what a remote peer still needs
// to verify a block, and how far the locally verified tree extends.
type TreeIndex struct {
	bf *bitfield.Bitfield
}

// NewTreeIndex wraps the tree bits of bf. Passing nil makes an empty
// index, useful to model a remote peer nothing is known about.
func NewTreeIndex(bf *bitfield.Bitfield) *TreeIndex {
	if bf == nil {
		bf = bitfield.New()
	}
	return &TreeIndex{bf: bf}
}

// Get reports whether the hash for tree index i is stored.
func (t *TreeIndex) Get(i uint64) bool { return t.bf.TreeGet(i) }

// Set records that the hash for tree index i is stored.
func (t *TreeIndex) Set(i uint64) bool { return t.bf.TreeSet(i, true) }

// ProofOpts modifies proof planning.
type ProofOpts struct {
	// Digest describes what the requesting peer already has, as produced
	// by Digest on the remote side. Zero means nothing is known.
	Digest uint64
	// Hash requests the leaf hash itself, for hash only requests that
	// carry no block data.
	Hash bool
	// Tree accumulates what the remote is known to hold across requests.
	Tree *TreeIndex
}

// ProofPlan is the set of node indices whose hashes let a remote verify a
// block. VerifiedBy is non zero when the plan extends to the tree root
// boundary, in which case the full roots are included and the response
// must carry the matching signature on a live feed.
type ProofPlan struct {
	Nodes      []uint64
	VerifiedBy uint64
}

// Digest compresses what this side already holds along the verification
// path of tree index i. Bit zero means the path terminates in a stored
// ancestor; each higher bit records a stored sibling, level by level. The
// special value 1 means i needs no proof at all. The encoding is opaque to
// peers; it only needs to be understood by Proof on the serving side.
func (t *TreeIndex) Digest(i uint64) uint64 {
	if t.Get(i) {
		return 1
	}

	digest := uint64(0)
	bit := uint64(2)
	next := i
	limit := max(flattree.Sibling(i)+2, t.bf.TreeCapacity())

	for flattree.LeftSpan(flattree.Parent(next)) > 0 || flattree.RightSpan(next) < limit {
		sib := flattree.Sibling(next)
		parent := flattree.Parent(next)

		if t.Get(sib) {
			digest |= bit
		}
		if t.Get(parent) {
			digest |= bit<<1 | 1
			if digest == bit<<2-1 {
				// every sibling up to a stored root: fully verifiable
				return 1
			}
			return digest
		}
		next = parent
		bit <<= 1
	}
	return digest
}

// Proof plans the minimum node set a remote needs to verify tree index i.
// The walk climbs from i, including each sibling the remote lacks, and
// stops as soon as it reaches a node the remote is known to hold. If the
// climb leaves the locally verified sub tree instead, the plan anchors at
// the root boundary: VerifiedBy is set and the missing full roots are
// appended.
func (t *TreeIndex) Proof(i uint64, opts ProofOpts) (*ProofPlan, error) {
	if !t.Get(i) {
		return nil, ErrNodeUnavailable
	}

	plan := &ProofPlan{}
	if opts.Hash {
		plan.Nodes = append(plan.Nodes, i)
	}
	if opts.Digest == 1 {
		return plan, nil
	}

	remote := opts.Tree
	if remote == nil {
		remote = NewTreeIndex(nil)
	}
	t.decodeDigest(i, opts.Digest, remote)

	next := i
	for !remote.Get(next) {
		sib := flattree.Sibling(next)
		if !t.Get(sib) {
			// the sibling is outside the verified sub tree; anchor at the
			// current root set instead
			verifiedBy := t.VerifiedBy(next)
			roots, err := flattree.FullRoots(verifiedBy)
			if err != nil {
				return nil, err
			}
			for _, r := range roots {
				if r != next && !remote.Get(r) {
					plan.Nodes = append(plan.Nodes, r)
				}
			}
			plan.VerifiedBy = verifiedBy
			return plan, nil
		}
		if !remote.Get(sib) {
			plan.Nodes = append(plan.Nodes, sib)
		}
		next = flattree.Parent(next)
	}
	return plan, nil
}

// decodeDigest replays a digest produced by the remote into its tree
// model, mirroring the encoding in Digest.
func (t *TreeIndex) decodeDigest(i, digest uint64, remote *TreeIndex) {
	if digest == 0 {
		return
	}
	hasRoot := digest&1 == 1
	d := digest >> 1
	next := i
	for d > 0 {
		if d == 1 && hasRoot {
			// the final bit marks the ancestor the remote trusts as a root
			remote.Set(next)
			return
		}
		if d&1 == 1 {
			remote.Set(flattree.Sibling(next))
		}
		next = flattree.Parent(next)
		d >>= 1
	}
}

// VerifiedBy returns the tree boundary (twice the leaf count) at which
// node i is anchored by the stored root set, or zero when i is not
// stored. The climb finds the largest fully stored sub tree containing i,
// then absorbs every verified sub tree to its right; those are exactly
// the trailing full roots of the boundary.
func (t *TreeIndex) VerifiedBy(i uint64) uint64 {
	if !t.Get(i) {
		return 0
	}

	top := i
	for t.Get(flattree.Sibling(top)) && t.Get(flattree.Parent(top)) {
		top = flattree.Parent(top)
	}

	n := flattree.RightSpan(top) + 2
	for {
		leaf := n // flat index of the first leaf past the boundary
		d := alignedDepth(leaf)
		extended := false
		for {
			r := leaf + (uint64(1) << d) - 1
			if t.Get(r) {
				n = flattree.RightSpan(r) + 2
				extended = true
				break
			}
			if d == 0 {
				break
			}
			d--
		}
		if !extended {
			return n
		}
	}
}

// Blocks returns the number of blocks the stored tree verifies: the
// boundary of the highest stored ancestor of leaf zero. This is how a
// reopened feed recovers its length, implicitly trimming any trailing
// half written leaf.
func (t *TreeIndex) Blocks() uint64 {
	limit := t.bf.TreeCapacity()
	if limit == 0 {
		return 0
	}
	top := uint64(0)
	next := uint64(0)
	for flattree.RightSpan(next) < limit {
		next = flattree.Parent(next)
		if t.Get(next) {
			top = next
		}
	}
	if !t.Get(top) {
		return 0
	}
	return t.VerifiedBy(top) / 2
}

// alignedDepth returns the deepest sub tree that may start at the given
// leaf flat index while staying aligned to its own size.
func alignedDepth(leaf uint64) uint64 {
	p := leaf / 2
	if p == 0 {
		return 63
	}
	return uint64(bits.TrailingZeros64(p))
}
