package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/DistributedWeb/ddatabase/flattree"
	"github.com/DistributedWeb/ddatabase/merkle"
)

// Proof carries everything a peer needs to verify one block: the sibling
// node hashes up to a trusted anchor and, when the proof extends to the
// root boundary of a live feed, a signature over the root set.
type Proof struct {
	Nodes     []*merkle.Node
	Signature []byte
}

// Put verifies a remote block against the feed key and absorbs it. The
// operation is serialized with appends; persistence order is tree nodes,
// data and signature first, presence bits last, so an interrupted put is
// invisible after reopen.
func (f *Feed) Put(ctx context.Context, index uint64, data []byte, proof *Proof) error {
	if proof == nil {
		proof = &Proof{}
	}
	return f.batch.Submit(ctx, func() error {
		return f.put(index, data, proof)
	})
}

// put runs on the batcher goroutine.
func (f *Feed) put(index uint64, data []byte, proof *Proof) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guardMutable(); err != nil {
		return err
	}

	top := merkle.NewLeaf(index, data)

	// walk to the trust frontier: the first ancestor whose hash is already
	// committed. Siblings along the way come from the proof, or from local
	// storage when the remote rightly omitted what we hold.
	var local []uint64
	trusted := uint64(0)
	hasTrusted := false
	next := top.Index
	p := 0
	if f.tree.Get(next) {
		trusted, hasTrusted = next, true
	} else {
		for {
			sib := flattree.Sibling(next)
			switch {
			case p < len(proof.Nodes) && proof.Nodes[p].Index == sib:
				p++
			case f.tree.Get(sib):
				local = append(local, sib)
			default:
				// no sibling available: the chain must anchor at the roots
				hasTrusted = false
				goto verify
			}
			next = flattree.Parent(next)
			if f.tree.Get(next) {
				trusted, hasTrusted = next, true
				break
			}
		}
	}

verify:
	var trustedNode *merkle.Node
	if hasTrusted {
		n, err := f.store.getNode(trusted)
		if err != nil {
			return err
		}
		trustedNode = n
	}
	localNodes := make([]*merkle.Node, len(local))
	for k, i := range local {
		n, err := f.store.getNode(i)
		if err != nil {
			return err
		}
		localNodes[k] = n
	}

	if trustedNode != nil && trustedNode.Index == top.Index {
		if !bytes.Equal(trustedNode.Hash, top.Hash) {
			if f.signedDivergence(index, data, proof) {
				return f.poison()
			}
			return fmt.Errorf("%w: block %d", ErrChecksumFailed, index)
		}
		// already verified; only the data and its bit may be missing
		return f.commitPut(index, data, nil, nil, 0)
	}

	writes := []*merkle.Node{top}
	pi, li := 0, 0
	for {
		sib := flattree.Sibling(top.Index)
		var node *merkle.Node
		switch {
		case pi < len(proof.Nodes) && proof.Nodes[pi].Index == sib:
			node = proof.Nodes[pi]
			pi++
			writes = append(writes, node)
		case li < len(localNodes) && localNodes[li].Index == sib:
			node = localNodes[li]
			li++
		default:
			return f.verifyRoots(index, data, top, writes, proof, pi)
		}

		top = merkle.NewParent(node, top)
		writes = append(writes, top)

		if trustedNode != nil && trustedNode.Index == top.Index {
			if !bytes.Equal(trustedNode.Hash, top.Hash) {
				if f.signedDivergence(index, data, proof) {
					return f.poison()
				}
				return fmt.Errorf("%w: block %d", ErrInvalidProof, index)
			}
			// the trusted ancestor is already committed; drop it from the
			// write set
			return f.commitPut(index, data, writes[:len(writes)-1], nil, 0)
		}
	}
}

// verifyRoots anchors a proof chain that reached past local trust: the
// reconstructed top node must slot into a full root set whose hash is
// either signed by the feed key or, on a finalized feed, equal to it.
func (f *Feed) verifyRoots(index uint64, data []byte, top *merkle.Node, writes []*merkle.Node, proof *Proof, pi int) error {
	lastIndex := top.Index
	if len(proof.Nodes) > 0 {
		lastIndex = max(lastIndex, proof.Nodes[len(proof.Nodes)-1].Index)
	}
	verifiedBy := max(flattree.RightSpan(top.Index), flattree.RightSpan(lastIndex)) + 2

	indices, err := flattree.FullRoots(verifiedBy)
	if err != nil {
		return err
	}
	roots := make([]*merkle.Node, len(indices))
	for k, r := range indices {
		switch {
		case r == top.Index:
			roots[k] = top
		case pi < len(proof.Nodes) && proof.Nodes[pi].Index == r:
			roots[k] = proof.Nodes[pi]
			pi++
			writes = append(writes, roots[k])
		case f.tree.Get(r):
			n, err := f.store.getNode(r)
			if err != nil {
				return err
			}
			roots[k] = n
		default:
			return fmt.Errorf("%w: missing tree root %d", ErrInvalidProof, r)
		}
	}

	checksum := merkle.TreeHash(roots)
	var sig []byte
	if len(proof.Signature) > 0 {
		if !merkle.Verify(checksum, proof.Signature, f.key) {
			return fmt.Errorf("%w: remote signature rejected", ErrInvalidProof)
		}
		// a valid signature proves the feed is live
		f.live = true
		sig = proof.Signature
	} else {
		if f.live {
			return ErrMissingSignature
		}
		if !bytes.Equal(checksum, f.key) {
			return fmt.Errorf("%w: root hash does not match the feed key", ErrInvalidProof)
		}
	}

	return f.commitPut(index, data, writes, sig, verifiedBy)
}

// signedDivergence reconstructs the proof's own view of the tree, using
// no local nodes, and reports whether the feed key signed it. A yes means
// the remote holds a validly signed tree that disagrees with ours: a hash
// collision, a bug, or corruption, and grounds to poison the feed.
func (f *Feed) signedDivergence(index uint64, data []byte, proof *Proof) bool {
	if len(proof.Signature) == 0 {
		return false
	}

	top := merkle.NewLeaf(index, data)
	pi := 0
	for pi < len(proof.Nodes) && proof.Nodes[pi].Index == flattree.Sibling(top.Index) {
		top = merkle.NewParent(proof.Nodes[pi], top)
		pi++
	}

	lastIndex := top.Index
	if len(proof.Nodes) > 0 {
		lastIndex = max(lastIndex, proof.Nodes[len(proof.Nodes)-1].Index)
	}
	verifiedBy := max(flattree.RightSpan(top.Index), flattree.RightSpan(lastIndex)) + 2

	indices, err := flattree.FullRoots(verifiedBy)
	if err != nil {
		return false
	}
	roots := make([]*merkle.Node, len(indices))
	for k, r := range indices {
		switch {
		case r == top.Index:
			roots[k] = top
		case pi < len(proof.Nodes) && proof.Nodes[pi].Index == r:
			roots[k] = proof.Nodes[pi]
			pi++
		default:
			// the proof alone cannot reproduce a signable root set
			return false
		}
	}
	return merkle.Verify(merkle.TreeHash(roots), proof.Signature, f.key)
}

// commitPut persists a verified put. Order matters: nodes, data and
// signature first, bits last. Node records are idempotent, so a crash
// between the two phases leaves nothing visible.
func (f *Feed) commitPut(index uint64, data []byte, writes []*merkle.Node, sig []byte, verifiedBy uint64) error {
	// a verified proof must agree with every node we already committed;
	// disagreement means collision, bug or corruption and poisons the feed
	for _, n := range writes {
		if !f.tree.Get(n.Index) {
			continue
		}
		stored, err := f.store.getNode(n.Index)
		if err != nil {
			return err
		}
		if !bytes.Equal(stored.Hash, n.Hash) || stored.Size != n.Size {
			return f.poison()
		}
	}

	for _, n := range writes {
		if err := f.store.putNode(n); err != nil {
			return err
		}
	}

	if !f.indexing {
		offset, _, err := f.dataOffset(index)
		if err != nil {
			return err
		}
		if err := f.store.putData(offset, data); err != nil {
			return err
		}
	}

	if sig != nil {
		if err := f.store.putSignature(verifiedBy/2-1, sig); err != nil {
			return err
		}
	}

	for _, n := range writes {
		f.tree.Set(n.Index)
	}
	changed := f.bits.Set(index, true)

	grew := false
	if length := verifiedBy / 2; length > f.length {
		roots, err := f.rootNodes(length)
		if err != nil {
			return err
		}
		f.gen = merkle.NewGenerator(roots)
		f.length = length
		f.byteLength = f.gen.ByteLength()
		grew = true
	}
	byteLength := f.byteLength
	f.wakeWaiters()

	// release the feed while flushing and broadcasting
	f.mu.Unlock()
	defer f.mu.Lock()

	if err := f.flusher.Sync(); err != nil {
		f.log.Infof("feed: bitfield flush failed: %v", err)
	}
	if grew {
		f.emitAppend()
	}
	if changed {
		f.announce(HaveMessage{Start: index, Length: 1}, byteLength)
	}
	f.updatePeers()
	return nil
}
