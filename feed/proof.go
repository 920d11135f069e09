package feed

import (
	"errors"
	"fmt"

	"github.com/DistributedWeb/ddatabase/storage"
)

// Digest describes what this feed already holds along the verification
// path of block index, for inclusion in a request so the serving peer can
// omit nodes the requester does not need.
func (f *Feed) Digest(index uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tree.Digest(2 * index)
}

// Proof assembles the node hashes, and on a live feed the signature, that
// let a remote verify block index against the feed key.
func (f *Feed) Proof(index uint64, opts ProofOpts) (*Proof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	plan, err := f.tree.Proof(2*index, opts)
	if err != nil {
		return nil, err
	}

	proof := &Proof{}
	for _, i := range plan.Nodes {
		n, err := f.store.getNode(i)
		if err != nil {
			return nil, err
		}
		proof.Nodes = append(proof.Nodes, n)
	}

	if plan.VerifiedBy > 0 && f.live {
		sig, err := f.store.getSignature(plan.VerifiedBy/2 - 1)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: no signature at %d", ErrMissingSignature, plan.VerifiedBy/2-1)
		}
		if err != nil {
			return nil, err
		}
		proof.Signature = sig
	}
	return proof, nil
}
