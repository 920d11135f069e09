package feed

import (
	"context"
	"errors"

	"github.com/DistributedWeb/ddatabase/flattree"
	"github.com/DistributedWeb/ddatabase/storage"
)

// Seek maps a byte offset to (block index, offset within that block). On
// a sparse feed the walk may hit a sub tree whose sizes are not stored
// locally; with waiting enabled the caller parks until peers supply the
// region, otherwise the miss surfaces as storage.ErrNotFound. An offset at
// or past the end of the feed reports ErrOutOfBounds on a finalized feed or
// when waiting is disabled; on a live feed with waiting enabled the caller
// parks until the feed grows past the offset.
func (f *Feed) Seek(ctx context.Context, offset uint64, opts ...GetOption) (uint64, uint64, error) {
	o := resolveGetOptions(opts...)
	for {
		f.mu.Lock()
		if f.state != stateReady {
			f.mu.Unlock()
			return 0, 0, ErrCancelled
		}
		block, rel, err := f.seekLocal(offset)
		if err == nil {
			f.mu.Unlock()
			return block, rel, nil
		}
		if errors.Is(err, ErrOutOfBounds) && !f.live {
			// a finalized feed can never grow into the offset
			f.mu.Unlock()
			return 0, 0, err
		}
		if !o.Wait {
			f.mu.Unlock()
			return 0, 0, err
		}
		w := &waiter{byByte: true, offset: offset, ch: make(chan struct{})}
		f.waiters = append(f.waiters, w)
		f.mu.Unlock()

		f.updatePeers()

		select {
		case <-w.ch:
		case <-ctx.Done():
			f.dropWaiter(w)
			return 0, 0, ctxErr(ctx)
		case <-f.closedCh:
			return 0, 0, ErrCancelled
		}
	}
}

// seekLocal resolves a byte offset against locally stored tree nodes.
// Must be called with mu held.
func (f *Feed) seekLocal(offset uint64) (uint64, uint64, error) {
	if offset == 0 {
		return 0, 0, nil
	}
	if offset >= f.byteLength {
		return 0, 0, ErrOutOfBounds
	}

	indices, err := flattree.FullRoots(2 * f.length)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range indices {
		node, err := f.store.getNode(r)
		if err != nil {
			return 0, 0, err
		}
		if offset >= node.Size {
			offset -= node.Size
			continue
		}

		// descend into this sub tree; every left child consulted must be
		// stored or the offset cannot be resolved locally
		i := r
		for flattree.Depth(i) > 0 {
			left, _ := flattree.LeftChild(i)
			if !f.tree.Get(left) {
				return 0, 0, storage.ErrNotFound
			}
			lnode, err := f.store.getNode(left)
			if err != nil {
				return 0, 0, err
			}
			if offset < lnode.Size {
				i = left
				continue
			}
			offset -= lnode.Size
			i = flattree.Sibling(left)
		}
		return i / 2, offset, nil
	}
	return 0, 0, ErrOutOfBounds
}
