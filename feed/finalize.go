package feed

import (
	"context"

	"github.com/DistributedWeb/ddatabase/merkle"
)

// Finalize converts the feed into an immutable, anchored one: the key
// becomes the root set hash of the current tree, so any peer can verify
// blocks by root equality with no signatures involved. The feed stops
// being writable; further appends fail with ErrNotWritable.
func (f *Feed) Finalize(ctx context.Context) error {
	return f.batch.Submit(ctx, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.guardMutable(); err != nil {
			return err
		}
		if !f.writable {
			return ErrNotWritable
		}

		key := merkle.TreeHash(f.gen.Roots())
		if err := f.store.putKey(key); err != nil {
			return err
		}

		f.key = key
		f.discoveryKey = merkle.DiscoveryKey(key)
		f.secretKey = nil
		f.writable = false
		f.live = false

		f.log.Debugf("feed: finalized at length=%d", f.length)
		return nil
	})
}
