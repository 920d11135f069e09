package feed

import (
	"context"

	"github.com/DistributedWeb/ddatabase/storage"
)

// GetOptions modify Get and Seek.
type GetOptions struct {
	// Wait defaults to true: a missing block parks the caller until the
	// block arrives, the context fails, or the feed closes.
	Wait bool
}

// GetOption is a generic option type for read operations.
type GetOption func(any)

// WithNoWait makes a read fail immediately instead of parking.
func WithNoWait() GetOption {
	return func(opts any) {
		if o, ok := opts.(*GetOptions); ok {
			o.Wait = false
		}
	}
}

func resolveGetOptions(opts ...GetOption) GetOptions {
	o := GetOptions{Wait: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Get returns the decoded block at index. A locally missing block parks
// the caller as a waiter and tells peers the block is wanted, unless
// WithNoWait is given, in which case it reports storage.ErrNotFound.
// Context deadlines surface as ErrTimeout, cancellation and feed close as
// ErrCancelled.
func (f *Feed) Get(ctx context.Context, index uint64, opts ...GetOption) (any, error) {
	o := resolveGetOptions(opts...)
	for {
		f.mu.Lock()
		if f.state != stateReady {
			f.mu.Unlock()
			return nil, ErrCancelled
		}
		if f.bits.Get(index) {
			value, err := f.getLocal(index)
			f.mu.Unlock()
			return value, err
		}
		if !o.Wait {
			f.mu.Unlock()
			return nil, storage.ErrNotFound
		}
		w := &waiter{block: index, ch: make(chan struct{})}
		f.waiters = append(f.waiters, w)
		f.mu.Unlock()

		// peers may now choose to request it
		f.updatePeers()

		select {
		case <-w.ch:
			// re-check; the block should be readable now
		case <-ctx.Done():
			f.dropWaiter(w)
			return nil, ctxErr(ctx)
		case <-f.closedCh:
			return nil, ErrCancelled
		}
	}
}

// getLocal reads and decodes a present block. Must be called with mu
// held.
func (f *Feed) getLocal(index uint64) (any, error) {
	offset, size, err := f.dataOffset(index)
	if err != nil {
		return nil, err
	}
	data, err := f.store.getData(offset, size)
	if err != nil {
		return nil, err
	}
	return f.codec.Decode(data)
}

// Head returns the decoded last block of the feed.
func (f *Feed) Head(ctx context.Context, opts ...GetOption) (any, error) {
	f.mu.Lock()
	if f.length == 0 {
		f.mu.Unlock()
		return nil, ErrOutOfBounds
	}
	index := f.length - 1
	f.mu.Unlock()
	return f.Get(ctx, index, opts...)
}

func (f *Feed) dropWaiter(w *waiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.waiters {
		if f.waiters[k] == w {
			last := len(f.waiters) - 1
			f.waiters[k] = f.waiters[last]
			f.waiters = f.waiters[:last]
			return
		}
	}
}
