// Package feed implements a cryptographically verifiable append only log.
//
// A feed is a sequence of opaque blocks indexed from zero. Every block is
// a leaf of a binary Merkle tree; readers verify any block against the
// feed's public key without trusting the storage or the peer that served
// it. A live feed anchors trust in Ed25519 signatures over the evolving
// root set; a finalized feed anchors it in the key itself, which equals
// the root set hash of the fixed length tree.
package feed

import (
	"bytes"
	"errors"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/DistributedWeb/ddatabase/bitfield"
	"github.com/DistributedWeb/ddatabase/flattree"
	"github.com/DistributedWeb/ddatabase/merkle"
	"github.com/DistributedWeb/ddatabase/storage"
)

type feedState int32

const (
	stateUnopened feedState = iota
	stateOpening
	stateReady
	stateClosing
	stateClosed
)

// Feed is an append only log bound to one storage provider. All mutating
// operations are serialized through an internal batcher; reads only take
// the feed lock briefly.
type Feed struct {
	mu  sync.Mutex
	log logger.Logger

	key          []byte
	secretKey    []byte
	discoveryKey []byte
	id           []byte

	length     uint64
	byteLength uint64
	live       bool
	writable   bool
	sparse     bool
	indexing   bool

	state    feedState
	critical error

	codec Codec
	bits  *bitfield.Bitfield
	tree  *TreeIndex
	gen   *merkle.Generator
	store *storageBinding

	batch   *batcher
	flusher *flusher

	selections []Selection
	waiters    []*waiter
	peers      []Peer

	closedCh  chan struct{}
	appendSub []chan struct{}
}

type waiter struct {
	block  uint64
	byByte bool
	offset uint64
	ch     chan struct{}
}

// Open opens (or creates) the feed persisted by provider.
func Open(provider storage.Provider, opts ...Option) (*Feed, error) {
	o, err := resolveOptions(opts...)
	if err != nil {
		return nil, err
	}

	f := &Feed{
		log:      o.Log,
		id:       o.ID,
		sparse:   o.Sparse,
		indexing: o.Indexing,
		codec:    o.Codec,
		bits:     bitfield.New(),
		state:    stateOpening,
		closedCh: make(chan struct{}),
	}
	f.tree = NewTreeIndex(f.bits)

	if f.store, err = openStorage(provider); err != nil {
		return nil, err
	}
	if err = f.open(o); err != nil {
		f.store.close()
		return nil, err
	}

	f.batch = newBatcher(64)
	f.flusher = newFlusher(f.flushBitfield)
	f.state = stateReady

	if !f.sparse {
		// interest in the whole feed, following the live tail
		f.Download(Selection{Start: 0, End: -1, Linear: true})
	}
	return f, nil
}

func (f *Feed) open(o Options) error {
	key, err := f.store.getKey()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	secretKey, err := f.store.getSecretKey()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if err := f.store.readBitfield(f.bits); err != nil {
		return err
	}

	overwrite := o.Overwrite
	if key == nil && f.bits.DataCapacity() > 0 {
		// bits without a key cannot be verified against anything
		f.log.Infof("feed: bitfield present without key material, forcing overwrite")
		overwrite = true
	}
	if key != nil && o.Key != nil && !bytes.Equal(key, o.Key) && !overwrite {
		return ErrStorageConflict
	}
	if overwrite {
		if err := f.store.wipeBitfield(f.bits); err != nil {
			return err
		}
		f.bits.Reset()
		key, secretKey = nil, nil
	}

	f.length = f.tree.Blocks()

	// live means growth is signature authorized; the trailing signature is
	// the evidence
	f.live = o.Live
	if f.length > 0 {
		_, err := f.store.getSignature(f.length - 1)
		switch {
		case err == nil:
			f.live = true
		case errors.Is(err, storage.ErrNotFound):
			f.live = false
		default:
			return err
		}
	}

	switch {
	case key == nil && o.Key != nil:
		key = append([]byte(nil), o.Key...)
		if err := f.store.putKey(key); err != nil {
			return err
		}
	case key == nil && o.CreateIfMissing:
		if key, secretKey, err = merkle.KeyPair(); err != nil {
			return err
		}
		if err := f.store.putKey(key); err != nil {
			return err
		}
		if err := f.store.putSecretKey(secretKey); err != nil {
			return err
		}
	case key == nil:
		return storage.ErrNotFound
	}

	f.key = key
	f.secretKey = secretKey
	f.writable = secretKey != nil
	f.discoveryKey = merkle.DiscoveryKey(key)

	roots, err := f.rootNodes(f.length)
	if err != nil {
		return err
	}
	f.gen = merkle.NewGenerator(roots)
	f.byteLength = f.gen.ByteLength()

	f.log.Debugf("feed: opened length=%d byteLength=%d live=%t writable=%t",
		f.length, f.byteLength, f.live, f.writable)
	return nil
}

// rootNodes loads the full root nodes for a feed of the given length.
func (f *Feed) rootNodes(length uint64) ([]*merkle.Node, error) {
	indices, err := flattree.FullRoots(2 * length)
	if err != nil {
		return nil, err
	}
	roots := make([]*merkle.Node, len(indices))
	for k, r := range indices {
		if roots[k], err = f.store.getNode(r); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

// dataOffset resolves the byte offset and stored size of a block by
// accumulating the sizes of the full roots preceding its leaf.
func (f *Feed) dataOffset(index uint64) (offset, size uint64, err error) {
	indices, err := flattree.FullRoots(2 * index)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range indices {
		n, err := f.store.getNode(r)
		if err != nil {
			return 0, 0, err
		}
		offset += n.Size
	}
	leaf, err := f.store.getNode(2 * index)
	if err != nil {
		return 0, 0, err
	}
	return offset, leaf.Size, nil
}

// Key returns the feed public key.
func (f *Feed) Key() []byte { return f.key }

// DiscoveryKey returns the keyed hash identifying this feed on the wire.
func (f *Feed) DiscoveryKey() []byte { return f.discoveryKey }

// ID returns the 32 byte local identity used for peer dedup.
func (f *Feed) ID() []byte { return f.id }

// Writable reports whether this feed holds the secret key.
func (f *Feed) Writable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writable
}

// Live reports whether growth is signature authorized.
func (f *Feed) Live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// Length returns the number of verified blocks.
func (f *Feed) Length() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}

// ByteLength returns the total byte size of the verified blocks.
func (f *Feed) ByteLength() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byteLength
}

// Has reports whether block index is available locally.
func (f *Feed) Has(index uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits.Get(index)
}

// Tree exposes the tree index for peers planning proofs.
func (f *Feed) Tree() *TreeIndex { return f.tree }

// guardMutable must be called with mu held.
func (f *Feed) guardMutable() error {
	if f.state != stateReady {
		return ErrCancelled
	}
	if f.critical != nil {
		return f.critical
	}
	return nil
}

// poison records a critical divergence. Further mutations are refused;
// reads of already verified blocks continue to work.
func (f *Feed) poison() error {
	f.critical = ErrCritical
	f.log.Infof("feed: poisoned, refusing further mutations")
	return ErrCritical
}

// flushBitfield drains the dirty page queue into storage. Page snapshots
// are taken under the feed lock; writes happen outside it.
func (f *Feed) flushBitfield() error {
	f.mu.Lock()
	var pages []*bitfield.Page
	for {
		p := f.bits.NextUpdate()
		if p == nil {
			break
		}
		pages = append(pages, p)
	}
	f.mu.Unlock()

	for _, p := range pages {
		if err := f.store.putBitfieldPage(p); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeAppend returns a channel that receives one token per append or
// length extending put, after the corresponding bitfield flush. The channel
// buffers 16 tokens; a token that finds the buffer full is dropped.
func (f *Feed) SubscribeAppend() <-chan struct{} {
	ch := make(chan struct{}, 16)
	f.mu.Lock()
	f.appendSub = append(f.appendSub, ch)
	f.mu.Unlock()
	return ch
}

// emitAppend is called after storage flush with the feed unlocked.
func (f *Feed) emitAppend() {
	f.mu.Lock()
	subs := append([]chan struct{}(nil), f.appendSub...)
	f.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// wakeWaiters releases every waiter whose block arrived or whose byte
// seek can now make progress. Must be called with mu held.
func (f *Feed) wakeWaiters() {
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		ready := false
		if w.byByte {
			_, _, err := f.seekLocal(w.offset)
			ready = err == nil
		} else {
			ready = f.bits.Get(w.block)
		}
		if ready {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

// Close quiesces pending work, rejects parked waiters and closes storage.
// It is idempotent.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.state == stateClosed || f.state == stateClosing {
		f.mu.Unlock()
		return nil
	}
	f.state = stateClosing
	// parked waiters observe closedCh and reject with ErrCancelled
	close(f.closedCh)
	f.waiters = nil
	f.mu.Unlock()

	f.batch.Close()
	if f.flusher != nil {
		if err := f.flusher.Sync(); err != nil {
			f.log.Infof("feed: final bitfield flush failed: %v", err)
		}
	}
	err := f.store.close()

	f.mu.Lock()
	f.state = stateClosed
	f.mu.Unlock()
	return err
}
