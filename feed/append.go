package feed

import (
	"context"

	"github.com/DistributedWeb/ddatabase/merkle"
)

// Append encodes and appends values as consecutive blocks. It returns the
// index of the first appended block. Batches from concurrent callers are
// serialized FIFO; within a batch either every value is committed or, on
// error, none of the presence bits are flipped.
func (f *Feed) Append(ctx context.Context, values ...any) (uint64, error) {
	if len(values) == 0 {
		return f.Length(), nil
	}
	var seq uint64
	err := f.batch.Submit(ctx, func() error {
		var err error
		seq, err = f.append(values)
		return err
	})
	return seq, err
}

// append runs on the batcher goroutine.
func (f *Feed) append(values []any) (uint64, error) {
	f.mu.Lock()
	if err := f.guardMutable(); err != nil {
		f.mu.Unlock()
		return 0, err
	}
	if !f.writable {
		f.mu.Unlock()
		return 0, ErrNotWritable
	}

	seq := f.length
	offset := f.byteLength

	// the generator mutates as we feed it; keep the old roots so a failed
	// batch can roll back without touching committed state
	undo := append([]*merkle.Node(nil), f.gen.Roots()...)

	var nodes []*merkle.Node
	commit := func() error {
		for k, v := range values {
			data, err := f.codec.Encode(v)
			if err != nil {
				return err
			}
			produced := f.gen.Append(data)
			nodes = append(nodes, produced...)

			if !f.indexing {
				if err := f.store.putData(offset, data); err != nil {
					return err
				}
			}
			offset += uint64(len(data))

			for _, n := range produced {
				if err := f.store.putNode(n); err != nil {
					return err
				}
			}

			if f.live {
				sig := merkle.Sign(merkle.TreeHash(f.gen.Roots()), f.secretKey)
				if err := f.store.putSignature(seq+uint64(k), sig); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := commit(); err != nil {
		// bits were never flipped; recovery ignores the partial records
		f.gen = merkle.NewGenerator(undo)
		f.mu.Unlock()
		return 0, err
	}

	for _, n := range nodes {
		f.tree.Set(n.Index)
	}
	for k := range values {
		f.bits.Set(seq+uint64(k), true)
	}
	f.length = seq + uint64(len(values))
	f.byteLength = f.gen.ByteLength()
	byteLength := f.byteLength
	f.wakeWaiters()
	f.mu.Unlock()

	// bitfield last, and the append event only after the flush lands
	if err := f.flusher.Sync(); err != nil {
		f.log.Infof("feed: bitfield flush failed: %v", err)
	}
	f.emitAppend()
	f.announce(HaveMessage{Start: seq, Length: uint64(len(values))}, byteLength)
	f.updatePeers()
	return seq, nil
}
