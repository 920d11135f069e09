package feed

import (
	"context"
	"io"
)

// ReadStreamOptions configure NewReadStream.
type ReadStreamOptions struct {
	// Start is the first block to produce.
	Start uint64
	// End is exclusive; -1 follows the feed to its current end, or forever
	// when Live is set.
	End int64
	// Live keeps the stream open at the tail, producing blocks as they
	// are appended.
	Live bool
	// Tail starts the stream at the feed's current length.
	Tail bool
}

// ReadStream produces blocks in order with one outstanding read. Next
// blocks with the same wait semantics as Get; a drained stream reports
// io.EOF.
type ReadStream struct {
	f    *Feed
	next uint64
	end  int64
	live bool
}

// NewReadStream returns a stream over [Start, End).
func (f *Feed) NewReadStream(opts ReadStreamOptions) *ReadStream {
	s := &ReadStream{f: f, next: opts.Start, end: opts.End, live: opts.Live}
	if opts.Tail {
		s.next = f.Length()
	}
	if !opts.Live && opts.End < 0 {
		// snapshot the tail so the stream terminates
		s.end = int64(f.Length())
	}
	return s
}

// Next returns the next decoded block, or io.EOF when the range is
// exhausted.
func (s *ReadStream) Next(ctx context.Context) (any, error) {
	if s.end >= 0 && s.next >= uint64(s.end) {
		return nil, io.EOF
	}
	value, err := s.f.Get(ctx, s.next)
	if err != nil {
		return nil, err
	}
	s.next++
	return value, nil
}

// Index returns the block index Next will produce.
func (s *ReadStream) Index() uint64 { return s.next }

// WriteStream batches values and forwards them through the feed's atomic
// batcher. A Flush is one durable append batch.
type WriteStream struct {
	f     *Feed
	batch []any
}

// NewWriteStream returns an empty write stream.
func (f *Feed) NewWriteStream() *WriteStream {
	return &WriteStream{f: f}
}

// Write buffers values for the next Flush.
func (ws *WriteStream) Write(values ...any) {
	ws.batch = append(ws.batch, values...)
}

// Flush appends the buffered batch atomically and empties the buffer. The
// returned index is the first block of the batch.
func (ws *WriteStream) Flush(ctx context.Context) (uint64, error) {
	if len(ws.batch) == 0 {
		return ws.f.Length(), nil
	}
	batch := ws.batch
	ws.batch = nil
	return ws.f.Append(ctx, batch...)
}
