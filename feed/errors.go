package feed

import (
	"context"
	"errors"
)

var (
	ErrStorageConflict  = errors.New("another feed is stored here")
	ErrNotWritable      = errors.New("feed is not writable")
	ErrInvalidProof     = errors.New("proof verification failed")
	ErrMissingSignature = errors.New("a signature is required and was not provided")
	ErrChecksumFailed   = errors.New("stored checksum does not match the verified data")
	ErrOutOfBounds      = errors.New("offset is out of bounds")
	ErrCancelled        = errors.New("operation cancelled")
	ErrTimeout          = errors.New("operation timed out")
)

// ErrCritical poisons a feed: a proof carried a valid signature but its
// reconstructed tree disagrees with nodes this feed already committed.
// That means a hash collision, a bug, or storage corruption; mutations are
// refused from then on while reads of already verified blocks continue.
var ErrCritical = errors.New("verified proof disagrees with committed tree nodes")

var ErrMissingCodec = errors.New("no codec registered under that name")

// ctxErr maps a context failure onto the feed error codes.
func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrCancelled
}
