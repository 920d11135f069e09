// Package storage defines the random access abstraction a feed persists
// through, and provides the file and memory backed implementations.
//
// A feed owns six named streams: "data", "tree", "bitfield", "signatures",
// "key" and "secret_key". A Provider maps those names onto stores. Reads
// past the end of written state report ErrNotFound so that callers can
// distinguish absent records from I/O failures.
package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is reported for reads past the end of the written state.
var ErrNotFound = errors.New("storage: not found")

// RandomAccess is a single random access byte stream.
type RandomAccess interface {
	// Read returns exactly length bytes at offset, or ErrNotFound when the
	// range extends past the written state.
	Read(offset, length uint64) ([]byte, error)
	// Write persists data at offset, extending the stream as needed.
	Write(offset uint64, data []byte) error
	Close() error
}

// Provider opens the named stream of a feed's store.
type Provider func(name string) (RandomAccess, error)

// StreamNames lists every stream a feed opens, in open order.
var StreamNames = []string{"key", "secret_key", "tree", "data", "bitfield", "signatures"}

func validName(name string) error {
	for _, n := range StreamNames {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("storage: unknown stream name %q", name)
}
