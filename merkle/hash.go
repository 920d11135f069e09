package merkle

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2b"
)

const (
	tagLeaf   = 0x00
	tagParent = 0x01
	tagRoots  = 0x02
)

// DiscoveryLabel is the fixed message hashed under a feed's public key to
// derive its discovery key.
const DiscoveryLabel = "ddatabase"

// HashSize is the byte length of every structural hash.
const HashSize = blake2b.Size256

// hashWriteUint64 writes value to the hasher in bigendian layout - most
// significant byte at the lowest storage location.
func hashWriteUint64(hasher hash.Hash, value uint64) {
	b := [8]byte{}
	binary.BigEndian.PutUint64(b[:], value)
	hasher.Write(b[:])
}

func newHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b only errors for oversized keys
		panic(err)
	}
	return h
}

// LeafHash hashes the content of a single block.
func LeafHash(data []byte) []byte {
	h := newHash()
	h.Write([]byte{tagLeaf})
	hashWriteUint64(h, uint64(len(data)))
	h.Write(data)
	return h.Sum(nil)
}

// ParentHash combines two sibling nodes. The children are ordered by index,
// left sub tree first, regardless of argument order.
func ParentHash(a, b *Node) []byte {
	if a.Index > b.Index {
		a, b = b, a
	}
	h := newHash()
	h.Write([]byte{tagParent})
	hashWriteUint64(h, a.Size+b.Size)
	h.Write(a.Hash)
	h.Write(b.Hash)
	return h.Sum(nil)
}

// TreeHash summarizes a full root set. Each root contributes its hash, its
// index and its byte size, binding the summary to both the shape and the
// content of the tree.
func TreeHash(roots []*Node) []byte {
	h := newHash()
	h.Write([]byte{tagRoots})
	for _, r := range roots {
		h.Write(r.Hash)
		hashWriteUint64(h, r.Index)
		hashWriteUint64(h, r.Size)
	}
	return h.Sum(nil)
}

// DiscoveryKey derives the shareable identifier for the feed with the
// given public key.
func DiscoveryKey(publicKey []byte) []byte {
	h, err := blake2b.New256(publicKey)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(DiscoveryLabel))
	return h.Sum(nil)
}
