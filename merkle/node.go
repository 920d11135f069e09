package merkle

import (
	"encoding/binary"
	"errors"

	"github.com/DistributedWeb/ddatabase/flattree"
)

// NodeBytes is the size of a tree node record on disk: a 32 byte hash
// followed by a bigendian uint64 byte size. The index is implied by the
// record's position.
const NodeBytes = HashSize + 8

var ErrNodeRecordSize = errors.New("a tree node record must be exactly 40 bytes")

// Node is one node of a feed's tree. Size is the total byte length of the
// leaves spanned by the node's sub tree.
type Node struct {
	Index uint64
	Hash  []byte
	Size  uint64
}

// NewLeaf hashes data into the leaf node for block index.
func NewLeaf(index uint64, data []byte) *Node {
	return &Node{
		Index: 2 * index,
		Hash:  LeafHash(data),
		Size:  uint64(len(data)),
	}
}

// NewParent combines two sibling nodes into their parent.
func NewParent(a, b *Node) *Node {
	return &Node{
		Index: flattree.Parent(a.Index),
		Hash:  ParentHash(a, b),
		Size:  a.Size + b.Size,
	}
}

// MarshalBinary encodes the node as its fixed 40 byte record.
func (n *Node) MarshalBinary() ([]byte, error) {
	if len(n.Hash) != HashSize {
		return nil, ErrNodeRecordSize
	}
	b := make([]byte, NodeBytes)
	copy(b, n.Hash)
	binary.BigEndian.PutUint64(b[HashSize:], n.Size)
	return b, nil
}

// UnmarshalBinary decodes a fixed 40 byte record. The caller supplies the
// index the record was read at.
func (n *Node) UnmarshalBinary(data []byte) error {
	if len(data) != NodeBytes {
		return ErrNodeRecordSize
	}
	n.Hash = append([]byte(nil), data[:HashSize]...)
	n.Size = binary.BigEndian.Uint64(data[HashSize:])
	return nil
}
