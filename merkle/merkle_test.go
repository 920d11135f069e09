package merkle

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDomainSeparation(t *testing.T) {
	data := []byte("hello")
	leaf := LeafHash(data)

	a := &Node{Index: 0, Hash: LeafHash([]byte("a")), Size: 1}
	b := &Node{Index: 2, Hash: LeafHash([]byte("b")), Size: 1}
	parent := ParentHash(a, b)
	roots := TreeHash([]*Node{{Index: 1, Hash: parent, Size: 2}})

	assert.Len(t, leaf, HashSize)
	assert.NotEqual(t, leaf, parent)
	assert.NotEqual(t, parent, roots)
}

func TestParentHashOrdersByIndex(t *testing.T) {
	a := &Node{Index: 0, Hash: LeafHash([]byte("a")), Size: 1}
	b := &Node{Index: 2, Hash: LeafHash([]byte("b")), Size: 1}
	assert.Equal(t, ParentHash(a, b), ParentHash(b, a))
}

func TestLeafHashBindsLength(t *testing.T) {
	// same bytes, different framing
	h1 := LeafHash([]byte("ab"))
	h2 := LeafHash([]byte("abc")[:2])
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, LeafHash([]byte("ab")), LeafHash([]byte("ab\x00")))
}

func TestDiscoveryKey(t *testing.T) {
	pub, _, err := KeyPair()
	require.NoError(t, err)
	dk := DiscoveryKey(pub)
	assert.Len(t, dk, HashSize)
	assert.False(t, bytes.Equal(dk, pub), "discovery key must not reveal the key")
	assert.Equal(t, dk, DiscoveryKey(pub), "derivation is deterministic")
}

func TestNodeRecordRoundTrip(t *testing.T) {
	n := &Node{Index: 6, Hash: LeafHash([]byte("x")), Size: 1}
	rec, err := n.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, rec, NodeBytes)

	var m Node
	require.NoError(t, m.UnmarshalBinary(rec))
	m.Index = n.Index
	assert.Equal(t, n.Hash, m.Hash)
	assert.Equal(t, n.Size, m.Size)

	require.Error(t, m.UnmarshalBinary(rec[:NodeBytes-1]))
}

func TestGeneratorGrowth(t *testing.T) {
	g := NewGenerator(nil)

	nodes := g.Append([]byte("a"))
	require.Len(t, nodes, 1)
	assert.Equal(t, uint64(0), nodes[0].Index)
	assert.Equal(t, uint64(1), g.ByteLength())

	// the second leaf closes the pair under index 1
	nodes = g.Append([]byte("bb"))
	require.Len(t, nodes, 2)
	assert.Equal(t, uint64(2), nodes[0].Index)
	assert.Equal(t, uint64(1), nodes[1].Index)
	assert.Equal(t, uint64(3), nodes[1].Size)

	roots := g.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, uint64(1), roots[0].Index)

	// a third leaf stands alone as a new root
	nodes = g.Append([]byte("c"))
	require.Len(t, nodes, 1)
	assert.Equal(t, uint64(4), nodes[0].Index)
	require.Len(t, g.Roots(), 2)

	// the fourth closes both 5 and the four leaf root 3
	nodes = g.Append([]byte("d"))
	require.Len(t, nodes, 3)
	assert.Equal(t, uint64(6), nodes[0].Index)
	assert.Equal(t, uint64(5), nodes[1].Index)
	assert.Equal(t, uint64(3), nodes[2].Index)
	require.Len(t, g.Roots(), 1)
	assert.Equal(t, uint64(5), g.ByteLength())
}

func TestGeneratorSeededFromRoots(t *testing.T) {
	g := NewGenerator(nil)
	for _, v := range []string{"a", "b", "c"} {
		g.Append([]byte(v))
	}

	seeded := NewGenerator(g.Roots())
	n1 := g.Append([]byte("d"))
	n2 := seeded.Append([]byte("d"))
	require.Equal(t, len(n1), len(n2))
	for i := range n1 {
		assert.Equal(t, n1[i].Index, n2[i].Index)
		assert.Equal(t, n1[i].Hash, n2[i].Hash)
	}
}

func TestParentMatchesManualHash(t *testing.T) {
	g := NewGenerator(nil)
	g.Append([]byte("left"))
	nodes := g.Append([]byte("right"))

	leafL := NewLeaf(0, []byte("left"))
	leafR := NewLeaf(1, []byte("right"))
	want := ParentHash(leafL, leafR)
	assert.Equal(t, want, nodes[1].Hash)
}

func TestSignVerify(t *testing.T) {
	pub, sec, err := KeyPair()
	require.NoError(t, err)

	g := NewGenerator(nil)
	g.Append([]byte("block"))
	msg := TreeHash(g.Roots())

	sig := Sign(msg, sec)
	require.Len(t, sig, SignatureBytes)
	assert.True(t, Verify(msg, sig, pub))

	bad := append([]byte(nil), sig...)
	bad[0] ^= 1
	assert.False(t, Verify(msg, bad, pub))
	assert.False(t, Verify(msg, sig[:SignatureBytes-1], pub))
}
