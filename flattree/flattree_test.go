package flattree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepth(t *testing.T) {
	tests := []struct {
		name string
		i    uint64
		want uint64
	}{
		{"leaves are depth zero", 0, 0},
		{"first interior node", 1, 1},
		{"second leaf", 2, 0},
		{"root of four leaves", 3, 2},
		{"second depth one node", 5, 1},
		{"root of eight leaves", 7, 3},
		{"large leaf", 1024, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Depth(tt.i); got != tt.want {
				t.Errorf("Depth(%d) = %d, want %d", tt.i, got, tt.want)
			}
		})
	}
}

func TestOffsetIndexRoundTrip(t *testing.T) {
	for i := uint64(0); i < 10_000; i++ {
		d := Depth(i)
		o := Offset(i)
		if got := Index(d, o); got != i {
			t.Fatalf("Index(Depth(%d), Offset(%d)) = %d", i, i, got)
		}
	}
}

func TestParentChildren(t *testing.T) {
	tests := []struct {
		name   string
		i      uint64
		parent uint64
	}{
		{"left leaf pair", 0, 1},
		{"right leaf pair", 2, 1},
		{"second pair", 4, 5},
		{"interior left", 1, 3},
		{"interior right", 5, 3},
		{"deep interior", 11, 7},
		{"depth two right", 11, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.parent, Parent(tt.i))
		})
	}

	l, ok := LeftChild(3)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), l)
	r, ok := RightChild(3)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), r)

	_, ok = LeftChild(8)
	assert.False(t, ok, "leaves have no children")
}

func TestTreeIdentities(t *testing.T) {
	// parent(sibling(i)) == parent(i) and the children bracket i
	for i := uint64(0); i < 10_000; i++ {
		if Parent(Sibling(i)) != Parent(i) {
			t.Fatalf("parent/sibling identity broken at %d", i)
		}
		p := Parent(i)
		l, _ := LeftChild(p)
		r, _ := RightChild(p)
		if !(l <= i && i <= r) {
			t.Fatalf("children of %d do not bracket %d", p, i)
		}
	}
}

func TestSpans(t *testing.T) {
	tests := []struct {
		name        string
		i           uint64
		left, right uint64
	}{
		{"leaf spans itself", 4, 4, 4},
		{"first pair", 1, 0, 2},
		{"four leaf root", 3, 0, 6},
		{"eight leaf root", 7, 0, 14},
		{"second four leaf root", 11, 8, 14},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, r := Spans(tt.i)
			assert.Equal(t, tt.left, l)
			assert.Equal(t, tt.right, r)
		})
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, uint64(1), Count(0))
	assert.Equal(t, uint64(3), Count(1))
	assert.Equal(t, uint64(7), Count(3))
	assert.Equal(t, uint64(15), Count(7))
}
