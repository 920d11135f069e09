package bitfield

import (
	"errors"

	"github.com/DistributedWeb/ddatabase/flattree"
)

const (
	// DataPageBytes is the data region size of one page.
	DataPageBytes = 1024
	// TreePageBytes is the tree region size of one page. The tree index
	// space grows twice as fast as the block space, so the region is twice
	// the data size.
	TreePageBytes = 2 * DataPageBytes
	// IndexPageBytes is the summary region size of one page: two bits per
	// sixteen bit data unit, laid out as the flat tree over the units.
	IndexPageBytes = DataPageBytes / 4
	// PageBytes is the full on disk page record size.
	PageBytes = DataPageBytes + TreePageBytes + IndexPageBytes

	// DataPageBits is the number of block bits per page.
	DataPageBits = DataPageBytes * 8
	// TreePageBits is the number of tree bits per page.
	TreePageBits = TreePageBytes * 8

	unitBits  = 16
	pageUnits = DataPageBits / unitBits
	// flat tree node indices over pageUnits leaves run 0..2*pageUnits-2
	indexTreeLast = 2*pageUnits - 2
	pageIndexRoot = pageUnits - 1
)

const (
	idxEmpty = 0
	idxSome  = 2
	idxFull  = 3
)

var ErrPageRecordSize = errors.New("a bitfield page record must be exactly 3328 bytes")

// Page is one interleaved bitfield page.
type Page struct {
	index  int
	data   [DataPageBytes]byte
	tree   [TreePageBytes]byte
	summry [IndexPageBytes]byte
	queued bool
}

// Index returns the page's position in the bitfield store.
func (p *Page) Index() int { return p.index }

// Bytes serializes the page as its on disk record.
func (p *Page) Bytes() []byte {
	b := make([]byte, 0, PageBytes)
	b = append(b, p.data[:]...)
	b = append(b, p.tree[:]...)
	b = append(b, p.summry[:]...)
	return b
}

// Offset returns the byte offset of the page record in the bitfield store.
func (p *Page) Offset() uint64 { return uint64(p.index) * PageBytes }

func (p *Page) load(rec []byte) error {
	if len(rec) != PageBytes {
		return ErrPageRecordSize
	}
	copy(p.data[:], rec[:DataPageBytes])
	copy(p.tree[:], rec[DataPageBytes:DataPageBytes+TreePageBytes])
	copy(p.summry[:], rec[DataPageBytes+TreePageBytes:])
	return nil
}

func (p *Page) dataGet(bit int) bool {
	return p.data[bit>>3]&(1<<uint(bit&7)) != 0
}

func (p *Page) dataSet(bit int, v bool) bool {
	mask := byte(1) << uint(bit&7)
	old := p.data[bit>>3]
	if v {
		p.data[bit>>3] = old | mask
	} else {
		p.data[bit>>3] = old &^ mask
	}
	if p.data[bit>>3] == old {
		return false
	}
	p.reindex(bit / unitBits)
	return true
}

func (p *Page) treeGet(bit int) bool {
	return p.tree[bit>>3]&(1<<uint(bit&7)) != 0
}

func (p *Page) treeSet(bit int, v bool) bool {
	mask := byte(1) << uint(bit&7)
	old := p.tree[bit>>3]
	if v {
		p.tree[bit>>3] = old | mask
	} else {
		p.tree[bit>>3] = old &^ mask
	}
	return p.tree[bit>>3] != old
}

// summary accessors: two bits per flat tree node over the data units

func (p *Page) idxGet(node uint64) int {
	shift := uint(node&3) * 2
	return int(p.summry[node>>2]>>shift) & 3
}

func (p *Page) idxSet(node uint64, v int) {
	shift := uint(node&3) * 2
	b := p.summry[node>>2]
	p.summry[node>>2] = b&^(3<<shift) | byte(v)<<shift
}

// reindex recomputes the summary path for the unit containing a changed
// data bit.
func (p *Page) reindex(unit int) {
	lo := p.data[unit*2]
	hi := p.data[unit*2+1]

	v := idxSome
	switch {
	case lo == 0xff && hi == 0xff:
		v = idxFull
	case lo == 0 && hi == 0:
		v = idxEmpty
	}

	node := uint64(2 * unit)
	p.idxSet(node, v)
	for node != pageIndexRoot {
		parent := flattree.Parent(node)
		if parent > indexTreeLast {
			break
		}
		l, _ := flattree.LeftChild(parent)
		r, _ := flattree.RightChild(parent)
		lv, rv := p.idxGet(l), p.idxGet(r)
		pv := idxSome
		switch {
		case lv == idxFull && rv == idxFull:
			pv = idxFull
		case lv == idxEmpty && rv == idxEmpty:
			pv = idxEmpty
		}
		p.idxSet(parent, pv)
		node = parent
	}
}

// nextMissing returns the first clear data bit at or after from within the
// page, or -1 when every remaining bit is set.
func (p *Page) nextMissing(from int) int {
	i := from
	for i < DataPageBits {
		node := uint64(2 * (i / unitBits))
		if p.idxGet(node) == idxFull {
			i = p.skip(node, idxFull)
			continue
		}
		end := min((i/unitBits+1)*unitBits, DataPageBits)
		for ; i < end; i++ {
			if !p.dataGet(i) {
				return i
			}
		}
	}
	return -1
}

// nextPresent returns the first set data bit at or after from within the
// page, or -1 when every remaining bit is clear.
func (p *Page) nextPresent(from int) int {
	i := from
	for i < DataPageBits {
		node := uint64(2 * (i / unitBits))
		if p.idxGet(node) == idxEmpty {
			i = p.skip(node, idxEmpty)
			continue
		}
		end := min((i/unitBits+1)*unitBits, DataPageBits)
		for ; i < end; i++ {
			if p.dataGet(i) {
				return i
			}
		}
	}
	return -1
}

// skip climbs from a summary leaf while the ancestor keeps the uniform
// value v, then returns the first data bit past the covered span.
func (p *Page) skip(node uint64, v int) int {
	for {
		parent := flattree.Parent(node)
		if parent > indexTreeLast || p.idxGet(parent) != v {
			break
		}
		node = parent
	}
	return (int(flattree.RightSpan(node)/2) + 1) * unitBits
}
