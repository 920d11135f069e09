package bitfield

// Bitfield is the in memory form of a feed's presence maps. Pages
// materialize on first touch; an untouched page reads as all zero.
type Bitfield struct {
	pages   map[int]*Page
	maxPage int // highest materialized page index, -1 when empty
	updates []*Page
}

// New returns an empty bitfield.
func New() *Bitfield {
	return &Bitfield{pages: make(map[int]*Page), maxPage: -1}
}

// LoadPage installs a page record read back from storage. Loaded pages are
// clean; they do not join the update queue.
func (b *Bitfield) LoadPage(index int, rec []byte) error {
	p := b.page(index, true)
	return p.load(rec)
}

// Reset discards all pages and pending updates. Used when a feed is opened
// with overwrite.
func (b *Bitfield) Reset() {
	b.pages = make(map[int]*Page)
	b.maxPage = -1
	b.updates = nil
}

func (b *Bitfield) page(index int, create bool) *Page {
	p, ok := b.pages[index]
	if !ok && create {
		p = &Page{index: index}
		b.pages[index] = p
		if index > b.maxPage {
			b.maxPage = index
		}
	}
	return p
}

func (b *Bitfield) enqueue(p *Page) {
	if p.queued {
		return
	}
	p.queued = true
	b.updates = append(b.updates, p)
}

// Get reports whether block i is present.
func (b *Bitfield) Get(i uint64) bool {
	p := b.page(int(i/DataPageBits), false)
	if p == nil {
		return false
	}
	return p.dataGet(int(i % DataPageBits))
}

// Set records the presence of block i and reports whether anything
// changed. A change marks the owning page dirty.
func (b *Bitfield) Set(i uint64, v bool) bool {
	p := b.page(int(i/DataPageBits), true)
	if !p.dataSet(int(i%DataPageBits), v) {
		return false
	}
	b.enqueue(p)
	return true
}

// TreeGet reports whether the node hash for tree index i is stored.
func (b *Bitfield) TreeGet(i uint64) bool {
	p := b.page(int(i/TreePageBits), false)
	if p == nil {
		return false
	}
	return p.treeGet(int(i % TreePageBits))
}

// TreeSet records that the node hash for tree index i is stored and
// reports whether anything changed.
func (b *Bitfield) TreeSet(i uint64, v bool) bool {
	p := b.page(int(i/TreePageBits), true)
	if !p.treeSet(int(i%TreePageBits), v) {
		return false
	}
	b.enqueue(p)
	return true
}

// DataCapacity returns the exclusive upper bound of block bits covered by
// materialized pages.
func (b *Bitfield) DataCapacity() uint64 {
	return uint64(b.maxPage+1) * DataPageBits
}

// TreeCapacity returns the exclusive upper bound of tree bits covered by
// materialized pages.
func (b *Bitfield) TreeCapacity() uint64 {
	return uint64(b.maxPage+1) * TreePageBits
}

// NextMissing returns the first block index at or after from whose data
// bit is clear. Bits past the materialized pages are missing, so a result
// always exists.
func (b *Bitfield) NextMissing(from uint64) uint64 {
	i := from
	for {
		page := int(i / DataPageBits)
		if page > b.maxPage {
			return i
		}
		p := b.page(page, false)
		if p == nil {
			return i
		}
		if found := p.nextMissing(int(i % DataPageBits)); found >= 0 {
			return uint64(page)*DataPageBits + uint64(found)
		}
		i = uint64(page+1) * DataPageBits
	}
}

// NextPresent returns the first block index at or after from whose data
// bit is set. The second return is false when no set bit remains.
func (b *Bitfield) NextPresent(from uint64) (uint64, bool) {
	i := from
	for {
		page := int(i / DataPageBits)
		if page > b.maxPage {
			return 0, false
		}
		p := b.page(page, false)
		if p == nil {
			i = uint64(page+1) * DataPageBits
			continue
		}
		if found := p.nextPresent(int(i % DataPageBits)); found >= 0 {
			return uint64(page)*DataPageBits + uint64(found), true
		}
		i = uint64(page+1) * DataPageBits
	}
}

// Updates returns the dirty pages in the order they were first touched.
// The queue is left intact.
func (b *Bitfield) Updates() []*Page {
	return append([]*Page(nil), b.updates...)
}

// NextUpdate pops one dirty page, oldest first, or nil when the queue is
// drained.
func (b *Bitfield) NextUpdate() *Page {
	if len(b.updates) == 0 {
		return nil
	}
	p := b.updates[0]
	b.updates = b.updates[1:]
	p.queued = false
	return p
}

// PendingUpdates reports whether any page is waiting to be flushed.
func (b *Bitfield) PendingUpdates() bool { return len(b.updates) > 0 }
