package feed

import (
	"github.com/google/uuid"
)

// Peer is the contract the replication collaborator implements. The feed
// never constructs peers; it only broadcasts into them.
type Peer interface {
	// Update signals that selections, waiters or the bitfield changed in a
	// way that might unblock a request decision.
	Update()
	// Have announces newly available blocks.
	Have(msg HaveMessage)
	// HaveBytes announces growth of the feed's byte length.
	HaveBytes(byteLength uint64)
}

// HaveMessage describes a newly available block range.
type HaveMessage struct {
	Start  uint64
	Length uint64
}

// Selection declares interest in a block range. End == -1 means open
// ended, following the live tail. Hash requests hashes without block
// data.
type Selection struct {
	ID     uuid.UUID
	Start  int64
	End    int64
	Linear bool
	Hash   bool
}

// Download registers a selection and returns its handle. Peers consult
// the selection set to decide what to request.
func (f *Feed) Download(sel Selection) uuid.UUID {
	if sel.ID == uuid.Nil {
		sel.ID = uuid.New()
	}
	f.mu.Lock()
	f.selections = append(f.selections, sel)
	f.mu.Unlock()
	f.updatePeers()
	return sel.ID
}

// Undownload removes a selection by handle. It reports whether anything
// was removed. Removal is swap with last; selection order is only
// meaningful as insertion order for iteration fairness, not priority.
func (f *Feed) Undownload(id uuid.UUID) bool {
	f.mu.Lock()
	removed := false
	for k := range f.selections {
		if f.selections[k].ID == id {
			last := len(f.selections) - 1
			f.selections[k] = f.selections[last]
			f.selections = f.selections[:last]
			removed = true
			break
		}
	}
	f.mu.Unlock()
	if removed {
		f.updatePeers()
	}
	return removed
}

// Selections returns a snapshot of the current selection set.
func (f *Feed) Selections() []Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Selection(nil), f.selections...)
}

// AddPeer attaches a peer to the feed's broadcast set.
func (f *Feed) AddPeer(p Peer) {
	f.mu.Lock()
	f.peers = append(f.peers, p)
	f.mu.Unlock()
}

// RemovePeer detaches a peer, swap with last, no scan beyond the match.
func (f *Feed) RemovePeer(p Peer) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.peers {
		if f.peers[k] == p {
			last := len(f.peers) - 1
			f.peers[k] = f.peers[last]
			f.peers = f.peers[:last]
			return true
		}
	}
	return false
}

func (f *Feed) snapshotPeers() []Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Peer(nil), f.peers...)
}

// updatePeers broadcasts a decision point to every peer.
func (f *Feed) updatePeers() {
	for _, p := range f.snapshotPeers() {
		p.Update()
	}
}

// announce broadcasts newly available blocks and the new byte length.
func (f *Feed) announce(msg HaveMessage, byteLength uint64) {
	for _, p := range f.snapshotPeers() {
		p.Have(msg)
		p.HaveBytes(byteLength)
	}
}
