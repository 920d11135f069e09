package feed

import (
	"errors"
	"fmt"

	"github.com/DistributedWeb/ddatabase/bitfield"
	"github.com/DistributedWeb/ddatabase/merkle"
	"github.com/DistributedWeb/ddatabase/storage"
)

// storageBinding translates (kind, index) addresses onto the six append
// only streams of a feed store. All record layouts are fixed:
//
//	tree        40 byte node records at i * 40
//	signatures  64 byte records at k * 64
//	bitfield    3328 byte page records at page * 3328
//	key         one 32 byte record at offset 0
//	secret_key  one 64 byte record at offset 0
//	data        concatenated blocks, offsets derived from leaf node sizes
type storageBinding struct {
	key        storage.RandomAccess
	secretKey  storage.RandomAccess
	tree       storage.RandomAccess
	data       storage.RandomAccess
	bits       storage.RandomAccess
	signatures storage.RandomAccess
}

func openStorage(provider storage.Provider) (*storageBinding, error) {
	s := &storageBinding{}
	targets := []struct {
		name string
		dst  *storage.RandomAccess
	}{
		{"key", &s.key},
		{"secret_key", &s.secretKey},
		{"tree", &s.tree},
		{"data", &s.data},
		{"bitfield", &s.bits},
		{"signatures", &s.signatures},
	}
	for _, t := range targets {
		ra, err := provider(t.name)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("opening %s stream: %w", t.name, err)
		}
		*t.dst = ra
	}
	return s, nil
}

func (s *storageBinding) close() error {
	var errs []error
	for _, ra := range []storage.RandomAccess{s.key, s.secretKey, s.tree, s.data, s.bits, s.signatures} {
		if ra == nil {
			continue
		}
		if err := ra.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// getNode reads the tree node at index i. A record that was never written
// reads back blank on most stores; blank records report ErrNotFound so
// callers never mistake them for real hashes.
func (s *storageBinding) getNode(i uint64) (*merkle.Node, error) {
	rec, err := s.tree.Read(i*merkle.NodeBytes, merkle.NodeBytes)
	if err != nil {
		return nil, err
	}
	if blank(rec) {
		return nil, storage.ErrNotFound
	}
	n := &merkle.Node{Index: i}
	if err := n.UnmarshalBinary(rec); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *storageBinding) putNode(n *merkle.Node) error {
	rec, err := n.MarshalBinary()
	if err != nil {
		return err
	}
	return s.tree.Write(n.Index*merkle.NodeBytes, rec)
}

func (s *storageBinding) getData(offset, length uint64) ([]byte, error) {
	return s.data.Read(offset, length)
}

func (s *storageBinding) putData(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return s.data.Write(offset, data)
}

func (s *storageBinding) getSignature(k uint64) ([]byte, error) {
	sig, err := s.signatures.Read(k*merkle.SignatureBytes, merkle.SignatureBytes)
	if err != nil {
		return nil, err
	}
	if blank(sig) {
		return nil, storage.ErrNotFound
	}
	return sig, nil
}

func (s *storageBinding) putSignature(k uint64, sig []byte) error {
	return s.signatures.Write(k*merkle.SignatureBytes, sig)
}

func (s *storageBinding) getKey() ([]byte, error) {
	key, err := s.key.Read(0, merkle.PublicKeyBytes)
	if err != nil {
		return nil, err
	}
	if blank(key) {
		return nil, storage.ErrNotFound
	}
	return key, nil
}

func (s *storageBinding) putKey(key []byte) error {
	return s.key.Write(0, key)
}

func (s *storageBinding) getSecretKey() ([]byte, error) {
	key, err := s.secretKey.Read(0, merkle.SecretKeyBytes)
	if err != nil {
		return nil, err
	}
	if blank(key) {
		return nil, storage.ErrNotFound
	}
	return key, nil
}

func (s *storageBinding) putSecretKey(key []byte) error {
	return s.secretKey.Write(0, key)
}

func (s *storageBinding) putBitfieldPage(p *bitfield.Page) error {
	return s.bits.Write(p.Offset(), p.Bytes())
}

// readBitfield loads every stored page record in order.
func (s *storageBinding) readBitfield(bf *bitfield.Bitfield) error {
	for page := 0; ; page++ {
		rec, err := s.bits.Read(uint64(page)*bitfield.PageBytes, bitfield.PageBytes)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := bf.LoadPage(page, rec); err != nil {
			return err
		}
	}
}

// wipeBitfield zeroes every stored page record in place.
func (s *storageBinding) wipeBitfield(bf *bitfield.Bitfield) error {
	zero := make([]byte, bitfield.PageBytes)
	capacity := bf.DataCapacity() / bitfield.DataPageBits
	for page := uint64(0); page < capacity; page++ {
		if err := s.bits.Write(page*bitfield.PageBytes, zero); err != nil {
			return err
		}
	}
	return nil
}

func blank(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
