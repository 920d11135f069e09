package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Directory returns a Provider that maps each stream to a flat file under
// dir, creating the directory on first open.
func Directory(dir string) Provider {
	return func(name string) (RandomAccess, error) {
		if err := validName(name); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("storage: opening %s: %w", name, err)
		}
		return &fileStore{f: f}, nil
	}
}

type fileStore struct {
	f *os.File
}

func (s *fileStore) Read(offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if uint64(n) < length {
		// a short read is an absent record, not an I/O failure
		return nil, ErrNotFound
	}
	return buf, nil
}

func (s *fileStore) Write(offset uint64, data []byte) error {
	_, err := s.f.WriteAt(data, int64(offset))
	return err
}

func (s *fileStore) Close() error {
	return s.f.Close()
}
