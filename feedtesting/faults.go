package feedtesting

import (
	"sync"

	"github.com/DistributedWeb/ddatabase/storage"
)

// FaultControl arms write failures per stream name, letting tests
// simulate a crash between pipeline steps: writes to a failing stream
// error while every other stream keeps working.
type FaultControl struct {
	mu      sync.Mutex
	failing map[string]error
}

func NewFaultControl() *FaultControl {
	return &FaultControl{failing: make(map[string]error)}
}

// FailWrites makes every write to the named stream return err.
func (c *FaultControl) FailWrites(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[name] = err
}

// Heal restores the named stream.
func (c *FaultControl) Heal(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failing, name)
}

func (c *FaultControl) writeErr(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failing[name]
}

// Flaky wraps a provider with the control's failure switches.
func Flaky(inner storage.Provider, ctl *FaultControl) storage.Provider {
	return func(name string) (storage.RandomAccess, error) {
		ra, err := inner(name)
		if err != nil {
			return nil, err
		}
		return &flakyStore{inner: ra, name: name, ctl: ctl}, nil
	}
}

type flakyStore struct {
	inner storage.RandomAccess
	name  string
	ctl   *FaultControl
}

func (s *flakyStore) Read(offset, length uint64) ([]byte, error) {
	return s.inner.Read(offset, length)
}

func (s *flakyStore) Write(offset uint64, data []byte) error {
	if err := s.ctl.writeErr(s.name); err != nil {
		return err
	}
	return s.inner.Write(offset, data)
}

func (s *flakyStore) Close() error { return s.inner.Close() }
