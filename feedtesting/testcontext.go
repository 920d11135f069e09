// Package feedtesting provides the shared scaffolding for feed tests: a
// context bundling a logger and storage factory, a deterministic block
// generator, and a fault injecting storage wrapper for crash tests.
package feedtesting

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"

	"github.com/DistributedWeb/ddatabase/storage"
)

type TestContext struct {
	Log logger.Logger
	T   *testing.T
	// Provider is a fresh in memory store unless TestConfig.OnDisk asked
	// for a directory backed one.
	Provider storage.Provider
}

type TestConfig struct {
	// Seed is a value tests can pass to GenerateBlocks so generated data is
	// the same from run to run. NewTestContext does not read it.
	Seed            int64
	TestLabelPrefix string
	// OnDisk stores the feed under a test temp dir instead of memory.
	OnDisk bool
}

func NewTestContext(t *testing.T, cfg TestConfig) TestContext {
	c := TestContext{T: t}
	logger.New("NOOP")
	label := cfg.TestLabelPrefix
	if label == "" {
		label = fmt.Sprintf("feedtest-%s", uuid.New())
	}
	c.Log = logger.Sugar.WithServiceName(label)

	if cfg.OnDisk {
		c.Provider = storage.Directory(t.TempDir())
	} else {
		c.Provider = storage.Memory()
	}
	return c
}

func (c *TestContext) GetLog() logger.Logger { return c.Log }

// GenerateBlocks produces count deterministic pseudo random blocks of up
// to maxSize bytes (at least one byte each). The same seed always yields
// the same blocks.
func GenerateBlocks(seed int64, count, maxSize int) [][]byte {
	r := rand.New(rand.NewSource(seed))
	blocks := make([][]byte, count)
	for k := range blocks {
		b := make([]byte, 1+r.Intn(maxSize))
		r.Read(b)
		blocks[k] = b
	}
	return blocks
}
