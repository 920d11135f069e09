package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DistributedWeb/ddatabase/feedtesting"
)

func TestAppendFailureRollsBack(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "rollback"})
	ctl := feedtesting.NewFaultControl()
	provider := feedtesting.Flaky(tc.Provider, ctl)

	f, err := Open(provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(context.Background(), "a", "b", "c", "d")
	require.NoError(t, err)

	// the fifth append writes its tree nodes but fails on the signature,
	// after which nothing may be visible
	injected := errors.New("disk gone")
	ctl.FailWrites("signatures", injected)

	_, err = f.Append(context.Background(), "e")
	require.ErrorIs(t, err, injected)
	assert.Equal(t, uint64(4), f.Length())
	assert.False(t, f.Has(4))

	// the feed recovers in place once the fault clears
	ctl.Heal("signatures")
	seq, err := f.Append(context.Background(), "e")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
	assert.Equal(t, uint64(5), f.Length())

	v, err := f.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "e", v)
}

func TestCrashBeforeBitfieldFlush(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "crash"})
	ctl := feedtesting.NewFaultControl()
	provider := feedtesting.Flaky(tc.Provider, ctl)

	f, err := Open(provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)

	_, err = f.Append(context.Background(), "a", "b", "c", "d")
	require.NoError(t, err)
	key := f.Key()

	// tree nodes, data and signature for the fifth block land; the
	// bitfield pages never do. This is a crash between BitsFlipped and
	// Synced.
	ctl.FailWrites("bitfield", errors.New("power loss"))
	_, err = f.Append(context.Background(), "e")
	require.NoError(t, err, "the append itself committed")
	f.Close()

	// reopen against the same underlying store: the trailing half synced
	// leaf is trimmed
	ctl.Heal("bitfield")
	g, err := Open(tc.Provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, key, g.Key())
	assert.Equal(t, uint64(4), g.Length())
	assert.False(t, g.Has(4))

	// the interrupted leaf is re-appendable and the rebuilt tree matches a
	// run that never crashed
	seq, err := g.Append(context.Background(), "e")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
	assert.Equal(t, uint64(5), g.Length())

	v, err := g.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "e", v)

	reference := referenceFeed(t, []string{"a", "b", "c", "d", "e"})
	defer reference.Close()
	assert.Equal(t, reference.State().RootsHash, g.State().RootsHash)
}

func referenceFeed(t *testing.T, values []string) *Feed {
	t.Helper()
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "reference"})
	f, err := Open(tc.Provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	for _, v := range values {
		_, err := f.Append(context.Background(), v)
		require.NoError(t, err)
	}
	return f
}

func TestPartialPutLeavesNoTrace(t *testing.T) {
	w := newWriter(t)

	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "partialput"})
	ctl := feedtesting.NewFaultControl()
	r, err := Open(feedtesting.Flaky(tc.Provider, ctl),
		WithKey(w.Key()), WithSparse(), WithLogger(tc.Log))
	require.NoError(t, err)
	defer r.Close()

	injected := errors.New("short write")
	ctl.FailWrites("data", injected)

	data, proof := fetch(t, w, 2)
	err = r.Put(context.Background(), 2, data, proof)
	require.ErrorIs(t, err, injected)
	assert.False(t, r.Has(2))
	assert.Equal(t, uint64(0), r.Length())

	ctl.Heal("data")
	require.NoError(t, r.Put(context.Background(), 2, data, proof))
	assert.True(t, r.Has(2))
}

func TestBitfieldWithoutKeyForcesOverwrite(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "nokey"})

	f, err := Open(tc.Provider, WithLogger(tc.Log))
	require.NoError(t, err)
	_, err = f.Append(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// destroy the key records; the bits can no longer be verified
	keyStore, err := tc.Provider("key")
	require.NoError(t, err)
	require.NoError(t, keyStore.Write(0, make([]byte, 32)))
	secretStore, err := tc.Provider("secret_key")
	require.NoError(t, err)
	require.NoError(t, secretStore.Write(0, make([]byte, 64)))

	g, err := Open(tc.Provider, WithLogger(tc.Log))
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, uint64(0), g.Length())
	assert.False(t, g.Has(0))
}

func TestCriticalDivergencePoisonsFeed(t *testing.T) {
	w := newWriter(t)
	r := newReader(t, w)

	// legitimately absorb a block so the reader commits real nodes
	data, proof := fetch(t, w, 0)
	require.NoError(t, r.Put(context.Background(), 0, data, proof))

	// forge a feed with the same signing key but different content: its
	// proofs verify, yet disagree with the reader's committed nodes
	forged := forgeFeedWithKey(t, w)
	fdata, ferr := forged.Get(context.Background(), 0, WithNoWait())
	require.NoError(t, ferr)
	fproof, err := forged.Proof(0, ProofOpts{})
	require.NoError(t, err)

	err = r.Put(context.Background(), 0, fdata.([]byte), fproof)
	require.ErrorIs(t, err, ErrCritical)

	// mutations are poisoned, reads of verified blocks still work
	err = r.Put(context.Background(), 1, data, proof)
	assert.ErrorIs(t, err, ErrCritical)
	v, err := r.Get(context.Background(), 0, WithNoWait())
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), v)
}

// forgeFeedWithKey builds a writable feed reusing w's key pair but with
// different block content.
func forgeFeedWithKey(t *testing.T, w *Feed) *Feed {
	t.Helper()
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "forged"})

	// seed the store with the victim's key material before opening
	keyStore, err := tc.Provider("key")
	require.NoError(t, err)
	require.NoError(t, keyStore.Write(0, w.key))
	secretStore, err := tc.Provider("secret_key")
	require.NoError(t, err)
	require.NoError(t, secretStore.Write(0, w.secretKey))

	f, err := Open(tc.Provider, WithLogger(tc.Log))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	for _, s := range []string{"z", "y", "x", "w", "v", "u", "t", "s"} {
		_, err := f.Append(context.Background(), []byte(s))
		require.NoError(t, err)
	}
	return f
}
