package feed

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DistributedWeb/ddatabase/feedtesting"
)

func TestReadStreamRange(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "readstream"})

	f, err := Open(tc.Provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(context.Background(), "a", "b", "c", "d")
	require.NoError(t, err)

	s := f.NewReadStream(ReadStreamOptions{Start: 1, End: 3})
	var got []any
	for {
		v, err := s.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []any{"b", "c"}, got)
}

func TestReadStreamSnapshotsOpenEnd(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "snapshot"})

	f, err := Open(tc.Provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(context.Background(), "a", "b")
	require.NoError(t, err)

	s := f.NewReadStream(ReadStreamOptions{End: -1})
	_, err = f.Append(context.Background(), "c")
	require.NoError(t, err)

	count := 0
	for {
		_, err := s.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count, "a non live stream ends at the length seen at creation")
}

func TestLiveReadStreamFollowsTail(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "livestream"})

	f, err := Open(tc.Provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(context.Background(), "old")
	require.NoError(t, err)

	s := f.NewReadStream(ReadStreamOptions{End: -1, Live: true, Tail: true})
	assert.Equal(t, uint64(1), s.Index())

	got := make(chan any, 1)
	go func() {
		v, err := s.Next(context.Background())
		if err == nil {
			got <- v
		}
	}()

	_, err = f.Append(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "new", <-got)
}

func TestWriteStream(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "writestream"})

	f, err := Open(tc.Provider, WithValueEncoding("utf-8"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	ws := f.NewWriteStream()
	ws.Write("a", "b")
	ws.Write("c")

	seq, err := ws.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, uint64(3), f.Length())

	// an empty flush is a no-op
	seq, err = ws.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
	assert.Equal(t, uint64(3), f.Length())
}
