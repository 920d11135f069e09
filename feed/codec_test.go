package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DistributedWeb/ddatabase/feedtesting"
)

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"binary", "utf-8", "json", "cbor"} {
		c, err := CodecByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, c, name)
	}
	_, err := CodecByName("msgpack")
	assert.ErrorIs(t, err, ErrMissingCodec)
}

func TestJSONFraming(t *testing.T) {
	c, err := CodecByName("json")
	require.NoError(t, err)

	b, err := c.Encode(map[string]any{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), b[len(b)-1], "json blocks are newline framed")

	v, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world"}, v)
}

func TestJSONFeedRoundTrip(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "json"})

	f, err := Open(tc.Provider, WithValueEncoding("json"), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(context.Background(), map[string]any{"n": 1.0}, []any{"a", "b"})
	require.NoError(t, err)

	v, err := f.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 1.0}, v)

	v, err = f.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestCBORRoundTrip(t *testing.T) {
	c, err := CodecByName("cbor")
	require.NoError(t, err)

	b, err := c.Encode(map[any]any{"k": uint64(7)})
	require.NoError(t, err)
	v, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"k": uint64(7)}, v)
}

type upperCodec struct{}

func (upperCodec) Encode(v any) ([]byte, error) { return []byte(v.(string)), nil }
func (upperCodec) Decode(b []byte) (any, error) { return string(b) + "!", nil }

func TestUserSuppliedCodec(t *testing.T) {
	tc := feedtesting.NewTestContext(t, feedtesting.TestConfig{TestLabelPrefix: "usercodec"})

	f, err := Open(tc.Provider, WithCodec(upperCodec{}), WithLogger(tc.Log))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(context.Background(), "hey")
	require.NoError(t, err)

	v, err := f.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "hey!", v)
}
