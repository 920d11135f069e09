package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec translates between caller values and the opaque block bytes a
// feed stores. Codec identity determines whether Get decodes or returns
// raw bytes.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// CodecByName resolves a registered value encoding. The recognized names
// are "binary", "utf-8", "json" and "cbor".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "binary":
		return binaryCodec{}, nil
	case "utf-8", "utf8":
		return utf8Codec{}, nil
	case "json":
		return jsonCodec{}, nil
	case "cbor":
		return cborCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrMissingCodec, name)
}

// binaryCodec passes bytes through untouched. Strings are accepted on
// encode as a convenience.
type binaryCodec struct{}

func (binaryCodec) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("binary codec: cannot encode %T", value)
}

func (binaryCodec) Decode(data []byte) (any, error) { return data, nil }

type utf8Codec struct{}

func (utf8Codec) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return nil, fmt.Errorf("utf-8 codec: cannot encode %T", value)
}

func (utf8Codec) Decode(data []byte) (any, error) { return string(data), nil }

// jsonCodec frames every value as a single newline terminated JSON
// document, so the raw data file stays line parseable.
type jsonCodec struct{}

func (jsonCodec) Encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func (jsonCodec) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(bytes.TrimSuffix(data, []byte("\n")), &v); err != nil {
		return nil, err
	}
	return v, nil
}

type cborCodec struct{}

func (cborCodec) Encode(value any) ([]byte, error) { return cbor.Marshal(value) }

func (cborCodec) Decode(data []byte) (any, error) {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
