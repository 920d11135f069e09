package feed

import (
	"crypto/rand"

	"github.com/datatrails/go-datatrails-common/logger"
)

// Options collects everything configurable at feed creation. The zero
// value is completed by defaultOptions.
type Options struct {
	// Key opens a feed for a known public key. Required to absorb remote
	// blocks before any local key material exists.
	Key []byte
	// Sparse suppresses the automatic whole feed download selection.
	Sparse bool
	// Live defaults to true. A non live feed is finalized and anchors
	// trust by root equality instead of signatures.
	Live bool
	// Indexing suppresses writing the raw block data; callers maintain an
	// external store. Tree nodes and signatures are still written.
	Indexing bool
	// CreateIfMissing defaults to true. When false, opening a store with
	// no key fails.
	CreateIfMissing bool
	// Overwrite clears any existing bitfield and key material on open.
	Overwrite bool
	// ValueEncoding selects a registered codec by name. Ignored when
	// Codec is set directly.
	ValueEncoding string
	// Codec overrides the registered codecs with a caller supplied one.
	Codec Codec
	// ID is a 32 byte local identity used by peers for dedup. Random when
	// omitted.
	ID []byte
	// Log receives the feed's diagnostics.
	Log logger.Logger
}

// Option is a generic option type. Implementations type assert to the
// Options target record and ignore the option if that fails.
type Option func(any)

func WithKey(key []byte) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Key = append([]byte(nil), key...)
		}
	}
}

func WithSparse() Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Sparse = true
		}
	}
}

func WithLive(live bool) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Live = live
		}
	}
}

func WithIndexing() Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Indexing = true
		}
	}
}

func WithCreateIfMissing(create bool) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.CreateIfMissing = create
		}
	}
}

func WithOverwrite() Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Overwrite = true
		}
	}
}

func WithValueEncoding(name string) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.ValueEncoding = name
		}
	}
}

func WithCodec(c Codec) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Codec = c
		}
	}
}

func WithID(id []byte) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.ID = append([]byte(nil), id...)
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Log = log
		}
	}
}

func defaultOptions() Options {
	return Options{
		Live:            true,
		CreateIfMissing: true,
		ValueEncoding:   "binary",
	}
}

func resolveOptions(opts ...Option) (Options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Codec == nil {
		c, err := CodecByName(o.ValueEncoding)
		if err != nil {
			return o, err
		}
		o.Codec = c
	}
	if o.ID == nil {
		o.ID = make([]byte, 32)
		if _, err := rand.Read(o.ID); err != nil {
			return o, err
		}
	}
	if o.Log == nil {
		logger.New("NOOP")
		o.Log = logger.Sugar
	}
	return o, nil
}
