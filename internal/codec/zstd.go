// Package codec wraps the zstd codec used for compressed container entries.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxDecoderMemory is the default maximum decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// ErrSizeMismatch is returned when decoded output differs from the expected size.
var ErrSizeMismatch = errors.New("codec: decoded size mismatch")

// DecoderPool manages reusable zstd decoders to reduce allocation overhead.
type DecoderPool struct {
	pool             *sync.Pool
	maxDecoderMemory uint64
	concurrency      int
}

// PoolOption configures a DecoderPool.
type PoolOption func(*DecoderPool)

// WithMaxDecoderMemory limits decoder memory. Zero disables the limit.
func WithMaxDecoderMemory(limit uint64) PoolOption {
	return func(p *DecoderPool) {
		p.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) PoolOption {
	return func(p *DecoderPool) {
		if n < 0 {
			n = 0
		}
		p.concurrency = n
	}
}

// NewDecoderPool creates a pool of zstd decoders.
func NewDecoderPool(opts ...PoolOption) *DecoderPool {
	p := &DecoderPool{
		maxDecoderMemory: DefaultMaxDecoderMemory,
		concurrency:      1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pool = &sync.Pool{
		New: func() any {
			dec, err := p.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return p
}

// Get returns a decoder reading from r and a release function that must be
// called when the caller is done with it.
func (p *DecoderPool) Get(r io.Reader) (*zstd.Decoder, func(), error) {
	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		fresh, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return fresh, fresh.Close, nil
	}
	if err := dec.Reset(r); err != nil {
		dec.Close()
		fresh, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return fresh, fresh.Close, nil
	}
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

// Decode decompresses src, which must expand to exactly size bytes.
func (p *DecoderPool) Decode(src []byte, size int) ([]byte, error) {
	dec, release, err := p.Get(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]byte, size)
	if _, err := io.ReadFull(dec, out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: unexpected EOF", ErrSizeMismatch)
		}
		return nil, err
	}
	var extra [1]byte
	if n, err := dec.Read(extra[:]); n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
		if n > 0 {
			return nil, fmt.Errorf("%w: trailing data", ErrSizeMismatch)
		}
		return nil, err
	}
	return out, nil
}

func (p *DecoderPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(p.concurrency)}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}

// Encoder compresses entry content. It is not safe for concurrent use.
type Encoder struct {
	enc *zstd.Encoder
}

// NewEncoder creates a single-threaded, low-memory zstd encoder.
func NewEncoder(level zstd.EncoderLevel) (*Encoder, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
		zstd.WithEncoderLevel(level),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// Encode returns the compressed form of src.
func (e *Encoder) Encode(src []byte) []byte {
	return e.enc.EncodeAll(src, make([]byte, 0, len(src)/2))
}

// Close releases encoder resources.
func (e *Encoder) Close() error {
	return e.enc.Close()
}
