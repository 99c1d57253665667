package record

import (
	"encoding/binary"
	"math"
)

// Builder assembles a record stream.
type Builder struct {
	buf []byte
}

// Append adds one record with the given payload.
func (b *Builder) Append(magic Magic, payload []byte) *Builder {
	if uint64(len(payload)) > math.MaxUint32 {
		panic("record: payload exceeds 4GB")
	}
	b.buf = binary.LittleEndian.AppendUint64(b.buf, uint64(magic))
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(payload)))
	b.buf = append(b.buf, payload...)
	return b
}

// AppendCollection encodes c and appends it.
func (b *Builder) AppendCollection(c Collection) *Builder {
	return b.Append(MagicCollection, EncodeCollection(c))
}

// AppendPrefetch encodes p and appends it.
func (b *Builder) AppendPrefetch(p Prefetch) *Builder {
	return b.Append(MagicPrefetch, EncodePrefetch(p))
}

// Bytes returns the assembled stream.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// EncodeCollection returns the payload encoding of c.
func EncodeCollection(c Collection) []byte {
	out := append([]byte(nil), c.GUID[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Refs))) //nolint:gosec // bounded by memory
	for _, ref := range c.Refs {
		out = append(out, byte(ref.Kind))
		if ref.Kind == RefNone {
			continue
		}
		out = append(out, ref.GUID[:]...)
		if ref.Kind.HasPath() {
			out = appendString(out, ref.Path)
		}
	}
	return out
}

// EncodePrefetch returns the payload encoding of p.
func EncodePrefetch(p Prefetch) []byte {
	out := append([]byte(nil), p.GUID[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(p.Strings))) //nolint:gosec // bounded by memory
	for _, s := range p.Strings {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s.Value))) //nolint:gosec // bounded by memory
		out = binary.LittleEndian.AppendUint32(out, s.Hash)
		out = append(out, s.Value...)
	}
	for _, table := range [][]uint32{p.Sizes, p.Indices} {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(table))) //nolint:gosec // bounded by memory
		for _, v := range table {
			out = binary.LittleEndian.AppendUint32(out, v)
		}
	}
	return out
}

func appendString(out []byte, s string) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(s))) //nolint:gosec // bounded by memory
	return append(out, s...)
}
