package record

import (
	"hash/crc32"
	"iter"
)

// MagicPrefetch identifies the prefetch index record.
const MagicPrefetch Magic = 0xD05789EEB588153E

// PrefetchName is the catalog name of the file holding the prefetch index.
const PrefetchName = "prefetch/fullgame.prefetch"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// HashedString is a string stored with its CRC-32C.
type HashedString struct {
	Hash  uint32
	Value string
}

// NewHashedString computes the checksum of s.
func NewHashedString(s string) HashedString {
	return HashedString{Hash: crc32.Checksum([]byte(s), castagnoli), Value: s}
}

// Valid reports whether the stored checksum matches the value.
func (s HashedString) Valid() bool {
	return crc32.Checksum([]byte(s.Value), castagnoli) == s.Hash
}

// Prefetch is the index of every file path known to the data set, with
// parallel size and dependency tables.
type Prefetch struct {
	GUID    GUID
	Strings []HashedString
	Sizes   []uint32
	Indices []uint32
}

// Kind implements Payload.
func (Prefetch) Kind() string { return "Prefetch" }

// Paths yields every path listed in the index, in order.
func (p Prefetch) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, s := range p.Strings {
			if !yield(s.Value) {
				return
			}
		}
	}
}

func decodePrefetch(c *Cursor, _ Header) (Payload, error) {
	var p Prefetch
	var err error
	if p.GUID, err = c.GUID(); err != nil {
		return nil, err
	}

	n, err := c.Count(8)
	if err != nil {
		return nil, err
	}
	p.Strings = make([]HashedString, 0, n)
	for range n {
		size, err := c.U32()
		if err != nil {
			return nil, err
		}
		sum, err := c.U32()
		if err != nil {
			return nil, err
		}
		b, err := c.take(int(size))
		if err != nil {
			return nil, err
		}
		p.Strings = append(p.Strings, HashedString{Hash: sum, Value: string(b)})
	}

	if p.Sizes, err = readU32s(c); err != nil {
		return nil, err
	}
	if p.Indices, err = readU32s(c); err != nil {
		return nil, err
	}
	return p, nil
}

func readU32s(c *Cursor) ([]uint32, error) {
	n, err := c.Count(4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = c.U32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
