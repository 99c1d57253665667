package record

import (
	"fmt"

	"github.com/meigma/decima/namehash"
)

// HeaderSize is the size of the per-record header: magic then payload size.
const HeaderSize = 12

// Magic is the discriminant that selects a record decoder.
type Magic uint64

// String returns the magic as 16 upper-case hex digits.
func (m Magic) String() string {
	return fmt.Sprintf("%016X", uint64(m))
}

// Header precedes every record payload.
type Header struct {
	Magic Magic
	// Size is the payload size in bytes, excluding the header.
	Size uint32
}

// TotalSize returns the number of bytes the record occupies, header included.
func (h Header) TotalSize() int {
	return HeaderSize + int(h.Size)
}

// Payload is the decoded body of a record.
type Payload interface {
	// Kind returns a short display name for the record kind.
	Kind() string
}

// Opaque holds the raw payload of a record with no registered decoder.
type Opaque struct {
	Data []byte
}

// Kind implements Payload.
func (Opaque) Kind() string { return "opaque" }

// Record is one decoded entry of a file.
type Record struct {
	// Offset is the position of the record header within the file.
	Offset int
	Header  Header
	Payload Payload
}

// End returns the offset of the byte following the record.
func (r Record) End() int {
	return r.Offset + r.Header.TotalSize()
}

// File is the ordered record sequence of one parsed buffer.
type File struct {
	Records []Record
}

// Find returns the first record of the given magic.
func (f *File) Find(m Magic) (Record, bool) {
	for _, r := range f.Records {
		if r.Header.Magic == m {
			return r, true
		}
	}
	return Record{}, false
}

// IsStream reports whether a file name refers to bulk data that must not be
// parsed.
func IsStream(name string) bool {
	return namehash.IsStream(name)
}

// PeekMagic reads the magic of the record at the cursor without advancing.
func PeekMagic(c *Cursor) (Magic, error) {
	start := c.Pos()
	v, err := c.U64()
	if err != nil {
		return 0, err
	}
	c.pos = start
	return Magic(v), nil
}

func readHeader(c *Cursor) (Header, error) {
	if c.Remaining() < HeaderSize {
		return Header{}, fmt.Errorf("%w: header at offset %d needs %d bytes, have %d",
			ErrTruncated, c.Pos(), HeaderSize, c.Remaining())
	}
	m, err := c.U64()
	if err != nil {
		return Header{}, err
	}
	size, err := c.U32()
	if err != nil {
		return Header{}, err
	}
	return Header{Magic: Magic(m), Size: size}, nil
}
