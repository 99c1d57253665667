package record

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Cursor reads little-endian values from a byte buffer.
//
// Every read checks bounds and fails with ErrTruncated instead of panicking.
// Slices returned by Bytes are copies and stay valid after the buffer is
// released.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Seek moves the cursor to an absolute offset within the buffer.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return fmt.Errorf("%w: seek to %d in %d bytes", ErrTruncated, pos, len(c.buf))
	}
	c.pos = pos
	return nil
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, c.pos, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U32 reads a little-endian uint32.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (c *Cursor) U64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bytes reads n bytes and returns an owned copy.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b), nil
}

// Skip advances n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// GUID reads a 16 byte identifier.
func (c *Cursor) GUID() (GUID, error) {
	b, err := c.take(len(GUID{}))
	if err != nil {
		return GUID{}, err
	}
	return GUID(b), nil
}

// ReadString reads a uint32 length followed by that many bytes.
func (c *Cursor) ReadString() (string, error) {
	n, err := c.U32()
	if err != nil {
		return "", err
	}
	b, err := c.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Count reads a uint32 element count and rejects counts that cannot fit in
// the remaining bytes given a minimum element size.
func (c *Cursor) Count(minElemSize int) (int, error) {
	n, err := c.U32()
	if err != nil {
		return 0, err
	}
	if minElemSize > 0 && uint64(n)*uint64(minElemSize) > uint64(c.Remaining()) {
		return 0, fmt.Errorf("%w: %d elements of at least %d bytes at offset %d, have %d",
			ErrTruncated, n, minElemSize, c.pos, c.Remaining())
	}
	return int(n), nil
}
