package record

import (
	"fmt"
)

// MagicCollection identifies a record that lists references to other
// records or files.
const MagicCollection Magic = 0xF3586131B4F18516

// GUID is a 16 byte object identifier.
type GUID [16]byte

// String formats the GUID in the canonical 8-4-4-4-12 form.
func (g GUID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%04X-%012X", g[0:4], g[4:6], g[6:8], g[8:10], g[10:16])
}

// IsZero reports whether every byte of the GUID is zero.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// RefKind describes what a Reference points at.
type RefKind uint8

const (
	// RefNone is an empty reference.
	RefNone RefKind = iota
	// RefLocal points at a record in the same file.
	RefLocal
	// RefExternal points at a record in another file.
	RefExternal
	// RefStreaming points at a record in another file that is loaded on demand.
	RefStreaming
)

// String returns the display name of the reference kind.
func (k RefKind) String() string {
	switch k {
	case RefNone:
		return "none"
	case RefLocal:
		return "local"
	case RefExternal:
		return "external"
	case RefStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// HasPath reports whether references of this kind carry a file path.
func (k RefKind) HasPath() bool {
	return k == RefExternal || k == RefStreaming
}

// Reference is one entry of a Collection.
type Reference struct {
	Kind RefKind
	GUID GUID
	// Path names the file holding the target for external references.
	Path string
}

// Collection lists references to other records.
type Collection struct {
	GUID GUID
	Refs []Reference
}

// Kind implements Payload.
func (Collection) Kind() string { return "Collection" }

// minRefSize is the encoded size of a RefNone reference.
const minRefSize = 1

func decodeCollection(c *Cursor, _ Header) (Payload, error) {
	var col Collection
	var err error
	if col.GUID, err = c.GUID(); err != nil {
		return nil, err
	}
	n, err := c.Count(minRefSize)
	if err != nil {
		return nil, err
	}
	col.Refs = make([]Reference, 0, n)
	for range n {
		ref, err := decodeReference(c)
		if err != nil {
			return nil, err
		}
		col.Refs = append(col.Refs, ref)
	}
	return col, nil
}

func decodeReference(c *Cursor) (Reference, error) {
	kind, err := c.U8()
	if err != nil {
		return Reference{}, err
	}
	ref := Reference{Kind: RefKind(kind)}
	if ref.Kind > RefStreaming {
		return Reference{}, fmt.Errorf("%w: unknown reference kind %d", ErrMalformed, kind)
	}
	if ref.Kind == RefNone {
		return ref, nil
	}
	if ref.GUID, err = c.GUID(); err != nil {
		return Reference{}, err
	}
	if ref.Kind.HasPath() {
		if ref.Path, err = c.ReadString(); err != nil {
			return Reference{}, err
		}
	}
	return ref, nil
}
