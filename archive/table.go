package archive

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/decima/internal/fb"
	"github.com/meigma/decima/internal/sizing"
	"github.com/meigma/decima/namehash"
)

const (
	// HeaderSize is the size of the fixed container header.
	HeaderSize = 32

	// Version is the container version written by this package.
	Version = 1
)

// Magic identifies a DPK1 container.
var Magic = [4]byte{'D', 'P', 'K', '1'}

type header struct {
	version   uint32
	tableSize uint64
	dataSize  uint64
}

func (h header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.version)
	binary.LittleEndian.PutUint64(buf[8:16], h.tableSize)
	binary.LittleEndian.PutUint64(buf[16:24], h.dataSize)
	return buf
}

func parseHeader(buf []byte) (header, error) {
	if len(buf) < HeaderSize {
		return header{}, fmt.Errorf("%w: %d bytes", ErrCorruptHeader, len(buf))
	}
	if [4]byte(buf[0:4]) != Magic {
		return header{}, fmt.Errorf("%w: bad magic %q", ErrCorruptHeader, buf[0:4])
	}
	h := header{
		version:   binary.LittleEndian.Uint32(buf[4:8]),
		tableSize: binary.LittleEndian.Uint64(buf[8:16]),
		dataSize:  binary.LittleEndian.Uint64(buf[16:24]),
	}
	if h.version != Version {
		return header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.version)
	}
	return h, nil
}

// decodeTable parses a FlatBuffers entry table and validates every entry
// against a data region of dataSize bytes.
func decodeTable(buf []byte, dataSize uint64) (entries []FileEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("%w: %v", ErrCorruptTable, r)
		}
	}()
	if len(buf) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptTable, len(buf))
	}

	root := fb.GetRootAsEntryTable(buf, 0)
	n := root.EntriesLength()
	if n < 0 || n > len(buf)/flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: implausible entry count %d", ErrCorruptTable, n)
	}

	entries = make([]FileEntry, 0, n)
	var e fb.Entry
	for i := range n {
		if !root.Entries(&e, i) {
			return nil, fmt.Errorf("%w: missing entry %d", ErrCorruptTable, i)
		}
		entry := FileEntry{
			Hash:        namehash.Hash(e.Hash()),
			Size:        e.OriginalSize(),
			Offset:      e.DataOffset(),
			StoredSize:  e.DataSize(),
			Sequence:    i,
			Compression: Compression(e.Compression()),
		}
		if sum := e.ChecksumBytes(); len(sum) > 0 {
			entry.Checksum = slices.Clone(sum)
		}
		if err := validateEntry(entry, dataSize); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := checkOverlaps(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func validateEntry(e FileEntry, dataSize uint64) error {
	switch e.Compression {
	case CompressionNone:
		if e.StoredSize != e.Size {
			return fmt.Errorf("%w: entry %d (%s): stored size %d != size %d",
				ErrCorruptTable, e.Sequence, e.Hash, e.StoredSize, e.Size)
		}
	case CompressionZstd:
	default:
		return fmt.Errorf("%w: entry %d (%s): unknown compression %d",
			ErrCorruptTable, e.Sequence, e.Hash, e.Compression)
	}
	if !sizing.SpanWithin(e.Offset, e.StoredSize, dataSize) {
		return fmt.Errorf("%w: entry %d (%s): span [%d,+%d) outside data region of %d bytes",
			ErrCorruptTable, e.Sequence, e.Hash, e.Offset, e.StoredSize, dataSize)
	}
	return nil
}

// checkOverlaps verifies that no two non-empty spans share bytes.
func checkOverlaps(entries []FileEntry) error {
	spans := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.StoredSize > 0 {
			spans = append(spans, e)
		}
	}
	slices.SortFunc(spans, func(a, b FileEntry) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	for i := 1; i < len(spans); i++ {
		if spans[i].Offset < spans[i-1].End() {
			return fmt.Errorf("%w: entries %d and %d overlap",
				ErrCorruptTable, spans[i-1].Sequence, spans[i].Sequence)
		}
	}
	return nil
}

// encodeTable serializes entries to FlatBuffers format.
func encodeTable(entries []FileEntry) []byte {
	builder := flatbuffers.NewBuilder(1024)

	// Build entries in reverse order (FlatBuffers requirement)
	offsets := make([]flatbuffers.UOffsetT, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]

		var checksum flatbuffers.UOffsetT
		if len(e.Checksum) > 0 {
			checksum = builder.CreateByteVector(e.Checksum)
		}

		fb.EntryStart(builder)
		fb.EntryAddHash(builder, uint64(e.Hash))
		fb.EntryAddDataOffset(builder, e.Offset)
		fb.EntryAddDataSize(builder, e.StoredSize)
		fb.EntryAddOriginalSize(builder, e.Size)
		if checksum != 0 {
			fb.EntryAddChecksum(builder, checksum)
		}
		fb.EntryAddCompression(builder, fb.Compression(e.Compression))
		offsets[i] = fb.EntryEnd(builder)
	}

	fb.EntryTableStartEntriesVector(builder, len(entries))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	vec := builder.EndVector(len(entries))

	fb.EntryTableStart(builder)
	fb.EntryTableAddVersion(builder, Version)
	fb.EntryTableAddEntries(builder, vec)
	fb.FinishEntryTableBuffer(builder, fb.EntryTableEnd(builder))
	return builder.FinishedBytes()
}
