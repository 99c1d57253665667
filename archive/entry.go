package archive

import "github.com/meigma/decima/namehash"

// Compression identifies the compression algorithm used for an entry.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// FileEntry describes one file stored in a container.
type FileEntry struct {
	// Hash is the catalog key of the file.
	Hash namehash.Hash

	// Size is the uncompressed content size in bytes.
	Size uint64

	// Offset is the byte offset of the stored content inside the data region.
	Offset uint64

	// StoredSize is the number of bytes the entry occupies in the data region.
	// Equal to Size for uncompressed entries.
	StoredSize uint64

	// Sequence is the position of the entry in the container's entry table.
	Sequence int

	// Compression is the algorithm used to store this entry.
	Compression Compression

	// Checksum is the SHA-256 of the uncompressed content, or nil.
	Checksum []byte
}

// End returns the exclusive end offset of the stored span.
func (e FileEntry) End() uint64 {
	return e.Offset + e.StoredSize
}
