package archive

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/decima/internal/codec"
	"github.com/meigma/decima/internal/sizing"
	"github.com/meigma/decima/namehash"
)

// DefaultMaxFileSize is the default maximum entry size (1GB).
const DefaultMaxFileSize = 1 << 30

// ByteSource provides random access to container bytes.
//
// Implementations exist for local files and in-memory buffers.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Archive provides hash-addressed access to one container.
//
// An Archive is immutable after construction and safe for concurrent reads.
type Archive struct {
	path        string
	source      ByteSource
	closer      io.Closer
	dataStart   int64
	dataSize    uint64
	entries     []FileEntry
	index       map[namehash.Hash]int
	pool        *codec.DecoderPool
	maxFileSize uint64
	verify      bool
	logger      *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens and parses the container at path.
//
// The file stays open until Close is called.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	src := &fileSource{
		File: f,
		size: info.Size(),
		id:   digest.FromString(fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())).String(),
	}
	a, err := New(path, src, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// New parses a container from src. The path is used for display only.
func New(path string, src ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{
		path:        path,
		source:      src,
		maxFileSize: DefaultMaxFileSize,
		verify:      true,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.pool == nil {
		a.pool = codec.NewDecoderPool()
	}

	hdr, err := a.readHeader()
	if err != nil {
		return nil, err
	}

	tableEnd, ok := sizing.AddUint64(HeaderSize, hdr.tableSize)
	if !ok {
		return nil, fmt.Errorf("%w: table size %d", ErrSizeOverflow, hdr.tableSize)
	}
	srcSize := uint64(max(src.Size(), 0)) //nolint:gosec // clamped non-negative
	if tableEnd > srcSize {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedTable, tableEnd, srcSize)
	}
	dataEnd, ok := sizing.AddUint64(tableEnd, hdr.dataSize)
	if !ok {
		return nil, fmt.Errorf("%w: data size %d", ErrSizeOverflow, hdr.dataSize)
	}
	if dataEnd > srcSize {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedData, dataEnd, srcSize)
	}

	tableLen, err := sizing.ToInt(hdr.tableSize, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	table := make([]byte, tableLen)
	if err := readFull(src, table, HeaderSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedTable, err)
	}

	entries, err := decodeTable(table, hdr.dataSize)
	if err != nil {
		return nil, err
	}
	index := make(map[namehash.Hash]int, len(entries))
	for i, e := range entries {
		if prev, dup := index[e.Hash]; dup {
			return nil, fmt.Errorf("%w: hash %s at entries %d and %d", ErrCorruptTable, e.Hash, prev, i)
		}
		index[e.Hash] = i
	}

	a.dataStart = int64(tableEnd) //nolint:gosec // bounded by src.Size()
	a.dataSize = hdr.dataSize
	a.entries = entries
	a.index = index
	a.log().Debug("archive loaded", "path", path, "entries", len(entries), "data_size", hdr.dataSize)
	return a, nil
}

func (a *Archive) readHeader() (header, error) {
	buf := make([]byte, HeaderSize)
	if a.source.Size() < HeaderSize {
		return header{}, fmt.Errorf("%w: %d bytes", ErrCorruptHeader, a.source.Size())
	}
	if err := readFull(a.source, buf, 0); err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	return parseHeader(buf)
}

// Path returns the path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Name returns the file name of the archive without directory or extension.
func (a *Archive) Name() string {
	base := filepath.Base(a.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SourceID returns the stable identifier of the underlying byte source.
func (a *Archive) SourceID() string {
	return a.source.SourceID()
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns the entries in table order. The slice must not be modified.
func (a *Archive) Entries() []FileEntry {
	return a.entries
}

// Hashes returns an iterator over all entry hashes in table order.
func (a *Archive) Hashes() iter.Seq[namehash.Hash] {
	return func(yield func(namehash.Hash) bool) {
		for _, e := range a.entries {
			if !yield(e.Hash) {
				return
			}
		}
	}
}

// Lookup returns the entry for hash.
func (a *Archive) Lookup(hash namehash.Hash) (FileEntry, bool) {
	i, ok := a.index[hash]
	if !ok {
		return FileEntry{}, false
	}
	return a.entries[i], true
}

// Contains reports whether the archive holds hash.
func (a *Archive) Contains(hash namehash.Hash) bool {
	_, ok := a.index[hash]
	return ok
}

// Read returns the content stored under hash. ok is false when the archive
// does not contain the hash.
func (a *Archive) Read(hash namehash.Hash) (content []byte, ok bool, err error) {
	e, ok := a.Lookup(hash)
	if !ok {
		return nil, false, nil
	}
	content, err = a.ReadEntry(e)
	return content, true, err
}

// ReadEntry reads, decompresses and verifies one entry. The returned slice
// is owned by the caller.
func (a *Archive) ReadEntry(e FileEntry) ([]byte, error) {
	if a.maxFileSize > 0 && (e.Size > a.maxFileSize || e.StoredSize > a.maxFileSize) {
		return nil, fmt.Errorf("archive: read %s: %w", e.Hash, ErrSizeOverflow)
	}
	storedLen, err := sizing.ToInt(e.StoredSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", e.Hash, err)
	}
	offset, err := sizing.ToInt64(e.Offset, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", e.Hash, err)
	}

	stored := make([]byte, storedLen)
	if err := readFull(a.source, stored, a.dataStart+offset); err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", e.Hash, err)
	}

	content := stored
	if e.Compression == CompressionZstd {
		size, err := sizing.ToInt(e.Size, ErrSizeOverflow)
		if err != nil {
			return nil, fmt.Errorf("archive: read %s: %w", e.Hash, err)
		}
		content, err = a.pool.Decode(stored, size)
		if err != nil {
			return nil, fmt.Errorf("archive: read %s: %w: %v", e.Hash, ErrDecompression, err)
		}
	}

	if a.verify && len(e.Checksum) == sha256.Size {
		sum := sha256.Sum256(content)
		if !bytes.Equal(sum[:], e.Checksum) {
			return nil, fmt.Errorf("archive: read %s: %w", e.Hash, ErrChecksumMismatch)
		}
	}
	return content, nil
}

// Close releases the underlying file, if the archive owns one.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// readFull reads len(buf) bytes at off, treating a trailing io.EOF on a
// complete read as success.
func readFull(src io.ReaderAt, buf []byte, off int64) error {
	n, err := src.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("short read (%d of %d bytes)", n, len(buf))
	}
	return err
}

type fileSource struct {
	*os.File
	size int64
	id   string
}

func (s *fileSource) Size() int64      { return s.size }
func (s *fileSource) SourceID() string { return s.id }

// BytesSource is an in-memory ByteSource.
type BytesSource struct {
	*bytes.Reader
	id string
}

// NewBytesSource returns a ByteSource over data, identified by its digest.
func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{
		Reader: bytes.NewReader(data),
		id:     digest.FromBytes(data).String(),
	}
}

// SourceID returns the content digest of the backing data.
func (s *BytesSource) SourceID() string {
	return s.id
}
