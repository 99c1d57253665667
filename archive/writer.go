package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/decima/internal/codec"
	"github.com/meigma/decima/namehash"
)

// DefaultMaxFiles is the default limit used when no CreateWithMaxFiles option is set.
const DefaultMaxFiles = 500_000

// SkipCompressionFunc returns true when a file should be stored uncompressed.
type SkipCompressionFunc func(name string, size int) bool

// DefaultSkipCompression skips files smaller than minSize and stream data,
// which is stored pre-compressed.
func DefaultSkipCompression(minSize int) SkipCompressionFunc {
	return func(name string, size int) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		return namehash.IsStream(name)
	}
}

type createConfig struct {
	compression     Compression
	level           zstd.EncoderLevel
	skipCompression []SkipCompressionFunc
	checksums       bool
	maxFiles        int
	logger          *slog.Logger
}

// CreateOption configures Writer and Create.
type CreateOption func(*createConfig)

// CreateWithCompression sets the compression used for new entries.
func CreateWithCompression(c Compression) CreateOption {
	return func(cfg *createConfig) {
		cfg.compression = c
	}
}

// CreateWithLevel sets the zstd encoder level.
func CreateWithLevel(level zstd.EncoderLevel) CreateOption {
	return func(cfg *createConfig) {
		cfg.level = level
	}
}

// CreateWithSkipCompression adds predicates that force entries to be stored
// uncompressed.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithChecksums controls whether SHA-256 checksums are recorded (default: true).
func CreateWithChecksums(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.checksums = enabled
	}
}

// CreateWithMaxFiles limits the number of entries. Zero uses DefaultMaxFiles;
// negative disables the limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithLogger sets the logger for archive creation.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

// Writer stages entries in memory and serializes them as one container.
//
// Memory use scales with the total stored size of all entries.
type Writer struct {
	cfg     createConfig
	entries []FileEntry
	seen    map[namehash.Hash]struct{}
	data    bytes.Buffer
	enc     *codec.Encoder
}

// NewWriter creates an empty Writer.
func NewWriter(opts ...CreateOption) (*Writer, error) {
	cfg := createConfig{
		level:     zstd.SpeedDefault,
		checksums: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxFiles == 0 {
		cfg.maxFiles = DefaultMaxFiles
	}
	w := &Writer{cfg: cfg, seen: make(map[namehash.Hash]struct{})}
	if cfg.compression == CompressionZstd {
		enc, err := codec.NewEncoder(cfg.level)
		if err != nil {
			return nil, err
		}
		w.enc = enc
	}
	return w, nil
}

func (w *Writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

// Add stores content under the hash of name.
func (w *Writer) Add(name string, content []byte) error {
	return w.add(namehash.Of(name), namehash.Sanitize(name), content)
}

// AddHash stores content under a raw hash.
func (w *Writer) AddHash(hash namehash.Hash, content []byte) error {
	return w.add(hash, "", content)
}

func (w *Writer) add(hash namehash.Hash, name string, content []byte) error {
	if _, dup := w.seen[hash]; dup {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicateEntry, hash, name)
	}
	if w.cfg.maxFiles > 0 && len(w.entries) >= w.cfg.maxFiles {
		return ErrTooManyFiles
	}

	entry := FileEntry{
		Hash:     hash,
		Size:     uint64(len(content)),
		Offset:   uint64(w.data.Len()),
		Sequence: len(w.entries),
	}
	if w.cfg.checksums {
		sum := sha256.Sum256(content)
		entry.Checksum = sum[:]
	}

	stored := content
	if w.enc != nil && !w.skipCompression(name, len(content)) {
		packed := w.enc.Encode(content)
		if len(packed) < len(content) {
			stored = packed
			entry.Compression = CompressionZstd
		}
	}
	entry.StoredSize = uint64(len(stored))
	w.data.Write(stored)

	w.seen[hash] = struct{}{}
	w.entries = append(w.entries, entry)
	w.log().Debug("entry staged", "hash", hash, "name", name, "size", entry.Size, "compression", entry.Compression.String())
	return nil
}

func (w *Writer) skipCompression(name string, size int) bool {
	for _, fn := range w.cfg.skipCompression {
		if fn != nil && fn(name, size) {
			return true
		}
	}
	return false
}

// Len returns the number of staged entries.
func (w *Writer) Len() int {
	return len(w.entries)
}

// WriteTo writes the container to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	table := encodeTable(w.entries)
	hdr := header{
		version:   Version,
		tableSize: uint64(len(table)),
		dataSize:  uint64(w.data.Len()),
	}

	var total int64
	for _, part := range [][]byte{hdr.marshal(), table, w.data.Bytes()} {
		n, err := out.Write(part)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close releases encoder resources.
func (w *Writer) Close() error {
	if w.enc == nil {
		return nil
	}
	return w.enc.Close()
}

// Create packs every regular file under dir into a container written to out.
//
// Entry names are the slash-separated paths relative to dir. Symbolic links
// and other non-regular files are skipped. The context is checked between files.
func Create(ctx context.Context, dir string, out io.Writer, opts ...CreateOption) error {
	w, err := NewWriter(opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	w.log().Info("creating archive", "dir", dir, "compression", w.cfg.compression.String())

	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink != 0 {
				w.log().Debug("skipped symlink", "path", path)
			}
			return nil
		}
		content, err := root.ReadFile(filepath.FromSlash(path))
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return w.Add(strings.TrimPrefix(path, "./"), content)
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	w.log().Debug("archive data staged", "file_count", w.Len(), "data_size", w.data.Len())
	_, err = w.WriteTo(out)
	return err
}
