package archive

import "errors"

// Sentinel errors for container loading and reads.
var (
	// ErrCorruptHeader is returned when the container header is short or has the wrong magic.
	ErrCorruptHeader = errors.New("archive: corrupt header")

	// ErrUnsupportedVersion is returned for container versions this package cannot read.
	ErrUnsupportedVersion = errors.New("archive: unsupported version")

	// ErrTruncatedTable is returned when the container ends inside the entry table.
	ErrTruncatedTable = errors.New("archive: truncated entry table")

	// ErrTruncatedData is returned when the container ends inside the data region.
	ErrTruncatedData = errors.New("archive: truncated data")

	// ErrCorruptTable is returned when the entry table cannot be decoded or is inconsistent.
	ErrCorruptTable = errors.New("archive: corrupt entry table")

	// ErrChecksumMismatch is returned when entry content does not match its checksum.
	ErrChecksumMismatch = errors.New("archive: checksum mismatch")

	// ErrDecompression is returned when a compressed entry cannot be decoded.
	ErrDecompression = errors.New("archive: decompression failed")

	// ErrSizeOverflow is returned when sizes exceed supported limits.
	ErrSizeOverflow = errors.New("archive: size overflow")

	// ErrDuplicateEntry is returned by Writer when a hash is added twice.
	ErrDuplicateEntry = errors.New("archive: duplicate entry")

	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("archive: too many files")
)
