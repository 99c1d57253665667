package decima

import (
	"errors"

	"github.com/meigma/decima/archive"
	"github.com/meigma/decima/record"
)

// Sentinel errors.
var (
	// ErrNoSuchFolder is returned when a folder path is not in the tree.
	ErrNoSuchFolder = errors.New("decima: no such folder")

	// ErrNoArchives is returned when a directory holds no loadable containers.
	ErrNoArchives = errors.New("decima: no archives")
)

// Errors re-exported from archive.
var (
	// ErrCorruptHeader is returned for containers with a missing or unknown header.
	ErrCorruptHeader = archive.ErrCorruptHeader

	// ErrTruncatedTable is returned for containers shorter than their entry table.
	ErrTruncatedTable = archive.ErrTruncatedTable

	// ErrChecksumMismatch is returned when content does not match its checksum.
	ErrChecksumMismatch = archive.ErrChecksumMismatch
)

// Errors re-exported from record.
var (
	// ErrMisalignment is returned when a record decoder overruns or underruns its record.
	ErrMisalignment = record.ErrMisalignment

	// ErrTruncated is returned when a record extends past the end of its file.
	ErrTruncated = record.ErrTruncated
)
