package archive

import (
	"log/slog"

	"github.com/meigma/decima/internal/codec"
)

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithMaxFileSize limits the maximum per-entry size (stored and uncompressed).
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxFileSize = limit
	}
}

// WithVerifyChecksums controls whether reads verify entry checksums (default: true).
func WithVerifyChecksums(enabled bool) Option {
	return func(a *Archive) {
		a.verify = enabled
	}
}

// WithDecoderPool shares a zstd decoder pool between archives.
func WithDecoderPool(pool *codec.DecoderPool) Option {
	return func(a *Archive) {
		a.pool = pool
	}
}
