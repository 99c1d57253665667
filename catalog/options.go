package catalog

import (
	"log/slog"

	"github.com/meigma/decima/archive"
)

// DefaultLoadConcurrency bounds parallel archive parsing in LoadAll.
const DefaultLoadConcurrency = 4

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger for catalog operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithArchiveOptions sets options applied to every archive the catalog opens.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(c *Catalog) {
		c.archiveOpts = append(c.archiveOpts, opts...)
	}
}

// WithLoadConcurrency bounds the number of archives parsed in parallel by
// LoadAll. Values < 1 use DefaultLoadConcurrency.
func WithLoadConcurrency(n int) Option {
	return func(c *Catalog) {
		c.loadConcurrency = n
	}
}
