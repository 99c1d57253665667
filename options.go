package decima

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/meigma/decima/catalog"
	"github.com/meigma/decima/export"
	"github.com/meigma/decima/internal/config"
	"github.com/meigma/decima/record"
)

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets the logger for the session and everything it creates.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

// WithExtension sets the container file extension scanned by OpenDirectory
// (default: ".bin").
func WithExtension(ext string) Option {
	return func(s *Session) error {
		if ext == "" {
			return errors.New("decima: empty container extension")
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extension = ext
		return nil
	}
}

// WithExclude skips containers whose file name without extension is one of
// stems.
func WithExclude(stems ...string) Option {
	return func(s *Session) error {
		s.exclude = append(s.exclude, stems...)
		return nil
	}
}

// WithPatchPrefix sets the file name prefix of containers that load after
// all others (default: "Patch").
func WithPatchPrefix(prefix string) Option {
	return func(s *Session) error {
		s.patchPrefix = prefix
		return nil
	}
}

// WithConfig applies the container settings of a persisted config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) error {
		if cfg == nil {
			return nil
		}
		if cfg.Extension != "" {
			if err := WithExtension(cfg.Extension)(s); err != nil {
				return err
			}
		}
		if cfg.PatchPrefix != "" {
			s.patchPrefix = cfg.PatchPrefix
		}
		s.exclude = append(s.exclude, cfg.Exclude...)
		return nil
	}
}

// WithCatalogOptions sets options for every catalog the session creates.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(s *Session) error {
		s.catalogOpts = append(s.catalogOpts, opts...)
		return nil
	}
}

// WithRegistry sets the record registry used for previews and the prefetch
// index (default: record.DefaultRegistry).
func WithRegistry(r *record.Registry) Option {
	return func(s *Session) error {
		if r == nil {
			return errors.New("decima: nil registry")
		}
		s.registry = r
		return nil
	}
}

// WithExportOptions sets default options for Export.
func WithExportOptions(opts ...export.Option) Option {
	return func(s *Session) error {
		s.exportOpts = append(s.exportOpts, opts...)
		return nil
	}
}
