// Package export writes selected catalog files to a directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/decima/catalog"
	"github.com/meigma/decima/namehash"
	"github.com/meigma/decima/tree"
)

// DefaultConcurrency bounds parallel file exports.
const DefaultConcurrency = 8

// Source resolves selection keys to content and names.
//
// *catalog.Catalog implements Source.
type Source interface {
	Resolve(hash namehash.Hash, subset catalog.Subset) (catalog.File, bool, error)
	DisplayName(hash namehash.Hash) string
	ArchiveName(i int) string
}

// Target is the planned destination of one selection key.
type Target struct {
	Key tree.SelectionKey
	// Path is relative to the destination directory, slash-separated.
	Path string
}

// Item describes one exported or skipped file.
type Item struct {
	Target
	// Archive is the index of the archive the content came from.
	Archive int
	Size    int
	Digest  digest.Digest
}

// Failure describes a file that could not be exported.
type Failure struct {
	Target
	Err error
}

// Report summarizes an export.
type Report struct {
	Written []Item
	// Skipped lists targets that already existed.
	Skipped []Target
	// Missing lists keys no searched archive holds.
	Missing []Target
	Failed  []Failure
}

// Err joins the errors of all failed files.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = fmt.Errorf("export %s: %w", f.Path, f.Err)
	}
	return errors.Join(errs...)
}

// Exporter writes resolved files to disk.
type Exporter struct {
	src         Source
	overwrite   bool
	concurrency int
	logger      *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithOverwrite allows replacing existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(e *Exporter) {
		e.overwrite = overwrite
	}
}

// WithConcurrency bounds parallel exports. Values < 1 use DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		e.concurrency = n
	}
}

// WithLogger sets the logger for export operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// New creates an Exporter reading from src.
func New(src Source, opts ...Option) *Exporter {
	e := &Exporter{src: src}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = DefaultConcurrency
	}
	return e
}

func (e *Exporter) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// Plan assigns a destination path to every key.
//
// Files are placed at the sanitized display name. When the same hash is
// selected more than once, each pinned copy is placed under a directory named
// after its archive. Every target gets a distinct path: when two names
// sanitize to the same path, or differ only in case, the later one has its
// hash inserted before the extension.
func (e *Exporter) Plan(keys []tree.SelectionKey) []Target {
	perHash := make(map[namehash.Hash]int, len(keys))
	for _, k := range keys {
		perHash[k.Hash]++
	}
	used := make(map[string]struct{}, len(keys))
	targets := make([]Target, len(keys))
	for i, k := range keys {
		rel := RelPath(e.src.DisplayName(k.Hash))
		if rel == "" {
			rel = RelPath(k.Hash.String())
		}
		if perHash[k.Hash] > 1 && k.Pinned() {
			if dir := cleanPath(e.src.ArchiveName(k.Archive)); dir != "" {
				rel = dir + "/" + rel
			} else {
				rel = fmt.Sprintf("archive-%d/%s", k.Archive, rel)
			}
		}
		targets[i] = Target{Key: k, Path: uniquePath(rel, k.Hash, used)}
	}
	return targets
}

// uniquePath returns rel, or rel with hash inserted before its extension,
// whichever is not yet in used, and records the choice. Paths are compared
// case-insensitively.
func uniquePath(rel string, hash namehash.Hash, used map[string]struct{}) string {
	ext := path.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)
	candidate := rel
	for n := 0; ; n++ {
		key := strings.ToLower(candidate)
		if _, taken := used[key]; !taken {
			used[key] = struct{}{}
			return candidate
		}
		if n == 0 {
			candidate = fmt.Sprintf("%s.%s%s", stem, hash, ext)
		} else {
			candidate = fmt.Sprintf("%s.%s-%d%s", stem, hash, n, ext)
		}
	}
}

// Export resolves every key and writes it below dest.
//
// Pinned keys resolve only within their archive; unpinned keys use default
// priority. Per-file problems are recorded in the report and never stop the
// other files. The returned error is non-nil only when dest cannot be used or
// ctx is cancelled.
func (e *Exporter) Export(ctx context.Context, dest string, keys []tree.SelectionKey) (*Report, error) {
	s, err := newSink(dest, e.overwrite)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	targets := e.Plan(keys)
	outcomes := make([]outcome, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.exportOne(s, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	for i, o := range outcomes {
		switch o.kind {
		case outcomeWritten:
			report.Written = append(report.Written, o.item)
		case outcomeSkipped:
			report.Skipped = append(report.Skipped, targets[i])
		case outcomeMissing:
			report.Missing = append(report.Missing, targets[i])
		case outcomeFailed:
			report.Failed = append(report.Failed, Failure{Target: targets[i], Err: o.err})
		}
	}
	e.log().Info("export finished",
		"dest", dest,
		"written", len(report.Written),
		"skipped", len(report.Skipped),
		"missing", len(report.Missing),
		"failed", len(report.Failed))
	return report, nil
}

type outcomeKind int

const (
	outcomeWritten outcomeKind = iota
	outcomeSkipped
	outcomeMissing
	outcomeFailed
)

type outcome struct {
	kind outcomeKind
	item Item
	err  error
}

func (e *Exporter) exportOne(s *sink, t Target) outcome {
	if !s.shouldWrite(t.Path) {
		e.log().Debug("export skipped, file exists", "path", t.Path)
		return outcome{kind: outcomeSkipped}
	}

	var subset catalog.Subset
	if t.Key.Pinned() {
		subset = catalog.NewSubset(t.Key.Archive)
	}
	f, ok, err := e.src.Resolve(t.Key.Hash, subset)
	if err != nil {
		return outcome{kind: outcomeFailed, err: err}
	}
	if !ok {
		e.log().Warn("export target not found", "hash", t.Key.Hash, "archive", t.Key.Archive, "path", t.Path)
		return outcome{kind: outcomeMissing}
	}
	if err := s.write(t.Path, f.Data); err != nil {
		return outcome{kind: outcomeFailed, err: err}
	}
	e.log().Debug("exported", "path", t.Path, "archive", f.Archive, "size", len(f.Data))
	return outcome{
		kind: outcomeWritten,
		item: Item{
			Target:  t,
			Archive: f.Archive,
			Size:    len(f.Data),
			Digest:  digest.FromBytes(f.Data),
		},
	}
}
