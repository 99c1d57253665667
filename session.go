package decima

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/meigma/decima/catalog"
	"github.com/meigma/decima/export"
	"github.com/meigma/decima/internal/config"
	"github.com/meigma/decima/namehash"
	"github.com/meigma/decima/record"
	"github.com/meigma/decima/tree"
)

// Session is the explicit application context: the loaded catalog, the
// published tree and the user's selection.
//
// Session methods are safe for concurrent use. The tree returned by Tree is
// shared; callers must not read it concurrently with methods that change
// filters (SetFilter and the archive selection methods). Use View for reads
// that may race with them.
type Session struct {
	mu        sync.Mutex
	catalog   *catalog.Catalog
	selection *tree.Selection
	filter    tree.TextFilter
	filterGen uint64
	dir       string

	store  *tree.Store
	parser *record.Parser

	extension   string
	patchPrefix string
	exclude     []string
	catalogOpts []catalog.Option
	registry    *record.Registry
	exportOpts  []export.Option
	logger      *slog.Logger
}

// New creates a Session with an empty catalog.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		selection:   tree.NewSelection(),
		store:       tree.NewStore(),
		extension:   config.DefaultExtension,
		patchPrefix: "Patch",
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.registry == nil {
		s.registry = record.DefaultRegistry()
	}
	s.parser = record.NewParser(record.WithRegistry(s.registry), record.WithLogger(s.logger))
	s.catalog = s.newCatalog()
	return s, nil
}

func (s *Session) newCatalog() *catalog.Catalog {
	opts := append([]catalog.Option{catalog.WithLogger(s.logger)}, s.catalogOpts...)
	return catalog.New(opts...)
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Session) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Catalog returns the current catalog.
func (s *Session) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Parser returns the record parser used for previews.
func (s *Session) Parser() *record.Parser {
	return s.parser
}

// Dir returns the directory last opened with OpenDirectory.
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// ContainerPaths lists the containers of dir in load order: ascending file
// name with patch containers last. Excluded stems and files with another
// extension are skipped.
func (s *Session) ContainerPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("decima: read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(name), s.extension) {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if slices.Contains(s.exclude, stem) {
			s.log().Debug("container excluded", "name", name)
			continue
		}
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		pa, pb := s.isPatch(a), s.isPatch(b)
		if pa != pb {
			if pa {
				return 1
			}
			return -1
		}
		return cmp.Compare(a, b)
	})
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

func (s *Session) isPatch(name string) bool {
	return s.patchPrefix != "" && strings.HasPrefix(name, s.patchPrefix)
}

// OpenResult describes the outcome of OpenDirectory.
type OpenResult struct {
	// Paths lists the containers found, in load order.
	Paths []string
	// Loaded holds the catalog indices of the containers that loaded.
	Loaded []int
	// LoadErr joins the *catalog.LoadError of every container that failed.
	LoadErr error
	// Names is the number of display names seeded from the prefetch index.
	Names int
	// PrefetchErr reports a prefetch index that could not be read.
	PrefetchErr error
}

// OpenDirectory replaces the catalog with the containers of dir, seeds
// display names from the prefetch index and rebuilds the tree.
//
// Containers that fail to load are reported in the result and do not stop
// the others. The returned error is non-nil when dir cannot be read, holds
// no loadable container, or ctx is cancelled; the previous catalog and tree
// then stay in place. On success the catalog, tree and a fresh selection are
// published together.
func (s *Session) OpenDirectory(ctx context.Context, dir string) (*OpenResult, error) {
	paths, err := s.ContainerPaths(dir)
	if err != nil {
		return nil, err
	}
	res := &OpenResult{Paths: paths}

	cat := s.newCatalog()
	res.Loaded, err = cat.LoadAll(ctx, paths)
	if ctx.Err() != nil {
		cat.Close()
		return nil, ctx.Err()
	}
	res.LoadErr = err
	if len(res.Loaded) == 0 {
		cat.Close()
		return res, fmt.Errorf("%w in %s", ErrNoArchives, dir)
	}

	res.Names, res.PrefetchErr = cat.LoadPrefetch(s.parser)
	if res.PrefetchErr != nil {
		s.log().Warn("prefetch index unreadable", "error", res.PrefetchErr)
	}

	s.mu.Lock()
	filter := s.filter
	gen := s.filterGen
	s.mu.Unlock()

	// A new directory starts with no active archives.
	t, err := s.store.Build(ctx, func(ctx context.Context) (*tree.Tree, error) {
		return buildTree(ctx, cat, filter, nil)
	})
	if err != nil {
		cat.Close()
		return nil, err
	}

	s.mu.Lock()
	old := s.catalog
	s.catalog = cat
	s.dir = dir
	s.selection = tree.NewSelection()
	if s.filterGen != gen {
		t.ApplyTextFilter(s.filter)
	}
	s.filterGen++
	s.store.Publish(t)
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	folders, files := t.Counts()
	s.log().Info("directory opened", "dir", dir, "archives", len(res.Loaded), "names", res.Names,
		"folders", folders, "files", files)
	return res, nil
}

// buildTree builds a tree over the named files of cat with both filters
// applied.
func buildTree(ctx context.Context, cat *catalog.Catalog, filter tree.TextFilter, refs []tree.ArchiveRef) (*tree.Tree, error) {
	t, err := tree.Build(ctx, cat.Paths(), func(h namehash.Hash) tree.Header {
		loc, ok := cat.Lookup(h, nil)
		if !ok {
			return tree.Header{Archive: tree.Unpinned}
		}
		return tree.Header{Size: loc.Entry.Size, Archive: loc.Archive}
	})
	if err != nil {
		return nil, err
	}
	t.ApplyTextFilter(filter)
	t.ApplyArchiveFilter(refs)
	return t, nil
}

// RebuildTree builds a fresh tree from the catalog, applies the current
// filters to it and publishes it. Readers keep seeing the previous tree until
// the new one is complete. When the catalog is replaced while the build
// runs, the result is dropped and the tree published with the new catalog is
// returned.
func (s *Session) RebuildTree(ctx context.Context) (*tree.Tree, error) {
	s.mu.Lock()
	cat := s.catalog
	gen := s.filterGen
	filter := s.filter
	refs := archiveRefs(cat, s.selection.Active())
	s.mu.Unlock()

	t, err := s.store.Build(ctx, func(ctx context.Context) (*tree.Tree, error) {
		return buildTree(ctx, cat, filter, refs)
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog != cat {
		s.log().Debug("stale tree dropped")
		return s.store.Load(), nil
	}
	if s.filterGen != gen {
		s.applyFilters(t)
	}
	s.store.Publish(t)

	folders, files := t.Counts()
	s.log().Debug("tree rebuilt", "folders", folders, "files", files)
	return t, nil
}

// Building reports whether a tree rebuild is in progress.
func (s *Session) Building() bool {
	return s.store.Building()
}

// Tree returns the published tree.
func (s *Session) Tree() *tree.Tree {
	return s.store.Load()
}

// View calls fn with the published tree and the selection while holding the
// session lock. fn must not call other Session methods.
func (s *Session) View(fn func(*tree.Tree, *tree.Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store.Load(), s.selection)
}

func archiveRefs(cat *catalog.Catalog, active []int) []tree.ArchiveRef {
	selected := cat.Select(catalog.NewSubset(active...))
	refs := make([]tree.ArchiveRef, len(selected))
	for i, a := range selected {
		refs[i] = a
	}
	return refs
}

// applyFilters reapplies both filters to t. Callers hold s.mu.
func (s *Session) applyFilters(t *tree.Tree) {
	t.ApplyTextFilter(s.filter)
	t.ApplyArchiveFilter(archiveRefs(s.catalog, s.selection.Active()))
}

// subset returns the active archives as a catalog subset. Callers hold s.mu.
func (s *Session) subset() catalog.Subset {
	return catalog.NewSubset(s.selection.Active()...)
}

// SetFilter parses expr as a text filter and applies it.
func (s *Session) SetFilter(expr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = tree.ParseFilter(expr)
	s.filterGen++
	s.store.Load().ApplyTextFilter(s.filter)
}

// Filter returns the active text filter.
func (s *Session) Filter() tree.TextFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Session) updateArchives(fn func(*tree.Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.selection)
	s.filterGen++
	s.store.Load().ApplyArchiveFilter(archiveRefs(s.catalog, s.selection.Active()))
}

// SelectArchive makes archive i the only active archive.
func (s *Session) SelectArchive(i int) {
	s.updateArchives(func(sel *tree.Selection) { sel.SetActive(i) })
}

// ToggleArchive flips whether archive i is active.
func (s *Session) ToggleArchive(i int) {
	s.updateArchives(func(sel *tree.Selection) { sel.ToggleActive(i) })
}

// SelectArchiveRange adds every archive between from and to, inclusive.
func (s *Session) SelectArchiveRange(from, to int) {
	s.updateArchives(func(sel *tree.Selection) { sel.AddActive(from, to) })
}

// ClearArchiveSelection deactivates every archive, so queries search all of
// them again.
func (s *Session) ClearArchiveSelection() {
	s.updateArchives(func(sel *tree.Selection) { sel.ClearActive() })
}

// ActiveArchives returns the active archive indices in ascending order.
func (s *Session) ActiveArchives() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Active()
}

// Lookup finds where hash resolves within the active archives.
func (s *Session) Lookup(hash namehash.Hash) (catalog.Location, bool) {
	s.mu.Lock()
	cat, subset := s.catalog, s.subset()
	s.mu.Unlock()
	return cat.Lookup(hash, subset)
}

// ToggleFile flips the export selection of hash, pinned according to the
// current archive filter, and reports whether it is now selected.
func (s *Session) ToggleFile(hash namehash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Toggle(s.store.Load().SelectionKey(hash))
}

// ToggleGroup toggles the direct files of the folder at path.
func (s *Session) ToggleGroup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.store.Load()
	dir, ok := t.LookupFolder(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchFolder, path)
	}
	t.ToggleGroup(dir, s.selection)
	return nil
}

// AddByName adds the file called name to the export set, unpinned. name
// becomes the display name only when the file has none yet. It reports false
// when no archive holds the file.
func (s *Session) AddByName(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := namehash.Of(name)
	if !s.catalog.Contains(hash) {
		return false
	}
	if _, named := s.catalog.Name(hash); !named {
		s.catalog.SetDisplayName(hash, name)
	}
	s.selection.Add(tree.SelectionKey{Hash: hash, Archive: tree.Unpinned})
	return true
}

// AddByHash adds hash to the export set, unpinned. It reports false when no
// archive holds the hash.
func (s *Session) AddByHash(hash namehash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.catalog.Contains(hash) {
		return false
	}
	s.selection.Add(tree.SelectionKey{Hash: hash, Archive: tree.Unpinned})
	return true
}

// AddPinned adds hash pinned to archive i. It reports false when archive i
// does not hold the hash.
func (s *Session) AddPinned(hash namehash.Hash, i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.catalog.Archive(i)
	if a == nil || !a.Contains(hash) {
		return false
	}
	s.selection.Add(tree.SelectionKey{Hash: hash, Archive: i})
	return true
}

// ClearExport empties the export set.
func (s *Session) ClearExport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.ClearExport()
}

// ExportSet returns the export set ordered by hash then archive.
func (s *Session) ExportSet() []tree.SelectionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Keys()
}

// Preview is a resolved file prepared for display.
type Preview struct {
	catalog.File
	Hash namehash.Hash
	Name string
	// Stream is set for bulk data, which is never parsed.
	Stream bool
	// Records holds the parsed records; nil for stream data.
	Records *record.File
	// ParseErr reports a parse that stopped early. Records then holds the
	// records decoded before the failure.
	ParseErr error
}

// Preview resolves hash within the active archives, parses it unless it is
// stream data and makes it the previewed file. ok is false when no active
// archive holds the hash; the error reports read failures only.
func (s *Session) Preview(hash namehash.Hash) (*Preview, bool, error) {
	s.mu.Lock()
	cat, subset := s.catalog, s.subset()
	s.mu.Unlock()

	f, ok, err := cat.Resolve(hash, subset)
	if err != nil || !ok {
		return nil, ok, err
	}
	p := &Preview{File: f, Hash: hash, Name: cat.DisplayName(hash)}
	if record.IsStream(p.Name) {
		p.Stream = true
	} else {
		p.Records, p.ParseErr = s.parser.Parse(f.Data)
	}

	s.mu.Lock()
	s.selection.SetPreview(hash)
	s.mu.Unlock()
	return p, true, nil
}

// PreviewName hashes name and previews it.
func (s *Session) PreviewName(name string) (*Preview, bool, error) {
	return s.Preview(namehash.Of(name))
}

// Previewed returns the hash of the previewed file.
func (s *Session) Previewed() (namehash.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Preview()
}

// Highlight marks the bytes of rec in the previewed file.
func (s *Session) Highlight(rec record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SetHighlight(tree.Range{Start: rec.Offset, End: rec.End()})
}

// HighlightRange returns the highlighted byte range of the previewed file.
func (s *Session) HighlightRange() tree.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Highlight()
}

// ResetHighlight clears the highlighted byte range.
func (s *Session) ResetHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.ResetHighlight()
}

// Export writes the export set below dest. opts are applied after the
// session's export options.
func (s *Session) Export(ctx context.Context, dest string, opts ...export.Option) (*export.Report, error) {
	s.mu.Lock()
	cat := s.catalog
	keys := s.selection.Keys()
	s.mu.Unlock()

	all := append([]export.Option{export.WithLogger(s.logger)}, s.exportOpts...)
	all = append(all, opts...)
	return export.New(cat, all...).Export(ctx, dest, keys)
}

// Close releases the catalog's archives.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Close()
}
