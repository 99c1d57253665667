package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/decima/archive"
	"github.com/meigma/decima/internal/codec"
	"github.com/meigma/decima/namehash"
)

// Catalog is an ordered collection of archives plus a display-name overlay.
type Catalog struct {
	archives atomic.Pointer[[]*archive.Archive]
	appendMu sync.Mutex

	namesMu sync.RWMutex
	names   map[namehash.Hash]string

	reads singleflight.Group
	pool  *codec.DecoderPool

	archiveOpts     []archive.Option
	loadConcurrency int
	logger          *slog.Logger
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		names: make(map[namehash.Hash]string),
		pool:  codec.NewDecoderPool(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loadConcurrency < 1 {
		c.loadConcurrency = DefaultLoadConcurrency
	}
	empty := []*archive.Archive{}
	c.archives.Store(&empty)
	return c
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Catalog) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *Catalog) snapshot() []*archive.Archive {
	return *c.archives.Load()
}

// publish appends archives in order and returns their indices.
func (c *Catalog) publish(added ...*archive.Archive) []int {
	c.appendMu.Lock()
	defer c.appendMu.Unlock()

	cur := c.snapshot()
	next := make([]*archive.Archive, len(cur), len(cur)+len(added))
	copy(next, cur)
	indices := make([]int, len(added))
	for i, a := range added {
		indices[i] = len(next)
		next = append(next, a)
	}
	c.archives.Store(&next)
	return indices
}

func (c *Catalog) open(path string) (*archive.Archive, error) {
	opts := append([]archive.Option{
		archive.WithDecoderPool(c.pool),
		archive.WithLogger(c.logger),
	}, c.archiveOpts...)
	a, err := archive.Open(path, opts...)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return a, nil
}

// LoadArchive opens the container at path and appends it to the catalog.
//
// On failure the catalog is unchanged and the error is a *LoadError.
func (c *Catalog) LoadArchive(path string) (int, error) {
	a, err := c.open(path)
	if err != nil {
		c.log().Warn("archive load failed", "path", path, "error", err)
		return -1, err
	}
	idx := c.publish(a)[0]
	c.log().Info("archive loaded", "index", idx, "path", path, "entries", a.Len())
	return idx, nil
}

// Add appends an already opened archive and returns its index.
func (c *Catalog) Add(a *archive.Archive) int {
	return c.publish(a)[0]
}

// LoadAll parses the containers at paths in parallel and appends the ones
// that load successfully, preserving the order of paths.
//
// The returned indices belong to the successful loads, in order. Failed loads
// are reported as *LoadError values joined into the returned error; they
// never prevent the other archives from loading. If ctx is cancelled before
// all archives are parsed, nothing is appended and ctx.Err() is returned.
func (c *Catalog) LoadAll(ctx context.Context, paths []string) ([]int, error) {
	opened := make([]*archive.Archive, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.loadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := c.open(path)
			if err != nil {
				failures[i] = err
				return nil
			}
			opened[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, a := range opened {
			if a != nil {
				a.Close()
			}
		}
		return nil, err
	}

	var loaded []*archive.Archive
	for i, a := range opened {
		if a != nil {
			loaded = append(loaded, a)
			continue
		}
		c.log().Warn("archive load failed", "path", paths[i], "error", failures[i])
	}
	indices := c.publish(loaded...)
	for i, a := range loaded {
		c.log().Info("archive loaded", "index", indices[i], "path", a.Path(), "entries", a.Len())
	}
	return indices, errors.Join(failures...)
}

// Len returns the number of loaded archives.
func (c *Catalog) Len() int {
	return len(c.snapshot())
}

// Archives returns the loaded archives in load order. The slice must not be
// modified.
func (c *Catalog) Archives() []*archive.Archive {
	return c.snapshot()
}

// Archive returns the archive at index i, or nil if i is out of range.
func (c *Catalog) Archive(i int) *archive.Archive {
	archives := c.snapshot()
	if i < 0 || i >= len(archives) {
		return nil
	}
	return archives[i]
}

// ArchiveName returns the name of the archive at index i, or "" if i is out
// of range.
func (c *Catalog) ArchiveName(i int) string {
	if a := c.Archive(i); a != nil {
		return a.Name()
	}
	return ""
}

// Indexed pairs an archive with its catalog index.
type Indexed struct {
	*archive.Archive
	index int
}

// Index returns the catalog index of the archive.
func (a Indexed) Index() int {
	return a.index
}

// Select returns the archives of subset in priority order, highest first.
// An empty subset selects nothing.
func (c *Catalog) Select(subset Subset) []Indexed {
	if len(subset) == 0 {
		return nil
	}
	archives := c.snapshot()
	order := subset.order(len(archives))
	out := make([]Indexed, len(order))
	for i, idx := range order {
		out[i] = Indexed{Archive: archives[idx], index: idx}
	}
	return out
}

// Location identifies the archive entry a hash resolves to.
type Location struct {
	// Archive is the index of the owning archive.
	Archive int
	Entry   archive.FileEntry
	// Shadowed lists lower-priority archives that also hold the hash.
	Shadowed []int
}

// File is resolved content together with its location.
type File struct {
	Location
	Data []byte
}

// Lookup finds the entry hash resolves to without reading it.
func (c *Catalog) Lookup(hash namehash.Hash, subset Subset) (Location, bool) {
	archives := c.snapshot()
	var (
		loc   Location
		found bool
	)
	for _, idx := range subset.order(len(archives)) {
		e, ok := archives[idx].Lookup(hash)
		if !ok {
			continue
		}
		if !found {
			loc = Location{Archive: idx, Entry: e}
			found = true
			continue
		}
		loc.Shadowed = append(loc.Shadowed, idx)
	}
	if len(loc.Shadowed) > 0 {
		c.log().Debug("ambiguous hash", "hash", hash, "archive", loc.Archive, "shadowed", loc.Shadowed)
	}
	return loc, found
}

// Owners returns every archive in subset holding hash, highest priority first.
func (c *Catalog) Owners(hash namehash.Hash, subset Subset) []int {
	loc, ok := c.Lookup(hash, subset)
	if !ok {
		return nil
	}
	return append([]int{loc.Archive}, loc.Shadowed...)
}

// Contains reports whether any archive holds hash.
func (c *Catalog) Contains(hash namehash.Hash) bool {
	for _, a := range c.snapshot() {
		if a.Contains(hash) {
			return true
		}
	}
	return false
}

// Resolve reads the content hash resolves to. ok is false when no searched
// archive holds the hash. The returned data is owned by the caller.
func (c *Catalog) Resolve(hash namehash.Hash, subset Subset) (File, bool, error) {
	loc, ok := c.Lookup(hash, subset)
	if !ok {
		return File{}, false, nil
	}
	a := c.Archive(loc.Archive)
	key := a.SourceID() + "/" + hash.String()
	v, err, shared := c.reads.Do(key, func() (any, error) {
		return a.ReadEntry(loc.Entry)
	})
	if err != nil {
		return File{Location: loc}, true, fmt.Errorf("catalog: resolve %s in %s: %w", hash, a.Name(), err)
	}
	data := v.([]byte) //nolint:forcetypeassert // Do returns what ReadEntry returned
	if shared {
		data = slices.Clone(data)
	}
	return File{Location: loc, Data: data}, true, nil
}

// ResolveName hashes name and resolves it.
func (c *Catalog) ResolveName(name string, subset Subset) (File, bool, error) {
	return c.Resolve(namehash.Of(name), subset)
}

// SetDisplayName records the display name for hash.
func (c *Catalog) SetDisplayName(hash namehash.Hash, name string) {
	c.namesMu.Lock()
	c.names[hash] = name
	c.namesMu.Unlock()
}

// SetDisplayNames records display names for every path, keyed by its hash.
func (c *Catalog) SetDisplayNames(paths iter.Seq[string]) int {
	c.namesMu.Lock()
	defer c.namesMu.Unlock()
	n := 0
	for p := range paths {
		c.names[namehash.Of(p)] = p
		n++
	}
	return n
}

// Name returns the display name recorded for hash.
func (c *Catalog) Name(hash namehash.Hash) (string, bool) {
	c.namesMu.RLock()
	defer c.namesMu.RUnlock()
	name, ok := c.names[hash]
	return name, ok
}

// DisplayName returns the recorded name of hash or its hex form.
func (c *Catalog) DisplayName(hash namehash.Hash) string {
	if name, ok := c.Name(hash); ok {
		return name
	}
	return hash.String()
}

// Paths yields every named hash held by at least one archive, ordered by
// path.
func (c *Catalog) Paths() iter.Seq2[namehash.Hash, string] {
	return func(yield func(namehash.Hash, string) bool) {
		type named struct {
			hash namehash.Hash
			path string
		}
		c.namesMu.RLock()
		all := make([]named, 0, len(c.names))
		for h, p := range c.names {
			all = append(all, named{h, p})
		}
		c.namesMu.RUnlock()

		slices.SortFunc(all, func(a, b named) int { return strings.Compare(a.path, b.path) })
		for _, n := range all {
			if !c.Contains(n.hash) {
				continue
			}
			if !yield(n.hash, n.path) {
				return
			}
		}
	}
}

// Close closes every archive. The catalog must not be used afterwards.
func (c *Catalog) Close() error {
	var errs []error
	for _, a := range c.snapshot() {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
