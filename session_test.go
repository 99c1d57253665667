package decima

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/decima/catalog"
	"github.com/meigma/decima/export"
	"github.com/meigma/decima/internal/config"
	"github.com/meigma/decima/internal/testutil"
	"github.com/meigma/decima/namehash"
	"github.com/meigma/decima/record"
	"github.com/meigma/decima/tree"
)

func collectionFile(paths ...string) []byte {
	col := record.Collection{GUID: record.GUID{0x01}}
	for _, p := range paths {
		col.Refs = append(col.Refs, record.Reference{Kind: record.RefExternal, GUID: record.GUID{0x02}, Path: p})
	}
	var b record.Builder
	return b.Append(0x77, []byte("header")).AppendCollection(col).Bytes()
}

// dataDir writes a Base container (with the prefetch index), a Patch
// container overriding one file and a corrupt container.
func dataDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteContainer(t, dir, "Base.bin", map[string][]byte{
		record.PrefetchName: testutil.PrefetchFile(
			"models/characters/sam/body",
			"models/characters/sam/head",
			"models/props/cargo",
			"sounds/rain.stream",
		),
		"models/characters/sam/body": collectionFile("models/props/cargo"),
		"models/characters/sam/head": []byte("base head"),
		"models/props/cargo":         []byte("cargo"),
		"sounds/rain.stream":         []byte("pcm pcm pcm"),
	})
	testutil.WriteContainer(t, dir, "Patch.bin", map[string][]byte{
		"models/characters/sam/head": []byte("patched head"),
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.bin"), []byte("garbage that is not a container"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	return dir
}

func openSession(t *testing.T, opts ...Option) (*Session, *OpenResult) {
	t.Helper()

	s, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	res, err := s.OpenDirectory(context.Background(), dataDir(t))
	require.NoError(t, err)
	return s, res
}

func visible(tr *tree.Tree) []string {
	var out []string
	for n := range tr.Walk() {
		if n.File != nil {
			out = append(out, n.Path)
		}
	}
	return out
}

func TestContainerPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.bin", "Patch1.bin", "a.BIN", "Patch0.bin", "skip.bin", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.bin"), 0o750))

	s, err := New(WithExclude("skip"))
	require.NoError(t, err)
	paths, err := s.ContainerPaths(dir)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"a.BIN", "b.bin", "Patch0.bin", "Patch1.bin"}, names)
}

func TestOpenDirectory(t *testing.T) {
	t.Parallel()

	s, res := openSession(t)

	require.Len(t, res.Paths, 3)
	assert.Equal(t, []int{0, 1}, res.Loaded)
	var le *catalog.LoadError
	require.ErrorAs(t, res.LoadErr, &le)
	assert.Equal(t, "Broken.bin", filepath.Base(le.Path))
	require.ErrorIs(t, res.LoadErr, ErrCorruptHeader)
	assert.Equal(t, 4, res.Names)
	require.NoError(t, res.PrefetchErr)

	assert.Equal(t, "Base", s.Catalog().ArchiveName(0))
	assert.Equal(t, "Patch", s.Catalog().ArchiveName(1))

	assert.Equal(t, []string{
		"models/characters/sam/body",
		"models/characters/sam/head",
		"models/props/cargo",
		"sounds/rain.stream",
	}, visible(s.Tree()))

	head, ok := s.Tree().LookupFile("models/characters/sam/head")
	require.True(t, ok)
	assert.Equal(t, tree.Header{Size: uint64(len("patched head")), Archive: 1}, head.Header())
	assert.False(t, s.Building())
}

func TestOpenDirectory_NoArchives(t *testing.T) {
	t.Parallel()

	s, err := New()
	require.NoError(t, err)
	_, err = s.OpenDirectory(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNoArchives)

	_, err = s.OpenDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestOpenDirectory_Cancelled(t *testing.T) {
	t.Parallel()

	s, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.OpenDirectory(ctx, dataDir(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Catalog().Len())
}

// cancelOnMessage is a slog.Handler that calls cancel once a record with
// msg is logged.
type cancelOnMessage struct {
	msg string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (h *cancelOnMessage) arm(cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = cancel
}

func (h *cancelOnMessage) Enabled(context.Context, slog.Level) bool { return true }

func (h *cancelOnMessage) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Message == h.msg && h.cancel != nil {
		h.cancel()
	}
	return nil
}

func (h *cancelOnMessage) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *cancelOnMessage) WithGroup(string) slog.Handler { return h }

func TestOpenDirectory_CancelledReopenKeepsPreviousState(t *testing.T) {
	t.Parallel()

	h := &cancelOnMessage{msg: "prefetch index loaded"}
	s, _ := openSession(t, WithLogger(slog.New(h)))
	firstDir := s.Dir()
	before := visible(s.Tree())

	other := t.TempDir()
	testutil.WriteContainer(t, other, "Other.bin", map[string][]byte{
		record.PrefetchName: testutil.PrefetchFile("levels/dock"),
		"levels/dock":       []byte("dock"),
	})

	// Cancelled after the new catalog is loaded but before its tree is built.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.arm(cancel)
	_, err := s.OpenDirectory(ctx, other)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, firstDir, s.Dir())
	require.Equal(t, 2, s.Catalog().Len())
	assert.Equal(t, "Base", s.Catalog().ArchiveName(0))
	assert.Equal(t, before, visible(s.Tree()))
	_, ok := s.Tree().LookupFile("levels/dock")
	assert.False(t, ok)

	p, ok, err := s.Preview(namehash.Of("models/characters/sam/head"))
	require.NoError(t, err, "previous catalog must stay open")
	require.True(t, ok)
	assert.Equal(t, []byte("patched head"), p.Data)

	h.arm(nil)
	_, err = s.OpenDirectory(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, other, s.Dir())
	assert.Equal(t, []string{"levels/dock"}, visible(s.Tree()))
}

func TestPreview_FollowsArchiveSelection(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t)
	head := namehash.Of("models/characters/sam/head")

	p, ok, err := s.Preview(head)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("patched head"), p.Data, "later archive wins without a selection")
	assert.Equal(t, []int{0}, p.Shadowed)

	s.SelectArchive(0)
	p, ok, err = s.Preview(head)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("base head"), p.Data)

	s.ToggleArchive(1)
	assert.Equal(t, []int{0, 1}, s.ActiveArchives())
	p, _, err = s.Preview(head)
	require.NoError(t, err)
	assert.Equal(t, []byte("patched head"), p.Data)

	s.SelectArchive(1)
	_, ok, err = s.Preview(namehash.Of("models/props/cargo"))
	require.NoError(t, err)
	assert.False(t, ok, "cargo is not in the patch")

	s.ClearArchiveSelection()
	_, ok, err = s.Preview(namehash.Of("models/props/cargo"))
	require.NoError(t, err)
	assert.True(t, ok)

	got, previewed := s.Previewed()
	assert.True(t, previewed)
	assert.Equal(t, namehash.Of("models/props/cargo"), got)
}

func TestPreview_ParsesRecords(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t)
	p, ok, err := s.PreviewName("models/characters/sam/body")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, p.ParseErr)
	require.Len(t, p.Records.Records, 2)
	assert.Equal(t, "opaque", p.Records.Records[0].Payload.Kind())
	col, isCol := p.Records.Records[1].Payload.(record.Collection)
	require.True(t, isCol)
	assert.Equal(t, "models/props/cargo", col.Refs[0].Path)

	s.Highlight(p.Records.Records[1])
	assert.Equal(t, tree.Range{Start: p.Records.Records[1].Offset, End: len(p.Data)}, s.HighlightRange())
	s.ResetHighlight()
	assert.True(t, s.HighlightRange().Empty())

	stream, ok, err := s.PreviewName("sounds/rain.stream")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stream.Stream)
	assert.Nil(t, stream.Records)

	raw, ok, err := s.PreviewName("models/props/cargo")
	require.NoError(t, err)
	require.True(t, ok)
	require.ErrorIs(t, raw.ParseErr, ErrTruncated)
	assert.Empty(t, raw.Records.Records)
}

func TestFilters(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t)
	s.SetFilter("head, cargo")
	assert.Equal(t, []string{"models/characters/sam/head", "models/props/cargo"}, visible(s.Tree()))
	assert.Equal(t, "head, cargo", s.Filter().String())

	s.SelectArchive(1)
	assert.Equal(t, []string{"models/characters/sam/head"}, visible(s.Tree()))

	tr, err := s.RebuildTree(context.Background())
	require.NoError(t, err)
	assert.Same(t, tr, s.Tree())
	assert.Equal(t, []string{"models/characters/sam/head"}, visible(tr), "filters survive rebuilds")

	s.SetFilter("")
	s.ClearArchiveSelection()
	assert.Len(t, visible(s.Tree()), 4)
}

func TestSelectionAndExport(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t)
	head := namehash.Of("models/characters/sam/head")

	assert.True(t, s.ToggleFile(head))
	s.SelectArchive(0)
	assert.True(t, s.ToggleFile(head))
	assert.Equal(t, []tree.SelectionKey{
		{Hash: head, Archive: tree.Unpinned},
		{Hash: head, Archive: 0},
	}, s.ExportSet())

	s.ClearArchiveSelection()
	require.NoError(t, s.ToggleGroup("models/props"))
	require.ErrorIs(t, s.ToggleGroup("models/nope"), ErrNoSuchFolder)
	assert.Len(t, s.ExportSet(), 3)

	dest := t.TempDir()
	report, err := s.Export(context.Background(), dest)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Len(t, report.Written, 3)

	for path, want := range map[string]string{
		"models/characters/sam/head.core":      "patched head",
		"Base/models/characters/sam/head.core": "base head",
		"models/props/cargo.core":              "cargo",
	} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(path)))
		require.NoError(t, err, path)
		assert.Equal(t, want, string(got), path)
	}

	report, err = s.Export(context.Background(), dest)
	require.NoError(t, err)
	assert.Len(t, report.Skipped, 3)

	report, err = s.Export(context.Background(), dest, export.WithOverwrite(true))
	require.NoError(t, err)
	assert.Len(t, report.Written, 3)

	s.ClearExport()
	assert.Empty(t, s.ExportSet())
}

func TestAddByNameAndHash(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t)
	assert.False(t, s.AddByName("models/unknown"))
	assert.False(t, s.AddByHash(0xDEAD))
	assert.False(t, s.AddPinned(namehash.Of("models/props/cargo"), 1))

	s.Catalog().SetDisplayName(namehash.Of("models/props/cargo"), "custom/name")
	assert.True(t, s.AddByName("models/props/cargo"))
	assert.Equal(t, "custom/name", s.Catalog().DisplayName(namehash.Of("models/props/cargo")), "existing names are kept")

	assert.True(t, s.AddByHash(namehash.Of("sounds/rain.stream")))
	assert.True(t, s.AddPinned(namehash.Of("models/characters/sam/head"), 1))
	assert.Len(t, s.ExportSet(), 3)
}

func TestWithConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Exclude = []string{"Broken"}
	cfg.Extension = "bin"
	s, res := openSession(t, WithConfig(cfg))
	assert.Len(t, res.Paths, 2)
	require.NoError(t, res.LoadErr)
	assert.Equal(t, 2, s.Catalog().Len())

	_, err := New(WithExtension(""))
	require.Error(t, err)
}
