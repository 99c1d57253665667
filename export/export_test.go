package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/decima/catalog"
	"github.com/meigma/decima/internal/testutil"
	"github.com/meigma/decima/namehash"
	"github.com/meigma/decima/tree"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c := catalog.New()
	c.Add(testutil.MemArchive(t, "Base.bin", map[string][]byte{
		"models/a":        []byte("base a"),
		"models/b":        []byte("base b"),
		"sounds/c.stream": []byte("stream"),
	}))
	c.Add(testutil.MemArchive(t, "Patch.bin", map[string][]byte{
		"models/a": []byte("patched a"),
	}))
	for _, p := range []string{"models/a", "models/b", "sounds/c.stream"} {
		c.SetDisplayName(namehash.Of(p), p)
	}
	return c
}

func unpinned(name string) tree.SelectionKey {
	return tree.SelectionKey{Hash: namehash.Of(name), Archive: tree.Unpinned}
}

func pinned(name string, archive int) tree.SelectionKey {
	return tree.SelectionKey{Hash: namehash.Of(name), Archive: archive}
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"models/a", "models/a.core"},
		{"models/a.core", "models/a.core"},
		{`sounds\c.stream`, "sounds/c.stream"},
		{"/abs/path", "abs/path.core"},
		{"../../etc/passwd", "etc/passwd.core"},
		{"a/./b//c", "a/b/c.core"},
		{`bad:name?`, "bad_name_.core"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelPath(tt.in), tt.in)
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	e := New(testCatalog(t))
	targets := e.Plan([]tree.SelectionKey{
		unpinned("models/b"),
		pinned("models/a", 0),
		pinned("models/a", 1),
		pinned("sounds/c.stream", 0),
		{Hash: 0xABC, Archive: tree.Unpinned},
	})
	paths := make([]string, len(targets))
	for i, tg := range targets {
		paths[i] = tg.Path
	}
	assert.Equal(t, []string{
		"models/b.core",
		"Base/models/a.core",
		"Patch/models/a.core",
		"sounds/c.stream",
		"0000000000000ABC.core",
	}, paths)
}

func TestExport(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out")
	e := New(testCatalog(t), WithConcurrency(2))

	report, err := e.Export(context.Background(), dest, []tree.SelectionKey{
		unpinned("models/a"),
		unpinned("models/b"),
		pinned("models/b", 1),
		unpinned("missing"),
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	require.Len(t, report.Written, 2)
	assert.Equal(t, "models/a.core", report.Written[0].Path)
	assert.Equal(t, 1, report.Written[0].Archive, "unpinned keys use default priority")
	assert.Equal(t, digest.FromBytes([]byte("patched a")), report.Written[0].Digest)
	assert.Equal(t, 9, report.Written[0].Size)

	require.Len(t, report.Missing, 2)
	assert.Equal(t, pinned("models/b", 1), report.Missing[0].Key, "pinned keys resolve only in their archive")
	assert.Equal(t, unpinned("missing"), report.Missing[1].Key)

	got, err := os.ReadFile(filepath.Join(dest, "models", "a.core"))
	require.NoError(t, err)
	assert.Equal(t, []byte("patched a"), got)

	got, err = os.ReadFile(filepath.Join(dest, "models", "b.core"))
	require.NoError(t, err)
	assert.Equal(t, []byte("base b"), got)

	entries, err := os.ReadDir(filepath.Join(dest, "models"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestExport_DuplicateHashesDoNotCollide(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	report, err := New(testCatalog(t)).Export(context.Background(), dest, []tree.SelectionKey{
		pinned("models/a", 0),
		pinned("models/a", 1),
		unpinned("models/a"),
	})
	require.NoError(t, err)
	require.Len(t, report.Written, 3)

	for path, want := range map[string]string{
		"Base/models/a.core":  "base a",
		"Patch/models/a.core": "patched a",
		"models/a.core":       "patched a",
	} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(path)))
		require.NoError(t, err, path)
		assert.Equal(t, want, string(got), path)
	}
}

func TestExport_NamesSanitizingAlikeGetDistinctPaths(t *testing.T) {
	t.Parallel()

	names := []string{"dir/a:b", "dir/a?b", "dir/A_B"}
	files := make(map[string][]byte, len(names))
	for _, n := range names {
		files[n] = []byte("content of " + n)
	}
	c := catalog.New()
	c.Add(testutil.MemArchive(t, "Base.bin", files))
	keys := make([]tree.SelectionKey, len(names))
	for i, n := range names {
		c.SetDisplayName(namehash.Of(n), n)
		keys[i] = unpinned(n)
	}

	targets := New(c).Plan(keys)
	assert.Equal(t, "dir/a_b.core", targets[0].Path)
	assert.Equal(t, "dir/a_b."+namehash.Of("dir/a?b").String()+".core", targets[1].Path)
	assert.Equal(t, "dir/A_B."+namehash.Of("dir/A_B").String()+".core", targets[2].Path)

	for _, concurrency := range []int{1, 4} {
		dest := t.TempDir()
		report, err := New(c, WithConcurrency(concurrency)).Export(context.Background(), dest, keys)
		require.NoError(t, err)
		require.NoError(t, report.Err())
		assert.Empty(t, report.Skipped)
		require.Len(t, report.Written, len(names))

		for i, tg := range targets {
			got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(tg.Path)))
			require.NoError(t, err, tg.Path)
			assert.Equal(t, "content of "+names[i], string(got))
		}
	}
}

func TestExport_SkipsExistingUnlessOverwrite(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	existing := filepath.Join(dest, "models", "b.core")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o750))
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o600))

	keys := []tree.SelectionKey{unpinned("models/b")}
	report, err := New(testCatalog(t)).Export(context.Background(), dest, keys)
	require.NoError(t, err)
	assert.Empty(t, report.Written)
	require.Len(t, report.Skipped, 1)
	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("keep me"), got)

	report, err = New(testCatalog(t), WithOverwrite(true)).Export(context.Background(), dest, keys)
	require.NoError(t, err)
	require.Len(t, report.Written, 1)
	got, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("base b"), got)
}

func TestExport_UnsafeNamesStayInside(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	c.SetDisplayName(namehash.Of("models/b"), "../../escape")

	dest := t.TempDir()
	report, err := New(c).Export(context.Background(), dest, []tree.SelectionKey{unpinned("models/b")})
	require.NoError(t, err)
	require.Len(t, report.Written, 1)
	assert.Equal(t, "escape.core", report.Written[0].Path)
	_, err = os.Stat(filepath.Join(dest, "escape.core"))
	require.NoError(t, err)
}

func TestExport_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testCatalog(t)).Export(ctx, t.TempDir(), []tree.SelectionKey{unpinned("models/a")})
	require.ErrorIs(t, err, context.Canceled)
}
