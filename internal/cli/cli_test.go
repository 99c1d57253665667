package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/decima/internal/config"
	"github.com/meigma/decima/internal/testutil"
	"github.com/meigma/decima/record"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// setupHome points the config root at a temp dir and returns a data
// directory holding a Base and a Patch container.
func setupHome(t *testing.T) string {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())

	var b record.Builder
	body := b.AppendCollection(record.Collection{
		Refs: []record.Reference{{Kind: record.RefLocal}},
	}).Bytes()

	dir := t.TempDir()
	testutil.WriteContainer(t, dir, "Base.bin", map[string][]byte{
		record.PrefetchName:  testutil.PrefetchFile("models/sam/body", "models/sam/head", "sounds/rain.stream"),
		"models/sam/body":    body,
		"models/sam/head":    []byte("base head"),
		"sounds/rain.stream": []byte("pcm"),
	})
	testutil.WriteContainer(t, dir, "Patch.bin", map[string][]byte{
		"models/sam/head": []byte("patched head"),
	})
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRoot_Help(t *testing.T) {
	out, _, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Browse:")
	assert.Contains(t, out, "Export:")
	for _, name := range []string{"archives", "entries", "tree", "find", "info", "inspect", "export", "pack", "config"} {
		assert.Contains(t, out, name)
	}
}

func TestRoot_Version(t *testing.T) {
	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "test\n", out)
}

func TestNoDataDir(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	_, _, err := run(t, "archives")
	require.ErrorIs(t, err, errNoDataDir)
}

func TestArchives(t *testing.T) {
	dir := setupHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.bin"), []byte("nope"), 0o600))

	out, errOut, err := run(t, "archives", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Base")
	assert.Contains(t, out, "Patch")
	assert.Contains(t, out, "Broken.bin")
	assert.Contains(t, out, "2 archives, 3 named")
	assert.Contains(t, errOut, "Broken.bin")
}

func TestEntries(t *testing.T) {
	dir := setupHome(t)

	out, _, err := run(t, "entries", "1", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "models/sam/head")

	out, _, err = run(t, "entries", "0", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown", "the prefetch file itself is not named")

	_, _, err = run(t, "entries", "7", "--data-dir", dir)
	require.Error(t, err)
}

func TestTreeAndFind(t *testing.T) {
	dir := setupHome(t)

	out, _, err := run(t, "tree", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "models/\n")
	assert.Contains(t, out, "  sam/\n")
	assert.Contains(t, out, "    head  12 bytes, Patch")

	out, _, err = run(t, "tree", "--data-dir", dir, "--depth", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "sam/")

	out, _, err = run(t, "tree", "--data-dir", dir, "--archive", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "head")
	assert.NotContains(t, out, "body")
	assert.NotContains(t, out, "sounds/")

	out, _, err = run(t, "find", "--data-dir", dir, "--", "-head")
	require.NoError(t, err)
	assert.Equal(t, "models/sam/body\nsounds/rain.stream\n", out)

	out, _, err = run(t, "find", "nothing", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no matching files")

	_, _, err = run(t, "tree", "--data-dir", dir, "--archive", "9")
	require.Error(t, err)
}

func TestInfo(t *testing.T) {
	dir := setupHome(t)

	out, _, err := run(t, "info", "models/sam/head", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 (Patch)")
	assert.Contains(t, out, "Shadowed:")
	assert.Contains(t, out, "0 (Base)")

	out, _, err = run(t, "info", "models/sam/head", "--archive", "0", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 (Base)")
	assert.NotContains(t, out, "Shadowed:")

	out, _, err = run(t, "info", "0xDEAD", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown")
}

func TestInspect(t *testing.T) {
	dir := setupHome(t)

	out, _, err := run(t, "inspect", "models/sam/body", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Collection")
	assert.Contains(t, out, "1 reference")

	out, _, err = run(t, "inspect", "sounds/rain.stream", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "stream data is not parsed")

	out, _, err = run(t, "inspect", "models/sam/head", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "parse stopped")
}

func TestExport(t *testing.T) {
	dir := setupHome(t)
	dest := t.TempDir()

	out, _, err := run(t, "export", dest, "--name", "models/sam/head", "--folder", "sounds", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 2 files")

	got, err := os.ReadFile(filepath.Join(dest, "models", "sam", "head.core"))
	require.NoError(t, err)
	assert.Equal(t, "patched head", string(got))
	_, err = os.Stat(filepath.Join(dest, "sounds", "rain.stream"))
	require.NoError(t, err)

	pinned := t.TempDir()
	_, _, err = run(t, "export", pinned, "--name", "models/sam/head", "--pin", "0", "--data-dir", dir)
	require.NoError(t, err)
	got, err = os.ReadFile(filepath.Join(pinned, "models", "sam", "head.core"))
	require.NoError(t, err)
	assert.Equal(t, "base head", string(got))

	_, _, err = run(t, "export", t.TempDir(), "--name", "models/sam/body", "--pin", "1", "--data-dir", dir)
	require.ErrorContains(t, err, "not found")

	_, _, err = run(t, "export", t.TempDir(), "--data-dir", dir)
	require.ErrorContains(t, err, "nothing to export")
}

func TestPack(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "models"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "models", "a.core"), []byte("alpha"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.core"), bytes.Repeat([]byte("b"), 4096), 0o600))

	data := t.TempDir()
	out, _, err := run(t, "pack", src, filepath.Join(data, "Packed.bin"), "--zstd")
	require.NoError(t, err)
	assert.Contains(t, out, "packed 2 files")

	out, _, err = run(t, "info", "models/a", "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "0 (Packed)")
	assert.Contains(t, out, "Size:      5")
}

func TestConfig(t *testing.T) {
	dir := setupHome(t)

	out, _, err := run(t, "config", "set-data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, dir)

	out, _, err = run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "data_dir: "+dir)

	out, _, err = run(t, "archives")
	require.NoError(t, err)
	assert.Contains(t, out, "Patch")

	_, _, err = run(t, "config", "set-data-dir", filepath.Join(dir, "Base.bin"))
	require.ErrorContains(t, err, "not a directory")
}
