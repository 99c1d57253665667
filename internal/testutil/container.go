// Package testutil provides fixture builders shared by package tests.
package testutil

import (
	"bytes"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/meigma/decima/archive"
	"github.com/meigma/decima/namehash"
	"github.com/meigma/decima/record"
)

// Container builds a container holding files keyed by name. Entries are
// added in name order so the output is deterministic.
func Container(tb testing.TB, files map[string][]byte, opts ...archive.CreateOption) []byte {
	tb.Helper()

	w, err := archive.NewWriter(opts...)
	if err != nil {
		tb.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	for _, name := range slices.Sorted(maps.Keys(files)) {
		if err := w.Add(name, files[name]); err != nil {
			tb.Fatalf("add %s: %v", name, err)
		}
	}
	return finish(tb, w)
}

// ContainerHashes builds a container holding files keyed by raw hash.
func ContainerHashes(tb testing.TB, files map[namehash.Hash][]byte) []byte {
	tb.Helper()

	w, err := archive.NewWriter()
	if err != nil {
		tb.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	for _, h := range slices.Sorted(maps.Keys(files)) {
		if err := w.AddHash(h, files[h]); err != nil {
			tb.Fatalf("add %s: %v", h, err)
		}
	}
	return finish(tb, w)
}

func finish(tb testing.TB, w *archive.Writer) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		tb.Fatalf("write container: %v", err)
	}
	return buf.Bytes()
}

// WriteContainer writes a container for files to dir/name and returns its path.
func WriteContainer(tb testing.TB, dir, name string, files map[string][]byte, opts ...archive.CreateOption) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Container(tb, files, opts...), 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// MemArchive opens an in-memory archive for files. name is used as the
// archive path.
func MemArchive(tb testing.TB, name string, files map[string][]byte) *archive.Archive {
	tb.Helper()

	a, err := archive.New(name, archive.NewBytesSource(Container(tb, files)))
	if err != nil {
		tb.Fatalf("open %s: %v", name, err)
	}
	return a
}

// MemArchiveHashes opens an in-memory archive keyed by raw hash.
func MemArchiveHashes(tb testing.TB, name string, files map[namehash.Hash][]byte) *archive.Archive {
	tb.Helper()

	a, err := archive.New(name, archive.NewBytesSource(ContainerHashes(tb, files)))
	if err != nil {
		tb.Fatalf("open %s: %v", name, err)
	}
	return a
}

// PrefetchFile returns a record stream holding one prefetch index that lists
// paths.
func PrefetchFile(paths ...string) []byte {
	pf := record.Prefetch{GUID: record.GUID{0xFE}}
	for _, p := range paths {
		pf.Strings = append(pf.Strings, record.NewHashedString(p))
		pf.Sizes = append(pf.Sizes, 0)
	}
	var b record.Builder
	return b.AppendPrefetch(pf).Bytes()
}
