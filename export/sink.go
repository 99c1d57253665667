package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync/atomic"
)

// sink writes files below a directory with atomic replaces.
//
// Content goes to a temporary file in the destination directory first and is
// renamed over the final path once complete, so partially written files are
// never visible. All access goes through an os.Root, so no path can escape
// the destination.
type sink struct {
	root      *os.Root
	overwrite bool
	seq       atomic.Uint64
}

func newSink(dir string, overwrite bool) (*sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &sink{root: root, overwrite: overwrite}, nil
}

func (s *sink) Close() error {
	return s.root.Close()
}

// shouldWrite returns false if rel already exists and overwrite is disabled.
func (s *sink) shouldWrite(rel string) bool {
	if s.overwrite {
		return true
	}
	_, err := s.root.Stat(rel)
	return errors.Is(err, fs.ErrNotExist)
}

// write stores data at the slash-separated path rel.
func (s *sink) write(rel string, data []byte) error {
	dir := path.Dir(rel)
	if dir != "." {
		if err := s.root.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp := path.Join(dir, fmt.Sprintf(".decima-%d-%d", os.Getpid(), s.seq.Add(1)))
	f, err := s.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()          //nolint:errcheck // we're cleaning up
		_ = s.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		_ = s.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.root.Rename(tmp, rel); err != nil {
		_ = s.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", rel, err)
	}
	return nil
}
