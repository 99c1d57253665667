package testutil

import (
	"bytes"
	"sync/atomic"
)

// CountingSource is an in-memory archive.ByteSource that counts reads.
type CountingSource struct {
	*bytes.Reader
	id    string
	reads atomic.Int64
}

// NewCountingSource returns a byte source backed by data.
func NewCountingSource(id string, data []byte) *CountingSource {
	return &CountingSource{Reader: bytes.NewReader(data), id: id}
}

// ReadAt implements io.ReaderAt and records the call.
func (s *CountingSource) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	return s.Reader.ReadAt(p, off)
}

// SourceID returns the identifier given at construction.
func (s *CountingSource) SourceID() string {
	return s.id
}

// Reads returns the number of ReadAt calls so far.
func (s *CountingSource) Reads() int64 {
	return s.reads.Load()
}

// ResetReads zeroes the read counter.
func (s *CountingSource) ResetReads() {
	s.reads.Store(0)
}
