//go:generate flatc --go --go-namespace fb -o ../internal schema/table.fbs

// Package archive reads and writes DPK1 containers.
//
// A container is a fixed 32-byte header, a FlatBuffers-encoded entry table
// and a data region:
//
//	offset 0   [4]byte  magic "DPK1"
//	offset 4   uint32   version
//	offset 8   uint64   table size in bytes
//	offset 16  uint64   data size in bytes
//	offset 24  uint64   reserved
//	offset 32           entry table, then data region
//
// Entries are keyed by [namehash.Hash]. Each entry records its span inside
// the data region, its uncompressed size, an optional SHA-256 checksum and
// its compression. An Archive is immutable once opened; reads always return
// an owned copy of the entry content.
package archive
