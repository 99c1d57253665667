// Package record walks the typed record stream stored inside a single
// catalog file.
//
// A file is a sequence of self-describing records. Each record starts with a
// 12 byte header holding a 64-bit magic and the 32-bit size of the payload
// that follows. The magic selects a decoder from a Registry; magics without a
// registered decoder produce an Opaque record that holds a copy of the raw
// payload, so the scan always advances by exactly the declared size.
//
// Parsing is strict about alignment: a decoder must consume exactly the
// declared payload. Any mismatch aborts the file with a *MisalignmentError,
// and the records decoded before the failure are returned alongside it.
//
// Files whose names end in ".stream" hold bulk data and are never parsed.
package record
