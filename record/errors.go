package record

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a header or payload extends past the end
	// of the buffer.
	ErrTruncated = errors.New("record: truncated")

	// ErrMisalignment is returned when a decoder consumes a different number
	// of bytes than the record header declares.
	ErrMisalignment = errors.New("record: misaligned record")

	// ErrDuplicateKind is returned when a magic is registered twice.
	ErrDuplicateKind = errors.New("record: duplicate kind")

	// ErrMalformed is returned by decoders for payloads that violate the
	// layout of their kind.
	ErrMalformed = errors.New("record: malformed payload")
)

// MisalignmentError describes a decoder that did not land on the end of its
// record.
type MisalignmentError struct {
	// Offset is the start of the record within the file.
	Offset int
	// Magic is the record kind.
	Magic Magic
	// Declared is the payload size from the header.
	Declared int
	// Consumed is the number of payload bytes the decoder read.
	Consumed int
}

func (e *MisalignmentError) Error() string {
	return fmt.Sprintf("record: %s at offset %d consumed %d bytes, header declares %d",
		e.Magic, e.Offset, e.Consumed, e.Declared)
}

func (e *MisalignmentError) Unwrap() error {
	return ErrMisalignment
}
