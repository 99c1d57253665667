package record

import (
	"fmt"
	"log/slog"
)

// Parser splits a buffer into records.
//
// A Parser is safe for concurrent use once constructed.
type Parser struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegistry sets the decoder registry (default: DefaultRegistry).
func WithRegistry(r *Registry) Option {
	return func(p *Parser) {
		p.registry = r
	}
}

// WithLogger sets the logger for parse diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = DefaultRegistry()
	}
	return p
}

func (p *Parser) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Registry returns the registry used for dispatch.
func (p *Parser) Registry() *Registry {
	return p.registry
}

// Parse decodes every record in buf.
//
// On failure the returned File holds the records decoded before the faulty
// one and the error describes the failure. The File is never nil.
func (p *Parser) Parse(buf []byte) (*File, error) {
	f := &File{}
	c := NewCursor(buf)
	for c.Remaining() > 0 {
		rec, err := p.next(c)
		if err != nil {
			p.log().Debug("parse aborted", "offset", rec.Offset, "records", len(f.Records), "error", err)
			return f, err
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}

func (p *Parser) next(c *Cursor) (Record, error) {
	rec := Record{Offset: c.Pos()}
	h, err := readHeader(c)
	if err != nil {
		return rec, err
	}
	rec.Header = h
	start := c.Pos()
	if int(h.Size) > c.Remaining() {
		return rec, fmt.Errorf("%w: %s at offset %d declares %d payload bytes, have %d",
			ErrTruncated, h.Magic, rec.Offset, h.Size, c.Remaining())
	}

	dec := decodeOpaque
	if k, ok := p.registry.Lookup(h.Magic); ok {
		dec = k.Decoder
	}
	// Decoders see only their own payload. Offsets stay file-relative.
	end := start + int(h.Size)
	body := &Cursor{buf: c.buf[:end], pos: start}
	payload, err := dec(body, h)
	if err != nil {
		return rec, fmt.Errorf("record: %s at offset %d: %w", p.registry.KindName(h.Magic), rec.Offset, err)
	}
	consumed := body.Pos() - start
	c.pos = end
	if consumed != int(h.Size) {
		return rec, &MisalignmentError{
			Offset:   rec.Offset,
			Magic:    h.Magic,
			Declared: int(h.Size),
			Consumed: consumed,
		}
	}
	rec.Payload = payload
	return rec, nil
}
