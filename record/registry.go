package record

import (
	"cmp"
	"fmt"
	"slices"
)

// Decoder decodes one payload. The cursor is positioned at the first payload
// byte; the decoder must consume exactly h.Size bytes.
type Decoder func(c *Cursor, h Header) (Payload, error)

// Kind describes one registered record kind.
type Kind struct {
	Magic   Magic
	Name    string
	Decoder Decoder
}

// Registry maps magics to decoders. A Registry is not safe for concurrent
// registration; it is safe for concurrent lookup once populated.
type Registry struct {
	kinds map[Magic]Kind
}

// NewRegistry returns an empty registry. Every magic decodes as Opaque.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[Magic]Kind)}
}

// DefaultRegistry returns a registry holding the built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(MagicCollection, "Collection", decodeCollection)
	r.MustRegister(MagicPrefetch, "Prefetch", decodePrefetch)
	return r
}

// Register adds a decoder for magic.
func (r *Registry) Register(magic Magic, name string, dec Decoder) error {
	if dec == nil {
		return fmt.Errorf("record: register %s: nil decoder", magic)
	}
	if existing, ok := r.kinds[magic]; ok {
		return fmt.Errorf("%w: %s already registered as %q", ErrDuplicateKind, magic, existing.Name)
	}
	r.kinds[magic] = Kind{Magic: magic, Name: name, Decoder: dec}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(magic Magic, name string, dec Decoder) {
	if err := r.Register(magic, name, dec); err != nil {
		panic(err)
	}
}

// Lookup returns the kind registered for magic.
func (r *Registry) Lookup(magic Magic) (Kind, bool) {
	k, ok := r.kinds[magic]
	return k, ok
}

// KindName returns the registered name of magic, or its hex form.
func (r *Registry) KindName(magic Magic) string {
	if k, ok := r.kinds[magic]; ok {
		return k.Name
	}
	return magic.String()
}

// Kinds returns the registered kinds ordered by magic.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b Kind) int { return cmp.Compare(a.Magic, b.Magic) })
	return out
}

func decodeOpaque(c *Cursor, h Header) (Payload, error) {
	data, err := c.Bytes(int(h.Size))
	if err != nil {
		return nil, err
	}
	return Opaque{Data: data}, nil
}
