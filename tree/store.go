package tree

import (
	"context"
	"sync/atomic"
)

// Store publishes trees atomically. Readers always observe a complete tree.
type Store struct {
	current  atomic.Pointer[Tree]
	building atomic.Int32
}

// NewStore returns a store holding an empty tree.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(New())
	return s
}

// Load returns the published tree.
func (s *Store) Load() *Tree {
	if t := s.current.Load(); t != nil {
		return t
	}
	return New()
}

// Publish replaces the published tree.
func (s *Store) Publish(t *Tree) {
	s.current.Store(t)
}

// Building reports whether a Rebuild is in progress. It is a hint for
// progress display only.
func (s *Store) Building() bool {
	return s.building.Load() > 0
}

// Build runs build in isolation without publishing its result, so the
// caller can publish it together with other state. Building reports true
// while it runs.
func (s *Store) Build(ctx context.Context, build func(context.Context) (*Tree, error)) (*Tree, error) {
	s.building.Add(1)
	defer s.building.Add(-1)
	return build(ctx)
}

// Rebuild runs build in isolation and publishes its result. On error the
// previously published tree stays in place.
func (s *Store) Rebuild(ctx context.Context, build func(context.Context) (*Tree, error)) (*Tree, error) {
	t, err := s.Build(ctx, build)
	if err != nil {
		return nil, err
	}
	s.Publish(t)
	return t, nil
}
