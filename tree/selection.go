package tree

import (
	"cmp"
	"maps"
	"slices"

	"github.com/meigma/decima/namehash"
)

// Unpinned marks a selection that resolves by default priority.
const Unpinned = -1

// SelectionKey identifies one selected file. Keys with the same hash and a
// different Archive are distinct.
type SelectionKey struct {
	Hash namehash.Hash
	// Archive is the pinned archive index, or Unpinned.
	Archive int
}

// Pinned reports whether the key names a specific archive.
func (k SelectionKey) Pinned() bool {
	return k.Archive != Unpinned
}

func compareKeys(a, b SelectionKey) int {
	if c := cmp.Compare(a.Hash, b.Hash); c != 0 {
		return c
	}
	return cmp.Compare(a.Archive, b.Archive)
}

// SelectionKey returns the key for hash under the current archive filter:
// pinned to the highest-priority selected archive holding it, or Unpinned.
func (t *Tree) SelectionKey(hash namehash.Hash) SelectionKey {
	if idx, ok := t.pins[hash]; ok {
		return SelectionKey{Hash: hash, Archive: idx}
	}
	return SelectionKey{Hash: hash, Archive: Unpinned}
}

// ToggleGroup toggles the direct files of dir in sel. If every file's key is
// already selected they are all removed; otherwise they are all added.
// Nested folders are not affected.
func (t *Tree) ToggleGroup(dir *Folder, sel *Selection) {
	keys := make([]SelectionKey, 0, len(dir.files))
	for _, file := range dir.files {
		keys = append(keys, t.SelectionKey(file.hash))
	}
	all := true
	for _, k := range keys {
		if !sel.Contains(k) {
			all = false
			break
		}
	}
	for _, k := range keys {
		if all {
			sel.Remove(k)
		} else {
			sel.Add(k)
		}
	}
}

// Range is a half-open byte range within the previewed file.
type Range struct {
	Start, End int
}

// Empty reports whether the range covers no bytes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Selection is the user's current choice of files and archives.
//
// A Selection is not safe for concurrent use.
type Selection struct {
	previewed    namehash.Hash
	hasPreview   bool
	previewRange Range

	export map[SelectionKey]struct{}
	active map[int]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{
		export: make(map[SelectionKey]struct{}),
		active: make(map[int]struct{}),
	}
}

// Add adds k to the export set.
func (s *Selection) Add(k SelectionKey) {
	s.export[k] = struct{}{}
}

// Remove removes k from the export set.
func (s *Selection) Remove(k SelectionKey) {
	delete(s.export, k)
}

// Toggle flips membership of k and reports whether k is now selected.
func (s *Selection) Toggle(k SelectionKey) bool {
	if _, ok := s.export[k]; ok {
		delete(s.export, k)
		return false
	}
	s.export[k] = struct{}{}
	return true
}

// Contains reports whether k is in the export set.
func (s *Selection) Contains(k SelectionKey) bool {
	_, ok := s.export[k]
	return ok
}

// Len returns the size of the export set.
func (s *Selection) Len() int {
	return len(s.export)
}

// Keys returns the export set ordered by hash then archive.
func (s *Selection) Keys() []SelectionKey {
	keys := slices.Collect(maps.Keys(s.export))
	slices.SortFunc(keys, compareKeys)
	return keys
}

// ClearExport empties the export set.
func (s *Selection) ClearExport() {
	clear(s.export)
}

// SetPreview marks hash as the previewed file and resets the highlight.
func (s *Selection) SetPreview(hash namehash.Hash) {
	s.previewed = hash
	s.hasPreview = true
	s.previewRange = Range{}
}

// Preview returns the previewed hash.
func (s *Selection) Preview() (namehash.Hash, bool) {
	return s.previewed, s.hasPreview
}

// SetHighlight sets the highlighted byte range of the previewed file.
func (s *Selection) SetHighlight(r Range) {
	s.previewRange = r
}

// Highlight returns the highlighted byte range.
func (s *Selection) Highlight() Range {
	return s.previewRange
}

// ResetHighlight clears the highlighted byte range.
func (s *Selection) ResetHighlight() {
	s.previewRange = Range{}
}

// SetActive replaces the active archive set.
func (s *Selection) SetActive(indices ...int) {
	clear(s.active)
	for _, i := range indices {
		s.active[i] = struct{}{}
	}
}

// ToggleActive flips membership of archive i and reports whether it is now
// active.
func (s *Selection) ToggleActive(i int) bool {
	if _, ok := s.active[i]; ok {
		delete(s.active, i)
		return false
	}
	s.active[i] = struct{}{}
	return true
}

// AddActive adds every index in [from, to] to the active set.
func (s *Selection) AddActive(from, to int) {
	if from > to {
		from, to = to, from
	}
	for i := from; i <= to; i++ {
		s.active[i] = struct{}{}
	}
}

// IsActive reports whether archive i is active.
func (s *Selection) IsActive(i int) bool {
	_, ok := s.active[i]
	return ok
}

// ClearActive empties the active archive set.
func (s *Selection) ClearActive() {
	clear(s.active)
}

// Active returns the active archive indices in ascending order.
func (s *Selection) Active() []int {
	return slices.Sorted(maps.Keys(s.active))
}
