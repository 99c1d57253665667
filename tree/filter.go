package tree

import (
	"iter"
	"strings"

	"github.com/meigma/decima/namehash"
)

// TextFilter matches leaf names against comma-separated terms.
//
// Terms are trimmed and compared case-insensitively as substrings. A term
// starting with '-' excludes names containing the rest of the term. A name
// passes when no exclude term matches and, if any include terms exist, at
// least one of them matches. The zero value is inactive and passes everything.
type TextFilter struct {
	raw     string
	include []string
	exclude []string
}

// ParseFilter parses a filter expression such as "mesh,-lod".
func ParseFilter(s string) TextFilter {
	f := TextFilter{raw: s}
	for term := range strings.SplitSeq(s, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if rest, ok := strings.CutPrefix(term, "-"); ok {
			if rest != "" {
				f.exclude = append(f.exclude, rest)
			}
			continue
		}
		if term != "" {
			f.include = append(f.include, term)
		}
	}
	return f
}

// String returns the expression the filter was parsed from.
func (f TextFilter) String() string {
	return f.raw
}

// Active reports whether the filter has any terms.
func (f TextFilter) Active() bool {
	return len(f.include) > 0 || len(f.exclude) > 0
}

// Match reports whether name passes the filter.
func (f TextFilter) Match(name string) bool {
	if !f.Active() {
		return true
	}
	lower := strings.ToLower(name)
	for _, term := range f.exclude {
		if strings.Contains(lower, term) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, term := range f.include {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ApplyTextFilter recomputes filter visibility for every node.
func (t *Tree) ApplyTextFilter(f TextFilter) {
	if !f.Active() {
		resetFilter(t.root, true)
		return
	}
	resetFilter(t.root, false)
	markFilter(t.root, f)
}

func resetFilter(dir *Folder, state bool) {
	dir.visibleByFilter = state
	for _, sub := range dir.folders {
		resetFilter(sub, state)
	}
	for _, file := range dir.files {
		file.visibleByFilter = state
	}
}

func markFilter(dir *Folder, f TextFilter) bool {
	matched := false
	for name, file := range dir.files {
		if f.Match(name) {
			file.visibleByFilter = true
			matched = true
		}
	}
	for _, sub := range dir.folders {
		if markFilter(sub, f) {
			matched = true
		}
	}
	dir.visibleByFilter = matched
	return matched
}

// ArchiveRef is an archive as seen by the archive filter.
type ArchiveRef interface {
	// Index is the archive's catalog index.
	Index() int
	// Hashes yields every hash the archive holds.
	Hashes() iter.Seq[namehash.Hash]
}

// ApplyArchiveFilter limits archive visibility to files held by any of refs
// and rebuilds the pin cache. refs must be ordered highest priority first:
// a hash held by several refs is pinned to the first one.
//
// With no refs every node becomes visible and the pin cache is cleared.
func (t *Tree) ApplyArchiveFilter(refs []ArchiveRef) {
	if len(refs) == 0 {
		t.pins = nil
		resetArchive(t.root, true)
		return
	}
	pins := make(map[namehash.Hash]int)
	for _, ref := range refs {
		idx := ref.Index()
		for h := range ref.Hashes() {
			if _, ok := pins[h]; !ok {
				pins[h] = idx
			}
		}
	}
	t.pins = pins
	resetArchive(t.root, false)
	markArchive(t.root, pins)
}

func resetArchive(dir *Folder, state bool) {
	dir.visibleByArchive = state
	for _, sub := range dir.folders {
		resetArchive(sub, state)
	}
	for _, file := range dir.files {
		file.visibleByArchive = state
	}
}

func markArchive(dir *Folder, pins map[namehash.Hash]int) bool {
	matched := false
	for _, file := range dir.files {
		if _, ok := pins[file.hash]; ok {
			file.visibleByArchive = true
			matched = true
		}
	}
	for _, sub := range dir.folders {
		if markArchive(sub, pins) {
			matched = true
		}
	}
	dir.visibleByArchive = matched
	return matched
}

// Pin returns the archive a hash is pinned to by the current archive filter.
func (t *Tree) Pin(hash namehash.Hash) (int, bool) {
	idx, ok := t.pins[hash]
	return idx, ok
}
