package catalog

import (
	"cmp"
	"slices"
)

// Subset restricts resolution to a set of archive indices. The zero value
// (empty) means every archive.
type Subset []int

// NewSubset returns a Subset holding indices.
func NewSubset(indices ...int) Subset {
	return Subset(indices)
}

// Contains reports whether i is part of the subset.
func (s Subset) Contains(i int) bool {
	return slices.Contains(s, i)
}

// order returns the archive indices to search, highest priority first.
// Indices outside [0, n) are dropped.
func (s Subset) order(n int) []int {
	if len(s) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = n - 1 - i
		}
		return out
	}
	out := make([]int, 0, len(s))
	for _, i := range s {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	slices.SortFunc(out, func(a, b int) int { return cmp.Compare(b, a) })
	return slices.Compact(out)
}
