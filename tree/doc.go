// Package tree indexes the catalog's flat (hash, path) universe as a folder
// hierarchy.
//
// Every node carries two independent visibility flags: one driven by a text
// filter over leaf names and one driven by membership in a set of selected
// archives. A node is shown when both flags are set; a folder's flag is set
// when any descendant's is. Both filters are recomputed from scratch on every
// update, so applying the same filter twice is a no-op and clearing a filter
// restores the unfiltered state exactly.
//
// The archive filter also maintains a pin cache that maps each hash to the
// highest-priority selected archive holding it. SelectionKey consults the
// cache so that selections made while archives are selected refer to a
// specific archive rather than to default resolution.
//
// A Tree is not safe for concurrent mutation. Rebuilds happen on a fresh Tree
// that is published through a Store once complete.
package tree
