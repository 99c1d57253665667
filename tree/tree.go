package tree

import (
	"context"
	"encoding/binary"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/meigma/decima/namehash"
)

// Header is the lightweight entry information cached on each file node.
type Header struct {
	// Size is the uncompressed size of the default resolution.
	Size uint64
	// Archive is the index of the archive the hash resolves to by default.
	Archive int
}

// FileNode is a leaf of the tree.
type FileNode struct {
	name   string
	hash   namehash.Hash
	header Header

	visibleByFilter  bool
	visibleByArchive bool
}

// Name returns the leaf name.
func (f *FileNode) Name() string { return f.name }

// Hash returns the catalog key of the file.
func (f *FileNode) Hash() namehash.Hash { return f.hash }

// Header returns the cached entry header.
func (f *FileNode) Header() Header { return f.header }

// Visible reports whether both filters accept the file.
func (f *FileNode) Visible() bool { return f.visibleByFilter && f.visibleByArchive }

// VisibleByFilter reports whether the text filter accepts the file.
func (f *FileNode) VisibleByFilter() bool { return f.visibleByFilter }

// VisibleByArchive reports whether the archive filter accepts the file.
func (f *FileNode) VisibleByArchive() bool { return f.visibleByArchive }

// Folder is an interior node.
type Folder struct {
	name    string
	folders map[string]*Folder
	files   map[string]*FileNode

	visibleByFilter  bool
	visibleByArchive bool
}

func newFolder(name string) *Folder {
	return &Folder{
		name:             name,
		folders:          make(map[string]*Folder),
		files:            make(map[string]*FileNode),
		visibleByFilter:  true,
		visibleByArchive: true,
	}
}

// Name returns the folder name. The root folder's name is empty.
func (f *Folder) Name() string { return f.name }

// Folder returns the direct subfolder called name.
func (f *Folder) Folder(name string) (*Folder, bool) {
	sub, ok := f.folders[name]
	return sub, ok
}

// File returns the direct file called name.
func (f *Folder) File(name string) (*FileNode, bool) {
	file, ok := f.files[name]
	return file, ok
}

// Folders returns the direct subfolders ordered by name.
func (f *Folder) Folders() []*Folder {
	out := slices.Collect(maps.Values(f.folders))
	slices.SortFunc(out, func(a, b *Folder) int { return strings.Compare(a.name, b.name) })
	return out
}

// Files returns the direct files ordered by name.
func (f *Folder) Files() []*FileNode {
	out := slices.Collect(maps.Values(f.files))
	slices.SortFunc(out, func(a, b *FileNode) int { return strings.Compare(a.name, b.name) })
	return out
}

// Len returns the number of direct children.
func (f *Folder) Len() int { return len(f.folders) + len(f.files) }

// Visible reports whether both filters accept some descendant.
func (f *Folder) Visible() bool { return f.visibleByFilter && f.visibleByArchive }

// VisibleByFilter reports whether the text filter accepts some descendant.
func (f *Folder) VisibleByFilter() bool { return f.visibleByFilter }

// VisibleByArchive reports whether the archive filter accepts some descendant.
func (f *Folder) VisibleByArchive() bool { return f.visibleByArchive }

// Expand is a pending expand or collapse directive.
type Expand int32

const (
	ExpandNone Expand = iota
	ExpandAll
	CollapseAll
)

// Tree is the folder hierarchy over catalog paths.
type Tree struct {
	root   *Folder
	pins   map[namehash.Hash]int
	expand atomic.Int32
	files  int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: newFolder("")}
}

// Root returns the root folder.
func (t *Tree) Root() *Folder {
	return t.root
}

// Insert adds a file under the folder path given by segments, creating
// missing folders. The last segment is the file name; an existing file of the
// same name in that folder is replaced. Empty segments are ignored.
func (t *Tree) Insert(segments []string, hash namehash.Hash, header Header) {
	segments = slices.DeleteFunc(slices.Clone(segments), func(s string) bool { return s == "" })
	if len(segments) == 0 {
		return
	}
	dir := t.root
	for _, seg := range segments[:len(segments)-1] {
		sub, ok := dir.folders[seg]
		if !ok {
			sub = newFolder(seg)
			dir.folders[seg] = sub
		}
		dir = sub
	}
	leaf := segments[len(segments)-1]
	if _, exists := dir.files[leaf]; !exists {
		t.files++
	}
	dir.files[leaf] = &FileNode{
		name:             leaf,
		hash:             hash,
		header:           header,
		visibleByFilter:  true,
		visibleByArchive: true,
	}
}

// InsertPath splits a slash-separated path and inserts it.
func (t *Tree) InsertPath(path string, hash namehash.Hash, header Header) {
	t.Insert(SplitPath(path), hash, header)
}

// SplitPath splits a catalog path into segments. Backslashes are treated as
// separators.
func SplitPath(path string) []string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// HeaderFunc supplies the cached header for a hash.
type HeaderFunc func(namehash.Hash) Header

// Build creates a tree from (hash, path) pairs. The context is checked
// periodically; a cancelled build returns ctx.Err() and no tree.
func Build(ctx context.Context, paths iter.Seq2[namehash.Hash, string], header HeaderFunc) (*Tree, error) {
	t := New()
	n := 0
	for hash, path := range paths {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++
		var h Header
		if header != nil {
			h = header(hash)
		}
		t.InsertPath(path, hash, h)
	}
	return t, nil
}

// LookupFolder returns the folder at path. The empty path is the root.
func (t *Tree) LookupFolder(path string) (*Folder, bool) {
	dir := t.root
	for _, seg := range SplitPath(path) {
		sub, ok := dir.folders[seg]
		if !ok {
			return nil, false
		}
		dir = sub
	}
	return dir, true
}

// LookupFile returns the file at path.
func (t *Tree) LookupFile(path string) (*FileNode, bool) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return nil, false
	}
	dir, ok := t.LookupFolder(strings.Join(segs[:len(segs)-1], "/"))
	if !ok {
		return nil, false
	}
	return dir.File(segs[len(segs)-1])
}

// Counts returns the number of folders (excluding the root) and files.
func (t *Tree) Counts() (folders, files int) {
	for n := range t.All() {
		if n.Folder != nil {
			folders++
		}
	}
	return folders, t.files
}

// Node is one entry produced by Walk and All.
type Node struct {
	// Path is the slash-separated path from the root.
	Path string
	// Depth is 0 for children of the root.
	Depth int
	// Exactly one of Folder and File is set.
	Folder *Folder
	File   *FileNode
}

// Name returns the node's own name.
func (n Node) Name() string {
	if n.Folder != nil {
		return n.Folder.name
	}
	return n.File.name
}

// Hash returns the file hash, or zero for folders.
func (n Node) Hash() namehash.Hash {
	if n.File != nil {
		return n.File.hash
	}
	return 0
}

// Walk yields every visible node depth first. Within a folder, subfolders
// come before files and each group is ordered by name.
func (t *Tree) Walk() iter.Seq[Node] {
	return t.walk(true)
}

// All yields every node regardless of visibility, in Walk order.
func (t *Tree) All() iter.Seq[Node] {
	return t.walk(false)
}

func (t *Tree) walk(visibleOnly bool) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walkFolder(t.root, "", 0, visibleOnly, yield)
	}
}

func walkFolder(dir *Folder, prefix string, depth int, visibleOnly bool, yield func(Node) bool) bool {
	for _, sub := range dir.Folders() {
		if visibleOnly && !sub.Visible() {
			continue
		}
		path := joinPath(prefix, sub.name)
		if !yield(Node{Path: path, Depth: depth, Folder: sub}) {
			return false
		}
		if !walkFolder(sub, path, depth+1, visibleOnly, yield) {
			return false
		}
	}
	for _, file := range dir.Files() {
		if visibleOnly && !file.Visible() {
			continue
		}
		if !yield(Node{Path: joinPath(prefix, file.name), Depth: depth, File: file}) {
			return false
		}
	}
	return true
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Fingerprint returns a digest of the tree's structure and hashes. Two trees
// holding the same paths and hashes have the same fingerprint regardless of
// insertion order. Visibility and headers are not included.
func (t *Tree) Fingerprint() uint64 {
	h := xxh3.New()
	var buf [8]byte
	for n := range t.All() {
		binary.LittleEndian.PutUint64(buf[:], uint64(n.Depth))
		h.Write(buf[:])
		if n.Folder != nil {
			h.WriteString("d")
		} else {
			h.WriteString("f")
			binary.LittleEndian.PutUint64(buf[:], uint64(n.File.hash))
			h.Write(buf[:])
		}
		h.WriteString(n.Path)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// RequestExpandAll asks the next render pass to expand every folder.
func (t *Tree) RequestExpandAll() {
	t.expand.Store(int32(ExpandAll))
}

// RequestCollapseAll asks the next render pass to collapse every folder.
func (t *Tree) RequestCollapseAll() {
	t.expand.Store(int32(CollapseAll))
}

// TakeExpand returns the pending directive and clears it.
func (t *Tree) TakeExpand() Expand {
	return Expand(t.expand.Swap(int32(ExpandNone)))
}
