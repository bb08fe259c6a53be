package vfs

import (
	"maps"
	"slices"
)

// FileSet is an ordered mapping of virtual path to source text.
//
// The zero value is an empty set ready to use. FileSet is not safe for
// concurrent mutation; a compilation pass treats it as read-only.
type FileSet struct {
	paths   []string
	content map[string]string
}

// New creates a FileSet from path/content pairs, keeping argument order.
// It panics if given an odd number of arguments.
func New(pairs ...string) *FileSet {
	if len(pairs)%2 != 0 {
		panic("vfs.New: odd number of arguments")
	}
	fs := &FileSet{}
	for i := 0; i < len(pairs); i += 2 {
		fs.Add(pairs[i], pairs[i+1])
	}
	return fs
}

// FromMap creates a FileSet from a map. Go maps are unordered, so paths are
// inserted in sorted order to keep builds deterministic.
func FromMap(m map[string]string) *FileSet {
	fs := &FileSet{}
	for _, p := range slices.Sorted(maps.Keys(m)) {
		fs.Add(p, m[p])
	}
	return fs
}

// Add inserts or replaces a file. Replacing keeps the original position.
func (fs *FileSet) Add(path, content string) {
	if fs.content == nil {
		fs.content = make(map[string]string)
	}
	if _, ok := fs.content[path]; !ok {
		fs.paths = append(fs.paths, path)
	}
	fs.content[path] = content
}

// Get returns the content for path.
func (fs *FileSet) Get(path string) (string, bool) {
	if fs == nil {
		return "", false
	}
	c, ok := fs.content[path]
	return c, ok
}

// Has reports whether path exists.
func (fs *FileSet) Has(path string) bool {
	_, ok := fs.Get(path)
	return ok
}

// Paths returns all paths in insertion order.
func (fs *FileSet) Paths() []string {
	if fs == nil {
		return nil
	}
	return slices.Clone(fs.paths)
}

// Len returns the number of files.
func (fs *FileSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.paths)
}

// Map returns a copy of the contents as a plain map.
func (fs *FileSet) Map() map[string]string {
	if fs == nil {
		return map[string]string{}
	}
	return maps.Clone(fs.content)
}

// Clone returns an independent copy that keeps the same order.
func (fs *FileSet) Clone() *FileSet {
	out := &FileSet{}
	for _, p := range fs.Paths() {
		out.Add(p, fs.content[p])
	}
	return out
}
