package modules

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Reference is an opaque, loadable handle for one compiled file.
type Reference struct {
	ID   string
	Path string // virtual path of the source file
	URL  string
}

// Registry maps the files of one pass to their references.
type Registry struct {
	store Store
	base  string
	pass  string

	mu       sync.RWMutex
	byPath   map[string]Reference
	byURL    map[string]string
	order    []string
	disposed bool
}

// NewRegistry creates the registry for a pass. base is the origin modules
// are served from and may be empty for root-relative URLs.
func NewRegistry(store Store, base, pass string) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store:  store,
		base:   strings.TrimSuffix(base, "/"),
		pass:   pass,
		byPath: make(map[string]Reference),
		byURL:  make(map[string]string),
	}
}

// Pass returns the pass identifier the registry belongs to.
func (r *Registry) Pass() string { return r.pass }

// Register stores code and returns a fresh reference for path. Registering
// a path again replaces its reference.
func (r *Registry) Register(ctx context.Context, path, code string) (Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return Reference{}, ErrDisposed
	}

	id := uuid.NewString()
	ref := Reference{
		ID:   id,
		Path: path,
		URL:  r.base + "/m/" + r.pass + "/" + id + ".js",
	}
	if err := r.store.Put(ctx, r.pass, id, []byte(code)); err != nil {
		return Reference{}, err
	}

	if old, ok := r.byPath[path]; ok {
		delete(r.byURL, old.URL)
	} else {
		r.order = append(r.order, path)
	}
	r.byPath[path] = ref
	r.byURL[ref.URL] = path
	return ref, nil
}

// Lookup returns the reference registered for path.
func (r *Registry) Lookup(path string) (Reference, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byPath[path]
	return ref, ok
}

// ModuleURL returns the URL registered for path.
func (r *Registry) ModuleURL(path string) (string, bool) {
	ref, ok := r.Lookup(path)
	return ref.URL, ok
}

// Path returns the source path of a reference URL.
func (r *Registry) Path(url string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byURL[url]
	return p, ok
}

// Code returns the compiled code of a reference id.
func (r *Registry) Code(ctx context.Context, id string) ([]byte, error) {
	r.mu.RLock()
	disposed := r.disposed
	r.mu.RUnlock()
	if disposed {
		return nil, ErrNotFound
	}
	return r.store.Get(ctx, r.pass, id)
}

// Entries returns the references in registration order.
func (r *Registry) Entries() []Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Reference, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.byPath[p])
	}
	return out
}

// URLs returns a copy of the URL to path mapping.
func (r *Registry) URLs() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]string, len(r.byURL))
	for u, p := range r.byURL {
		m[u] = p
	}
	return m
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath)
}

// Disposed reports whether Dispose was called.
func (r *Registry) Disposed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disposed
}

// Dispose invalidates every reference of the pass and deletes the stored
// code. It is safe to call more than once.
func (r *Registry) Dispose(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil
	}
	r.disposed = true
	r.byPath = make(map[string]Reference)
	r.byURL = make(map[string]string)
	r.order = nil
	return r.store.DeleteGroup(ctx, r.pass)
}
