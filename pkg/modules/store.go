package modules

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors for module operations.
var (
	// ErrNotFound is returned when a module does not exist.
	ErrNotFound = errors.New("module not found")

	// ErrDisposed is returned when registering into a disposed registry.
	ErrDisposed = errors.New("registry disposed")
)

// Store is the interface for compiled module storage.
type Store interface {
	// Put stores code under (group, id).
	Put(ctx context.Context, group, id string, code []byte) error

	// Get returns the code stored under (group, id), or ErrNotFound.
	Get(ctx context.Context, group, id string) ([]byte, error)

	// DeleteGroup removes every module of a group. Deleting a missing group
	// is not an error.
	DeleteGroup(ctx context.Context, group string) error
}

// MemoryStore keeps modules in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, group, id string, code []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		g = make(map[string][]byte)
		s.groups[group] = g
	}
	g[id] = append([]byte(nil), code...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, group, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.groups[group][id]
	if !ok {
		return nil, ErrNotFound
	}
	return code, nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, group)
	return nil
}

// Groups returns the number of live groups.
func (s *MemoryStore) Groups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

var _ Store = (*MemoryStore)(nil)
