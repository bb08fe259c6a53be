package httputil

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrExpired is returned by [Cache.Get] when an entry exists but has
// exceeded its TTL. The entry is removed.
var ErrExpired = errors.New("cache entry expired")

type entry struct {
	data    []byte
	expires time.Time // zero means never
}

type store struct {
	mu      sync.Mutex
	entries map[string]entry
}

// Cache stores JSON-marshalable values in memory.
//
// Values are marshaled on Set and unmarshaled on Get, so callers never share
// memory with the cache. A Cache and the views returned by [Cache.Namespace]
// share one store and are safe for concurrent use.
type Cache struct {
	s      *store
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewCache creates an empty cache. A ttl of 0 means entries never expire.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		s:   &store{entries: make(map[string]entry)},
		ttl: ttl,
		now: time.Now,
	}
}

// TTL returns the time-to-live for entries.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get looks up key and unmarshals it into v.
//
//   - (true, nil): hit, v is populated
//   - (false, nil): miss, v is unchanged
//   - (false, ErrExpired): the entry was stale and has been dropped
func (c *Cache) Get(key string, v any) (bool, error) {
	c.s.mu.Lock()
	e, ok := c.s.entries[c.prefix+key]
	if ok && !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.s.entries, c.prefix+key)
		c.s.mu.Unlock()
		return false, ErrExpired
	}
	c.s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.data, v)
}

// Set stores v under key, replacing any existing entry and restarting its TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{data: data}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.s.mu.Lock()
	c.s.entries[c.prefix+key] = e
	c.s.mu.Unlock()
	return nil
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.s.mu.Lock()
	delete(c.s.entries, c.prefix+key)
	c.s.mu.Unlock()
}

// Len returns the number of entries in the shared store, expired or not.
func (c *Cache) Len() int {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return len(c.s.entries)
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	n := 0
	for k, e := range c.s.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.s.entries, k)
			n++
		}
	}
	return n
}

// Namespace returns a view that prefixes every key with prefix. Views
// share the parent's store and TTL, and namespaces nest.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{s: c.s, ttl: c.ttl, prefix: c.prefix + prefix, now: c.now}
}
