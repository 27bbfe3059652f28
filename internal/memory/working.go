// Package memory provides the two stores a workflow run depends on: a
// time-boxed working-memory fact cache scoped to one run, and an append-only
// episodic log of past runs used to bias future planning.
package memory

import (
	"sync"
	"time"
)

// Entry is one fact held in working memory.
type Entry struct {
	Key        string
	Value      string
	WriterNode string
	ExpiresAt  time.Time
}

// WorkingStore is a per-run fact cache. Keys are unique; a later Put for the
// same key overwrites the earlier entry and resets its expiry. Expiry is
// checked lazily on read, so no sweeper goroutine runs. All methods are safe
// for concurrent use by parallel siblings.
type WorkingStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// NewWorkingStore creates an empty working-memory store.
func NewWorkingStore() *WorkingStore {
	return &WorkingStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Put stores value under key with an expiry of now + ttl, recording which
// node wrote it. Last writer wins.
func (s *WorkingStore) Put(key, value, writerNode string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{
		Key:        key,
		Value:      value,
		WriterNode: writerNode,
		ExpiresAt:  s.now().Add(ttl),
	}
}

// Get returns the value for key. The second return is false if the key was
// never written or its TTL has elapsed; an expired entry never surfaces as
// stale data.
func (s *WorkingStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.ExpiresAt) {
		return "", false
	}
	return e.Value, true
}

// Collect returns the subset of keys currently present, for handing a leaf
// its available facts. Missing or expired keys are simply absent.
func (s *WorkingStore) Collect(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Snapshot returns all non-expired entries, for diagnostics and tests.
func (s *WorkingStore) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if now.Before(e.ExpiresAt) {
			out = append(out, e)
		}
	}
	return out
}
