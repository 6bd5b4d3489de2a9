package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// CachedResponse represents a cached backend response body
type CachedResponse struct {
	Body      []byte
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from the request parts
func GenerateCacheKey(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Store is a TTL bounded response cache safe for concurrent use
type Store struct {
	ttl     time.Duration
	entries sync.Map
	now     func() time.Time
}

// NewStore creates a store whose entries expire after ttl. A ttl <= 0
// disables caching.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now}
}

// Load returns a fresh cached body for key
func (s *Store) Load(key string) ([]byte, bool) {
	if s == nil || s.ttl <= 0 {
		return nil, false
	}
	val, ok := s.entries.Load(key)
	if !ok {
		return nil, false
	}
	cached := val.(CachedResponse)
	if s.now().Sub(cached.Timestamp) > s.ttl {
		s.entries.Delete(key)
		return nil, false
	}
	return cached.Body, true
}

// Store caches body under key
func (s *Store) Store(key string, body []byte) {
	if s == nil || s.ttl <= 0 {
		return
	}
	s.entries.Store(key, CachedResponse{
		Body:      append([]byte(nil), body...),
		Timestamp: s.now(),
	})
}

// Invalidate drops every cached entry
func (s *Store) Invalidate() {
	if s == nil {
		return
	}
	s.entries.Range(func(key, _ any) bool {
		s.entries.Delete(key)
		return true
	})
}
