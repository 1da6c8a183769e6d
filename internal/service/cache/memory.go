package cache

import (
	"context"
	"sync"
	"time"

	"CoinTrack/internal/domain/models"
)

// MemoryStore keeps entries in a map. The ttl passed to Save is ignored:
// staleness is decided by ResultCache at read time.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*models.CacheEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*models.CacheEntry)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*models.CacheEntry, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	return e, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, entry *models.CacheEntry, _ time.Duration) error {
	s.mu.Lock()
	s.m[entry.Key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
