package cache

import (
	"context"
	"fmt"
	"time"

	"CoinTrack/internal/domain/models"
	"CoinTrack/internal/domain/repository"
)

// LayeredStore reads through a local L1 in front of a shared L2.
type LayeredStore struct {
	l1 repository.EntryStore
	l2 repository.EntryStore
}

func NewLayeredStore(l1, l2 repository.EntryStore) *LayeredStore {
	return &LayeredStore{l1: l1, l2: l2}
}

func (s *LayeredStore) Load(ctx context.Context, key string) (*models.CacheEntry, bool, error) {
	if e, ok, err := s.l1.Load(ctx, key); err == nil && ok {
		return e, true, nil
	}

	e, ok, err := s.l2.Load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// ttl only matters to L2; the entry keeps its original FetchedAt
	_ = s.l1.Save(ctx, e, 0)
	return e, true, nil
}

// Save writes L1 first so the entry stays usable locally even when L2 is
// down. An L2 failure is still returned for the caller to log.
func (s *LayeredStore) Save(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error {
	if err := s.l1.Save(ctx, entry, ttl); err != nil {
		return err
	}
	if err := s.l2.Save(ctx, entry, ttl); err != nil {
		return fmt.Errorf("shared tier: %w", err)
	}
	return nil
}
