package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CoinTrack/internal/domain/models"
	"CoinTrack/internal/domain/repository"
	"CoinTrack/pkg/logger"
	"CoinTrack/pkg/util"
)

const (
	DefaultExpiration = 5 * time.Minute

	KindPage   = "page"
	KindSearch = "search"
)

// PageKey is the cache key of one markets page.
func PageKey(source models.Source, page int) string {
	return fmt.Sprintf("%s:%s:%d", KindPage, source, page)
}

// SearchKey is the cache key of one search. The query is normalized so
// "BTC " and "btc" share an entry.
func SearchKey(source models.Source, query string) string {
	return fmt.Sprintf("%s:%s:%s", KindSearch, source, util.NormalizeQuery(query))
}

type Option func(*ResultCache)

// ResultCache maps keys to timestamped asset sets. Entries are never evicted;
// stale ones are ignored on read and overwritten by the next Put.
type ResultCache struct {
	store      repository.EntryStore
	expiration time.Duration
	now        func() time.Time
	logger     *logger.Logger
	metrics    repository.Metrics
}

func NewResultCache(store repository.EntryStore, opts ...Option) *ResultCache {
	c := &ResultCache{
		store:      store,
		expiration: DefaultExpiration,
		now:        time.Now,
		logger:     logger.Nop(),
		metrics:    repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored entry for key regardless of age. Store failures are
// logged and reported as absent.
func (c *ResultCache) Get(ctx context.Context, key string) (*models.CacheEntry, bool) {
	entry, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.Warn("cache load failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return entry, ok
}

// Put stores assets under key stamped with the current time.
func (c *ResultCache) Put(ctx context.Context, key string, assets []models.Asset) error {
	entry := &models.CacheEntry{
		Key:       key,
		Assets:    append([]models.Asset(nil), assets...),
		FetchedAt: c.now(),
	}
	if err := c.store.Save(ctx, entry, c.expiration); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// IsValid reports whether entry exists and is younger than the expiration window.
func (c *ResultCache) IsValid(entry *models.CacheEntry) bool {
	if entry == nil {
		return false
	}
	return c.now().Sub(entry.FetchedAt) < c.expiration
}

// Lookup returns the payload of a valid entry.
func (c *ResultCache) Lookup(ctx context.Context, key string) ([]models.Asset, bool) {
	entry, ok := c.Get(ctx, key)
	hit := ok && c.IsValid(entry)
	c.metrics.RecordCache(kindOf(key), hit)
	if !hit {
		return nil, false
	}
	return append([]models.Asset(nil), entry.Assets...), true
}

func kindOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}

func WithExpiration(d time.Duration) Option {
	return func(c *ResultCache) {
		if d > 0 {
			c.expiration = d
		}
	}
}

// WithClock overrides time.Now, used by tests to age entries.
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *ResultCache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *ResultCache) {
		if m != nil {
			c.metrics = m
		}
	}
}
