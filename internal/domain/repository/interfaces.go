package repository

import (
	"context"
	"encoding/json"
	"time"

	"CoinTrack/internal/domain/models"
)

// Fetcher performs a throttled, retried GET and returns the raw JSON body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}

// SourceAdapter maps one upstream API onto models.Asset.
type SourceAdapter interface {
	ID() models.Source
	MarketsURL(page int) string
	SearchURL(query string) string
	// ParseMarkets never fails: malformed payloads yield an empty slice.
	ParseMarkets(raw []byte) []models.Asset
	// Search runs the provider's full search flow through f.
	Search(ctx context.Context, f Fetcher, query string) ([]models.Asset, error)
}

// Renderer displays result sets. Render replaces whatever was shown before.
type Renderer interface {
	Render(assets []models.Asset)
	RenderEmpty()
	RenderError(message string)
}

// EntryStore is the backing store of the result cache.
type EntryStore interface {
	Load(ctx context.Context, key string) (*models.CacheEntry, bool, error)
	Save(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error
}

type Metrics interface {
	RecordRequest(host, outcome string)
	RecordRetry(host string)
	RecordCache(kind string, hit bool)
	RecordThrottleWait(seconds float64)
	RecordLatency(op string, seconds float64)
	RecordAssets(source string, n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(string, string)  {}
func (NopMetrics) RecordRetry(string)            {}
func (NopMetrics) RecordCache(string, bool)      {}
func (NopMetrics) RecordThrottleWait(float64)    {}
func (NopMetrics) RecordLatency(string, float64) {}
func (NopMetrics) RecordAssets(string, int)      {}
