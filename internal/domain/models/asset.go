package models

import "time"

// Source identifies an upstream market-data provider.
type Source string

const (
	SourceCoinGecko Source = "coingecko"
	SourceCoinLore  Source = "coinlore"
)

// Asset is one cryptocurrency's normalized market snapshot.
// Numeric fields are always finite; adapters build it through util.Finite.
type Asset struct {
	ID                    string  `json:"id"`
	Source                Source  `json:"source"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	Price                 float64 `json:"price"`
	MarketCap             float64 `json:"market_cap"`
	Volume24h             float64 `json:"volume_24h"`
	PriceChangePercent24h float64 `json:"price_change_percent_24h"`
	LogoURL               string  `json:"logo_url"`
}

// IsNegative reports a strictly negative 24h change. A zero change is not negative.
func (a Asset) IsNegative() bool {
	return a.PriceChangePercent24h < 0
}

// CacheEntry is one cached result set. Never mutated after creation.
type CacheEntry struct {
	Key       string    `json:"key"`
	Assets    []Asset   `json:"assets"`
	FetchedAt time.Time `json:"fetched_at"`
}
