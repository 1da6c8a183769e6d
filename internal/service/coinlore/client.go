package coinlore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"CoinTrack/internal/domain/models"
	drepo "CoinTrack/internal/domain/repository"
	"CoinTrack/pkg/util"
)

const (
	DefaultBaseURL      = "https://api.coinlore.net/api"
	DefaultPageSize     = 100
	DefaultLogoTemplate = "https://assets.coincap.io/assets/icons/%s@2x.png"
	DefaultPlaceholder  = "https://via.placeholder.com/50"
)

type Config struct {
	BaseURL         string
	PageSize        int
	PlaceholderLogo string
	// LogoTemplate receives the lower-cased symbol through %s.
	LogoTemplate string
}

// Adapter maps the CoinLore tickers API onto models.Asset.
type Adapter struct {
	cfg Config
}

var _ drepo.SourceAdapter = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PlaceholderLogo == "" {
		cfg.PlaceholderLogo = DefaultPlaceholder
	}
	if cfg.LogoTemplate == "" {
		cfg.LogoTemplate = DefaultLogoTemplate
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ID() models.Source { return models.SourceCoinLore }

// MarketsURL pages by explicit offset: start=(page-1)*pageSize.
func (a *Adapter) MarketsURL(page int) string {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("start", strconv.Itoa((page-1)*a.cfg.PageSize))
	q.Set("limit", strconv.Itoa(a.cfg.PageSize))
	return a.cfg.BaseURL + "/tickers/?" + q.Encode()
}

func (a *Adapter) SearchURL(query string) string {
	q := url.Values{}
	q.Set("search", strings.TrimSpace(query))
	return a.cfg.BaseURL + "/tickers/?" + q.Encode()
}

// CoinLore sends every numeric field as a string.
type tickerRecord struct {
	ID               any    `json:"id"`
	NameID           string `json:"nameid"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	PriceUSD         any    `json:"price_usd"`
	MarketCapUSD     any    `json:"market_cap_usd"`
	Volume24         any    `json:"volume24"`
	PercentChange24h any    `json:"percent_change_24h"`
}

type tickersResponse struct {
	Data []tickerRecord `json:"data"`
}

// ParseMarkets decodes a {"data":[...]} payload. Anything else yields no assets.
func (a *Adapter) ParseMarkets(raw []byte) []models.Asset {
	var resp tickersResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return []models.Asset{}
	}

	out := make([]models.Asset, 0, len(resp.Data))
	for _, r := range resp.Data {
		id := r.NameID
		if id == "" && r.ID != nil {
			id = fmt.Sprint(r.ID)
		}
		out = append(out, models.Asset{
			ID:                    id,
			Source:                models.SourceCoinLore,
			Name:                  r.Name,
			Symbol:                strings.ToUpper(r.Symbol),
			Price:                 util.NonNegative(r.PriceUSD),
			MarketCap:             util.NonNegative(r.MarketCapUSD),
			Volume24h:             util.NonNegative(r.Volume24),
			PriceChangePercent24h: util.Finite(r.PercentChange24h),
			LogoURL:               a.logoFor(r.Symbol),
		})
	}
	return out
}

func (a *Adapter) logoFor(symbol string) string {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return a.cfg.PlaceholderLogo
	}
	return fmt.Sprintf(a.cfg.LogoTemplate, url.PathEscape(symbol))
}

// Search is a single tickers call filtered upstream.
func (a *Adapter) Search(ctx context.Context, f drepo.Fetcher, query string) ([]models.Asset, error) {
	raw, err := f.Fetch(ctx, a.SearchURL(query))
	if err != nil {
		return nil, fmt.Errorf("coinlore search: %w", err)
	}
	return a.ParseMarkets(raw), nil
}
