package coingecko

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
	DefaultBaseURL       = "https://api.coingecko.com/api/v3"
	DefaultPageSize      = 100
	DefaultMaxCandidates = 5
	DefaultPlaceholder   = "https://via.placeholder.com/50"
)

type Config struct {
	BaseURL         string
	APIKey          string
	PageSize        int
	MaxCandidates   int
	PlaceholderLogo string
}

// Adapter maps the CoinGecko REST API onto models.Asset.
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
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.PlaceholderLogo == "" {
		cfg.PlaceholderLogo = DefaultPlaceholder
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ID() models.Source { return models.SourceCoinGecko }

// MarketsURL is page n of all coins ordered by market cap.
func (a *Adapter) MarketsURL(page int) string {
	if page < 1 {
		page = 1
	}
	q := a.query()
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(a.cfg.PageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "false")
	return a.cfg.BaseURL + "/coins/markets?" + q.Encode()
}

// SearchURL resolves free text to coin ids.
func (a *Adapter) SearchURL(query string) string {
	q := url.Values{}
	q.Set("query", strings.TrimSpace(query))
	if a.cfg.APIKey != "" {
		q.Set("x_cg_demo_api_key", a.cfg.APIKey)
	}
	return a.cfg.BaseURL + "/search?" + q.Encode()
}

// MarketsByIDsURL fetches market data for exactly the given ids.
func (a *Adapter) MarketsByIDsURL(ids []string) string {
	q := a.query()
	q.Set("ids", strings.Join(ids, ","))
	q.Set("sparkline", "false")
	return a.cfg.BaseURL + "/coins/markets?" + q.Encode()
}

func (a *Adapter) query() url.Values {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	if a.cfg.APIKey != "" {
		q.Set("x_cg_demo_api_key", a.cfg.APIKey)
	}
	return q
}

type marketRecord struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Symbol                   string `json:"symbol"`
	Image                    string `json:"image"`
	CurrentPrice             any    `json:"current_price"`
	MarketCap                any    `json:"market_cap"`
	TotalVolume              any    `json:"total_volume"`
	PriceChangePercentage24h any    `json:"price_change_percentage_24h"`
}

// ParseMarkets decodes a markets array. Anything else yields no assets.
func (a *Adapter) ParseMarkets(raw []byte) []models.Asset {
	var recs []marketRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return []models.Asset{}
	}

	out := make([]models.Asset, 0, len(recs))
	for _, r := range recs {
		logo := r.Image
		if logo == "" {
			logo = a.cfg.PlaceholderLogo
		}
		out = append(out, models.Asset{
			ID:                    r.ID,
			Source:                models.SourceCoinGecko,
			Name:                  r.Name,
			Symbol:                strings.ToUpper(r.Symbol),
			Price:                 util.NonNegative(r.CurrentPrice),
			MarketCap:             util.NonNegative(r.MarketCap),
			Volume24h:             util.NonNegative(r.TotalVolume),
			PriceChangePercent24h: util.Finite(r.PriceChangePercentage24h),
			LogoURL:               logo,
		})
	}
	return out
}

type searchResponse struct {
	Coins []struct {
		ID string `json:"id"`
	} `json:"coins"`
}

// ParseSearchIDs returns up to MaxCandidates coin ids from a search response.
func (a *Adapter) ParseSearchIDs(raw []byte) []string {
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}

	ids := make([]string, 0, a.cfg.MaxCandidates)
	for _, c := range resp.Coins {
		if len(ids) == a.cfg.MaxCandidates {
			break
		}
		if c.ID != "" {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Search resolves query to candidate ids, then fetches market data for them.
// No second request is made when nothing matches.
func (a *Adapter) Search(ctx context.Context, f drepo.Fetcher, query string) ([]models.Asset, error) {
	raw, err := f.Fetch(ctx, a.SearchURL(query))
	if err != nil {
		return nil, fmt.Errorf("coingecko search: %w", err)
	}

	ids := a.ParseSearchIDs(raw)
	if len(ids) == 0 {
		return []models.Asset{}, nil
	}

	raw, err = f.Fetch(ctx, a.MarketsByIDsURL(ids))
	if err != nil {
		return nil, fmt.Errorf("coingecko markets by ids: %w", err)
	}
	return a.ParseMarkets(raw), nil
}
