package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
	"CoinTrack/internal/service/cache"
	"CoinTrack/internal/service/fetcher"
	xhttp "CoinTrack/pkg/http"
	"CoinTrack/pkg/logger"
)

var (
	// ErrBusy is returned for a trigger that arrived while another load was in
	// flight. The trigger is dropped, not queued.
	ErrBusy          = errors.New("tracker: load already in progress")
	ErrUnknownSource = errors.New("tracker: unknown source")
)

type TrackerOption func(*Tracker)

// Tracker owns the paged asset list and the fetch state for one session.
type Tracker struct {
	adapters map[models.Source]domrepo.SourceAdapter
	fetcher  domrepo.Fetcher
	cache    *cache.ResultCache
	search   *SearchCoordinator
	renderer domrepo.Renderer
	logger   *logger.Logger
	metrics  domrepo.Metrics

	mu      sync.Mutex
	source  models.Source
	page    int
	assets  []models.Asset
	loading bool
}

func NewTracker(
	adapters []domrepo.SourceAdapter,
	f domrepo.Fetcher,
	c *cache.ResultCache,
	search *SearchCoordinator,
	r domrepo.Renderer,
	opts ...TrackerOption,
) (*Tracker, error) {
	t := &Tracker{
		adapters: make(map[models.Source]domrepo.SourceAdapter, len(adapters)),
		fetcher:  f,
		cache:    c,
		search:   search,
		renderer: r,
		logger:   logger.Nop(),
		metrics:  domrepo.NopMetrics{},
		source:   domrepo.DefaultSource(),
		page:     1,
	}
	for _, a := range adapters {
		t.adapters[a.ID()] = a
	}
	for _, opt := range opts {
		opt(t)
	}
	if _, ok := t.adapters[t.source]; !ok {
		return nil, fmt.Errorf("%w: no adapter for %q", ErrUnknownSource, t.source)
	}
	search.OnClear(t.renderList)
	return t, nil
}

// LoadMore appends the next page of the current source. Cached pages are
// served without network access. On failure the list and page are kept.
func (t *Tracker) LoadMore(ctx context.Context) error {
	src, page, err := t.begin()
	if err != nil {
		return err
	}
	defer t.end()

	start := time.Now()
	defer func() { t.metrics.RecordLatency("load_more", time.Since(start).Seconds()) }()

	assets, err := t.loadPage(ctx, src, page)
	if err != nil {
		return t.fail("load more", err, logger.Int("page", page))
	}

	t.mu.Lock()
	t.assets = append(t.assets, assets...)
	t.page = page + 1
	list := t.listLocked()
	t.mu.Unlock()

	t.metrics.RecordAssets(string(src), len(list))
	t.logger.Debug("page loaded",
		logger.String("source", string(src)),
		logger.Int("page", page),
		logger.Int("count", len(assets)),
		logger.Int("total", len(list)),
	)

	if t.search.Active() == "" {
		renderAssets(t.renderer, list)
	}
	return nil
}

// ChangeSource switches to src and loads its first page. The switch is only
// applied once that page has loaded; on failure the previous source, page and
// list stay in place and the error is rendered. The cache is left untouched.
func (t *Tracker) ChangeSource(ctx context.Context, src models.Source) error {
	if _, ok := t.adapters[src]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}

	prev, _, err := t.begin()
	if err != nil {
		return err
	}
	defer t.end()

	t.search.Cancel()

	start := time.Now()
	defer func() { t.metrics.RecordLatency("change_source", time.Since(start).Seconds()) }()

	assets, err := t.loadPage(ctx, src, 1)
	if err != nil {
		return t.fail("change source", err, logger.String("to", string(src)))
	}

	t.mu.Lock()
	t.source = src
	t.page = 2
	t.assets = append([]models.Asset(nil), assets...)
	list := t.listLocked()
	t.mu.Unlock()

	if prev != src {
		t.metrics.RecordAssets(string(prev), 0)
	}
	t.metrics.RecordAssets(string(src), len(list))
	t.logger.Info("source changed",
		logger.String("from", string(prev)),
		logger.String("to", string(src)),
		logger.Int("count", len(list)),
	)

	renderAssets(t.renderer, list)
	return nil
}

// Search feeds one keystroke to the coordinator. An empty query restores the
// paged list immediately.
func (t *Tracker) Search(query string) {
	t.search.Input(t.currentAdapter(), query)
}

// SearchNow runs a search without debouncing.
func (t *Tracker) SearchNow(ctx context.Context, query string) error {
	return t.search.Run(ctx, t.currentAdapter(), query)
}

// Refresh reloads every page loaded so far and replaces the list only when
// all of them succeed. Pages still inside the expiration window come from the
// cache.
func (t *Tracker) Refresh(ctx context.Context) error {
	src, next, err := t.begin()
	if err != nil {
		return err
	}
	defer t.end()

	if next <= 1 {
		return nil
	}

	start := time.Now()
	defer func() { t.metrics.RecordLatency("refresh", time.Since(start).Seconds()) }()

	var fresh []models.Asset
	for p := 1; p < next; p++ {
		assets, err := t.loadPage(ctx, src, p)
		if err != nil {
			return t.fail("refresh", err, logger.Int("page", p))
		}
		fresh = append(fresh, assets...)
	}

	t.mu.Lock()
	t.assets = fresh
	list := t.listLocked()
	t.mu.Unlock()

	t.metrics.RecordAssets(string(src), len(list))
	if t.search.Active() == "" {
		renderAssets(t.renderer, list)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() models.Snapshot {
	t.mu.Lock()
	snap := models.Snapshot{
		Source:  t.source,
		Page:    t.page,
		Loading: t.loading,
		Assets:  t.listLocked(),
	}
	t.mu.Unlock()
	snap.Query = t.search.Active()
	return snap
}

func (t *Tracker) Source() models.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source
}

// Close cancels pending and in-flight searches.
func (t *Tracker) Close() {
	t.search.Cancel()
}

func (t *Tracker) begin() (models.Source, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loading {
		return "", 0, ErrBusy
	}
	t.loading = true
	return t.source, t.page, nil
}

func (t *Tracker) end() {
	t.mu.Lock()
	t.loading = false
	t.mu.Unlock()
}

func (t *Tracker) loadPage(ctx context.Context, src models.Source, page int) ([]models.Asset, error) {
	key := cache.PageKey(src, page)
	if assets, ok := t.cache.Lookup(ctx, key); ok {
		return assets, nil
	}

	adapter := t.adapters[src]
	raw, err := t.fetcher.Fetch(ctx, adapter.MarketsURL(page))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", fetcher.ErrCanceled, err)
	}

	assets := adapter.ParseMarkets(raw)
	if err := t.cache.Put(ctx, key, assets); err != nil {
		t.logger.Warn("cache page", logger.String("key", key), logger.Error(err))
	}
	return assets, nil
}

// fail renders a user-facing error unless err is a cancellation.
func (t *Tracker) fail(op string, err error, fields ...logger.Field) error {
	if fetcher.IsCanceled(err) {
		t.logger.Debug(op+" canceled", fields...)
		return err
	}
	t.logger.Error(op+" failed", append(fields, logger.Error(err))...)
	t.renderer.RenderError(errorMessage(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (t *Tracker) renderList() {
	t.mu.Lock()
	list := t.listLocked()
	t.mu.Unlock()
	renderAssets(t.renderer, list)
}

func (t *Tracker) listLocked() []models.Asset {
	return append([]models.Asset(nil), t.assets...)
}

func (t *Tracker) currentAdapter() domrepo.SourceAdapter {
	return t.adapters[t.Source()]
}

func renderAssets(r domrepo.Renderer, assets []models.Asset) {
	if len(assets) == 0 {
		r.RenderEmpty()
		return
	}
	r.Render(assets)
}

// errorMessage is the text shown to users for a failed fetch.
func errorMessage(err error) string {
	if code := xhttp.StatusCode(err); code != 0 {
		return fmt.Sprintf("Failed to fetch cryptocurrency data (HTTP %d). Please try again later.", code)
	}
	return "Failed to fetch cryptocurrency data. Please try again later."
}

// FilterByName keeps assets whose name or symbol contains q, case-insensitively.
func FilterByName(assets []models.Asset, q string) []models.Asset {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return assets
	}
	out := make([]models.Asset, 0, len(assets))
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), q) || strings.Contains(strings.ToLower(a.Symbol), q) {
			out = append(out, a)
		}
	}
	return out
}

func WithInitialSource(src models.Source) TrackerOption {
	return func(t *Tracker) {
		if src != "" {
			t.source = src
		}
	}
}

func WithTrackerLogger(l *logger.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithTrackerMetrics(m domrepo.Metrics) TrackerOption {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}
