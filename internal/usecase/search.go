package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
	"CoinTrack/internal/service/cache"
	"CoinTrack/internal/service/fetcher"
	"CoinTrack/pkg/logger"
)

const (
	DefaultDebounce       = 500 * time.Millisecond
	DefaultMinQueryLength = 2
)

type SearchOption func(*SearchCoordinator)

// SearchCoordinator debounces query input and runs at most one live search.
// Starting a search cancels the previous one; a cancelled search never
// touches the cache or the renderer.
type SearchCoordinator struct {
	fetcher  domrepo.Fetcher
	cache    *cache.ResultCache
	renderer domrepo.Renderer
	debounce time.Duration
	minLen   int
	logger   *logger.Logger
	metrics  domrepo.Metrics

	mu      sync.Mutex
	onClear func()
	fired   func() // runs when a debounce timer expires
	timer   *time.Timer
	gen     uint64
	cancel  context.CancelFunc
	query   string
}

func NewSearchCoordinator(f domrepo.Fetcher, c *cache.ResultCache, r domrepo.Renderer, opts ...SearchOption) *SearchCoordinator {
	s := &SearchCoordinator{
		fetcher:  f,
		cache:    c,
		renderer: r,
		debounce: DefaultDebounce,
		minLen:   DefaultMinQueryLength,
		logger:   logger.Nop(),
		metrics:  domrepo.NopMetrics{},
		onClear:  func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnClear sets what runs when the query is cleared.
func (s *SearchCoordinator) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() {}
	}
	s.onClear = fn
}

// Input handles one keystroke. An empty query clears the search view at once
// without network access; a query shorter than the minimum only cancels
// pending work; anything else (re)starts the debounce timer.
func (s *SearchCoordinator) Input(adapter domrepo.SourceAdapter, query string) {
	q := strings.TrimSpace(query)

	s.mu.Lock()
	s.stopLocked()

	if q == "" {
		s.query = ""
		onClear := s.onClear
		s.mu.Unlock()
		onClear()
		return
	}
	if len([]rune(q)) < s.minLen {
		s.mu.Unlock()
		return
	}

	gen := s.gen
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		fired := s.fired
		s.mu.Unlock()
		if fired != nil {
			fired()
		}
		if err := s.runIfCurrent(context.Background(), adapter, q, gen); err != nil && !fetcher.IsCanceled(err) {
			s.logger.Warn("search failed", logger.String("query", q), logger.Error(err))
		}
	})
	s.mu.Unlock()
}

// Run searches immediately, superseding whatever search is in flight.
// It returns an error satisfying fetcher.IsCanceled when the search was
// superseded or ctx was cancelled; such outcomes are never rendered.
func (s *SearchCoordinator) Run(ctx context.Context, adapter domrepo.SourceAdapter, query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		s.Clear()
		return nil
	}

	s.mu.Lock()
	ctx, gen := s.startLocked(ctx, q)
	s.mu.Unlock()
	return s.execute(ctx, gen, adapter, q)
}

// runIfCurrent starts the debounced search for gen unless a later keystroke
// has already superseded it. The check and the start share one critical
// section so a keystroke cannot slip between them.
func (s *SearchCoordinator) runIfCurrent(ctx context.Context, adapter domrepo.SourceAdapter, q string, gen uint64) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return fmt.Errorf("%w: search superseded", fetcher.ErrCanceled)
	}
	ctx, gen = s.startLocked(ctx, q)
	s.mu.Unlock()
	return s.execute(ctx, gen, adapter, q)
}

// startLocked cancels the in-flight search and claims a new generation.
func (s *SearchCoordinator) startLocked(ctx context.Context, q string) (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, s.cancel = context.WithCancel(ctx)
	s.query = q
	return ctx, s.gen
}

func (s *SearchCoordinator) execute(ctx context.Context, gen uint64, adapter domrepo.SourceAdapter, q string) error {
	start := time.Now()
	defer func() { s.metrics.RecordLatency("search", time.Since(start).Seconds()) }()

	key := cache.SearchKey(adapter.ID(), q)
	if assets, ok := s.cache.Lookup(ctx, key); ok {
		return s.commit(ctx, gen, "", assets, nil)
	}

	assets, err := adapter.Search(ctx, s.fetcher, q)
	return s.commit(ctx, gen, key, assets, err)
}

// commit applies a finished search if it is still the latest one. An empty
// key means the result came from the cache.
func (s *SearchCoordinator) commit(ctx context.Context, gen uint64, key string, assets []models.Asset, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || ctx.Err() != nil {
		if err != nil && fetcher.IsCanceled(err) {
			return err
		}
		return fmt.Errorf("%w: search superseded", fetcher.ErrCanceled)
	}
	if err != nil {
		if fetcher.IsCanceled(err) {
			return err
		}
		s.renderer.RenderError(errorMessage(err))
		return err
	}

	if key != "" {
		if perr := s.cache.Put(ctx, key, assets); perr != nil {
			s.logger.Warn("cache search result", logger.String("key", key), logger.Error(perr))
		}
	}
	if len(assets) == 0 {
		s.renderer.RenderEmpty()
		return nil
	}
	s.renderer.Render(assets)
	return nil
}

// Clear cancels pending and in-flight work and shows the unfiltered list.
func (s *SearchCoordinator) Clear() {
	s.mu.Lock()
	s.stopLocked()
	s.query = ""
	onClear := s.onClear
	s.mu.Unlock()
	onClear()
}

// Cancel drops pending and in-flight work without rendering anything.
func (s *SearchCoordinator) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.query = ""
}

// Active returns the query whose results are on screen, or "" for the list view.
func (s *SearchCoordinator) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func (s *SearchCoordinator) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func WithDebounce(d time.Duration) SearchOption {
	return func(s *SearchCoordinator) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

func WithMinQueryLength(n int) SearchOption {
	return func(s *SearchCoordinator) {
		if n > 0 {
			s.minLen = n
		}
	}
}

func WithSearchLogger(l *logger.Logger) SearchOption {
	return func(s *SearchCoordinator) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithSearchMetrics(m domrepo.Metrics) SearchOption {
	return func(s *SearchCoordinator) {
		if m != nil {
			s.metrics = m
		}
	}
}
