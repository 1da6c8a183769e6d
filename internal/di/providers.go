package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"CoinTrack/internal/domain/models"
	"CoinTrack/internal/domain/repository"
	"CoinTrack/internal/handler/api"
	"CoinTrack/internal/handler/ws"
	"CoinTrack/internal/service/cache"
	"CoinTrack/internal/service/coingecko"
	"CoinTrack/internal/service/coinlore"
	"CoinTrack/internal/service/fetcher"
	"CoinTrack/internal/service/ratelimit"
	"CoinTrack/internal/usecase"
	"CoinTrack/internal/view"
	"CoinTrack/pkg/config"
	xhttp "CoinTrack/pkg/http"
	"CoinTrack/pkg/http/middleware"
	"CoinTrack/pkg/logger"
	"CoinTrack/pkg/metrics"
	"CoinTrack/pkg/server"
)

// CoreSet builds the tracker and everything it fetches through. The
// renderer is left to the caller.
var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideHTTPClient,
	ProvideThrottle,
	ProvideFetcher,
	ProvideEntryStore,
	ProvideResultCache,
	ProvideAdapters,
	ProvideSearchCoordinator,
	ProvideTracker,
)

// ServeSet adds the HTTP and websocket front end on top of CoreSet.
var ServeSet = wire.NewSet(
	CoreSet,
	ProvideViewStore,
	ProvideHub,
	ProvideRenderer,
	ProvideLimiter,
	ProvideHandler,
	ProvideHTTPServer,
	ProvideRefresher,
	ProvideApp,
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates a private Prometheus registry with the Go and
// process collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideHTTPClient creates the outbound JSON client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Fetch.Timeout),
		xhttp.WithUserAgent(cfg.Fetch.UserAgent),
	)
}

// ProvideThrottle creates the process-wide outbound request spacer.
func ProvideThrottle(cfg *config.Config, m repository.Metrics) *ratelimit.Throttle {
	return ratelimit.NewThrottle(cfg.Fetch.MinRequestInterval).
		OnWait(func(d time.Duration) { m.RecordThrottleWait(d.Seconds()) })
}

// ProvideFetcher creates the retrying fetcher shared by every request.
func ProvideFetcher(
	cfg *config.Config,
	client *xhttp.Client,
	throttle *ratelimit.Throttle,
	l *logger.Logger,
	m repository.Metrics,
) repository.Fetcher {
	return fetcher.New(client, throttle,
		fetcher.WithMaxRetries(cfg.Fetch.MaxRetries),
		fetcher.WithBaseDelay(cfg.Fetch.BaseDelay),
		fetcher.WithLogger(l),
		fetcher.WithMetrics(m),
	)
}

// ProvideEntryStore selects the cache backend. The redis backend is layered
// under an in-process store so repeated reads stay local.
func ProvideEntryStore(cfg *config.Config, l *logger.Logger) (repository.EntryStore, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rs, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cache store: %w", err)
		}
		l.Info("cache backend ready", logger.String("backend", "redis"), logger.String("addr", cfg.Cache.Redis.Addr))
		cleanup := func() {
			if err := rs.Close(); err != nil {
				l.Warn("redis close error", logger.Error(err))
			}
		}
		return cache.NewLayeredStore(cache.NewMemoryStore(), rs), cleanup, nil
	default:
		return cache.NewMemoryStore(), func() {}, nil
	}
}

// ProvideResultCache creates the expiring result cache.
func ProvideResultCache(cfg *config.Config, store repository.EntryStore, l *logger.Logger, m repository.Metrics) *cache.ResultCache {
	return cache.NewResultCache(store,
		cache.WithExpiration(cfg.Cache.Expiration),
		cache.WithLogger(l),
		cache.WithMetrics(m),
	)
}

// ProvideAdapters creates one adapter per supported source.
func ProvideAdapters(cfg *config.Config) []repository.SourceAdapter {
	src := cfg.Sources
	return []repository.SourceAdapter{
		coingecko.New(coingecko.Config{
			BaseURL:         src.CoinGecko.BaseURL,
			APIKey:          src.CoinGecko.APIKey,
			PageSize:        src.PageSize,
			MaxCandidates:   src.CoinGecko.MaxCandidates,
			PlaceholderLogo: src.PlaceholderLogo,
		}),
		coinlore.New(coinlore.Config{
			BaseURL:         src.CoinLore.BaseURL,
			PageSize:        src.PageSize,
			PlaceholderLogo: src.PlaceholderLogo,
			LogoTemplate:    src.CoinLore.LogoTemplate,
		}),
	}
}

// ProvideSearchCoordinator creates the debounced search.
func ProvideSearchCoordinator(
	cfg *config.Config,
	f repository.Fetcher,
	c *cache.ResultCache,
	r repository.Renderer,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.SearchCoordinator {
	return usecase.NewSearchCoordinator(f, c, r,
		usecase.WithDebounce(cfg.Search.Debounce),
		usecase.WithMinQueryLength(cfg.Search.MinQueryLength),
		usecase.WithSearchLogger(l),
		usecase.WithSearchMetrics(m),
	)
}

// ProvideTracker creates the tracker controller. Cleanup cancels pending
// searches.
func ProvideTracker(
	cfg *config.Config,
	adapters []repository.SourceAdapter,
	f repository.Fetcher,
	c *cache.ResultCache,
	s *usecase.SearchCoordinator,
	r repository.Renderer,
	l *logger.Logger,
	m repository.Metrics,
) (*usecase.Tracker, func(), error) {
	t, err := usecase.NewTracker(adapters, f, c, s, r,
		usecase.WithInitialSource(models.Source(cfg.Tracker.DefaultSource)),
		usecase.WithTrackerLogger(l),
		usecase.WithTrackerMetrics(m),
	)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Close, nil
}

// ProvideViewStore creates the store that remembers the displayed view.
func ProvideViewStore() *view.Store {
	return view.NewStore()
}

// ProvideHub creates the websocket broadcaster. New clients receive the
// stored view first.
func ProvideHub(views *view.Store, l *logger.Logger) *ws.Hub {
	return ws.NewHub(views.Current, l)
}

// ProvideRenderer fans renders out to the view store and websocket clients.
func ProvideRenderer(views *view.Store, hub *ws.Hub) repository.Renderer {
	return view.Multi{views, hub}
}

// ProvideLimiter creates the inbound per-client limiter for mutating routes.
func ProvideLimiter(cfg *config.Config) middleware.Allower {
	return ratelimit.New(cfg.Server.RateCapacity, cfg.Server.RateRefill)
}

// ProvideHandler creates the HTTP handler and routes websocket input to the
// tracker's search.
func ProvideHandler(
	l *logger.Logger,
	t *usecase.Tracker,
	views *view.Store,
	hub *ws.Hub,
	limiter middleware.Allower,
) xhttp.Handler {
	hub.OnInput(t.Search)
	return api.NewTrackerEchoHandler(l, t, views, hub, limiter)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *logger.Logger, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	} else {
		opts = append(opts, xhttp.WithMetrics("", nil, nil))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideRefresher creates the periodic refresh loop.
func ProvideRefresher(cfg *config.Config, t *usecase.Tracker, l *logger.Logger) *usecase.Refresher {
	return usecase.NewRefresher(t, cfg.Tracker.RefreshInterval, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	refresher *usecase.Refresher,
	hub *ws.Hub,
) *server.App {
	return server.New(cfg, l, srv, refresher, hub)
}
