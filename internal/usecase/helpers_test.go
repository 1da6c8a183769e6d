package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
	"CoinTrack/internal/service/cache"
	"CoinTrack/internal/service/coingecko"
	"CoinTrack/internal/service/coinlore"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type routeFunc func(ctx context.Context, u *url.URL) (string, error)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []*url.URL
	route routeFunc
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (json.RawMessage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, u)
	route := f.route
	f.mu.Unlock()

	body, err := route(ctx, u)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (f *fakeFetcher) Calls() []*url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*url.URL(nil), f.calls...)
}

func (f *fakeFetcher) SetRoute(r routeFunc) {
	f.mu.Lock()
	f.route = r
	f.mu.Unlock()
}

type renderEvent struct {
	Kind    models.ViewKind
	Assets  []models.Asset
	Message string
}

type recordingRenderer struct {
	mu     sync.Mutex
	events []renderEvent
	ch     chan renderEvent
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{ch: make(chan renderEvent, 64)}
}

func (r *recordingRenderer) push(e renderEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.ch <- e:
	default:
	}
}

func (r *recordingRenderer) Render(assets []models.Asset) {
	r.push(renderEvent{Kind: models.ViewList, Assets: append([]models.Asset(nil), assets...)})
}

func (r *recordingRenderer) RenderEmpty() { r.push(renderEvent{Kind: models.ViewEmpty}) }

func (r *recordingRenderer) RenderError(msg string) {
	r.push(renderEvent{Kind: models.ViewError, Message: msg})
}

func (r *recordingRenderer) Events() []renderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderEvent(nil), r.events...)
}

func (r *recordingRenderer) Last(t *testing.T) renderEvent {
	t.Helper()
	ev := r.Events()
	require.NotEmpty(t, ev, "nothing rendered")
	return ev[len(ev)-1]
}

func (r *recordingRenderer) Wait(t *testing.T, timeout time.Duration) renderEvent {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(timeout):
		t.Fatal("timed out waiting for render")
		return renderEvent{}
	}
}

type harness struct {
	tracker *Tracker
	search  *SearchCoordinator
	fetch   *fakeFetcher
	render  *recordingRenderer
	clock   *testClock
	cache   *cache.ResultCache
}

func newHarness(t *testing.T, route routeFunc, opts ...SearchOption) *harness {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	f := &fakeFetcher{route: route}
	r := newRecordingRenderer()
	c := cache.NewResultCache(cache.NewMemoryStore(), cache.WithClock(clock.Now))
	s := NewSearchCoordinator(f, c, r, append([]SearchOption{WithDebounce(20 * time.Millisecond)}, opts...)...)

	adapters := []domrepo.SourceAdapter{coingecko.New(coingecko.Config{}), coinlore.New(coinlore.Config{})}
	tr, err := NewTracker(adapters, f, c, s, r)
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	return &harness{tracker: tr, search: s, fetch: f, render: r, clock: clock, cache: c}
}

func cgMarkets(names ...string) string {
	recs := make([]string, 0, len(names))
	for i, n := range names {
		id := strings.ToLower(n)
		recs = append(recs, fmt.Sprintf(
			`{"id":%q,"symbol":%q,"name":%q,"image":"https://img/%s.png","current_price":%d,"market_cap":%d,"total_volume":10,"price_change_percentage_24h":1.5}`,
			id, id[:3], n, id, 100-i, 1000-i))
	}
	return "[" + strings.Join(recs, ",") + "]"
}

func clTickers(names ...string) string {
	recs := make([]string, 0, len(names))
	for _, n := range names {
		id := strings.ToLower(n)
		recs = append(recs, fmt.Sprintf(
			`{"id":"1","nameid":%q,"symbol":%q,"name":%q,"price_usd":"2.5","market_cap_usd":"100","volume24":"5","percent_change_24h":"-0.5"}`,
			id, strings.ToUpper(id[:3]), n))
	}
	return `{"data":[` + strings.Join(recs, ",") + `]}`
}

func names(assets []models.Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Name)
	}
	return out
}

// standardRoute serves two coingecko pages, one coinlore page and the
// coingecko search endpoints.
func standardRoute(_ context.Context, u *url.URL) (string, error) {
	q := u.Query()
	switch {
	case strings.HasSuffix(u.Path, "/coins/markets") && q.Get("ids") != "":
		return cgMarkets("Bitcoin", "Bitcoin Cash"), nil
	case strings.HasSuffix(u.Path, "/coins/markets") && q.Get("page") == "1":
		return cgMarkets("Bitcoin", "Ethereum", "Tether"), nil
	case strings.HasSuffix(u.Path, "/coins/markets") && q.Get("page") == "2":
		return cgMarkets("Dogecoin", "Polkadot"), nil
	case strings.HasSuffix(u.Path, "/search"):
		if q.Get("query") == "nothing" {
			return `{"coins":[]}`, nil
		}
		return `{"coins":[{"id":"bitcoin"},{"id":"bitcoin-cash"}]}`, nil
	case strings.HasSuffix(u.Path, "/tickers/") && q.Get("start") == "0":
		return clTickers("Solana", "Cardano"), nil
	case strings.HasSuffix(u.Path, "/tickers/") && q.Get("search") != "":
		return clTickers("Solana"), nil
	}
	return "[]", nil
}
