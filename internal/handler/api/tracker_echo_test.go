package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
	"CoinTrack/internal/service/cache"
	"CoinTrack/internal/service/coingecko"
	"CoinTrack/internal/service/coinlore"
	"CoinTrack/internal/service/fetcher"
	"CoinTrack/internal/service/ratelimit"
	"CoinTrack/internal/usecase"
	"CoinTrack/internal/view"
	xhttp "CoinTrack/pkg/http"
	xlogger "CoinTrack/pkg/logger"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	e        *echo.Echo
	failing  *atomic.Bool
	upstream *httptest.Server
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	failing := &atomic.Bool{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/coins/markets"):
			_, _ = w.Write([]byte(`[
				{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":64000,"market_cap":1,"total_volume":1},
				{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3000,"market_cap":1,"total_volume":1}]`))
		case strings.HasSuffix(r.URL.Path, "/tickers/"):
			_, _ = w.Write([]byte(`{"data":[{"id":"90","symbol":"BTC","name":"Bitcoin","price_usd":"64000"}]}`))
		default:
			_, _ = w.Write([]byte(`{"coins":[]}`))
		}
	}))
	t.Cleanup(upstream.Close)

	f := fetcher.New(xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), ratelimit.NewThrottle(0), fetcher.WithMaxRetries(1))
	c := cache.NewResultCache(cache.NewMemoryStore())
	store := view.NewStore()
	s := usecase.NewSearchCoordinator(f, c, store, usecase.WithDebounce(time.Millisecond))
	adapters := []domrepo.SourceAdapter{
		coingecko.New(coingecko.Config{BaseURL: upstream.URL}),
		coinlore.New(coinlore.Config{BaseURL: upstream.URL}),
	}
	tr, err := usecase.NewTracker(adapters, f, c, s, store)
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	e := echo.New()
	var allower interface{ Allow(string) bool }
	if limiter != nil {
		allower = limiter
	}
	NewTrackerEchoHandler(xlogger.Nop(), tr, store, nil, allower).RegisterRoutes(e)
	return &fixture{e: e, failing: failing, upstream: upstream}
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeView(t *testing.T, env envelope) models.ViewResponse {
	t.Helper()
	var v models.ViewResponse
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestViewBeforeAnyLoad(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	v := decodeView(t, env)
	assert.Equal(t, models.ViewEmpty, v.View.Kind)
	assert.Equal(t, models.SourceCoinGecko, v.Snapshot.Source)
	assert.Equal(t, 1, v.Snapshot.Page)
}

func TestLoadMoreThenFilterAndLimit(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/more", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, env)
	assert.Len(t, v.View.Assets, 2)
	assert.Equal(t, 2, v.Snapshot.Page)

	_, env = f.do(t, http.MethodGet, "/api/view?limit=1", "")
	v = decodeView(t, env)
	assert.Len(t, v.View.Assets, 1)
	assert.Equal(t, 2, v.Total)

	_, env = f.do(t, http.MethodGet, "/api/view?filter=eth", "")
	v = decodeView(t, env)
	require.Len(t, v.View.Assets, 1)
	assert.Equal(t, "Ethereum", v.View.Assets[0].Name)
}

func TestViewRejectsNegativeLimit(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.do(t, http.MethodGet, "/api/view?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeSourceValidation(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPut, "/api/source", `{"source":"binance"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var verrs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "ERR_ONEOF", verrs[0].Code)
	assert.Equal(t, "source", verrs[0].Field)

	rec, env = f.do(t, http.MethodPut, "/api/source", `{"source":"coinlore"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, env)
	assert.Equal(t, models.SourceCoinLore, v.Snapshot.Source)
	assert.Len(t, v.View.Assets, 1)
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, nil)
	f.failing.Store(true)

	rec, env := f.do(t, http.MethodPost, "/api/more", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var errs []xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UPSTREAM", errs[0].Code)
	assert.Contains(t, errs[0].Message, "Failed to fetch")
	assert.EqualValues(t, http.StatusInternalServerError, errs[0].Params["upstream_status"])

	_, env = f.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, models.ViewError, decodeView(t, env).View.Kind)
}

func TestSearchIsAccepted(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.do(t, http.MethodGet, "/api/search?q=bi", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWritesAreRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.New(1, 0.001))

	rec, _ := f.do(t, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}
