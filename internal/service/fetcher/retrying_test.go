package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinTrack/internal/service/ratelimit"
	xhttp "CoinTrack/pkg/http"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newFetcher(sleeper Sleeper, opts ...Option) *Retrying {
	opts = append([]Option{WithSleeper(sleeper), WithBaseDelay(time.Second)}, opts...)
	return New(xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), ratelimit.NewThrottle(0), opts...)
}

func TestFetchSucceedsFirstTry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`[{"id":"bitcoin"}]`))
	}))
	defer srv.Close()

	s := &recordingSleeper{}
	body, err := newFetcher(s.Sleep).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"bitcoin"}]`, string(body))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, s.delays)
}

func TestFetchPermanentFailureAttemptsExactlyMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := &recordingSleeper{}
	_, err := newFetcher(s.Sleep, WithMaxRetries(3)).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s.delays)
	assert.Equal(t, http.StatusTooManyRequests, xhttp.StatusCode(err))
	assert.False(t, IsCanceled(err))
}

func TestFetchRetriesNonJSONBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	s := &recordingSleeper{}
	body, err := newFetcher(s.Sleep).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, s.delays, 2)
}

func TestFetchCanceledBeforeStart(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFetcher((&recordingSleeper{}).Sleep).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.True(t, errors.Is(err, ErrCanceled))
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchCanceledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := newFetcher(sleeper).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchCanceledDuringRequest(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	s := &recordingSleeper{}
	_, err := newFetcher(s.Sleep).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Empty(t, s.delays, "no retry after cancellation")
}

func TestFetchRespectsThrottle(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := New(xhttp.NewClient(), ratelimit.NewThrottle(40*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), srv.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 3)
	first, last := stamps[0], stamps[0]
	for _, s := range stamps {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 70*time.Millisecond)
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, Backoff(base, 0))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 400*time.Millisecond, Backoff(base, 2))
	assert.Equal(t, base, Backoff(base, -1))

	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := Backoff(base, i)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}
