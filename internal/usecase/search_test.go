package usecase

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinTrack/internal/domain/models"
	"CoinTrack/internal/service/cache"
	"CoinTrack/internal/service/fetcher"
)

func TestSearchTwoPhaseThenClearRestoresList(t *testing.T) {
	h := newHarness(t, standardRoute)
	ctx := context.Background()
	require.NoError(t, h.tracker.LoadMore(ctx))
	before := len(h.fetch.Calls())

	require.NoError(t, h.tracker.SearchNow(ctx, "bitcoin"))

	calls := h.fetch.Calls()[before:]
	require.Len(t, calls, 2)
	assert.Equal(t, "/api/v3/search", calls[0].Path)
	assert.Equal(t, "bitcoin,bitcoin-cash", calls[1].Query().Get("ids"))

	last := h.render.Last(t)
	assert.Equal(t, []string{"Bitcoin", "Bitcoin Cash"}, names(last.Assets))
	assert.Equal(t, "bitcoin", h.tracker.Snapshot().Query)
	assert.Len(t, h.tracker.Snapshot().Assets, 3, "search does not touch the paged list")

	h.tracker.Search("")
	assert.Len(t, h.fetch.Calls(), before+2, "clearing makes no network call")
	assert.Equal(t, []string{"Bitcoin", "Ethereum", "Tether"}, names(h.render.Last(t).Assets))
	assert.Empty(t, h.tracker.Snapshot().Query)
}

func TestSearchWithoutMatchesRendersEmpty(t *testing.T) {
	h := newHarness(t, standardRoute)

	require.NoError(t, h.tracker.SearchNow(context.Background(), "nothing"))
	assert.Len(t, h.fetch.Calls(), 1)
	assert.Equal(t, models.ViewEmpty, h.render.Last(t).Kind)
}

func TestSearchFailureRendersError(t *testing.T) {
	h := newHarness(t, func(context.Context, *url.URL) (string, error) {
		return "", assert.AnError
	})

	err := h.tracker.SearchNow(context.Background(), "eth")
	require.Error(t, err)
	assert.False(t, fetcher.IsCanceled(err))
	assert.Equal(t, models.ViewError, h.render.Last(t).Kind)
}

func TestSearchResultsAreCached(t *testing.T) {
	h := newHarness(t, standardRoute)
	ctx := context.Background()

	require.NoError(t, h.tracker.SearchNow(ctx, "bitcoin"))
	require.NoError(t, h.tracker.SearchNow(ctx, " Bitcoin "))

	assert.Len(t, h.fetch.Calls(), 2, "second search served from cache")
	_, ok := h.cache.Lookup(ctx, cache.SearchKey(models.SourceCoinGecko, "bitcoin"))
	assert.True(t, ok)
}

func TestSupersededSearchNeverRendersOrCaches(t *testing.T) {
	aStarted := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, u *url.URL) (string, error) {
		if u.Query().Get("search") == "aaa" {
			close(aStarted)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return clTickers("Bbb coin"), nil
	})
	ctx := context.Background()
	require.NoError(t, h.tracker.ChangeSource(ctx, models.SourceCoinLore))
	rendersBefore := len(h.render.Events())

	errA := make(chan error, 1)
	go func() { errA <- h.tracker.SearchNow(ctx, "aaa") }()
	<-aStarted

	require.NoError(t, h.tracker.SearchNow(ctx, "bbb"))

	err := <-errA
	require.Error(t, err)
	assert.True(t, fetcher.IsCanceled(err))

	events := h.render.Events()[rendersBefore:]
	require.Len(t, events, 1)
	assert.Equal(t, []string{"Bbb coin"}, names(events[0].Assets))

	_, ok := h.cache.Lookup(ctx, cache.SearchKey(models.SourceCoinLore, "aaa"))
	assert.False(t, ok)
	_, ok = h.cache.Lookup(ctx, cache.SearchKey(models.SourceCoinLore, "bbb"))
	assert.True(t, ok)
}

func TestLateResultOfSupersededSearchIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	aStarted := make(chan struct{})
	h := newHarness(t, func(_ context.Context, u *url.URL) (string, error) {
		if u.Query().Get("search") == "aaa" {
			close(aStarted)
			<-release
			return clTickers("Aaa coin"), nil
		}
		return clTickers("Bbb coin"), nil
	})
	ctx := context.Background()
	require.NoError(t, h.tracker.ChangeSource(ctx, models.SourceCoinLore))
	rendersBefore := len(h.render.Events())

	errA := make(chan error, 1)
	go func() { errA <- h.tracker.SearchNow(ctx, "aaa") }()
	<-aStarted
	require.NoError(t, h.tracker.SearchNow(ctx, "bbb"))
	close(release)

	assert.True(t, fetcher.IsCanceled(<-errA))
	events := h.render.Events()[rendersBefore:]
	require.Len(t, events, 1)
	assert.Equal(t, []string{"Bbb coin"}, names(events[0].Assets))
	_, ok := h.cache.Lookup(ctx, cache.SearchKey(models.SourceCoinLore, "aaa"))
	assert.False(t, ok)
}

func TestDebounceRunsOnlyLastQuery(t *testing.T) {
	h := newHarness(t, standardRoute)

	for _, q := range []string{"b", "bi", "bit", "bitc"} {
		h.tracker.Search(q)
	}

	ev := h.render.Wait(t, time.Second)
	assert.Equal(t, models.ViewList, ev.Kind)

	calls := h.fetch.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "bitc", calls[0].Query().Get("query"))
	assert.Equal(t, "bitc", h.search.Active())
}

func TestShortQueryDoesNotSearch(t *testing.T) {
	h := newHarness(t, standardRoute, WithDebounce(5*time.Millisecond))

	h.tracker.Search("b")
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.fetch.Calls())
	assert.Empty(t, h.render.Events())
}

func TestClearDuringDebounceCancelsPendingSearch(t *testing.T) {
	h := newHarness(t, standardRoute)

	h.tracker.Search("bitcoin")
	h.tracker.Search("   ")

	ev := h.render.Wait(t, time.Second)
	assert.Equal(t, models.ViewEmpty, ev.Kind, "cleared view shows the empty paged list")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, h.fetch.Calls())
}

func TestLoadMoreDuringSearchGrowsListSilently(t *testing.T) {
	h := newHarness(t, standardRoute)
	ctx := context.Background()

	require.NoError(t, h.tracker.SearchNow(ctx, "bitcoin"))
	searchView := h.render.Last(t)

	require.NoError(t, h.tracker.LoadMore(ctx))
	assert.Equal(t, searchView, h.render.Last(t), "search results stay on screen")
	assert.Len(t, h.tracker.Snapshot().Assets, 3)

	h.tracker.Search("")
	assert.Len(t, h.render.Last(t).Assets, 3)
}

func TestChangeSourceCancelsSearch(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, u *url.URL) (string, error) {
		if strings.HasSuffix(u.Path, "/search") {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return standardRoute(ctx, u)
	})
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- h.tracker.SearchNow(ctx, "bitcoin") }()
	<-started

	require.NoError(t, h.tracker.ChangeSource(ctx, models.SourceCoinLore))
	assert.True(t, fetcher.IsCanceled(<-errc))
	assert.Empty(t, h.tracker.Snapshot().Query)
	assert.Equal(t, []string{"Solana", "Cardano"}, names(h.render.Last(t).Assets))
}

func TestKeystrokeDuringDebounceHandoffRunsLatestQuery(t *testing.T) {
	h := newHarness(t, standardRoute)

	var once sync.Once
	h.search.fired = func() {
		// the next keystroke lands after the first timer fired but before
		// its search has started
		once.Do(func() { h.tracker.Search("bb") })
	}

	h.tracker.Search("aa")
	ev := h.render.Wait(t, time.Second)
	assert.Equal(t, models.ViewList, ev.Kind)

	var queries []string
	for _, u := range h.fetch.Calls() {
		if strings.HasSuffix(u.Path, "/search") {
			queries = append(queries, u.Query().Get("query"))
		}
	}
	assert.Equal(t, []string{"bb"}, queries, "the superseded query never reaches upstream")
	assert.Equal(t, "bb", h.search.Active())
}
