package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"CoinTrack/internal/service/fetcher"
	"CoinTrack/pkg/logger"
)

// Refresher performs the initial load and then refreshes the tracker on a
// fixed interval until stopped.
type Refresher struct {
	tracker  *Tracker
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(t *Tracker, interval time.Duration, l *logger.Logger) *Refresher {
	if l == nil {
		l = logger.Nop()
	}
	return &Refresher{tracker: t, interval: interval, logger: l}
}

// Start loads the first page and launches the refresh loop. A failed initial
// load is logged and rendered but does not prevent the loop from starting.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("refresher already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	if err := r.tracker.LoadMore(ctx); err != nil && !fetcher.IsCanceled(err) {
		r.logger.Warn("initial load failed", logger.Error(err))
	}

	go r.loop(ctx)
	return nil
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)
	if r.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := r.tick(ctx)
			switch {
			case err == nil, errors.Is(err, ErrBusy), fetcher.IsCanceled(err):
			default:
				r.logger.Warn("refresh failed", logger.Error(err))
			}
		}
	}
}

// tick refreshes loaded pages, or retries the first page if nothing loaded yet.
func (r *Refresher) tick(ctx context.Context) error {
	if r.tracker.Snapshot().Page <= 1 {
		return r.tracker.LoadMore(ctx)
	}
	return r.tracker.Refresh(ctx)
}

// Stop ends the loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.tracker.Close()
}
