package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"CoinTrack/internal/domain/repository"
	"CoinTrack/internal/service/ratelimit"
	xhttp "CoinTrack/pkg/http"
	"CoinTrack/pkg/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	// shifts past this overflow time.Duration for any sane base delay
	maxBackoffShift = 30
)

// ErrCanceled marks a fetch abandoned because its context was cancelled.
// It is an outcome, not a failure, and is never shown to users.
var ErrCanceled = errors.New("fetch canceled")

// IsCanceled reports whether err is a cancellation outcome.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Retrying)

// Retrying is a throttled GET with exponential backoff between attempts.
type Retrying struct {
	client     *xhttp.Client
	throttle   *ratelimit.Throttle
	maxRetries int
	baseDelay  time.Duration
	sleep      Sleeper
	logger     *logger.Logger
	metrics    repository.Metrics
}

var _ repository.Fetcher = (*Retrying)(nil)

func New(client *xhttp.Client, throttle *ratelimit.Throttle, opts ...Option) *Retrying {
	r := &Retrying{
		client:     client,
		throttle:   throttle,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		sleep:      sleepContext,
		logger:     logger.Nop(),
		metrics:    repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch GETs rawURL and returns its JSON body. Non-2xx statuses, transport
// errors and non-JSON bodies are retried up to maxRetries attempts in total.
func (r *Retrying) Fetch(ctx context.Context, rawURL string) (json.RawMessage, error) {
	host := hostOf(rawURL)
	log := r.logger.With(
		logger.String("seq", uuid.NewString()),
		logger.String("host", host),
	)

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err)
		}

		if err := r.throttle.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, canceled(ctx.Err())
			}
			lastErr = err
		} else {
			start := time.Now()
			var body json.RawMessage
			err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: rawURL}, &body)
			if ctx.Err() != nil {
				r.metrics.RecordRequest(host, "canceled")
				return nil, canceled(ctx.Err())
			}
			if err == nil {
				r.metrics.RecordRequest(host, "ok")
				log.Debug("upstream request ok",
					logger.Int("attempt", attempt+1),
					logger.Duration("duration_ms", time.Since(start)),
				)
				return body, nil
			}
			r.metrics.RecordRequest(host, "error")
			lastErr = err
		}

		if attempt == r.maxRetries-1 {
			break
		}

		delay := Backoff(r.baseDelay, attempt)
		r.metrics.RecordRetry(host)
		log.Warn("upstream request failed, retrying",
			logger.Int("attempt", attempt+1),
			logger.Int("status", xhttp.StatusCode(lastErr)),
			logger.Duration("backoff_ms", delay),
			logger.Error(lastErr),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, canceled(err)
		}
	}

	log.Error("upstream request exhausted retries",
		logger.Int("attempts", r.maxRetries),
		logger.Error(lastErr),
	)
	return nil, fmt.Errorf("fetch %s: %d attempts failed: %w", host, r.maxRetries, lastErr)
}

// Backoff returns base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	return base * time.Duration(1<<attempt)
}

func canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// WithMaxRetries sets the total number of attempts.
func WithMaxRetries(n int) Option {
	return func(r *Retrying) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithBaseDelay sets the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrying) {
		if d >= 0 {
			r.baseDelay = d
		}
	}
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(r *Retrying) {
		if s != nil {
			r.sleep = s
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Retrying) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(r *Retrying) {
		if m != nil {
			r.metrics = m
		}
	}
}
