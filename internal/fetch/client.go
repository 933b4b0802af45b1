// Package fetch retrieves the remote roadmap catalog over HTTP with
// conditional requests and bounded retries.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/roadmap/internal/catalog"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 1 * time.Second
	defaultTimeout  = 30 * time.Second
)

// Result is the outcome of one catalog fetch. When the remote source
// reports "not modified" against the cached validator, Modified is false
// and Features is empty.
type Result struct {
	Modified bool
	Features []catalog.Feature
	// Token is the new validator handed out with a modified response,
	// empty when the source provides none.
	Token string
}

// Fetcher retrieves the full remote catalog. The cached validator token is
// an explicit field on the instance, seeded from persisted state by the
// sync coordinator at cycle start and read back after a successful fetch.
// Fetcher is not a process-wide singleton; construct one per consumer.
type Fetcher struct {
	url      string
	client   *http.Client
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	mu    sync.Mutex
	token string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client (tests inject httptest servers
// through their own clients).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithBackoff overrides the initial retry delay. The delay doubles after
// every failed attempt.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) { f.backoff = d }
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// New creates a Fetcher for the given catalog URL.
func New(url string, logger *zap.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:      url,
		client:   &http.Client{},
		logger:   logger,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Token returns the in-memory cached validator, empty if none.
func (f *Fetcher) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// SetToken seeds or overwrites the in-memory cached validator.
func (f *Fetcher) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// FetchAll retrieves the full remote catalog. When useCache is true and a
// cached validator exists, the request is conditional and the source may
// answer "not modified" with no body.
//
// Network errors, timeouts, and non-2xx/non-304 statuses are retried with
// exponential backoff (1s, 2s, 4s by default) up to the attempt limit;
// the final error carries the URL and attempt count.
func (f *Fetcher) FetchAll(ctx context.Context, useCache bool) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff << (attempt - 2)
			f.logger.Warn("fetch attempt failed, backing off",
				zap.Int("attempt", attempt-1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := sleep(ctx, delay); err != nil {
				return Result{}, err
			}
		}

		res, err := f.fetchOnce(ctx, useCache)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return Result{}, fmt.Errorf("fetch %s: %d attempts exhausted: %w", f.url, f.attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, useCache bool) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := f.Token(); useCache && token != "" {
		req.Header.Set("If-None-Match", token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.logger.Debug("remote catalog unchanged")
		return Result{Modified: false, Features: []catalog.Feature{}}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return Result{}, fmt.Errorf("decode response: %w", err)
		}
		features, err := env.toCatalog()
		if err != nil {
			return Result{}, err
		}
		f.logger.Debug("fetched remote catalog", zap.Int("features", len(features)))
		return Result{
			Modified: true,
			Features: features,
			Token:    resp.Header.Get("ETag"),
		}, nil

	default:
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
