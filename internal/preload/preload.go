// Package preload warms video assets ahead of playback so sequence
// transitions appear gapless. Entries are registered per video identity
// key and fetched in one concurrent batch; individual failures leave the
// key unloaded and playback error policy takes over at play time.
package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency  = 4
	defaultFetchTimeout = 30 * time.Second
)

type entryState int

const (
	statePending entryState = iota
	stateLoaded
	stateFailed
)

type entry struct {
	url   string
	state entryState
	err   error
}

// Logger is the pluggable logging interface shared across the engine.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Cache is the keyed preload registry for one location's videos.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	client      *http.Client
	logger      Logger
	concurrency int

	loaded metric.Int64Counter
	failed metric.Int64Counter
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l Logger) Option { return func(c *Cache) { c.logger = l } }

// WithClient overrides the HTTP client used to fetch bytes.
func WithClient(hc *http.Client) Option { return func(c *Cache) { c.client = hc } }

// WithConcurrency bounds how many fetches run at once during PreloadAll.
func WithConcurrency(n int) Option { return func(c *Cache) { c.concurrency = n } }

// New creates an empty preload cache.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		entries:     make(map[string]*entry),
		client:      &http.Client{Timeout: defaultFetchTimeout},
		logger:      nopLogger{},
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}

	m := meter()
	var err error
	c.loaded, err = m.Int64Counter(
		"preload.videos.loaded",
		metric.WithDescription("Videos successfully preloaded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating loaded counter: %w", err)
	}
	c.failed, err = m.Int64Counter(
		"preload.videos.failed",
		metric.WithDescription("Video preloads that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	return c, nil
}

// Add registers a pending entry for key unless one already exists.
// Re-adding a key never overwrites or resets it, whatever its state.
func (c *Cache) Add(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	c.entries[key] = &entry{url: url, state: statePending}
}

// IsLoaded reports whether key's bytes have been fetched. Unknown keys
// are simply not loaded.
func (c *Cache) IsLoaded(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.state == stateLoaded
}

// Len returns the number of registered entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries. Called on location change.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// PreloadAll fetches every pending entry concurrently and returns once
// all settle. Individual failures do not abort the batch; the error is
// non-nil only when the context is canceled before completion.
func (c *Cache) PreloadAll(ctx context.Context) error {
	c.mu.Lock()
	pending := make(map[string]string)
	for k, e := range c.entries {
		if e.state == statePending {
			pending[k] = e.url
		}
	}
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for key, url := range pending {
		g.Go(func() error {
			err := c.fetch(ctx, url)
			c.settle(key, err)
			// Only context cancellation propagates; fetch failures are
			// recorded per entry and the batch keeps going.
			return ctx.Err()
		})
	}
	return g.Wait()
}

func (c *Cache) fetch(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building preload request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("preload fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("preload fetch returned status %d", resp.StatusCode)
	}

	// Drain the body so the bytes actually travel: this is what lands
	// them in the byte cache sitting between us and the asset store.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("preload read failed: %w", err)
	}
	return nil
}

func (c *Cache) settle(key string, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		// Cleared mid-flight; drop the result.
		c.mu.Unlock()
		return
	}
	if err != nil {
		e.state = stateFailed
		e.err = err
	} else {
		e.state = stateLoaded
	}
	c.mu.Unlock()

	if err != nil {
		c.failed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
		c.logger.Error("preload failed", "key", key, "error", err)
	} else {
		c.loaded.Add(context.Background(), 1)
		c.logger.Debug("preload complete", "key", key)
	}
}
