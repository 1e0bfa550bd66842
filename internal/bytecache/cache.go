// Package bytecache implements the cache-first byte cache for asset
// URLs: a warmable in-memory store, an HTTP front that serves cached
// bodies, and a WebSocket control protocol for warming and clearing.
package bytecache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultMaxBytes = 1 << 30

// Store holds fully downloaded response bodies keyed by URL. Only
// complete 200 responses are admitted; partial (206) bodies are never
// stored, so a cached entry is always the whole file.
type Store struct {
	mu           sync.RWMutex
	entries      map[string][]byte
	contentTypes map[string]string
	order        []string
	totalBytes   int64

	maxBytes int64
	version  string
	client   *http.Client
	logger   *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHTTPClient overrides the client used to warm URLs.
func WithHTTPClient(c *http.Client) StoreOption { return func(s *Store) { s.client = c } }

// WithMaxBytes bounds the total cached body size.
func WithMaxBytes(n int64) StoreOption { return func(s *Store) { s.maxBytes = n } }

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) StoreOption { return func(s *Store) { s.logger = l } }

// NewStore creates an empty store. The version string keys the whole
// cache generation; bumping it on deploy invalidates stale clients.
func NewStore(version string, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		maxBytes:     defaultMaxBytes,
		version:      version,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version returns the cache generation string.
func (s *Store) Version() string {
	return s.version
}

// Get returns the cached body and content type for a URL.
func (s *Store) Get(url string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.entries[url]
	if !ok {
		return nil, "", false
	}
	return body, s.contentTypes[url], true
}

// Contains reports whether a URL is cached.
func (s *Store) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[url]
	return ok
}

// Len returns the number of cached URLs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TotalBytes returns the summed size of all cached bodies.
func (s *Store) TotalBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalBytes
}

// Clear drops every cached body.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]byte)
	s.contentTypes = make(map[string]string)
	s.order = nil
	s.totalBytes = 0
}

// Warm fetches a URL and caches the body. Already-cached URLs are not
// refetched. Responses other than a full 200 are rejected.
func (s *Store) Warm(ctx context.Context, url string) error {
	if s.Contains(url) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d, not caching", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}

	s.put(url, body, resp.Header.Get("Content-Type"))
	return nil
}

func (s *Store) put(url string, body []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[url]; ok {
		return
	}

	// Evict oldest entries until the new body fits.
	for s.totalBytes+int64(len(body)) > s.maxBytes && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		s.totalBytes -= int64(len(s.entries[oldest]))
		delete(s.entries, oldest)
		delete(s.contentTypes, oldest)
		s.logger.Debug("evicted cached body", "url", oldest)
	}

	s.entries[url] = body
	s.contentTypes[url] = contentType
	s.order = append(s.order, url)
	s.totalBytes += int64(len(body))
}
