// Package dataclient wraps the skyloop HTTP API with a read-through
// cache and in-flight request de-duplication. Consumers see typed
// results; malformed responses are coerced to empty sets and logged,
// never propagated as decode panics or shape errors.
package dataclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/skyloop/engine/pkg/core"
)

const (
	defaultTTL          = 5 * time.Minute
	defaultMaxPerFamily = 50
	requestTimeout      = 30 * time.Second
)

// Endpoint families used as cache partitions.
const (
	familyLocations = "locations"
	familyAssets    = "assets"
	familyHotspots  = "hotspots"
	familyPlaylists = "playlists"
)

// Client is the engine's data-access layer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	cache *responseCache
	group singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithCachePolicy overrides the TTL and per-family entry bound.
func WithCachePolicy(ttl time.Duration, maxPerFamily int) Option {
	return func(c *Client) { c.cache = newResponseCache(ttl, maxPerFamily) }
}

// New creates a data client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     slog.Default(),
		cache:      newResponseCache(defaultTTL, defaultMaxPerFamily),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvalidateAll drops every cached response, e.g. after admin mutations.
func (c *Client) InvalidateAll() {
	c.cache.clear()
}

// GetLocations fetches all locations.
func (c *Client) GetLocations(ctx context.Context, force bool) ([]core.Location, error) {
	return fetchList[core.Location](ctx, c, familyLocations, "/api/locations", force)
}

// GetLocation fetches a single location by ID.
func (c *Client) GetLocation(ctx context.Context, id uuid.UUID, force bool) (*core.Location, error) {
	return fetchOne[core.Location](ctx, c, familyLocations, "/api/locations/"+id.String(), force)
}

// GetAssetsByType fetches assets of one type, optionally scoped to a
// location. Global asset types pass locationID nil.
func (c *Client) GetAssetsByType(ctx context.Context, t core.AssetType, locationID *uuid.UUID, force bool) ([]core.Asset, error) {
	q := url.Values{"type": []string{string(t)}}
	if locationID != nil {
		q.Set("location", locationID.String())
	}
	return fetchList[core.Asset](ctx, c, familyAssets, "/api/assets?"+q.Encode(), force)
}

// GetHotspotsByLocation fetches a location's hotspots, filtered to those
// carrying drawable geometry. When filtering would empty a non-empty
// response the raw set is returned instead, which keeps broken data
// visible while debugging instead of silently vanishing.
func (c *Client) GetHotspotsByLocation(ctx context.Context, locationID uuid.UUID, force bool) ([]core.Hotspot, error) {
	q := url.Values{"location": []string{locationID.String()}}
	raw, err := fetchList[core.Hotspot](ctx, c, familyHotspots, "/api/hotspots?"+q.Encode(), force)
	if err != nil {
		return nil, err
	}

	valid := make([]core.Hotspot, 0, len(raw))
	for _, h := range raw {
		if h.Valid() {
			valid = append(valid, h)
		}
	}
	if len(valid) == 0 && len(raw) > 0 {
		c.logger.Warn("all hotspots failed validity filter, returning raw set",
			"location", locationID, "count", len(raw))
		return raw, nil
	}
	return valid, nil
}

// GetPlaylistByHotspot fetches the playlist owned by a PRIMARY hotspot.
func (c *Client) GetPlaylistByHotspot(ctx context.Context, hotspotID uuid.UUID, force bool) (*core.Playlist, error) {
	q := url.Values{"hotspot": []string{hotspotID.String()}}
	return fetchOne[core.Playlist](ctx, c, familyPlaylists, "/api/playlists?"+q.Encode(), force)
}

// ResolveAccessURL turns an asset's access URL into an absolute URL
// against the client's base when it is relative.
func (c *Client) ResolveAccessURL(accessURL string) string {
	if accessURL == "" || strings.Contains(accessURL, "://") {
		return accessURL
	}
	if !strings.HasPrefix(accessURL, "/") {
		accessURL = "/" + accessURL
	}
	return c.baseURL + accessURL
}

// fetchList is the shared read path for collection endpoints. Concurrent
// callers with the same path share one underlying request, and the cache
// is populated once from that shared result.
func fetchList[T any](ctx context.Context, c *Client, family, path string, force bool) ([]T, error) {
	if !force {
		if v, ok := c.cache.get(family, path); ok {
			if typed, ok := v.([]T); ok {
				return typed, nil
			}
		}
	}

	v, err, _ := c.group.Do(family+path, func() (any, error) {
		body, err := c.do(ctx, path)
		if err != nil {
			return nil, err
		}
		list, ok := decodeList[T](body)
		if !ok {
			c.logger.Error("expected array response", "path", path)
			list = []T{}
		}
		c.cache.put(family, path, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// fetchOne is the shared read path for single-object endpoints.
func fetchOne[T any](ctx context.Context, c *Client, family, path string, force bool) (*T, error) {
	if !force {
		if v, ok := c.cache.get(family, path); ok {
			if typed, ok := v.(*T); ok {
				return typed, nil
			}
		}
	}

	v, err, _ := c.group.Do(family+path, func() (any, error) {
		body, err := c.do(ctx, path)
		if err != nil {
			return nil, err
		}
		var out T
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		c.cache.put(family, path, &out)
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// decodeList decodes body as a JSON array of T. A non-array response
// reports ok=false rather than an error: shape problems are coerced.
func decodeList[T any](body []byte) ([]T, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, false
	}
	if out == nil {
		out = []T{}
	}
	return out, true
}
