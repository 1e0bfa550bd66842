package streaming

import (
	"encoding/json"
)

// Message type constants matching the byte-cache protocol.
const (
	TypeCacheVideos       = "CACHE_VIDEOS"
	TypeCacheImages       = "CACHE_IMAGES"
	TypeCacheProgress     = "CACHE_PROGRESS"
	TypeCacheError        = "CACHE_ERROR"
	TypeCacheComplete     = "CACHE_COMPLETE"
	TypeCheckCacheVersion = "CHECK_CACHE_VERSION"
	TypeCacheVersion      = "CACHE_VERSION"
	TypeClearCaches       = "CLEAR_CACHES"
	TypeCachesCleared     = "CACHES_CLEARED"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CacheItem is one asset to warm, carrying the caller's id so progress
// and error frames can echo it.
type CacheItem struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CacheRequest asks the byte-cache service to warm a batch of assets.
// Videos is set for CACHE_VIDEOS, Images for CACHE_IMAGES.
type CacheRequest struct {
	ClientID string      `json:"clientId"`
	Videos   []CacheItem `json:"videos,omitempty"`
	Images   []CacheItem `json:"images,omitempty"`
}

// Batch returns whichever item list the request carries.
func (r CacheRequest) Batch() []CacheItem {
	if len(r.Videos) > 0 {
		return r.Videos
	}
	return r.Images
}

// CacheProgress reports one warmed item out of a batch.
type CacheProgress struct {
	ClientID  string `json:"clientId"`
	ID        string `json:"id"`
	URL       string `json:"url"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// CacheError reports an item that could not be cached. The batch
// continues past it.
type CacheError struct {
	ClientID string `json:"clientId"`
	ID       string `json:"id"`
	URL      string `json:"url"`
	Error    string `json:"error"`
}

// CacheComplete closes out a batch.
type CacheComplete struct {
	ClientID string `json:"clientId"`
	Cached   int    `json:"cached"`
	Failed   int    `json:"failed"`
}

// CacheVersion answers CHECK_CACHE_VERSION. A version change on the
// server invalidates every previously cached body.
type CacheVersion struct {
	Version string `json:"version"`
}

// NewEnvelope marshals a payload into an Envelope of the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}
