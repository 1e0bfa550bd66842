package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/skyloop/engine/pkg/core"
)

// Context holds the per-viewer experience state: the current location,
// its hotspots and resolved playlists. A generation counter increments
// on every location change so async work started against the old
// location can detect it is stale and drop its result.
type Context struct {
	mu        sync.RWMutex
	location  *core.Location
	hotspots  []core.Hotspot
	playlists map[uuid.UUID]*core.Playlist
	gen       uint64
}

// NewContext creates an empty Context with no location loaded.
func NewContext() *Context {
	return &Context{
		playlists: make(map[uuid.UUID]*core.Playlist),
	}
}

// Location returns the current location, or nil before the first load.
func (c *Context) Location() *core.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.location
}

// Generation returns the current location generation.
func (c *Context) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Current reports whether gen still identifies the loaded location.
func (c *Context) Current(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen == gen
}

// SetLocation swaps in a new location and drops all state tied to the
// previous one. Returns the new generation.
func (c *Context) SetLocation(loc *core.Location, hotspots []core.Hotspot) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = loc
	c.hotspots = hotspots
	c.playlists = make(map[uuid.UUID]*core.Playlist)
	c.gen++
	return c.gen
}

// Hotspots returns the current location's hotspots.
func (c *Context) Hotspots() []core.Hotspot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Hotspot, len(c.hotspots))
	copy(out, c.hotspots)
	return out
}

// Hotspot returns one hotspot by ID.
func (c *Context) Hotspot(id uuid.UUID) (*core.Hotspot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.hotspots {
		if c.hotspots[i].ID == id {
			h := c.hotspots[i]
			return &h, true
		}
	}
	return nil, false
}

// SetPlaylist caches a resolved playlist for a hotspot. The write is
// dropped when gen is stale.
func (c *Context) SetPlaylist(gen uint64, hotspotID uuid.UUID, p *core.Playlist) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.playlists[hotspotID] = p
	return true
}

// Playlist returns the cached playlist for a hotspot.
func (c *Context) Playlist(hotspotID uuid.UUID) (*core.Playlist, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.playlists[hotspotID]
	return p, ok
}

// Clear tears the session down, dropping location, hotspots and
// playlists in one step.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = nil
	c.hotspots = nil
	c.playlists = make(map[uuid.UUID]*core.Playlist)
	c.gen++
}
