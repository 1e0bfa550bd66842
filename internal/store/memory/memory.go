// Package memory implements an in-process store backend. It backs
// tests and single-node deployments that do not need a database.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyloop/engine/internal/geometry"
	"github.com/skyloop/engine/pkg/core"
)

// Backend stores everything in maps guarded by one mutex. Values are
// copied on the way in and out so callers can never alias internal state.
type Backend struct {
	mu sync.RWMutex

	locations map[uuid.UUID]core.Location
	assets    map[uuid.UUID]core.Asset
	paths     map[uuid.UUID]string
	hotspots  map[uuid.UUID]core.Hotspot
	playlists map[uuid.UUID]core.Playlist

	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty in-memory backend.
func New(log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		locations: make(map[uuid.UUID]core.Location),
		assets:    make(map[uuid.UUID]core.Asset),
		paths:     make(map[uuid.UUID]string),
		hotspots:  make(map[uuid.UUID]core.Hotspot),
		playlists: make(map[uuid.UUID]core.Playlist),
		logger:    log,
		now:       time.Now,
	}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

// Locations

func (b *Backend) CreateLocation(_ context.Context, l *core.Location) error {
	if l == nil || l.Name == "" {
		return fmt.Errorf("%w: location requires a name", core.ErrInvalid)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = b.now()
	l.UpdatedAt = l.CreatedAt
	b.locations[l.ID] = *l
	return nil
}

func (b *Backend) GetLocation(_ context.Context, id uuid.UUID) (*core.Location, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l, ok := b.locations[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &l, nil
}

func (b *Backend) ListLocations(_ context.Context) ([]core.Location, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Location, 0, len(b.locations))
	for _, l := range b.locations {
		out = append(out, l)
	}
	return out, nil
}

func (b *Backend) UpdateLocation(_ context.Context, l *core.Location) error {
	if l == nil {
		return core.ErrInvalid
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.locations[l.ID]
	if !ok {
		return core.ErrNotFound
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = b.now()
	b.locations[l.ID] = *l
	return nil
}

func (b *Backend) DeleteLocation(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.locations[id]; !ok {
		return core.ErrNotFound
	}
	delete(b.locations, id)

	for hid, h := range b.hotspots {
		if h.LocationID != id {
			continue
		}
		delete(b.hotspots, hid)
		for pid, p := range b.playlists {
			if p.HotspotID == hid {
				delete(b.playlists, pid)
			}
		}
	}

	// Assets survive their location; they become global orphans the
	// operator can reassign or delete.
	for aid, a := range b.assets {
		if a.LocationID != nil && *a.LocationID == id {
			a.LocationID = nil
			b.assets[aid] = a
		}
	}
	return nil
}

// Assets

func (b *Backend) CreateAsset(_ context.Context, a *core.Asset, storagePath string) error {
	if a == nil || !a.Type.Valid() || a.Filename == "" {
		return fmt.Errorf("%w: asset requires a known type and filename", core.ErrInvalid)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = b.now()
	a.AccessURL = fmt.Sprintf("/api/assets/file/%s/%s", a.Type, a.Filename)
	b.assets[a.ID] = *a
	b.paths[a.ID] = storagePath
	return nil
}

func (b *Backend) GetAsset(_ context.Context, id uuid.UUID) (*core.Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.assets[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &a, nil
}

func (b *Backend) ListAssets(_ context.Context, t core.AssetType, locationID *uuid.UUID) ([]core.Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Asset, 0)
	for _, a := range b.assets {
		if a.Type != t {
			continue
		}
		if locationID != nil && (a.LocationID == nil || *a.LocationID != *locationID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (b *Backend) LookupAssetFile(_ context.Context, t core.AssetType, filename string) (*core.Asset, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, a := range b.assets {
		if a.Type == t && a.Filename == filename {
			return &a, b.paths[id], nil
		}
	}
	return nil, "", core.ErrNotFound
}

func (b *Backend) DeleteAsset(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.assets[id]; !ok {
		return core.ErrNotFound
	}
	delete(b.assets, id)
	delete(b.paths, id)
	b.unlinkAssetLocked(id)
	return nil
}

// unlinkAssetLocked clears every reference to a deleted asset so no
// hotspot pin or playlist slot dangles.
func (b *Backend) unlinkAssetLocked(id uuid.UUID) {
	for hid, h := range b.hotspots {
		changed := false
		if h.MapPinID != nil && *h.MapPinID == id {
			h.MapPinID = nil
			changed = true
		}
		if h.UIElementID != nil && *h.UIElementID == id {
			h.UIElementID = nil
			changed = true
		}
		if changed {
			h.UpdatedAt = b.now()
			b.hotspots[hid] = h
		}
	}
	for pid, p := range b.playlists {
		changed := false
		if p.DiveInID != nil && *p.DiveInID == id {
			p.DiveInID = nil
			changed = true
		}
		if p.FloorLevelID != nil && *p.FloorLevelID == id {
			p.FloorLevelID = nil
			changed = true
		}
		if p.ZoomOutID != nil && *p.ZoomOutID == id {
			p.ZoomOutID = nil
			changed = true
		}
		if changed {
			p.UpdatedAt = b.now()
			b.playlists[pid] = p
		}
	}
}

// Hotspots

func (b *Backend) CreateHotspot(_ context.Context, h *core.Hotspot) error {
	if h == nil || len(h.Coordinates) < 3 {
		return fmt.Errorf("%w: hotspot requires at least 3 coordinates", core.ErrInvalid)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.locations[h.LocationID]; !ok {
		return core.ErrNotFound
	}

	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.CenterPoint = geometry.Centroid(h.Coordinates)
	h.CreatedAt = b.now()
	h.UpdatedAt = h.CreatedAt
	b.hotspots[h.ID] = *h

	if h.Type == core.HotspotPrimary {
		p := core.Playlist{
			ID:        uuid.New(),
			HotspotID: h.ID,
			CreatedAt: h.CreatedAt,
			UpdatedAt: h.CreatedAt,
		}
		b.playlists[p.ID] = p
	}
	return nil
}

func (b *Backend) GetHotspot(_ context.Context, id uuid.UUID) (*core.Hotspot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	h, ok := b.hotspots[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &h, nil
}

func (b *Backend) ListHotspotsByLocation(_ context.Context, locationID uuid.UUID) ([]core.Hotspot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Hotspot, 0)
	for _, h := range b.hotspots {
		if h.LocationID == locationID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (b *Backend) UpdateHotspot(_ context.Context, h *core.Hotspot) error {
	if h == nil || len(h.Coordinates) < 3 {
		return fmt.Errorf("%w: hotspot requires at least 3 coordinates", core.ErrInvalid)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.hotspots[h.ID]
	if !ok {
		return core.ErrNotFound
	}
	h.LocationID = existing.LocationID
	h.CenterPoint = geometry.Centroid(h.Coordinates)
	h.CreatedAt = existing.CreatedAt
	h.UpdatedAt = b.now()
	b.hotspots[h.ID] = *h
	return nil
}

func (b *Backend) DeleteHotspot(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.hotspots[id]; !ok {
		return core.ErrNotFound
	}
	delete(b.hotspots, id)

	for pid, p := range b.playlists {
		if p.HotspotID == id {
			delete(b.playlists, pid)
		}
	}
	return nil
}

// Playlists

func (b *Backend) GetPlaylist(_ context.Context, id uuid.UUID) (*core.Playlist, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.playlists[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (b *Backend) GetPlaylistByHotspot(_ context.Context, hotspotID uuid.UUID) (*core.Playlist, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, p := range b.playlists {
		if p.HotspotID == hotspotID {
			out := p
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

func (b *Backend) UpdatePlaylist(_ context.Context, p *core.Playlist) error {
	if p == nil {
		return core.ErrInvalid
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.playlists[p.ID]
	if !ok {
		return core.ErrNotFound
	}
	for _, ref := range []*uuid.UUID{p.DiveInID, p.FloorLevelID, p.ZoomOutID} {
		if ref == nil {
			continue
		}
		if _, ok := b.assets[*ref]; !ok {
			return fmt.Errorf("%w: playlist references unknown asset %s", core.ErrInvalid, ref)
		}
	}
	p.HotspotID = existing.HotspotID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = b.now()
	b.playlists[p.ID] = *p
	return nil
}
