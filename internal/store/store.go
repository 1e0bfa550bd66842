// internal/store/store.go
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/skyloop/engine/pkg/core"
)

// Sentinel errors shared by every backend.
var (
	ErrNotFound = core.ErrNotFound
	ErrInvalid  = core.ErrInvalid
)

// Backend is the interface all store implementations must satisfy.
//
// Write operations carry the experience's referential rules:
//   - creating a PRIMARY hotspot creates its empty playlist
//   - deleting a hotspot deletes its playlist
//   - deleting an asset clears every playlist slot and hotspot pin
//     that referenced it
//   - deleting a location deletes its hotspots and playlists and
//     detaches its assets
//   - a hotspot's stored center point is recomputed from its
//     coordinates on every write
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Locations
	CreateLocation(ctx context.Context, l *core.Location) error
	GetLocation(ctx context.Context, id uuid.UUID) (*core.Location, error)
	ListLocations(ctx context.Context) ([]core.Location, error)
	UpdateLocation(ctx context.Context, l *core.Location) error
	DeleteLocation(ctx context.Context, id uuid.UUID) error

	// Assets
	CreateAsset(ctx context.Context, a *core.Asset, storagePath string) error
	GetAsset(ctx context.Context, id uuid.UUID) (*core.Asset, error)
	ListAssets(ctx context.Context, t core.AssetType, locationID *uuid.UUID) ([]core.Asset, error)
	// LookupAssetFile resolves a served file to its asset and on-disk path.
	LookupAssetFile(ctx context.Context, t core.AssetType, filename string) (*core.Asset, string, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error

	// Hotspots
	CreateHotspot(ctx context.Context, h *core.Hotspot) error
	GetHotspot(ctx context.Context, id uuid.UUID) (*core.Hotspot, error)
	ListHotspotsByLocation(ctx context.Context, locationID uuid.UUID) ([]core.Hotspot, error)
	UpdateHotspot(ctx context.Context, h *core.Hotspot) error
	DeleteHotspot(ctx context.Context, id uuid.UUID) error

	// Playlists
	GetPlaylist(ctx context.Context, id uuid.UUID) (*core.Playlist, error)
	GetPlaylistByHotspot(ctx context.Context, hotspotID uuid.UUID) (*core.Playlist, error)
	UpdatePlaylist(ctx context.Context, p *core.Playlist) error
}
