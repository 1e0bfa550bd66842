package convert

import (
	"encoding/json"
	"fmt"

	"github.com/skyloop/engine/internal/geometry"
	"github.com/skyloop/engine/internal/model"
	"github.com/skyloop/engine/pkg/core"
)

// LocationToGorm converts a core.Location to its GORM model.
func LocationToGorm(l core.Location) model.Location {
	return model.Location{
		ID:          l.ID,
		Name:        l.Name,
		DisplayName: l.DisplayName,
		Latitude:    l.Latitude,
		Longitude:   l.Longitude,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// AssetToGorm converts a core.Asset to its GORM model. The storage path
// is managed by the store, not carried on the core type.
func AssetToGorm(a core.Asset) model.Asset {
	return model.Asset{
		ID:         a.ID,
		Type:       string(a.Type),
		LocationID: a.LocationID,
		Filename:   a.Filename,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		CreatedAt:  a.CreatedAt,
	}
}

// HotspotToGorm converts a core.Hotspot to its GORM model. The center
// point columns are always recomputed from the coordinates here so a
// stale client-supplied center can never be persisted.
func HotspotToGorm(h core.Hotspot) (model.Hotspot, error) {
	doc, err := json.Marshal(h.Coordinates)
	if err != nil {
		return model.Hotspot{}, fmt.Errorf("encoding coordinates: %w", err)
	}

	var panelDoc []byte
	if h.InfoPanel != nil {
		panelDoc, err = json.Marshal(h.InfoPanel)
		if err != nil {
			return model.Hotspot{}, fmt.Errorf("encoding info panel: %w", err)
		}
	}

	center := geometry.Centroid(h.Coordinates)

	return model.Hotspot{
		ID:          h.ID,
		LocationID:  h.LocationID,
		Type:        string(h.Type),
		Coordinates: doc,
		CenterX:     center.X,
		CenterY:     center.Y,
		MapPinID:    h.MapPinID,
		UIElementID: h.UIElementID,
		InfoPanel:   panelDoc,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}, nil
}

// PlaylistToGorm converts a core.Playlist to its GORM model.
func PlaylistToGorm(p core.Playlist) model.Playlist {
	return model.Playlist{
		ID:           p.ID,
		HotspotID:    p.HotspotID,
		DiveInID:     p.DiveInID,
		FloorLevelID: p.FloorLevelID,
		ZoomOutID:    p.ZoomOutID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
