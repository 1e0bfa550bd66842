// Package convert provides functions to convert GORM models to core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/skyloop/engine/internal/model"
	"github.com/skyloop/engine/pkg/core"
)

// ringFromJSON decodes a stored coordinate document into a core.Ring.
// An empty or null document yields an empty ring.
func ringFromJSON(doc []byte) (core.Ring, error) {
	if len(doc) == 0 {
		return core.Ring{}, nil
	}
	var ring core.Ring
	if err := json.Unmarshal(doc, &ring); err != nil {
		return nil, fmt.Errorf("decoding coordinates: %w", err)
	}
	if ring == nil {
		ring = core.Ring{}
	}
	return ring, nil
}

// infoPanelFromJSON decodes a stored info panel document. Empty and
// null documents yield nil: only SECONDARY hotspots carry a panel.
func infoPanelFromJSON(doc []byte) (*core.InfoPanel, error) {
	if len(doc) == 0 || string(doc) == "null" {
		return nil, nil
	}
	var panel core.InfoPanel
	if err := json.Unmarshal(doc, &panel); err != nil {
		return nil, fmt.Errorf("decoding info panel: %w", err)
	}
	return &panel, nil
}

// LocationToCore converts a GORM Location to a core.Location.
func LocationToCore(l model.Location) core.Location {
	return core.Location{
		ID:          l.ID,
		Name:        l.Name,
		DisplayName: l.DisplayName,
		Latitude:    l.Latitude,
		Longitude:   l.Longitude,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// AssetToCore converts a GORM Asset to a core.Asset. AccessURL is
// derived from the asset's type and filename; the storage path stays
// server-side.
func AssetToCore(a model.Asset) core.Asset {
	return core.Asset{
		ID:         a.ID,
		Type:       core.AssetType(a.Type),
		LocationID: a.LocationID,
		Filename:   a.Filename,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		AccessURL:  fmt.Sprintf("/api/assets/file/%s/%s", a.Type, a.Filename),
		CreatedAt:  a.CreatedAt,
	}
}

// HotspotToCore converts a GORM Hotspot to a core.Hotspot.
func HotspotToCore(h model.Hotspot) (core.Hotspot, error) {
	ring, err := ringFromJSON(h.Coordinates)
	if err != nil {
		return core.Hotspot{}, err
	}
	panel, err := infoPanelFromJSON(h.InfoPanel)
	if err != nil {
		return core.Hotspot{}, err
	}

	return core.Hotspot{
		ID:          h.ID,
		LocationID:  h.LocationID,
		Type:        core.HotspotType(h.Type),
		Coordinates: ring,
		CenterPoint: core.Point{X: h.CenterX, Y: h.CenterY},
		MapPinID:    h.MapPinID,
		UIElementID: h.UIElementID,
		InfoPanel:   panel,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}, nil
}

// PlaylistToCore converts a GORM Playlist to a core.Playlist.
func PlaylistToCore(p model.Playlist) core.Playlist {
	return core.Playlist{
		ID:           p.ID,
		HotspotID:    p.HotspotID,
		DiveInID:     p.DiveInID,
		FloorLevelID: p.FloorLevelID,
		ZoomOutID:    p.ZoomOutID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
