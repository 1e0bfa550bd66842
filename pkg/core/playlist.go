// pkg/core/playlist.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Playlist holds the ordered dive-in → floor-level → zoom-out sequence for
// one PRIMARY hotspot. It is created empty alongside its hotspot and
// deleted with it.
type Playlist struct {
	ID           uuid.UUID  `json:"id"`
	HotspotID    uuid.UUID  `json:"hotspot"`
	DiveInID     *uuid.UUID `json:"diveIn,omitempty"`
	FloorLevelID *uuid.UUID `json:"floorLevel,omitempty"`
	ZoomOutID    *uuid.UUID `json:"zoomOut,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsComplete reports whether all three sequence videos are assigned.
// This is derived, never stored: a playlist with any slot empty is not
// playable and its hotspot stays inert in the experience.
func (p *Playlist) IsComplete() bool {
	return p != nil && p.DiveInID != nil && p.FloorLevelID != nil && p.ZoomOutID != nil
}

// AssetFor returns the asset reference for the given sequence stage,
// or nil when the stage is unassigned.
func (p *Playlist) AssetFor(stage SequenceStage) *uuid.UUID {
	if p == nil {
		return nil
	}
	switch stage {
	case StageDiveIn:
		return p.DiveInID
	case StageFloorLevel:
		return p.FloorLevelID
	case StageZoomOut:
		return p.ZoomOutID
	}
	return nil
}
