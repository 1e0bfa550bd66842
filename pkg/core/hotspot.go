// pkg/core/hotspot.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// HotspotType distinguishes playlist-backed hotspots from info-panel ones.
type HotspotType string

const (
	// HotspotPrimary triggers the dive-in video sequence when activated.
	HotspotPrimary HotspotType = "PRIMARY"
	// HotspotSecondary opens an info panel; it never owns a playlist.
	HotspotSecondary HotspotType = "SECONDARY"
)

// InfoPanel is the content shown when a SECONDARY hotspot is activated.
type InfoPanel struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Hotspot is a clickable polygon region over a location's aerial view.
// Coordinates are normalized to [0,1] and ordered; CenterPoint is the
// arithmetic mean of Coordinates and is recomputed whenever they change.
type Hotspot struct {
	ID          uuid.UUID   `json:"id"`
	LocationID  uuid.UUID   `json:"location"`
	Type        HotspotType `json:"type"`
	Coordinates Ring        `json:"coordinates"`
	CenterPoint Point       `json:"centerPoint"`
	MapPinID    *uuid.UUID  `json:"mapPin,omitempty"`
	UIElementID *uuid.UUID  `json:"uiElement,omitempty"`
	InfoPanel   *InfoPanel  `json:"infoPanel,omitempty"` // SECONDARY only
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Valid reports whether the hotspot carries enough geometry to be drawn
// and hit-tested: at least 3 coordinates and a center point.
func (h *Hotspot) Valid() bool {
	return h != nil && len(h.Coordinates) >= 3
}
