// pkg/core/location.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Location is the root scoping unit for hotspots and location-bound assets.
// Latitude/Longitude anchor the location in the real world (WGS-84) and are
// used to order the transition flow between locations.
type Location struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
