package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Location{},
	&Asset{},
	&Hotspot{},
	&Playlist{},
}

// Location is a site with its own aerial footage and hotspot set.
type Location struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:127;uniqueIndex"`
	DisplayName string    `json:"displayName" gorm:"size:255"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (*Location) TableName() string {
	return "locations"
}

// Asset is an uploaded media file. Location is set only for
// location-scoped types; global types (Button, MapPin, UIElement)
// leave it null.
type Asset struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Type        string     `json:"type" gorm:"size:32;index:idx_assets_type"`
	LocationID  *uuid.UUID `json:"location,omitempty" gorm:"type:uuid;index:idx_assets_location"`
	Filename    string     `json:"filename" gorm:"size:255"`
	MimeType    string     `json:"mimeType" gorm:"size:127"`
	SizeBytes   int64      `json:"sizeBytes"`
	StoragePath string     `json:"-" gorm:"size:512"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (*Asset) TableName() string {
	return "assets"
}

// Hotspot is a clickable polygon over a location's aerial view.
// Coordinates and InfoPanel are stored as JSON documents; the center
// point is denormalized into two columns and recomputed on every
// coordinate change.
type Hotspot struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	LocationID  uuid.UUID      `json:"location" gorm:"type:uuid;index:idx_hotspots_location"`
	Type        string         `json:"type" gorm:"size:16"`
	Coordinates datatypes.JSON `json:"coordinates" gorm:"default:'[]'"`
	CenterX     float64        `json:"-"`
	CenterY     float64        `json:"-"`
	MapPinID    *uuid.UUID     `json:"mapPin,omitempty" gorm:"type:uuid"`
	UIElementID *uuid.UUID     `json:"uiElement,omitempty" gorm:"type:uuid"`
	InfoPanel   datatypes.JSON `json:"infoPanel,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (*Hotspot) TableName() string {
	return "hotspots"
}

// Playlist holds the three sequence video slots for one PRIMARY hotspot.
// The row is created empty when the hotspot is created and removed with
// it. Completeness is derived from the slots, never stored.
type Playlist struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	HotspotID    uuid.UUID  `json:"hotspot" gorm:"type:uuid;uniqueIndex"`
	DiveInID     *uuid.UUID `json:"diveIn,omitempty" gorm:"type:uuid"`
	FloorLevelID *uuid.UUID `json:"floorLevel,omitempty" gorm:"type:uuid"`
	ZoomOutID    *uuid.UUID `json:"zoomOut,omitempty" gorm:"type:uuid"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (*Playlist) TableName() string {
	return "playlists"
}
