// pkg/core/asset.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// AssetType tags a stored media file with its role in the experience.
type AssetType string

const (
	AssetAerial     AssetType = "AERIAL"
	AssetTransition AssetType = "Transition"
	AssetDiveIn     AssetType = "DiveIn"
	AssetFloorLevel AssetType = "FloorLevel"
	AssetZoomOut    AssetType = "ZoomOut"
	AssetButton     AssetType = "Button"
	AssetMapPin     AssetType = "MapPin"
	AssetUIElement  AssetType = "UIElement"
)

// AssetTypes lists every valid asset type.
var AssetTypes = []AssetType{
	AssetAerial,
	AssetTransition,
	AssetDiveIn,
	AssetFloorLevel,
	AssetZoomOut,
	AssetButton,
	AssetMapPin,
	AssetUIElement,
}

// Valid reports whether t is a member of the closed asset type set.
func (t AssetType) Valid() bool {
	for _, known := range AssetTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LocationScoped reports whether assets of this type belong to a single
// location. Button, MapPin and UIElement assets are global.
func (t AssetType) LocationScoped() bool {
	switch t {
	case AssetButton, AssetMapPin, AssetUIElement:
		return false
	}
	return true
}

// Video reports whether assets of this type carry video content.
func (t AssetType) Video() bool {
	switch t {
	case AssetAerial, AssetTransition, AssetDiveIn, AssetFloorLevel, AssetZoomOut:
		return true
	}
	return false
}

// Asset is a stored media file. Content is immutable once uploaded;
// replacing a file means creating a new asset.
type Asset struct {
	ID         uuid.UUID  `json:"id"`
	Type       AssetType  `json:"type"`
	LocationID *uuid.UUID `json:"location,omitempty"` // nil for global assets
	Filename   string     `json:"filename"`
	MimeType   string     `json:"mimeType"`
	SizeBytes  int64      `json:"sizeBytes"`
	AccessURL  string     `json:"accessUrl"` // resolved against the backend base URL
	CreatedAt  time.Time  `json:"createdAt"`
}
