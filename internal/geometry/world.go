package geometry

import (
	"math"

	"github.com/skyloop/engine/pkg/core"
	"github.com/wroge/wgs84"
)

// WORLD ANCHORING
// Locations carry WGS-84 coordinates. For ordering and distance we project
// to EPSG:3857 so distances are planar and cheap to compare; the absolute
// metric distortion does not matter for ranking.

// Project3857 projects a WGS-84 longitude/latitude into web mercator.
func Project3857(longitude, latitude float64) (x, y float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	return x, y
}

// Distance3857 returns the planar distance between two WGS-84 coordinates
// after projection to EPSG:3857.
func Distance3857(lon1, lat1, lon2, lat2 float64) float64 {
	x1, y1 := Project3857(lon1, lat1)
	x2, y2 := Project3857(lon2, lat2)
	return math.Hypot(x2-x1, y2-y1)
}

// NearestLocation returns the location in candidates closest to from,
// excluding from itself. Returns nil when no other candidate exists.
func NearestLocation(from core.Location, candidates []core.Location) *core.Location {
	var best *core.Location
	bestDist := math.Inf(1)
	for i := range candidates {
		c := &candidates[i]
		if c.ID == from.ID {
			continue
		}
		d := Distance3857(from.Longitude, from.Latitude, c.Longitude, c.Latitude)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
