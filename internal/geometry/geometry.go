package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skyloop/engine/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// NORMALIZED SPACE
// Hotspot geometry is stored in normalized video coordinates: both axes in
// [0,1] relative to the natural video frame. All hit-testing happens in
// this space; projection into container pixels is a display concern.

// ErrInvalidRing is returned when a coordinate ring cannot form a polygon.
var ErrInvalidRing = errors.New("invalid coordinate ring")

// PointInPolygon reports whether p lies inside the polygon defined by ring
// using the even-odd (ray casting) rule. Rings with fewer than 3 vertices
// are degenerate and contain nothing.
func PointInPolygon(p core.Point, ring core.Ring) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		pi, pj := ring[i], ring[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Centroid returns the arithmetic mean of the ring's vertices. This is the
// stored CenterPoint of a hotspot; it must be recomputed whenever the
// coordinates change. Empty rings yield the zero point.
func Centroid(ring core.Ring) core.Point {
	if len(ring) == 0 {
		return core.Point{}
	}
	var sx, sy float64
	for _, p := range ring {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(ring))
	return core.Point{X: sx / n, Y: sy / n}
}

// ParseRing parses a JSON array of coordinate pairs ("[[x1,y1],[x2,y2],...]")
// into a normalized ring, validating it through a simplefeatures line string
// so malformed geometry is rejected before it reaches storage.
func ParseRing(input string) (core.Ring, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse ring JSON: %w", err)
	}

	if len(coords) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 points, got %d", ErrInvalidRing, len(coords))
	}

	ring := make(core.Ring, len(coords))
	flat := make([]float64, 0, len(coords)*2)
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: coordinate %d has insufficient values", ErrInvalidRing, i)
		}
		if c[0] < 0 || c[0] > 1 || c[1] < 0 || c[1] > 1 {
			return nil, fmt.Errorf("%w: coordinate %d out of normalized range", ErrInvalidRing, i)
		}
		ring[i] = core.Point{X: c[0], Y: c[1]}
		flat = append(flat, c[0], c[1])
	}

	// A ring with repeated consecutive vertices collapses to a degenerate
	// line; simplefeatures surfaces that during validation.
	seq := geom.NewSequence(flat, geom.DimXY)
	ls := geom.NewLineString(seq)
	if err := ls.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRing, err)
	}

	return ring, nil
}

// RingArea returns the absolute area of the ring in normalized units via
// the shoelace formula. Used to reject zero-area hotspots at authoring time.
func RingArea(ring core.Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		sum += (ring[j].X + ring[i].X) * (ring[j].Y - ring[i].Y)
		j = i
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}
