// pkg/core/types.go
package core

// Point is a 2D point in normalized video space. Both components are
// expected to lie in [0,1]; (0,0) is the top-left of the video frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Ring is an ordered sequence of normalized points defining a polygon.
// Insertion order is significant: it defines edge connectivity.
type Ring []Point

// ScreenPoint is a point in container pixel space.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PercentPoint is a point expressed as a percentage of the container,
// suitable for CSS-style positioning of pin markers.
type PercentPoint struct {
	X float64 `json:"x"` // 0-100
	Y float64 `json:"y"` // 0-100
}
