package drawing

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/skyloop/engine/pkg/core"
)

// Rendering is expressed as data: a Scene goes in, a flat instruction list
// comes out, and whatever surface actually paints (canvas, SVG, test sink)
// replays the list. No drawing side effects happen here.

// Scene is the immutable input to BuildInstructions.
type Scene struct {
	Points       core.Ring
	Hotspots     []core.Hotspot
	DrawingMode  bool
	HoveredID    uuid.UUID
	HasHover     bool
	SelectedID   uuid.UUID
	HasSelection bool
}

// Op identifies an instruction kind.
type Op string

const (
	OpFillPolygon   Op = "fillPolygon"
	OpStrokePolygon Op = "strokePolygon"
	OpPolyline      Op = "polyline"
	OpMarker        Op = "marker"
)

// Instruction is one drawing command in normalized coordinates.
type Instruction struct {
	Op     Op
	Points core.Ring
	Color  string
	Alpha  float64
	Width  float64
	Label  string // marker number, 1-based
}

// Styling constants keyed off hotspot type and interaction state.
const (
	colorPrimary   = "#e0b43c"
	colorSecondary = "#3c8de0"
	colorHighlight = "#ffffff"

	alphaNormal   = 0.3
	alphaSelected = 0.4
	alphaHovered  = 0.5

	strokeNormal      = 2.0
	strokeHighlighted = 3.0
)

// BuildInstructions converts a scene into its drawing instruction list.
// Persisted hotspots render in creation order, newest painting last; the
// in-progress ring renders on top of everything.
func BuildInstructions(s Scene) []Instruction {
	out := make([]Instruction, 0, len(s.Hotspots)*2+len(s.Points)+1)

	for i := range s.Hotspots {
		h := &s.Hotspots[i]
		if !h.Valid() {
			continue
		}
		out = append(out, hotspotInstructions(s, h)...)
	}

	out = append(out, workingRingInstructions(s.Points)...)
	return out
}

func hotspotInstructions(s Scene, h *core.Hotspot) []Instruction {
	hovered := s.HasHover && s.HoveredID == h.ID
	selected := s.HasSelection && s.SelectedID == h.ID

	color := colorPrimary
	if h.Type == core.HotspotSecondary {
		color = colorSecondary
	}

	alpha := alphaNormal
	stroke := strokeNormal
	switch {
	case hovered:
		alpha = alphaHovered
		stroke = strokeHighlighted
		color = colorHighlight
	case selected:
		alpha = alphaSelected
		stroke = strokeHighlighted
		color = colorHighlight
	}

	return []Instruction{
		{Op: OpFillPolygon, Points: h.Coordinates, Color: color, Alpha: alpha},
		{Op: OpStrokePolygon, Points: h.Coordinates, Color: color, Width: stroke},
	}
}

// workingRingInstructions renders the in-progress drawing: numbered point
// markers joined by an open polyline, only filling once the ring could
// close (3 or more points).
func workingRingInstructions(points core.Ring) []Instruction {
	if len(points) == 0 {
		return nil
	}

	out := make([]Instruction, 0, len(points)+2)
	if len(points) >= 3 {
		out = append(out, Instruction{
			Op:     OpFillPolygon,
			Points: points,
			Color:  colorPrimary,
			Alpha:  alphaNormal,
		})
	}
	if len(points) >= 2 {
		out = append(out, Instruction{
			Op:     OpPolyline,
			Points: points,
			Color:  colorPrimary,
			Width:  strokeNormal,
		})
	}
	for i, p := range points {
		out = append(out, Instruction{
			Op:     OpMarker,
			Points: core.Ring{p},
			Color:  colorPrimary,
			Label:  strconv.Itoa(i + 1),
		})
	}
	return out
}
