package drawing

import (
	"math"
	"sync"
	"time"

	"github.com/skyloop/engine/internal/geometry"
	"github.com/skyloop/engine/pkg/core"
)

const (
	// closeThreshold is the normalized distance to the first point within
	// which a click closes the loop instead of adding a vertex.
	closeThreshold = 0.02

	// hoverInterval is the minimum time between hover evaluations.
	hoverInterval = 25 * time.Millisecond
)

// AddResult reports what an AddPoint call did.
type AddResult int

const (
	// PointAdded means the point was appended to the working ring.
	PointAdded AddResult = iota
	// CloseLoopSignaled means the click landed on the first point and the
	// caller should finish the drawing instead.
	CloseLoopSignaled
)

// Engine captures freehand polygon authoring state for the admin canvas.
// It owns only geometry; persistence of the finished ring is the caller's
// concern. Not safe for use from multiple goroutines without the internal
// lock, which all exported methods take.
type Engine struct {
	mu sync.Mutex

	points        core.Ring
	drawingMode   bool
	editingPoints bool

	hotspots []core.Hotspot
	hovered  *core.Hotspot
	selected *core.Hotspot

	lastHoverEval time.Time
	now           func() time.Time
}

// NewEngine creates a drawing engine over the given persisted hotspots.
func NewEngine(hotspots []core.Hotspot) *Engine {
	return &Engine{
		hotspots: hotspots,
		now:      time.Now,
	}
}

// SetHotspots replaces the persisted hotspot set, e.g. after a reload.
func (e *Engine) SetHotspots(hotspots []core.Hotspot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hotspots = hotspots
	e.hovered = nil
	e.selected = nil
}

// StartDrawing enters drawing mode with an empty working ring.
func (e *Engine) StartDrawing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.points = nil
	e.drawingMode = true
	e.hovered = nil
}

// Drawing reports whether the engine is in drawing mode.
func (e *Engine) Drawing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drawingMode
}

// SetEditingPoints toggles point-editing mode for the selected hotspot.
func (e *Engine) SetEditingPoints(editing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editingPoints = editing
}

// Points returns a copy of the working ring.
func (e *Engine) Points() core.Ring {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(core.Ring, len(e.points))
	copy(out, e.points)
	return out
}

// AddPoint appends p to the working ring, unless at least two points exist
// and p falls within closeThreshold of the first, which signals that the
// loop should be closed instead.
func (e *Engine) AddPoint(p core.Point) AddResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.points) >= 2 && distance(p, e.points[0]) < closeThreshold {
		return CloseLoopSignaled
	}
	e.points = append(e.points, p)
	return PointAdded
}

// UndoLastPoint removes the most recently added point. No-op when empty.
func (e *Engine) UndoLastPoint() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.points) == 0 {
		return
	}
	e.points = e.points[:len(e.points)-1]
}

// FinishDrawing closes the working ring and returns it. Requires at least
// three points; otherwise it is a no-op returning ok=false and the engine
// stays in drawing mode. The returned ring always ends with a copy of its
// first point.
func (e *Engine) FinishDrawing() (core.Ring, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.points) < 3 {
		return nil, false
	}

	ring := make(core.Ring, len(e.points))
	copy(ring, e.points)
	if ring[len(ring)-1] != ring[0] {
		ring = append(ring, ring[0])
	}

	e.points = nil
	e.drawingMode = false
	return ring, true
}

// CancelDrawing discards the working ring and exits drawing mode.
func (e *Engine) CancelDrawing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.points = nil
	e.drawingMode = false
}

// HitTest returns the topmost hotspot containing the normalized point.
// Iteration runs in reverse creation order so newer hotspots shadow older
// overlapping ones. Returns nil when no hotspot contains the point.
func (e *Engine) HitTest(p core.Point) *core.Hotspot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hitTestLocked(p)
}

func (e *Engine) hitTestLocked(p core.Point) *core.Hotspot {
	for i := len(e.hotspots) - 1; i >= 0; i-- {
		h := &e.hotspots[i]
		if geometry.PointInPolygon(p, h.Coordinates) {
			return h
		}
	}
	return nil
}

// EvaluateHover runs throttled hover hit-testing. It returns the hovered
// hotspot and whether the hover target changed since the last evaluation;
// callers only redraw on change. Calls inside the throttle window report
// no change without re-evaluating, which keeps pointer-move storms cheap.
func (e *Engine) EvaluateHover(p core.Point) (*core.Hotspot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.drawingMode {
		return nil, false
	}

	now := e.now()
	if now.Sub(e.lastHoverEval) < hoverInterval {
		return e.hovered, false
	}
	e.lastHoverEval = now

	hit := e.hitTestLocked(p)
	if sameHotspot(hit, e.hovered) {
		return e.hovered, false
	}
	e.hovered = hit
	return hit, true
}

// Select marks a hotspot as selected for highlight rendering. Passing nil
// clears the selection.
func (e *Engine) Select(h *core.Hotspot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = h
}

// Snapshot returns the current render inputs as one consistent view.
func (e *Engine) Snapshot() Scene {
	e.mu.Lock()
	defer e.mu.Unlock()

	pts := make(core.Ring, len(e.points))
	copy(pts, e.points)
	hs := make([]core.Hotspot, len(e.hotspots))
	copy(hs, e.hotspots)

	s := Scene{
		Points:      pts,
		Hotspots:    hs,
		DrawingMode: e.drawingMode,
	}
	if e.hovered != nil {
		s.HoveredID = e.hovered.ID
		s.HasHover = true
	}
	if e.selected != nil {
		s.SelectedID = e.selected.ID
		s.HasSelection = true
	}
	return s
}

func sameHotspot(a, b *core.Hotspot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func distance(a, b core.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
