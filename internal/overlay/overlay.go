package overlay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skyloop/engine/internal/geometry"
	"github.com/skyloop/engine/pkg/core"
)

// defaultDebounce collapses bursts of layout events into one projection
// update. Metadata/canplay/resize events tend to arrive in clusters.
const defaultDebounce = 100 * time.Millisecond

// Layout describes the video element's current geometry as reported by
// the playback surface.
type Layout struct {
	NaturalWidth    float64
	NaturalHeight   float64
	ContainerWidth  float64
	ContainerHeight float64
}

// ProjectedHotspot is one hotspot mapped into container pixel space.
type ProjectedHotspot struct {
	Hotspot core.Hotspot
	Polygon []core.ScreenPoint
	Pin     core.PercentPoint
}

// Projection is the full overlay state for one layout.
type Projection struct {
	Rect     geometry.DisplayRect
	Hotspots []ProjectedHotspot
}

// Projector re-projects a location's hotspots onto the displayed video
// rectangle whenever layout changes, debouncing event bursts and guarding
// against re-entrant recomputation triggered by its own updates.
type Projector struct {
	mu sync.Mutex

	layout   Layout
	hotspots []core.Hotspot
	current  Projection

	debounce    time.Duration
	timer       *time.Timer
	recomputing bool
	closed      bool

	// onUpdate fires after each recomputation, outside the lock.
	onUpdate func(Projection)
}

// NewProjector creates a projector. onUpdate may be nil.
func NewProjector(onUpdate func(Projection)) *Projector {
	return &Projector{
		debounce: defaultDebounce,
		onUpdate: onUpdate,
	}
}

// SetHotspots replaces the visible hotspot set (location change or reload)
// and recomputes immediately.
func (p *Projector) SetHotspots(hotspots []core.Hotspot) {
	p.mu.Lock()
	valid := make([]core.Hotspot, 0, len(hotspots))
	for _, h := range hotspots {
		if h.Valid() {
			valid = append(valid, h)
		}
	}
	p.hotspots = valid
	p.mu.Unlock()
	p.recompute()
}

// Invalidate schedules a recomputation for the given layout. Bursts inside
// the debounce window collapse into a single update.
func (p *Projector) Invalidate(l Layout) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.layout = l
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, p.recompute)
	p.mu.Unlock()
}

// InvalidateNow recomputes synchronously, bypassing the debounce. Used for
// the initial projection where a 100ms delay would flash unpositioned pins.
func (p *Projector) InvalidateNow(l Layout) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.layout = l
	p.mu.Unlock()
	p.recompute()
}

// Projection returns the most recently computed projection.
func (p *Projector) Projection() Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// HitTest maps a container-space pointer position to the topmost hotspot
// under it. Pointer positions outside the displayed video rectangle miss,
// even when nominally inside the overlay container.
func (p *Projector) HitTest(sp core.ScreenPoint) *core.Hotspot {
	p.mu.Lock()
	defer p.mu.Unlock()

	rect := p.current.Rect
	if rect.Empty() || !rect.Contains(sp) {
		return nil
	}
	norm := rect.ToNormalized(sp)
	for i := len(p.hotspots) - 1; i >= 0; i-- {
		h := &p.hotspots[i]
		if geometry.PointInPolygon(norm, h.Coordinates) {
			return h
		}
	}
	return nil
}

// Close stops pending timers; subsequent invalidations are ignored.
func (p *Projector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Projector) recompute() {
	p.mu.Lock()
	if p.closed || p.recomputing {
		// A recomputation may mutate the DOM and echo back another layout
		// event; dropping the re-entrant call breaks the feedback loop.
		p.mu.Unlock()
		return
	}
	p.recomputing = true

	l := p.layout
	rect := geometry.FitRect(l.NaturalWidth, l.NaturalHeight, l.ContainerWidth, l.ContainerHeight)

	proj := Projection{Rect: rect}
	if !rect.Empty() {
		proj.Hotspots = make([]ProjectedHotspot, 0, len(p.hotspots))
		for _, h := range p.hotspots {
			proj.Hotspots = append(proj.Hotspots, ProjectedHotspot{
				Hotspot: h,
				Polygon: rect.ProjectRing(h.Coordinates, l.NaturalWidth, l.NaturalHeight),
				Pin:     rect.ToPercent(h.CenterPoint, l.NaturalWidth, l.NaturalHeight, l.ContainerWidth, l.ContainerHeight),
			})
		}
	}
	p.current = proj
	cb := p.onUpdate
	p.mu.Unlock()

	// recomputing stays set through the callback: an onUpdate that
	// synchronously calls InvalidateNow would otherwise recurse unbounded.
	if cb != nil {
		cb(proj)
	}

	p.mu.Lock()
	p.recomputing = false
	p.mu.Unlock()
}

// FindByID returns the projected hotspot with the given ID, or nil.
func (pr Projection) FindByID(id uuid.UUID) *ProjectedHotspot {
	for i := range pr.Hotspots {
		if pr.Hotspots[i].Hotspot.ID == id {
			return &pr.Hotspots[i]
		}
	}
	return nil
}
