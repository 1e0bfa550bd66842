package geometry

import "github.com/skyloop/engine/pkg/core"

// DisplayRect describes where the uniformly scaled video frame actually
// sits inside its container, including letterbox/pillarbox offsets.
type DisplayRect struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	Width   float64 // displayed width in container pixels
	Height  float64 // displayed height in container pixels
}

// Empty reports whether the rect has no drawable area.
func (r DisplayRect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether a container-space point falls inside the
// displayed video rectangle. Points in the letterbox bars are outside.
func (r DisplayRect) Contains(p core.ScreenPoint) bool {
	return p.X >= r.OffsetX && p.X <= r.OffsetX+r.Width &&
		p.Y >= r.OffsetY && p.Y <= r.OffsetY+r.Height
}

// FitRect computes the uniform scale-to-fit placement of natural-sized
// content inside a container: scale = min(cw/nw, ch/nh), centered.
// Zero or negative dimensions yield the zero rect, never a panic.
func FitRect(naturalW, naturalH, containerW, containerH float64) DisplayRect {
	if naturalW <= 0 || naturalH <= 0 || containerW <= 0 || containerH <= 0 {
		return DisplayRect{}
	}
	scale := containerW / naturalW
	if s := containerH / naturalH; s < scale {
		scale = s
	}
	w := naturalW * scale
	h := naturalH * scale
	return DisplayRect{
		Scale:   scale,
		OffsetX: (containerW - w) / 2,
		OffsetY: (containerH - h) / 2,
		Width:   w,
		Height:  h,
	}
}

// ToScreen projects a normalized point into container pixel space through
// the display rect.
func (r DisplayRect) ToScreen(p core.Point, naturalW, naturalH float64) core.ScreenPoint {
	return core.ScreenPoint{
		X: p.X*naturalW*r.Scale + r.OffsetX,
		Y: p.Y*naturalH*r.Scale + r.OffsetY,
	}
}

// ToNormalized converts a container-space point back to normalized video
// space. The result is only meaningful when the point is inside the rect.
func (r DisplayRect) ToNormalized(p core.ScreenPoint) core.Point {
	if r.Empty() {
		return core.Point{}
	}
	return core.Point{
		X: (p.X - r.OffsetX) / r.Width,
		Y: (p.Y - r.OffsetY) / r.Height,
	}
}

// ToPercent expresses a normalized point as a percentage of the container,
// the form pin markers are positioned with.
func (r DisplayRect) ToPercent(p core.Point, naturalW, naturalH, containerW, containerH float64) core.PercentPoint {
	if containerW <= 0 || containerH <= 0 {
		return core.PercentPoint{}
	}
	sp := r.ToScreen(p, naturalW, naturalH)
	return core.PercentPoint{
		X: sp.X / containerW * 100,
		Y: sp.Y / containerH * 100,
	}
}

// ProjectRing maps a whole normalized ring into container pixel space.
func (r DisplayRect) ProjectRing(ring core.Ring, naturalW, naturalH float64) []core.ScreenPoint {
	out := make([]core.ScreenPoint, len(ring))
	for i, p := range ring {
		out[i] = r.ToScreen(p, naturalW, naturalH)
	}
	return out
}
