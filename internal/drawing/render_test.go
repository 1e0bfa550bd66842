package drawing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/engine/pkg/core"
)

func TestBuildInstructions_Empty(t *testing.T) {
	assert.Empty(t, BuildInstructions(Scene{}))
}

func TestBuildInstructions_HotspotFillAndStroke(t *testing.T) {
	h := primaryHotspot(core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}})
	ins := BuildInstructions(Scene{Hotspots: []core.Hotspot{h}})

	require.Len(t, ins, 2)
	assert.Equal(t, OpFillPolygon, ins[0].Op)
	assert.Equal(t, alphaNormal, ins[0].Alpha)
	assert.Equal(t, colorPrimary, ins[0].Color)
	assert.Equal(t, OpStrokePolygon, ins[1].Op)
	assert.Equal(t, strokeNormal, ins[1].Width)
}

func TestBuildInstructions_SecondaryColor(t *testing.T) {
	h := primaryHotspot(core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}})
	h.Type = core.HotspotSecondary

	ins := BuildInstructions(Scene{Hotspots: []core.Hotspot{h}})
	require.Len(t, ins, 2)
	assert.Equal(t, colorSecondary, ins[0].Color)
}

func TestBuildInstructions_HoverBeatsSelection(t *testing.T) {
	h := primaryHotspot(core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}})

	ins := BuildInstructions(Scene{
		Hotspots:     []core.Hotspot{h},
		HoveredID:    h.ID,
		HasHover:     true,
		SelectedID:   h.ID,
		HasSelection: true,
	})
	require.Len(t, ins, 2)
	assert.Equal(t, alphaHovered, ins[0].Alpha)
	assert.Equal(t, colorHighlight, ins[0].Color)
	assert.Equal(t, strokeHighlighted, ins[1].Width)
}

func TestBuildInstructions_SelectedAlpha(t *testing.T) {
	h := primaryHotspot(core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}})

	ins := BuildInstructions(Scene{
		Hotspots:     []core.Hotspot{h},
		SelectedID:   h.ID,
		HasSelection: true,
	})
	require.Len(t, ins, 2)
	assert.Equal(t, alphaSelected, ins[0].Alpha)
}

func TestBuildInstructions_SkipsDegenerateHotspots(t *testing.T) {
	h := primaryHotspot(core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}})
	assert.Empty(t, BuildInstructions(Scene{Hotspots: []core.Hotspot{h}}))
}

func TestBuildInstructions_WorkingRing_TwoPoints(t *testing.T) {
	ins := BuildInstructions(Scene{
		Points:      core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}},
		DrawingMode: true,
	})

	// Open polyline plus two numbered markers, no fill yet.
	require.Len(t, ins, 3)
	assert.Equal(t, OpPolyline, ins[0].Op)
	assert.Equal(t, OpMarker, ins[1].Op)
	assert.Equal(t, "1", ins[1].Label)
	assert.Equal(t, "2", ins[2].Label)
}

func TestBuildInstructions_WorkingRing_FillsAtThree(t *testing.T) {
	ins := BuildInstructions(Scene{
		Points:      core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}},
		DrawingMode: true,
	})

	require.NotEmpty(t, ins)
	assert.Equal(t, OpFillPolygon, ins[0].Op)

	markers := 0
	for _, in := range ins {
		if in.Op == OpMarker {
			markers++
		}
	}
	assert.Equal(t, 3, markers)
}

func TestBuildInstructions_SinglePointOnlyMarker(t *testing.T) {
	ins := BuildInstructions(Scene{
		Points:      core.Ring{{X: 0.1, Y: 0.1}},
		DrawingMode: true,
	})
	require.Len(t, ins, 1)
	assert.Equal(t, OpMarker, ins[0].Op)
}
