package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/engine/pkg/core"
)

func newTestBackend(t *testing.T) (*Backend, context.Context) {
	t.Helper()
	b := New(nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b, context.Background()
}

func seedLocation(t *testing.T, b *Backend, ctx context.Context) core.Location {
	t.Helper()
	l := core.Location{Name: "harbor", DisplayName: "The Harbor"}
	require.NoError(t, b.CreateLocation(ctx, &l))
	return l
}

func triangle() core.Ring {
	return core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.3, Y: 0.7}}
}

func TestCreateLocation_AssignsIDAndTimestamps(t *testing.T) {
	b, ctx := newTestBackend(t)

	l := seedLocation(t, b, ctx)
	assert.NotEqual(t, uuid.Nil, l.ID)
	assert.False(t, l.CreatedAt.IsZero())

	got, err := b.GetLocation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "harbor", got.Name)
}

func TestCreateLocation_RequiresName(t *testing.T) {
	b, ctx := newTestBackend(t)

	err := b.CreateLocation(ctx, &core.Location{})
	assert.ErrorIs(t, err, core.ErrInvalid)
}

func TestCreateHotspot_PrimaryGetsEmptyPlaylist(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{LocationID: loc.ID, Type: core.HotspotPrimary, Coordinates: triangle()}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	p, err := b.GetPlaylistByHotspot(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, p.IsComplete())
	assert.Nil(t, p.DiveInID)
}

func TestCreateHotspot_SecondaryHasNoPlaylist(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{
		LocationID:  loc.ID,
		Type:        core.HotspotSecondary,
		Coordinates: triangle(),
		InfoPanel:   &core.InfoPanel{Title: "Cafe"},
	}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	_, err := b.GetPlaylistByHotspot(ctx, h.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateHotspot_CenterPointIsCentroid(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{
		LocationID:  loc.ID,
		Type:        core.HotspotPrimary,
		Coordinates: core.Ring{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		CenterPoint: core.Point{X: 0.2, Y: 0.2}, // stale, must be recomputed
	}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	got, err := b.GetHotspot(ctx, h.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.CenterPoint.X, 1e-9)
	assert.InDelta(t, 0.5, got.CenterPoint.Y, 1e-9)
}

func TestUpdateHotspot_RecomputesCenter(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{LocationID: loc.ID, Type: core.HotspotPrimary, Coordinates: triangle()}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	h.Coordinates = core.Ring{{X: 0, Y: 0}, {X: 0.2, Y: 0}, {X: 0.2, Y: 0.2}, {X: 0, Y: 0.2}}
	require.NoError(t, b.UpdateHotspot(ctx, &h))

	got, err := b.GetHotspot(ctx, h.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got.CenterPoint.X, 1e-9)
	assert.InDelta(t, 0.1, got.CenterPoint.Y, 1e-9)
}

func TestCreateHotspot_RejectsDegeneratePolygon(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{
		LocationID:  loc.ID,
		Type:        core.HotspotPrimary,
		Coordinates: core.Ring{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}},
	}
	err := b.CreateHotspot(ctx, &h)
	assert.ErrorIs(t, err, core.ErrInvalid)
}

func TestDeleteHotspot_CascadesPlaylist(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{LocationID: loc.ID, Type: core.HotspotPrimary, Coordinates: triangle()}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	require.NoError(t, b.DeleteHotspot(ctx, h.ID))

	_, err := b.GetHotspot(ctx, h.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = b.GetPlaylistByHotspot(ctx, h.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteAsset_UnlinksPlaylistSlotsAndPins(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	dive := core.Asset{Type: core.AssetDiveIn, LocationID: &loc.ID, Filename: "dive.mp4", MimeType: "video/mp4"}
	require.NoError(t, b.CreateAsset(ctx, &dive, "/tmp/dive.mp4"))
	pin := core.Asset{Type: core.AssetMapPin, Filename: "pin.png", MimeType: "image/png"}
	require.NoError(t, b.CreateAsset(ctx, &pin, "/tmp/pin.png"))

	h := core.Hotspot{LocationID: loc.ID, Type: core.HotspotPrimary, Coordinates: triangle(), MapPinID: &pin.ID}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	p, err := b.GetPlaylistByHotspot(ctx, h.ID)
	require.NoError(t, err)
	p.DiveInID = &dive.ID
	require.NoError(t, b.UpdatePlaylist(ctx, p))

	require.NoError(t, b.DeleteAsset(ctx, dive.ID))
	require.NoError(t, b.DeleteAsset(ctx, pin.ID))

	p, err = b.GetPlaylistByHotspot(ctx, h.ID)
	require.NoError(t, err)
	assert.Nil(t, p.DiveInID)

	got, err := b.GetHotspot(ctx, h.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MapPinID)
}

func TestDeleteLocation_CascadesHotspotsAndDetachesAssets(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	aerial := core.Asset{Type: core.AssetAerial, LocationID: &loc.ID, Filename: "a.mp4", MimeType: "video/mp4"}
	require.NoError(t, b.CreateAsset(ctx, &aerial, "/tmp/a.mp4"))

	h := core.Hotspot{LocationID: loc.ID, Type: core.HotspotPrimary, Coordinates: triangle()}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	require.NoError(t, b.DeleteLocation(ctx, loc.ID))

	_, err := b.GetHotspot(ctx, h.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = b.GetPlaylistByHotspot(ctx, h.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := b.GetAsset(ctx, aerial.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LocationID)
}

func TestUpdatePlaylist_RejectsUnknownAsset(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)

	h := core.Hotspot{LocationID: loc.ID, Type: core.HotspotPrimary, Coordinates: triangle()}
	require.NoError(t, b.CreateHotspot(ctx, &h))

	p, err := b.GetPlaylistByHotspot(ctx, h.ID)
	require.NoError(t, err)

	ghost := uuid.New()
	p.DiveInID = &ghost
	assert.ErrorIs(t, b.UpdatePlaylist(ctx, p), core.ErrInvalid)
}

func TestListAssets_FiltersByTypeAndLocation(t *testing.T) {
	b, ctx := newTestBackend(t)
	loc := seedLocation(t, b, ctx)
	other := core.Location{Name: "downtown"}
	require.NoError(t, b.CreateLocation(ctx, &other))

	a1 := core.Asset{Type: core.AssetAerial, LocationID: &loc.ID, Filename: "a1.mp4", MimeType: "video/mp4"}
	a2 := core.Asset{Type: core.AssetAerial, LocationID: &other.ID, Filename: "a2.mp4", MimeType: "video/mp4"}
	btn := core.Asset{Type: core.AssetButton, Filename: "b.png", MimeType: "image/png"}
	for _, a := range []*core.Asset{&a1, &a2, &btn} {
		require.NoError(t, b.CreateAsset(ctx, a, ""))
	}

	got, err := b.ListAssets(ctx, core.AssetAerial, &loc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1.mp4", got[0].Filename)

	all, err := b.ListAssets(ctx, core.AssetAerial, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLookupAssetFile(t *testing.T) {
	b, ctx := newTestBackend(t)

	a := core.Asset{Type: core.AssetButton, Filename: "start.png", MimeType: "image/png"}
	require.NoError(t, b.CreateAsset(ctx, &a, "/data/assets/start.png"))

	got, path, err := b.LookupAssetFile(ctx, core.AssetButton, "start.png")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "/data/assets/start.png", path)

	_, _, err = b.LookupAssetFile(ctx, core.AssetButton, "missing.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
