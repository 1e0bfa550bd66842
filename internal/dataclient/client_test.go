package dataclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/engine/pkg/core"
)

func locationsJSON(names ...string) string {
	out := "["
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"id":%q,"name":%q,"displayName":%q}`, uuid.New(), n, n)
	}
	return out + "]"
}

func TestClient_GetLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/locations", r.URL.Path)
		fmt.Fprint(w, locationsJSON("downtown", "harbor"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	locs, err := c.GetLocations(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "downtown", locs[0].Name)
}

func TestClient_CachesUntilForceRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, locationsJSON("solo"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.GetLocations(ctx, false)
	require.NoError(t, err)
	_, err = c.GetLocations(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.GetLocations(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ConcurrentRequestsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	locID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		fmt.Fprintf(w, `[{"id":%q,"location":%q,"type":"PRIMARY","coordinates":[{"x":0.1,"y":0.1},{"x":0.5,"y":0.1},{"x":0.3,"y":0.6}],"centerPoint":{"x":0.3,"y":0.26}}]`,
			uuid.New(), locID)
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]core.Hotspot, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetHotspotsByLocation(ctx, locID, false)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < 4; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
	}
}

func TestClient_NonArrayResponseCoercedToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"surprise shape"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	locs, err := c.GetLocations(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, locs)
	assert.NotNil(t, locs)
}

func TestClient_ErrorStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetLocations(context.Background(), false)
	assert.Error(t, err)
}

func TestClient_HotspotValidityFilter(t *testing.T) {
	locID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[
			{"id":%q,"location":%q,"type":"PRIMARY","coordinates":[{"x":0.1,"y":0.1},{"x":0.5,"y":0.1},{"x":0.3,"y":0.6}],"centerPoint":{"x":0.3,"y":0.26}},
			{"id":%q,"location":%q,"type":"PRIMARY","coordinates":[{"x":0.1,"y":0.1}],"centerPoint":{"x":0.1,"y":0.1}}
		]`, uuid.New(), locID, uuid.New(), locID)
	}))
	defer srv.Close()

	c := New(srv.URL)
	hs, err := c.GetHotspotsByLocation(context.Background(), locID, false)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.GreaterOrEqual(t, len(hs[0].Coordinates), 3)
}

func TestClient_HotspotFilterFallsBackToRawSet(t *testing.T) {
	locID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"id":%q,"location":%q,"type":"PRIMARY","coordinates":[{"x":0.1,"y":0.1}],"centerPoint":{"x":0.1,"y":0.1}}]`,
			uuid.New(), locID)
	}))
	defer srv.Close()

	c := New(srv.URL)
	hs, err := c.GetHotspotsByLocation(context.Background(), locID, false)
	require.NoError(t, err)
	assert.Len(t, hs, 1)
}

func TestClient_GetPlaylistByHotspot(t *testing.T) {
	hsID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, hsID.String(), r.URL.Query().Get("hotspot"))
		fmt.Fprintf(w, `{"id":%q,"hotspot":%q}`, uuid.New(), hsID)
	}))
	defer srv.Close()

	c := New(srv.URL)
	pl, err := c.GetPlaylistByHotspot(context.Background(), hsID, false)
	require.NoError(t, err)
	assert.Equal(t, hsID, pl.HotspotID)
	assert.False(t, pl.IsComplete())
}

func TestClient_ResolveAccessURL(t *testing.T) {
	c := New("http://example.test/")

	assert.Equal(t, "http://example.test/api/assets/file/AERIAL/a.mp4",
		c.ResolveAccessURL("/api/assets/file/AERIAL/a.mp4"))
	assert.Equal(t, "http://example.test/relative.mp4", c.ResolveAccessURL("relative.mp4"))
	assert.Equal(t, "https://cdn.test/x.mp4", c.ResolveAccessURL("https://cdn.test/x.mp4"))
	assert.Equal(t, "", c.ResolveAccessURL(""))
}

func TestClient_InvalidateAll(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, locationsJSON("one"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, _ = c.GetLocations(ctx, false)
	c.InvalidateAll()
	_, _ = c.GetLocations(ctx, false)

	assert.Equal(t, int32(2), calls.Load())
}
