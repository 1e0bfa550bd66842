package bytecache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WarmCachesFullResponses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "video/mp4")
		fmt.Fprint(w, "full video body")
	}))
	defer srv.Close()

	s := NewStore("v1")
	ctx := context.Background()

	require.NoError(t, s.Warm(ctx, srv.URL+"/clip.mp4"))
	require.NoError(t, s.Warm(ctx, srv.URL+"/clip.mp4"))
	assert.Equal(t, int32(1), hits.Load())

	body, contentType, ok := s.Get(srv.URL + "/clip.mp4")
	require.True(t, ok)
	assert.Equal(t, "full video body", string(body))
	assert.Equal(t, "video/mp4", contentType)
}

func TestStore_RejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-3/16")
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, "0123")
	}))
	defer srv.Close()

	s := NewStore("v1")
	err := s.Warm(context.Background(), srv.URL+"/partial.mp4")
	assert.Error(t, err)
	assert.False(t, s.Contains(srv.URL+"/partial.mp4"))
}

func TestStore_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewStore("v1")
	err := s.Warm(context.Background(), srv.URL+"/missing.mp4")
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestStore_EvictsOldestWhenFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0123456789") // 10 bytes each
	}))
	defer srv.Close()

	s := NewStore("v1", WithMaxBytes(25))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Warm(ctx, fmt.Sprintf("%s/clip%d.mp4", srv.URL, i)))
	}

	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Contains(srv.URL+"/clip0.mp4"))
	assert.True(t, s.Contains(srv.URL+"/clip2.mp4"))
	assert.LessOrEqual(t, s.TotalBytes(), int64(25))
}

func TestStore_Clear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	s := NewStore("v1")
	require.NoError(t, s.Warm(context.Background(), srv.URL+"/a"))
	require.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.TotalBytes())
}
