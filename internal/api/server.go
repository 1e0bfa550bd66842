// Package api exposes the CRUD surface of the experience: locations,
// assets, hotspots and playlists, plus range-capable file serving for
// uploaded media.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/skyloop/engine/internal/store"
	"github.com/skyloop/engine/pkg/core"
)

const defaultMaxUploadBytes = 512 << 20

// Dependencies contains everything the server needs.
type Dependencies struct {
	Store    store.Backend
	Logger   *slog.Logger
	AssetDir string
	// MaxUploadBytes bounds a single asset upload. Zero means the default.
	MaxUploadBytes int64
}

// Server routes the HTTP API.
type Server struct {
	router    *mux.Router
	store     store.Backend
	logger    *slog.Logger
	assetDir  string
	maxUpload int64
}

// NewServer builds the server and registers all routes.
func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	s := &Server{
		router:    mux.NewRouter(),
		store:     deps.Store,
		logger:    log,
		assetDir:  deps.AssetDir,
		maxUpload: maxUpload,
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router.PathPrefix("/api").Subrouter()

	r.HandleFunc("/locations", s.handleListLocations).Methods(http.MethodGet)
	r.HandleFunc("/locations", s.handleCreateLocation).Methods(http.MethodPost)
	r.HandleFunc("/locations/{id}", s.handleGetLocation).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}", s.handleUpdateLocation).Methods(http.MethodPut)
	r.HandleFunc("/locations/{id}", s.handleDeleteLocation).Methods(http.MethodDelete)

	r.HandleFunc("/assets", s.handleListAssets).Methods(http.MethodGet)
	r.HandleFunc("/assets", s.handleUploadAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}", s.handleDeleteAsset).Methods(http.MethodDelete)
	r.HandleFunc("/assets/file/{type}/{filename}", s.handleServeAssetFile).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/hotspots", s.handleListHotspots).Methods(http.MethodGet)
	r.HandleFunc("/hotspots", s.handleCreateHotspot).Methods(http.MethodPost)
	r.HandleFunc("/hotspots/{id}", s.handleGetHotspot).Methods(http.MethodGet)
	r.HandleFunc("/hotspots/{id}", s.handleUpdateHotspot).Methods(http.MethodPut)
	r.HandleFunc("/hotspots/{id}", s.handleDeleteHotspot).Methods(http.MethodDelete)

	r.HandleFunc("/playlists", s.handleGetPlaylistByHotspot).Methods(http.MethodGet)
	r.HandleFunc("/playlists/{id}", s.handleUpdatePlaylist).Methods(http.MethodPut)

	s.router.HandleFunc("/healthcheck", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, core.ErrInvalid
	}
	return id, nil
}
