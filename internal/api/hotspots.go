package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/skyloop/engine/pkg/core"
)

func (s *Server) handleListHotspots(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("location")
	if raw == "" {
		s.writeError(w, r, fmt.Errorf("%w: location query parameter required", core.ErrInvalid))
		return
	}
	locationID, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: bad location id", core.ErrInvalid))
		return
	}

	hotspots, err := s.store.ListHotspotsByLocation(r.Context(), locationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hotspots)
}

func (s *Server) handleGetHotspot(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.store.GetHotspot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleCreateHotspot(w http.ResponseWriter, r *http.Request) {
	var h core.Hotspot
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", core.ErrInvalid, err))
		return
	}
	if h.Type != core.HotspotPrimary && h.Type != core.HotspotSecondary {
		s.writeError(w, r, fmt.Errorf("%w: unknown hotspot type %q", core.ErrInvalid, h.Type))
		return
	}
	if err := s.store.CreateHotspot(r.Context(), &h); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleUpdateHotspot(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var h core.Hotspot
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", core.ErrInvalid, err))
		return
	}
	h.ID = id
	if err := s.store.UpdateHotspot(r.Context(), &h); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHotspot(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteHotspot(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPlaylistByHotspot(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("hotspot")
	if raw == "" {
		s.writeError(w, r, fmt.Errorf("%w: hotspot query parameter required", core.ErrInvalid))
		return
	}
	hotspotID, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: bad hotspot id", core.ErrInvalid))
		return
	}

	p, err := s.store.GetPlaylistByHotspot(r.Context(), hotspotID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var p core.Playlist
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", core.ErrInvalid, err))
		return
	}
	p.ID = id
	if err := s.store.UpdatePlaylist(r.Context(), &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}
