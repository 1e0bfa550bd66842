package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/skyloop/engine/pkg/core"
)

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.store.GetLocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc core.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", core.ErrInvalid, err))
		return
	}
	if err := s.store.CreateLocation(r.Context(), &loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var loc core.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", core.ErrInvalid, err))
		return
	}
	loc.ID = id
	if err := s.store.UpdateLocation(r.Context(), &loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteLocation(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
