package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/skyloop/engine/internal/util"
	"github.com/skyloop/engine/pkg/core"
)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	t := core.AssetType(r.URL.Query().Get("type"))
	if !t.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown asset type %q", core.ErrInvalid, t))
		return
	}

	var locationID *uuid.UUID
	if raw := r.URL.Query().Get("location"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: bad location id", core.ErrInvalid))
			return
		}
		locationID = &id
	}

	assets, err := s.store.ListAssets(r.Context(), t, locationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assets)
}

// handleUploadAsset accepts a multipart form with a "file" part plus
// "type" and optional "location" fields. Content is immutable once
// stored; re-uploading means a new asset under a fresh name.
func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: parsing upload: %s", core.ErrInvalid, err))
		return
	}

	t := core.AssetType(r.FormValue("type"))
	if !t.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown asset type %q", core.ErrInvalid, t))
		return
	}

	var locationID *uuid.UUID
	if raw := r.FormValue("location"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: bad location id", core.ErrInvalid))
			return
		}
		locationID = &id
	}
	if t.LocationScoped() && locationID == nil {
		s.writeError(w, r, fmt.Errorf("%w: asset type %s requires a location", core.ErrInvalid, t))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing file part", core.ErrInvalid))
		return
	}
	defer file.Close()

	filename := util.SanitizeFilename(header.Filename)
	if filename == "" {
		s.writeError(w, r, fmt.Errorf("%w: empty filename", core.ErrInvalid))
		return
	}
	// Filenames key the access URL within a type, so collisions get a
	// unique prefix instead of overwriting.
	if _, _, err := s.store.LookupAssetFile(r.Context(), t, filename); err == nil {
		filename = util.UniqueName(filename)
	}

	dir := filepath.Join(s.assetDir, string(t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.writeError(w, r, fmt.Errorf("creating asset dir: %w", err))
		return
	}
	path := filepath.Join(dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("creating asset file: %w", err))
		return
	}
	size, err := io.Copy(dst, file)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		s.writeError(w, r, fmt.Errorf("writing asset file: %w", err))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(filename))
	}

	asset := core.Asset{
		Type:       t,
		LocationID: locationID,
		Filename:   filename,
		MimeType:   mimeType,
		SizeBytes:  size,
	}
	if err := s.store.CreateAsset(r.Context(), &asset, path); err != nil {
		os.Remove(path)
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("asset uploaded", "type", t, "filename", filename, "bytes", size)
	s.writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, path, err := s.store.LookupAssetFile(r.Context(), asset.Type, asset.Filename)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.DeleteAsset(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("removing asset file", "path", path, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleServeAssetFile serves stored media. http.ServeContent handles
// Range requests, returning 206 with Content-Range for partial reads.
func (s *Server) handleServeAssetFile(w http.ResponseWriter, r *http.Request) {
	t := core.AssetType(pathVar(r, "type"))
	if !t.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown asset type %q", core.ErrInvalid, t))
		return
	}
	filename := util.SanitizeFilename(pathVar(r, "filename"))
	if filename == "" {
		s.writeError(w, r, fmt.Errorf("%w: empty filename", core.ErrInvalid))
		return
	}

	asset, path, err := s.store.LookupAssetFile(r.Context(), t, filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, r, core.ErrNotFound)
			return
		}
		s.writeError(w, r, fmt.Errorf("opening asset file: %w", err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("stat asset file: %w", err))
		return
	}

	if asset.MimeType != "" {
		w.Header().Set("Content-Type", asset.MimeType)
	}
	http.ServeContent(w, r, filename, info.ModTime(), f)
}
