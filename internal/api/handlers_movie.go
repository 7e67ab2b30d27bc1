// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/cinegate/internal/catalog"
)

// writeLookupError is writeError with a friendlier message for missing records.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeFail(w, http.StatusNotFound, notFound, envelope{"code": "not_found"})
		return
	}
	writeError(w, r, err)
}

func sortOrder(r *http.Request) catalog.SortOrder {
	if r.URL.Query().Get("sort") == string(catalog.SortTitle) {
		return catalog.SortTitle
	}
	return catalog.SortNewest
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	externalURL := r.URL.Query().Get("externalUrl")
	if externalURL == "" {
		writeFail(w, http.StatusBadRequest, "externalUrl query parameter is required", nil)
		return
	}
	res, err := s.deps.Catalog.LookupExternal(r.Context(), externalURL)
	if err != nil {
		writeLookupError(w, r, err, "Content not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"movie": res.Item, "contentType": res.ContentType})
}

func (s *Server) handleMovieDownload(w http.ResponseWriter, r *http.Request) {
	link, err := s.deps.Catalog.DownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err, "Movie not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"downloadUrl": link.URL, "title": link.Title})
}

func (s *Server) handleMovieStream(w http.ResponseWriter, r *http.Request) {
	link, err := s.deps.Catalog.StreamURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err, "Movie not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"streamUrl": link.URL, "title": link.Title})
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var in catalog.Movie
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.deps.Catalog.CreateMovie(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"message": "Movie uploaded successfully", "movie": m})
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.deps.Catalog.ListMovies(r.Context(), sortOrder(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"movies": movies, "count": len(movies)})
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	var p catalog.MoviePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.deps.Catalog.UpdateMovie(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeLookupError(w, r, err, "Movie not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Movie updated successfully", "movie": m})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteMovie(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLookupError(w, r, err, "Movie not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Movie deleted successfully"})
}
