// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/cinegate/internal/catalog"
)

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	sr, err := s.deps.Catalog.GetSeries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err, "Series not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"series": sr})
}

func (s *Server) handleGetSeason(w http.ResponseWriter, r *http.Request) {
	ref, err := s.deps.Catalog.GetSeason(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err, "Season not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{
		"season":      ref.Season,
		"seriesId":    ref.SeriesID,
		"seriesTitle": ref.SeriesTitle,
	})
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	ref, err := s.deps.Catalog.GetEpisode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err, "Episode not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{
		"episode":     ref.Episode,
		"seriesId":    ref.SeriesID,
		"seriesTitle": ref.SeriesTitle,
		"seasonId":    ref.SeasonID,
		"seasonName":  ref.SeasonName,
	})
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.deps.Catalog.ListSeries(r.Context(), sortOrder(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"series": series, "count": len(series)})
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var in catalog.Series
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sr, err := s.deps.Catalog.CreateSeries(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"message": "Series created successfully", "series": sr})
}

func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	var p catalog.SeriesPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	sr, err := s.deps.Catalog.UpdateSeries(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeLookupError(w, r, err, "Series not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Series updated successfully", "series": sr})
}

func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteSeries(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLookupError(w, r, err, "Series not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Series deleted successfully"})
}

func (s *Server) handleUpdateEpisode(w http.ResponseWriter, r *http.Request) {
	var p catalog.EpisodePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := s.deps.Catalog.UpdateEpisode(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeLookupError(w, r, err, "Episode not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Episode updated successfully", "episode": ref.Episode})
}

func (s *Server) handleDeleteEpisode(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteEpisode(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLookupError(w, r, err, "Episode not found")
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Episode deleted successfully"})
}
