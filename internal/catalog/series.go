// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/ManuGH/cinegate/internal/cache"
	"github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/validate"
)

// prepareSeasons checks every nested required field and fills in missing ids.
func (s *Service) prepareSeasons(v *validate.Validator, seasons []Season) []Season {
	out := make([]Season, len(seasons))
	for i, season := range seasons {
		field := fmt.Sprintf("seasons[%d]", i)
		v.NotEmpty(field+".seasonName", season.SeasonName)
		if season.ID == "" {
			season.ID = s.newID()
		}
		eps := make([]Episode, len(season.Episodes))
		for j, ep := range season.Episodes {
			ef := fmt.Sprintf("%s.episodes[%d]", field, j)
			v.NotEmpty(ef+".title", ep.Title)
			v.NotEmpty(ef+".downloadUrl", ep.DownloadURL)
			v.NotEmpty(ef+".streamUrl", ep.StreamURL)
			v.NotEmpty(ef+".externalUrl", ep.ExternalURL)
			v.NotEmpty(ef+".fileSize", ep.FileSize)
			if ep.ID == "" {
				ep.ID = s.newID()
			}
			eps[j] = ep
		}
		season.Episodes = eps
		out[i] = season
	}
	return out
}

// seriesKeys lists the cache keys derived from a series document.
func seriesKeys(series ...Series) []string {
	var keys []string
	for _, sr := range series {
		for _, season := range sr.Seasons {
			for _, ep := range season.Episodes {
				keys = append(keys, episodeKey(ep.ID), lookupKey(ep.ExternalURL))
			}
		}
	}
	return keys
}

// CreateSeries stores a new series. Title and seasons are required.
func (s *Service) CreateSeries(ctx context.Context, in Series) (Series, error) {
	v := validate.New()
	v.NotEmpty("title", in.Title)
	if in.Seasons == nil {
		v.AddError("seasons", "value cannot be empty", nil)
	}
	seasons := s.prepareSeasons(v, in.Seasons)
	if err := v.Err(); err != nil {
		return Series{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sr := Series{
		ID:        s.newID(),
		Title:     cleanTitle(in.Title),
		Seasons:   seasons,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutSeries(ctx, sr); err != nil {
		return Series{}, fmt.Errorf("save series: %w", err)
	}
	s.cache.Delete(ctx, seriesKeys(sr)...)
	mutationsTotal.WithLabelValues("series", "create").Inc()

	s.logger.Info().
		Str("event", "catalog.series_created").
		Str(log.FieldContentID, sr.ID).
		Int("seasons", len(sr.Seasons)).
		Msg("series created")
	return sr, nil
}

func (s *Service) ListSeries(ctx context.Context, order SortOrder) ([]Series, error) {
	series, err := s.store.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	if series == nil {
		series = []Series{}
	}
	if order == SortTitle {
		c := titleCollator()
		sort.SliceStable(series, func(i, j int) bool {
			return c.CompareString(series[i].Title, series[j].Title) < 0
		})
		return series, nil
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].CreatedAt.After(series[j].CreatedAt)
	})
	return series, nil
}

func (s *Service) GetSeries(ctx context.Context, id string) (Series, error) {
	return s.store.GetSeries(ctx, id)
}

// UpdateSeries replaces the title and/or the whole season list.
func (s *Service) UpdateSeries(ctx context.Context, id string, p SeriesPatch) (Series, error) {
	if p.Title == "" && p.Seasons == nil {
		return Series{}, fmt.Errorf("no valid fields to update: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.store.GetSeries(ctx, id)
	if err != nil {
		return Series{}, err
	}
	sr := old.clone()
	if p.Title != "" {
		sr.Title = cleanTitle(p.Title)
	}
	if p.Seasons != nil {
		v := validate.New()
		sr.Seasons = s.prepareSeasons(v, p.Seasons)
		if err := v.Err(); err != nil {
			return Series{}, invalid(err)
		}
	}
	sr.UpdatedAt = s.now()

	if err := s.store.PutSeries(ctx, sr); err != nil {
		return Series{}, fmt.Errorf("save series: %w", err)
	}
	s.cache.Delete(ctx, seriesKeys(old, sr)...)
	mutationsTotal.WithLabelValues("series", "update").Inc()

	s.logger.Info().
		Str("event", "catalog.series_updated").
		Str(log.FieldContentID, id).
		Msg("series updated")
	return sr, nil
}

func (s *Service) DeleteSeries(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.store.GetSeries(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSeries(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(ctx, seriesKeys(old)...)
	mutationsTotal.WithLabelValues("series", "delete").Inc()

	s.logger.Info().
		Str("event", "catalog.series_deleted").
		Str(log.FieldContentID, id).
		Msg("series deleted")
	return nil
}

// findSeason scans every series for the season id.
func (s *Service) findSeason(ctx context.Context, id string) (Series, int, error) {
	all, err := s.store.ListSeries(ctx)
	if err != nil {
		return Series{}, 0, err
	}
	for _, sr := range all {
		for i, season := range sr.Seasons {
			if season.ID == id {
				return sr, i, nil
			}
		}
	}
	return Series{}, 0, fmt.Errorf("season %s: %w", id, ErrNotFound)
}

// findEpisode scans every series for the episode id.
func (s *Service) findEpisode(ctx context.Context, id string) (Series, int, int, error) {
	all, err := s.store.ListSeries(ctx)
	if err != nil {
		return Series{}, 0, 0, err
	}
	for _, sr := range all {
		for i, season := range sr.Seasons {
			for j, ep := range season.Episodes {
				if ep.ID == id {
					return sr, i, j, nil
				}
			}
		}
	}
	return Series{}, 0, 0, fmt.Errorf("episode %s: %w", id, ErrNotFound)
}

func episodeRef(sr Series, si, ei int) EpisodeRef {
	season := sr.Seasons[si]
	return EpisodeRef{
		SeriesID:    sr.ID,
		SeriesTitle: sr.Title,
		SeasonID:    season.ID,
		SeasonName:  season.SeasonName,
		Episode:     season.Episodes[ei],
	}
}

func (s *Service) GetSeason(ctx context.Context, id string) (SeasonRef, error) {
	sr, i, err := s.findSeason(ctx, id)
	if err != nil {
		return SeasonRef{}, err
	}
	return SeasonRef{SeriesID: sr.ID, SeriesTitle: sr.Title, Season: sr.Seasons[i]}, nil
}

// GetEpisode resolves an episode with its series and season context.
func (s *Service) GetEpisode(ctx context.Context, id string) (EpisodeRef, error) {
	if ref, ok := cache.GetJSON[EpisodeRef](ctx, s.cache, episodeKey(id)); ok {
		return ref, nil
	}
	sr, si, ei, err := s.findEpisode(ctx, id)
	if err != nil {
		return EpisodeRef{}, err
	}
	ref := episodeRef(sr, si, ei)
	cache.SetJSON(ctx, s.cache, episodeKey(id), ref, s.cacheTTL)
	return ref, nil
}

// EpisodeDownloadURL resolves the download link of a nested episode.
func (s *Service) EpisodeDownloadURL(ctx context.Context, id string) (Link, error) {
	ref, err := s.GetEpisode(ctx, id)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: ref.Episode.DownloadURL, Title: ref.FullTitle()}, nil
}

// UpdateEpisode applies the non-empty fields of p to a nested episode.
func (s *Service) UpdateEpisode(ctx context.Context, id string, p EpisodePatch) (EpisodeRef, error) {
	if p.empty() {
		return EpisodeRef{}, fmt.Errorf("no valid fields to update: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, si, ei, err := s.findEpisode(ctx, id)
	if err != nil {
		return EpisodeRef{}, err
	}
	sr := old.clone()
	ep := &sr.Seasons[si].Episodes[ei]
	if p.Title != "" {
		ep.Title = cleanTitle(p.Title)
	}
	if p.DownloadURL != "" {
		ep.DownloadURL = p.DownloadURL
	}
	if p.StreamURL != "" {
		ep.StreamURL = p.StreamURL
	}
	if p.ExternalURL != "" {
		ep.ExternalURL = p.ExternalURL
	}
	if p.FileSize != "" {
		ep.FileSize = p.FileSize
	}
	sr.UpdatedAt = s.now()

	if err := s.store.PutSeries(ctx, sr); err != nil {
		return EpisodeRef{}, fmt.Errorf("save series: %w", err)
	}
	s.cache.Delete(ctx, seriesKeys(old, sr)...)
	mutationsTotal.WithLabelValues("episode", "update").Inc()

	s.logger.Info().
		Str("event", "catalog.episode_updated").
		Str(log.FieldContentID, id).
		Str("series_id", sr.ID).
		Msg("episode updated")
	return episodeRef(sr, si, ei), nil
}

// DeleteEpisode removes a nested episode from its season.
func (s *Service) DeleteEpisode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, si, ei, err := s.findEpisode(ctx, id)
	if err != nil {
		return err
	}
	sr := old.clone()
	eps := sr.Seasons[si].Episodes
	sr.Seasons[si].Episodes = append(eps[:ei:ei], eps[ei+1:]...)
	sr.UpdatedAt = s.now()

	if err := s.store.PutSeries(ctx, sr); err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	s.cache.Delete(ctx, seriesKeys(old)...)
	mutationsTotal.WithLabelValues("episode", "delete").Inc()

	s.logger.Info().
		Str("event", "catalog.episode_deleted").
		Str(log.FieldContentID, id).
		Str("series_id", sr.ID).
		Msg("episode deleted")
	return nil
}
