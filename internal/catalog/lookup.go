// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/cinegate/internal/cache"
)

// normalizeExternalURL undoes one extra level of percent-encoding that some
// embedding sites apply before passing the page URL along.
func normalizeExternalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "%") {
		return raw
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// LookupExternal resolves the page URL of an embedding site to content.
// Movies win over episodes; an episode is flattened into a movie-shaped Item.
func (s *Service) LookupExternal(ctx context.Context, externalURL string) (Lookup, error) {
	externalURL = normalizeExternalURL(externalURL)
	if externalURL == "" {
		return Lookup{}, fmt.Errorf("externalUrl query parameter is required: %w", ErrValidation)
	}
	if l, ok := cache.GetJSON[Lookup](ctx, s.cache, lookupKey(externalURL)); ok {
		return l, nil
	}

	l, err := s.lookup(ctx, externalURL)
	if err != nil {
		return Lookup{}, err
	}
	cache.SetJSON(ctx, s.cache, lookupKey(externalURL), l, s.cacheTTL)
	return l, nil
}

func (s *Service) lookup(ctx context.Context, externalURL string) (Lookup, error) {
	m, err := s.store.FindMovieByExternalURL(ctx, externalURL)
	if err == nil {
		return Lookup{ContentType: ContentMovie, Item: movieItem(m)}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Lookup{}, err
	}

	all, err := s.store.ListSeries(ctx)
	if err != nil {
		return Lookup{}, err
	}
	for _, sr := range all {
		for si, season := range sr.Seasons {
			for ei, ep := range season.Episodes {
				if ep.ExternalURL == externalURL {
					return Lookup{ContentType: ContentSeries, Item: episodeItem(sr, si, ei)}, nil
				}
			}
		}
	}
	return Lookup{}, fmt.Errorf("content not found: %w", ErrNotFound)
}

func movieItem(m Movie) Item {
	return Item{
		ID:          m.ID,
		Title:       m.Title,
		DownloadURL: m.DownloadURL,
		StreamURL:   m.StreamURL,
		ExternalURL: m.ExternalURL,
		FileSize:    m.FileSize,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func episodeItem(sr Series, si, ei int) Item {
	ref := episodeRef(sr, si, ei)
	ep := ref.Episode
	return Item{
		ID:          ep.ID,
		Title:       ref.FullTitle(),
		SeriesTitle: sr.Title,
		SeasonName:  ref.SeasonName,
		EpisodeName: ep.Title,
		DownloadURL: ep.DownloadURL,
		StreamURL:   ep.StreamURL,
		ExternalURL: ep.ExternalURL,
		FileSize:    ep.FileSize,
		CreatedAt:   sr.CreatedAt,
		UpdatedAt:   sr.UpdatedAt,
		SeriesID:    sr.ID,
		SeasonID:    ref.SeasonID,
	}
}
