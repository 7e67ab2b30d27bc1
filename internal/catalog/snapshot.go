// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/cinegate/internal/validate"
)

const snapshotVersion = 1

// Snapshot is the portable export format. Users are never exported.
type Snapshot struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Movies     []Movie   `json:"movies"`
	Series     []Series  `json:"series"`
}

// ImportResult counts what Import stored and what it skipped.
type ImportResult struct {
	Movies  int `json:"movies"`
	Series  int `json:"series"`
	Skipped int `json:"skipped"`
}

func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	movies, err := s.ListMovies(ctx, SortNewest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export movies: %w", err)
	}
	series, err := s.ListSeries(ctx, SortNewest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export series: %w", err)
	}
	return Snapshot{
		Version:    snapshotVersion,
		ExportedAt: s.now(),
		Movies:     movies,
		Series:     series,
	}, nil
}

// Import upserts every record of snap by id. Invalid movies and movies whose
// externalUrl belongs to another record are skipped and logged.
func (s *Service) Import(ctx context.Context, snap Snapshot) (ImportResult, error) {
	if snap.Version != snapshotVersion {
		return ImportResult{}, fmt.Errorf("unsupported snapshot version %d: %w", snap.Version, ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res ImportResult
	now := s.now()
	for _, m := range snap.Movies {
		v := validate.New()
		v.NotEmpty("title", m.Title)
		v.NotEmpty("downloadUrl", m.DownloadURL)
		v.NotEmpty("streamUrl", m.StreamURL)
		v.NotEmpty("externalUrl", m.ExternalURL)
		if err := v.Err(); err != nil {
			res.Skipped++
			s.logger.Warn().Err(err).Str("event", "catalog.import_skipped").Str("title", m.Title).Msg("skipping invalid movie")
			continue
		}
		if m.ID == "" {
			m.ID = s.newID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}
		if err := s.store.PutMovie(ctx, m); err != nil {
			if errors.Is(err, ErrConflict) {
				res.Skipped++
				s.logger.Warn().Err(err).Str("event", "catalog.import_skipped").Str("title", m.Title).Msg("skipping conflicting movie")
				continue
			}
			return res, fmt.Errorf("import movie %s: %w", m.ID, err)
		}
		res.Movies++
	}

	for _, sr := range snap.Series {
		v := validate.New()
		v.NotEmpty("title", sr.Title)
		sr.Seasons = s.prepareSeasons(v, sr.Seasons)
		if err := v.Err(); err != nil {
			res.Skipped++
			s.logger.Warn().Err(err).Str("event", "catalog.import_skipped").Str("title", sr.Title).Msg("skipping invalid series")
			continue
		}
		if sr.ID == "" {
			sr.ID = s.newID()
		}
		if sr.CreatedAt.IsZero() {
			sr.CreatedAt = now
		}
		if sr.UpdatedAt.IsZero() {
			sr.UpdatedAt = sr.CreatedAt
		}
		if err := s.store.PutSeries(ctx, sr); err != nil {
			return res, fmt.Errorf("import series %s: %w", sr.ID, err)
		}
		res.Series++
	}

	s.cache.Clear(ctx)
	mutationsTotal.WithLabelValues("catalog", "import").Inc()
	s.logger.Info().
		Str("event", "catalog.imported").
		Int("movies", res.Movies).
		Int("series", res.Series).
		Int("skipped", res.Skipped).
		Msg("catalog imported")
	return res, nil
}

// WriteSnapshot atomically writes snap as indented JSON.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending snapshot file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace snapshot: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}
