// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/cinegate/internal/cache"
	"github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/validate"
)

const defaultCacheTTL = 5 * time.Minute

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cinegate",
	Subsystem: "catalog",
	Name:      "mutations_total",
	Help:      "Catalog writes by entity and operation",
}, []string{"entity", "op"})

// Service implements the catalog operations on top of a Store. Reads used
// by the gated actions go through the lookup cache; every write invalidates
// the keys it touches.
type Service struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger

	// writes are serialized so uniqueness checks and invalidation agree
	mu sync.Mutex
}

type Option func(*Service)

// WithCache routes lookups through c with the given TTL.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cache:    cache.NewNoOpCache(),
		cacheTTL: defaultCacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   log.WithComponent("catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the backing store for health checks and auth.
func (s *Service) Store() Store { return s.store }

func movieKey(id string) string   { return "movie:" + id }
func lookupKey(url string) string { return "ext:" + url }
func episodeKey(id string) string { return "episode:" + id }

func cleanTitle(t string) string {
	return norm.NFC.String(strings.TrimSpace(t))
}

// titleCollator orders titles case- and accent-insensitively.
func titleCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func (s *Service) CreateMovie(ctx context.Context, in Movie) (Movie, error) {
	v := validate.New()
	v.NotEmpty("title", in.Title)
	v.NotEmpty("downloadUrl", in.DownloadURL)
	v.NotEmpty("streamUrl", in.StreamURL)
	v.NotEmpty("externalUrl", in.ExternalURL)
	v.NotEmpty("fileSize", in.FileSize)
	if err := v.Err(); err != nil {
		return Movie{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.FindMovieByExternalURL(ctx, in.ExternalURL); err == nil {
		return Movie{}, fmt.Errorf("movie with this external URL already exists: %w", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Movie{}, err
	}

	now := s.now()
	m := Movie{
		ID:          s.newID(),
		Title:       cleanTitle(in.Title),
		DownloadURL: in.DownloadURL,
		StreamURL:   in.StreamURL,
		ExternalURL: in.ExternalURL,
		FileSize:    in.FileSize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutMovie(ctx, m); err != nil {
		return Movie{}, fmt.Errorf("save movie: %w", err)
	}
	// a cached episode lookup for the same URL is now shadowed by the movie
	s.cache.Delete(ctx, lookupKey(m.ExternalURL))
	mutationsTotal.WithLabelValues("movie", "create").Inc()

	s.logger.Info().
		Str("event", "catalog.movie_created").
		Str(log.FieldContentID, m.ID).
		Str("title", m.Title).
		Msg("movie created")
	return m, nil
}

// ListMovies returns all movies, newest first unless order is SortTitle.
func (s *Service) ListMovies(ctx context.Context, order SortOrder) ([]Movie, error) {
	movies, err := s.store.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []Movie{}
	}
	if order == SortTitle {
		c := titleCollator()
		sort.SliceStable(movies, func(i, j int) bool {
			return c.CompareString(movies[i].Title, movies[j].Title) < 0
		})
		return movies, nil
	}
	sort.SliceStable(movies, func(i, j int) bool {
		return movies[i].CreatedAt.After(movies[j].CreatedAt)
	})
	return movies, nil
}

func (s *Service) GetMovie(ctx context.Context, id string) (Movie, error) {
	if m, ok := cache.GetJSON[Movie](ctx, s.cache, movieKey(id)); ok {
		return m, nil
	}
	m, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return Movie{}, err
	}
	cache.SetJSON(ctx, s.cache, movieKey(id), m, s.cacheTTL)
	return m, nil
}

// UpdateMovie applies the non-empty fields of p.
func (s *Service) UpdateMovie(ctx context.Context, id string, p MoviePatch) (Movie, error) {
	if p.empty() {
		return Movie{}, fmt.Errorf("no valid fields to update: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return Movie{}, err
	}
	oldURL := m.ExternalURL

	if p.ExternalURL != "" && p.ExternalURL != m.ExternalURL {
		other, err := s.store.FindMovieByExternalURL(ctx, p.ExternalURL)
		switch {
		case err == nil && other.ID != id:
			return Movie{}, fmt.Errorf("movie with this external URL already exists: %w", ErrConflict)
		case err != nil && !errors.Is(err, ErrNotFound):
			return Movie{}, err
		}
		m.ExternalURL = p.ExternalURL
	}
	if p.Title != "" {
		m.Title = cleanTitle(p.Title)
	}
	if p.DownloadURL != "" {
		m.DownloadURL = p.DownloadURL
	}
	if p.StreamURL != "" {
		m.StreamURL = p.StreamURL
	}
	m.UpdatedAt = s.now()

	if err := s.store.PutMovie(ctx, m); err != nil {
		return Movie{}, fmt.Errorf("save movie: %w", err)
	}
	s.cache.Delete(ctx, movieKey(id), lookupKey(oldURL), lookupKey(m.ExternalURL))
	mutationsTotal.WithLabelValues("movie", "update").Inc()

	s.logger.Info().
		Str("event", "catalog.movie_updated").
		Str(log.FieldContentID, id).
		Msg("movie updated")
	return m, nil
}

func (s *Service) DeleteMovie(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMovie(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(ctx, movieKey(id), lookupKey(m.ExternalURL))
	mutationsTotal.WithLabelValues("movie", "delete").Inc()

	s.logger.Info().
		Str("event", "catalog.movie_deleted").
		Str(log.FieldContentID, id).
		Msg("movie deleted")
	return nil
}

// DownloadURL resolves the download link of a movie.
func (s *Service) DownloadURL(ctx context.Context, id string) (Link, error) {
	m, err := s.GetMovie(ctx, id)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: m.DownloadURL, Title: m.Title}, nil
}

// StreamURL resolves the stream link of a movie.
func (s *Service) StreamURL(ctx context.Context, id string) (Link, error) {
	m, err := s.GetMovie(ctx, id)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: m.StreamURL, Title: m.Title}, nil
}
