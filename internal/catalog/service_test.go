// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/cache"
	"github.com/ManuGH/cinegate/internal/validate"
)

type serviceFixture struct {
	svc   *Service
	store Store
	cache cache.Cache

	mu  sync.Mutex
	now time.Time
	seq int
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	f := &serviceFixture{store: store, cache: c, now: t0}
	f.svc = NewService(store,
		WithCache(c, time.Minute),
		WithClock(f.clock),
		WithIDGenerator(f.nextID),
		WithLogger(zerolog.Nop()),
	)
	return f
}

// clock advances one second per call so creation order is observable.
func (f *serviceFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *serviceFixture) nextID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("id%03d", f.seq)
}

func movieInput(title, ext string) Movie {
	return Movie{
		Title:       title,
		DownloadURL: "https://cdn.example/" + title + ".mp4",
		StreamURL:   "https://stream.example/" + title,
		ExternalURL: ext,
		FileSize:    "2GB",
	}
}

func TestCreateMovie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateMovie(ctx, movieInput("  Heat ", "https://site.example/heat"))
	require.NoError(t, err)
	assert.Equal(t, "id001", m.ID)
	assert.Equal(t, "Heat", m.Title)
	assert.Equal(t, m.CreatedAt, m.UpdatedAt)

	_, err = f.svc.CreateMovie(ctx, movieInput("Heat 2", "https://site.example/heat"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateMovieValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateMovie(context.Background(), Movie{Title: "Heat", FileSize: "2GB"})
	require.ErrorIs(t, err, ErrValidation)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"downloadUrl", "streamUrl", "externalUrl"}, verr.Fields())
}

func TestListMoviesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"alpha", "zulu", "Élan"} {
		_, err := f.svc.CreateMovie(ctx, movieInput(title, "https://site.example/"+title))
		require.NoError(t, err)
	}

	newest, err := f.svc.ListMovies(ctx, SortNewest)
	require.NoError(t, err)
	assert.Equal(t, []string{"Élan", "zulu", "alpha"}, titles(newest))

	byTitle, err := f.svc.ListMovies(ctx, SortTitle)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "Élan", "zulu"}, titles(byTitle))

	empty := newFixture(t)
	none, err := empty.svc.ListMovies(ctx, SortNewest)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func titles(movies []Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.Title
	}
	return out
}

func TestUpdateMovie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateMovie(ctx, movieInput("a", "https://site.example/a"))
	require.NoError(t, err)
	_, err = f.svc.CreateMovie(ctx, movieInput("b", "https://site.example/b"))
	require.NoError(t, err)

	_, err = f.svc.UpdateMovie(ctx, a.ID, MoviePatch{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateMovie(ctx, a.ID, MoviePatch{ExternalURL: "https://site.example/b"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.UpdateMovie(ctx, "missing", MoviePatch{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := f.svc.UpdateMovie(ctx, a.ID, MoviePatch{Title: "A!", DownloadURL: "https://cdn.example/new.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "A!", updated.Title)
	assert.Equal(t, "https://cdn.example/new.mp4", updated.DownloadURL)
	assert.Equal(t, a.StreamURL, updated.StreamURL, "empty fields are left alone")
	assert.Equal(t, "2GB", updated.FileSize)
	assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))

	// re-submitting the own externalUrl is not a conflict
	_, err = f.svc.UpdateMovie(ctx, a.ID, MoviePatch{ExternalURL: "https://site.example/a"})
	require.NoError(t, err)
}

func TestDownloadURLServedFromCacheAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateMovie(ctx, movieInput("heat", "https://site.example/heat"))
	require.NoError(t, err)

	link, err := f.svc.DownloadURL(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, Link{URL: m.DownloadURL, Title: "heat"}, link)

	// a write straight to the store is invisible while cached
	raw := m
	raw.DownloadURL = "https://cdn.example/bypass.mp4"
	require.NoError(t, f.store.PutMovie(ctx, raw))
	link, err = f.svc.DownloadURL(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.DownloadURL, link.URL)
	assert.Equal(t, int64(1), f.cache.Stats().Hits)

	// going through the service invalidates
	_, err = f.svc.UpdateMovie(ctx, m.ID, MoviePatch{DownloadURL: "https://cdn.example/v2.mp4"})
	require.NoError(t, err)
	link, err = f.svc.DownloadURL(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/v2.mp4", link.URL)

	stream, err := f.svc.StreamURL(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.StreamURL, stream.URL)

	require.NoError(t, f.svc.DeleteMovie(ctx, m.ID))
	_, err = f.svc.DownloadURL(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteMovie(ctx, m.ID), ErrNotFound)
}

func TestLookupExternalMovieFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sr, err := f.svc.CreateSeries(ctx, seriesInput("Dark", "https://site.example/shared"))
	require.NoError(t, err)

	l, err := f.svc.LookupExternal(ctx, "https://site.example/shared")
	require.NoError(t, err)
	assert.Equal(t, ContentSeries, l.ContentType)
	assert.Equal(t, "Dark - Season 1 - Secrets", l.Item.Title)
	assert.Equal(t, sr.ID, l.Item.SeriesID)
	assert.Equal(t, sr.Seasons[0].ID, l.Item.SeasonID)
	assert.Equal(t, sr.Seasons[0].Episodes[0].ID, l.Item.ID)
	assert.Equal(t, "Secrets", l.Item.EpisodeName)
	assert.Equal(t, sr.CreatedAt, l.Item.CreatedAt)

	// a movie created later with the same URL shadows the episode
	m, err := f.svc.CreateMovie(ctx, movieInput("shared", "https://site.example/shared"))
	require.NoError(t, err)
	l, err = f.svc.LookupExternal(ctx, "https://site.example/shared")
	require.NoError(t, err)
	assert.Equal(t, ContentMovie, l.ContentType)
	assert.Equal(t, m.ID, l.Item.ID)
	assert.Empty(t, l.Item.SeriesID)
}

func TestLookupExternalDecodesAndValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateMovie(ctx, movieInput("heat", "http://example.com/serieA"))
	require.NoError(t, err)

	l, err := f.svc.LookupExternal(ctx, "http%3A%2F%2Fexample.com%2FserieA")
	require.NoError(t, err)
	assert.Equal(t, "heat", l.Item.Title)

	_, err = f.svc.LookupExternal(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.LookupExternal(ctx, "https://site.example/unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.CreateUser(ctx, " admin ", "$2a$10$hash")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)

	_, err = f.svc.CreateUser(ctx, "admin", "$2a$10$other")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.CreateUser(ctx, "", "x")
	assert.ErrorIs(t, err, ErrValidation)

	got, err := f.svc.UserByName(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = f.svc.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)
}

func TestServiceOnSqlite(t *testing.T) {
	store, err := NewSqliteStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	svc := NewService(store, WithLogger(zerolog.Nop()))

	_, err = svc.CreateMovie(ctx, movieInput("heat", "https://site.example/heat"))
	require.NoError(t, err)
	_, err = svc.CreateMovie(ctx, movieInput("heat again", "https://site.example/heat"))
	assert.ErrorIs(t, err, ErrConflict)

	l, err := svc.LookupExternal(ctx, "https://site.example/heat")
	require.NoError(t, err)
	assert.Equal(t, ContentMovie, l.ContentType)
}
