// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)

	_, err := src.svc.CreateMovie(ctx, movieInput("heat", "https://site.example/heat"))
	require.NoError(t, err)
	_, err = src.svc.CreateSeries(ctx, seriesInput("Dark", "https://site.example/dark"))
	require.NoError(t, err)
	_, err = src.svc.CreateUser(ctx, "admin", "hash")
	require.NoError(t, err)

	snap, err := src.svc.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Movies, 1)
	assert.Len(t, snap.Series, 1)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, WriteSnapshot(path, snap))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash", "users are never exported")

	read, err := ReadSnapshot(path)
	require.NoError(t, err)

	dst := newFixture(t)
	res, err := dst.svc.Import(ctx, read)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Movies: 1, Series: 1}, res)

	l, err := dst.svc.LookupExternal(ctx, "https://site.example/dark-2")
	require.NoError(t, err)
	assert.Equal(t, "Dark - Season 1 - Lies", l.Item.Title)

	// importing twice upserts by id
	res, err = dst.svc.Import(ctx, read)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Movies: 1, Series: 1}, res)
}

func TestImportSkipsInvalidAndConflicting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateMovie(ctx, movieInput("heat", "https://site.example/heat"))
	require.NoError(t, err)

	snap := Snapshot{
		Version: snapshotVersion,
		Movies: []Movie{
			movieInput("clash", "https://site.example/heat"),
			{Title: "broken"},
			movieInput("fresh", "https://site.example/fresh"),
		},
		Series: []Series{{Seasons: []Season{}}},
	}
	res, err := f.svc.Import(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Movies: 1, Skipped: 3}, res)

	_, err = f.svc.Import(ctx, Snapshot{Version: 99})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadSnapshot(filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = ReadSnapshot(bad)
	assert.Error(t, err)
}
