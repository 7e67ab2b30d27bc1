package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSteps = []string{
	`CREATE TABLE movies (id TEXT PRIMARY KEY, title TEXT NOT NULL);`,
	`ALTER TABLE movies ADD COLUMN file_size TEXT NOT NULL DEFAULT '';`,
}

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "cinegate.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateIsIncremental(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "m.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	v, err := Migrate(ctx, db, testSteps[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = Migrate(ctx, db, testSteps)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// re-running is a no-op
	v, err = Migrate(ctx, db, testSteps)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = db.Exec(`INSERT INTO movies (id, title, file_size) VALUES ('m1', 'Heat', '2GB')`)
	require.NoError(t, err)

	_, err = Migrate(ctx, db, testSteps[:1])
	require.Error(t, err, "older binaries must refuse newer schemas")
}

func TestMigrateRollsBackFailedStep(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "bad.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	v, err := Migrate(ctx, db, []string{testSteps[0], `THIS IS NOT SQL`})
	require.Error(t, err)
	assert.Equal(t, 1, v)

	var current int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&current))
	assert.Equal(t, 1, current)
}

func TestVerifyIntegrityHealthy(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ok.db")
	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	_, err = Migrate(ctx, db, testSteps)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	for _, mode := range []string{"quick", "full"} {
		issues, err := VerifyIntegrity(ctx, path, mode)
		require.NoError(t, err)
		assert.Nil(t, issues, mode)
	}
}

func TestVerifyIntegrityMissingFile(t *testing.T) {
	_, err := VerifyIntegrity(context.Background(), filepath.Join(t.TempDir(), "absent.db"), "quick")
	require.Error(t, err)
}
