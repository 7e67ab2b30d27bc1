// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/cinegate/internal/persistence/sqlite"
)

var sqliteMigrations = []string{
	`
	CREATE TABLE movies (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		download_url TEXT NOT NULL,
		stream_url TEXT NOT NULL,
		external_url TEXT NOT NULL,
		file_size TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX idx_movies_external_url ON movies(external_url);
	CREATE INDEX idx_movies_created ON movies(created_at_ms);

	CREATE TABLE series (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		seasons_json TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);
	`,
	`
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL
	);
	`,
}

// SqliteStore implements Store on SQLite. Series seasons live in a JSON column.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens the database and migrates it to the current schema.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := sqlite.Migrate(context.Background(), db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog store: migration failed: %w", err)
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMS(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Movies ---

const movieColumns = `id, title, download_url, stream_url, external_url, file_size, created_at_ms, updated_at_ms`

func scanMovie(r rowScanner) (Movie, error) {
	var m Movie
	var created, updated int64
	if err := r.Scan(&m.ID, &m.Title, &m.DownloadURL, &m.StreamURL, &m.ExternalURL, &m.FileSize, &created, &updated); err != nil {
		return Movie{}, err
	}
	m.CreatedAt = fromMS(created)
	m.UpdatedAt = fromMS(updated)
	return m, nil
}

func (s *SqliteStore) PutMovie(ctx context.Context, m Movie) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO movies (`+movieColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		download_url = excluded.download_url,
		stream_url = excluded.stream_url,
		external_url = excluded.external_url,
		file_size = excluded.file_size,
		updated_at_ms = excluded.updated_at_ms
	`, m.ID, m.Title, m.DownloadURL, m.StreamURL, m.ExternalURL, m.FileSize, toMS(m.CreatedAt), toMS(m.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("movie externalUrl %q: %w", m.ExternalURL, ErrConflict)
	}
	return err
}

func (s *SqliteStore) GetMovie(ctx context.Context, id string) (Movie, error) {
	m, err := scanMovie(s.DB.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, fmt.Errorf("movie %s: %w", id, ErrNotFound)
	}
	return m, err
}

func (s *SqliteStore) FindMovieByExternalURL(ctx context.Context, externalURL string) (Movie, error) {
	m, err := scanMovie(s.DB.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE external_url = ?`, externalURL))
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, fmt.Errorf("movie with externalUrl %q: %w", externalURL, ErrNotFound)
	}
	return m, err
}

func (s *SqliteStore) ListMovies(ctx context.Context) ([]Movie, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY created_at_ms DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SqliteStore) DeleteMovie(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("movie %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Series ---

func scanSeries(r rowScanner) (Series, error) {
	var sr Series
	var seasons string
	var created, updated int64
	if err := r.Scan(&sr.ID, &sr.Title, &seasons, &created, &updated); err != nil {
		return Series{}, err
	}
	if err := json.Unmarshal([]byte(seasons), &sr.Seasons); err != nil {
		return Series{}, fmt.Errorf("decode seasons of series %s: %w", sr.ID, err)
	}
	sr.CreatedAt = fromMS(created)
	sr.UpdatedAt = fromMS(updated)
	return sr, nil
}

func (s *SqliteStore) PutSeries(ctx context.Context, sr Series) error {
	seasons, err := json.Marshal(sr.Seasons)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO series (id, title, seasons_json, created_at_ms, updated_at_ms) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		seasons_json = excluded.seasons_json,
		updated_at_ms = excluded.updated_at_ms
	`, sr.ID, sr.Title, string(seasons), toMS(sr.CreatedAt), toMS(sr.UpdatedAt))
	return err
}

func (s *SqliteStore) GetSeries(ctx context.Context, id string) (Series, error) {
	sr, err := scanSeries(s.DB.QueryRowContext(ctx,
		`SELECT id, title, seasons_json, created_at_ms, updated_at_ms FROM series WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Series{}, fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	return sr, err
}

func (s *SqliteStore) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, seasons_json, created_at_ms, updated_at_ms FROM series ORDER BY created_at_ms DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (s *SqliteStore) DeleteSeries(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Users ---

func scanUser(r rowScanner) (User, error) {
	var u User
	var created int64
	if err := r.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		return User{}, err
	}
	u.CreatedAt = fromMS(created)
	return u, nil
}

func (s *SqliteStore) PutUser(ctx context.Context, u User) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO users (id, username, password_hash, created_at_ms) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		username = excluded.username,
		password_hash = excluded.password_hash
	`, u.ID, u.Username, u.PasswordHash, toMS(u.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q: %w", u.Username, ErrConflict)
	}
	return err
}

func (s *SqliteStore) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at_ms FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *SqliteStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at_ms FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return u, err
}
