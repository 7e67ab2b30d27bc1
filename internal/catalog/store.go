// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"fmt"
)

// Store persists catalog documents. Implementations return ErrNotFound for
// missing records and ErrConflict when a unique key (movie externalUrl,
// username) is already taken by another record.
type Store interface {
	PutMovie(ctx context.Context, m Movie) error
	GetMovie(ctx context.Context, id string) (Movie, error)
	FindMovieByExternalURL(ctx context.Context, externalURL string) (Movie, error)
	ListMovies(ctx context.Context) ([]Movie, error)
	DeleteMovie(ctx context.Context, id string) error

	PutSeries(ctx context.Context, s Series) error
	GetSeries(ctx context.Context, id string) (Series, error)
	ListSeries(ctx context.Context) ([]Series, error)
	DeleteSeries(ctx context.Context, id string) error

	PutUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	Ping(ctx context.Context) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// OpenStore creates a Store for the configured backend. For memory the path
// is an optional JSON snapshot file; for sqlite a database file; for badger
// a directory.
func OpenStore(backend, path string) (Store, error) {
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(path)
	case BackendSQLite:
		return NewSqliteStore(path)
	case BackendBadger:
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
