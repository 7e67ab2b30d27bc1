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
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// MemoryStore keeps the catalog in maps. With a snapshot path every mutation
// rewrites the file atomically and the store reloads it on open.
type MemoryStore struct {
	mu       sync.RWMutex
	movies   map[string]Movie
	series   map[string]Series
	users    map[string]User
	snapshot string
}

type memorySnapshot struct {
	Movies []Movie      `json:"movies"`
	Series []Series     `json:"series"`
	Users  []memoryUser `json:"users"`
}

// memoryUser exposes the hash that User hides from JSON.
type memoryUser struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// NewMemoryStore creates a memory store. An empty snapshot path keeps
// everything in process memory only.
func NewMemoryStore(snapshot string) (*MemoryStore, error) {
	s := &MemoryStore{
		movies:   make(map[string]Movie),
		series:   make(map[string]Series),
		users:    make(map[string]User),
		snapshot: snapshot,
	}
	if snapshot == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.snapshot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read catalog snapshot: %w", err)
	}
	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode catalog snapshot %s: %w", s.snapshot, err)
	}
	for _, m := range snap.Movies {
		s.movies[m.ID] = m
	}
	for _, sr := range snap.Series {
		s.series[sr.ID] = sr
	}
	for _, u := range snap.Users {
		user := u.User
		user.PasswordHash = u.PasswordHash
		s.users[user.ID] = user
	}
	return nil
}

// persistLocked writes the snapshot. Callers hold s.mu.
func (s *MemoryStore) persistLocked() error {
	if s.snapshot == "" {
		return nil
	}
	snap := memorySnapshot{
		Movies: make([]Movie, 0, len(s.movies)),
		Series: make([]Series, 0, len(s.series)),
		Users:  make([]memoryUser, 0, len(s.users)),
	}
	for _, m := range s.movies {
		snap.Movies = append(snap.Movies, m)
	}
	for _, sr := range s.series {
		snap.Series = append(snap.Series, sr)
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, memoryUser{User: u, PasswordHash: u.PasswordHash})
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshot), 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := renameio.WriteFile(s.snapshot, data, 0o600); err != nil {
		return fmt.Errorf("write catalog snapshot: %w", err)
	}
	return nil
}

func (s *MemoryStore) PutMovie(_ context.Context, m Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.movies {
		if id != m.ID && other.ExternalURL == m.ExternalURL {
			return fmt.Errorf("movie externalUrl %q: %w", m.ExternalURL, ErrConflict)
		}
	}
	s.movies[m.ID] = m
	return s.persistLocked()
}

func (s *MemoryStore) GetMovie(_ context.Context, id string) (Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return Movie{}, fmt.Errorf("movie %s: %w", id, ErrNotFound)
	}
	return m, nil
}

func (s *MemoryStore) FindMovieByExternalURL(_ context.Context, externalURL string) (Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movies {
		if m.ExternalURL == externalURL {
			return m, nil
		}
	}
	return Movie{}, fmt.Errorf("movie with externalUrl %q: %w", externalURL, ErrNotFound)
}

func (s *MemoryStore) ListMovies(context.Context) ([]Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) DeleteMovie(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[id]; !ok {
		return fmt.Errorf("movie %s: %w", id, ErrNotFound)
	}
	delete(s.movies, id)
	return s.persistLocked()
}

func (s *MemoryStore) PutSeries(_ context.Context, sr Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[sr.ID] = sr.clone()
	return s.persistLocked()
}

func (s *MemoryStore) GetSeries(_ context.Context, id string) (Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.series[id]
	if !ok {
		return Series{}, fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	return sr.clone(), nil
}

func (s *MemoryStore) ListSeries(context.Context) ([]Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Series, 0, len(s.series))
	for _, sr := range s.series {
		out = append(out, sr.clone())
	}
	return out, nil
}

func (s *MemoryStore) DeleteSeries(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.series[id]; !ok {
		return fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	delete(s.series, id)
	return s.persistLocked()
}

func (s *MemoryStore) PutUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.users {
		if id != u.ID && other.Username == u.Username {
			return fmt.Errorf("username %q: %w", u.Username, ErrConflict)
		}
	}
	s.users[u.ID] = u
	return s.persistLocked()
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
