// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps JSON documents under typed key prefixes:
//   - movies: "movie:<id>", unique index "movie_ext:<externalUrl>" = id
//   - series: "series:<id>"
//   - users: "user:<id>", unique index "username:<name>" = id
type BadgerStore struct {
	db *badger.DB
}

const (
	prefixMovie    = "movie:"
	prefixMovieExt = "movie_ext:"
	prefixSeries   = "series:"
	prefixUser     = "user:"
	prefixUsername = "username:"
)

// badgerUser exposes the hash that User hides from JSON.
type badgerUser struct {
	User
	PasswordHash string `json:"passwordHash"`
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger catalog: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger catalog is closed")
	}
	return nil
}

func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), buf)
}

func getIndex(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	return string(val), err
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// --- Movies ---

func (s *BadgerStore) PutMovie(_ context.Context, m Movie) error {
	return s.db.Update(func(txn *badger.Txn) error {
		owner, err := getIndex(txn, prefixMovieExt+m.ExternalURL)
		switch {
		case err == nil && owner != m.ID:
			return fmt.Errorf("movie externalUrl %q: %w", m.ExternalURL, ErrConflict)
		case err != nil && !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		var prev Movie
		err = getJSON(txn, prefixMovie+m.ID, &prev)
		if err == nil && prev.ExternalURL != m.ExternalURL {
			if err := txn.Delete([]byte(prefixMovieExt + prev.ExternalURL)); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, prefixMovie+m.ID, m); err != nil {
			return err
		}
		return txn.Set([]byte(prefixMovieExt+m.ExternalURL), []byte(m.ID))
	})
}

func (s *BadgerStore) GetMovie(_ context.Context, id string) (Movie, error) {
	var out Movie
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixMovie+id, &out)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Movie{}, fmt.Errorf("movie %s: %w", id, ErrNotFound)
	}
	return out, err
}

func (s *BadgerStore) FindMovieByExternalURL(_ context.Context, externalURL string) (Movie, error) {
	var out Movie
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndex(txn, prefixMovieExt+externalURL)
		if err != nil {
			return err
		}
		return getJSON(txn, prefixMovie+id, &out)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Movie{}, fmt.Errorf("movie with externalUrl %q: %w", externalURL, ErrNotFound)
	}
	return out, err
}

func (s *BadgerStore) ListMovies(context.Context) ([]Movie, error) {
	var out []Movie
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixMovie, func(val []byte) error {
			var m Movie
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *BadgerStore) DeleteMovie(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var m Movie
		if err := getJSON(txn, prefixMovie+id, &m); err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixMovieExt + m.ExternalURL)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixMovie + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("movie %s: %w", id, ErrNotFound)
	}
	return err
}

// --- Series ---

func (s *BadgerStore) PutSeries(_ context.Context, sr Series) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, prefixSeries+sr.ID, sr)
	})
}

func (s *BadgerStore) GetSeries(_ context.Context, id string) (Series, error) {
	var out Series
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixSeries+id, &out)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Series{}, fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	return out, err
}

func (s *BadgerStore) ListSeries(context.Context) ([]Series, error) {
	var out []Series
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixSeries, func(val []byte) error {
			var sr Series
			if err := json.Unmarshal(val, &sr); err != nil {
				return err
			}
			out = append(out, sr)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *BadgerStore) DeleteSeries(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixSeries + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixSeries + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	return err
}

// --- Users ---

func (s *BadgerStore) PutUser(_ context.Context, u User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		owner, err := getIndex(txn, prefixUsername+u.Username)
		switch {
		case err == nil && owner != u.ID:
			return fmt.Errorf("username %q: %w", u.Username, ErrConflict)
		case err != nil && !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		var prev badgerUser
		err = getJSON(txn, prefixUser+u.ID, &prev)
		if err == nil && prev.Username != u.Username {
			if err := txn.Delete([]byte(prefixUsername + prev.Username)); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, prefixUser+u.ID, badgerUser{User: u, PasswordHash: u.PasswordHash}); err != nil {
			return err
		}
		return txn.Set([]byte(prefixUsername+u.Username), []byte(u.ID))
	})
}

func (s *BadgerStore) getUser(txn *badger.Txn, id string) (User, error) {
	var bu badgerUser
	if err := getJSON(txn, prefixUser+id, &bu); err != nil {
		return User{}, err
	}
	u := bu.User
	u.PasswordHash = bu.PasswordHash
	return u, nil
}

func (s *BadgerStore) GetUser(_ context.Context, id string) (User, error) {
	var out User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = s.getUser(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return out, err
}

func (s *BadgerStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	var out User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndex(txn, prefixUsername+username)
		if err != nil {
			return err
		}
		out, err = s.getUser(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return out, err
}
