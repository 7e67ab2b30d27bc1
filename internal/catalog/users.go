// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/cinegate/internal/validate"
)

// CreateUser stores a new admin account with an already hashed password.
func (s *Service) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	username = strings.TrimSpace(username)
	v := validate.New()
	v.NotEmpty("username", username)
	v.NotEmpty("password", passwordHash)
	if err := v.Err(); err != nil {
		return User{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return User{}, fmt.Errorf("username already taken: %w", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	u := User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	if err := s.store.PutUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("save user: %w", err)
	}
	mutationsTotal.WithLabelValues("user", "create").Inc()

	s.logger.Info().
		Str("event", "catalog.user_created").
		Str("username", u.Username).
		Msg("user created")
	return u, nil
}

func (s *Service) UserByName(ctx context.Context, username string) (User, error) {
	return s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) UserByID(ctx context.Context, id string) (User, error) {
	return s.store.GetUser(ctx, id)
}
