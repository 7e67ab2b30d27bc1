// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cinegate/internal/catalog"
	"github.com/ManuGH/cinegate/internal/log"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrSignupDisabled     = errors.New("signup is disabled")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUnknownUser        = errors.New("unknown user")
	ErrWrongPassword      = errors.New("incorrect password")
)

// UserStore is the part of the catalog that holds admin accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (catalog.User, error)
	UserByName(ctx context.Context, username string) (catalog.User, error)
	UserByID(ctx context.Context, id string) (catalog.User, error)
}

// Service implements signup, login and token verification.
type Service struct {
	users       UserStore
	tokens      *TokenIssuer
	allowSignup bool
	logger      zerolog.Logger
}

func NewService(users UserStore, tokens *TokenIssuer, allowSignup bool) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		allowSignup: allowSignup,
		logger:      log.WithComponent("auth"),
	}
}

// Session is what a successful login returns.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      catalog.User
}

func (s *Service) Signup(ctx context.Context, username, password string) (catalog.User, error) {
	if !s.allowSignup {
		return catalog.User{}, ErrSignupDisabled
	}
	return s.createUser(ctx, username, password)
}

func (s *Service) createUser(ctx context.Context, username, password string) (catalog.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return catalog.User{}, ErrMissingCredentials
	}
	hash, err := HashPassword(password)
	if err != nil {
		return catalog.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, username, hash)
	if errors.Is(err, catalog.ErrConflict) {
		return catalog.User{}, ErrUsernameTaken
	}
	if err != nil {
		return catalog.User{}, err
	}
	s.logger.Info().
		Str("event", "auth.user_created").
		Str(log.FieldUserID, u.ID).
		Msg("admin user created")
	return u, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}
	u, err := s.users.UserByName(ctx, username)
	if errors.Is(err, catalog.ErrNotFound) {
		s.logger.Warn().Str("event", "auth.login_failed").Str("reason", "unknown_user").Msg("login failed")
		return Session{}, ErrUnknownUser
	}
	if err != nil {
		return Session{}, err
	}
	if !ComparePassword(u.PasswordHash, password) {
		s.logger.Warn().Str("event", "auth.login_failed").Str(log.FieldUserID, u.ID).Str("reason", "wrong_password").Msg("login failed")
		return Session{}, ErrWrongPassword
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info().Str("event", "auth.login").Str(log.FieldUserID, u.ID).Msg("admin logged in")
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Verify checks the token and that its user still exists.
func (s *Service) Verify(ctx context.Context, raw string) (*Principal, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: u.ID, Username: u.Username}, nil
}

// Bootstrap creates the configured admin account unless it already exists.
// It works regardless of the signup setting.
func (s *Service) Bootstrap(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}
	if _, err := s.users.UserByName(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	if _, err := s.createUser(ctx, username, password); err != nil {
		return fmt.Errorf("bootstrap admin %q: %w", username, err)
	}
	s.logger.Info().Str("event", "auth.bootstrap").Str("username", username).Msg("bootstrap admin created")
	return nil
}
