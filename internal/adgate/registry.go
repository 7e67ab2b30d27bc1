// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adgate

import (
	"context"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is one viewer's gate. Creating a new session is the only way to
// reset the completed-ad count.
type Session struct {
	ID        string
	CreatedAt time.Time

	ctrl     *Controller
	lastSeen time.Time
	inflight int
}

// Controller returns the session's gate controller.
func (s *Session) Controller() *Controller { return s.ctrl }

// Registry owns the gate sessions of the process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	policy   Policy
	clock    Clock
	ttl      time.Duration
	closing  bool
	wg       sync.WaitGroup
	logger   zerolog.Logger
	newID    func() string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock sets the clock used for idle tracking and modals.
func WithRegistryClock(c Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// WithSessionTTL sets how long an idle session survives. Zero keeps sessions forever.
func WithSessionTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.ttl = ttl }
}

// WithIDGenerator replaces the uuid session id generator.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) { r.newID = fn }
}

// NewRegistry creates an empty registry applying policy to new sessions.
func NewRegistry(policy Policy, opts ...RegistryOption) (*Registry, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		policy:   policy,
		clock:    RealClock{},
		logger:   xglog.WithComponent("adgate.registry"),
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Create starts a fresh session with completedCount = 0.
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return nil, ErrRegistryClosed
	}

	id := r.newID()
	if _, dup := r.sessions[id]; dup {
		return nil, fmt.Errorf("duplicate gate session id %q", id)
	}
	now := r.clock.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
		ctrl: NewController(r.policy,
			WithClock(r.clock),
			WithLogger(r.logger.With().Str(xglog.FieldGateSession, id).Logger()),
		),
	}
	r.sessions[id] = s
	gateSessions.Set(float64(len(r.sessions)))
	return s, nil
}

// Get returns a live session and marks it as seen.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.lastSeen = r.clock.Now()
	return s, nil
}

// Delete removes a session, cancelling any ad it shows.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		gateSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()
	if ok {
		s.ctrl.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Policy returns the policy new ads are shown with.
func (r *Registry) Policy() Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy
}

// SetPolicy applies p to new sessions and to the next request of every live one.
func (r *Registry) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.policy = p
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.ctrl.SetPolicy(p)
	}
	r.logger.Info().
		Str("event", "gate.policy_updated").
		Int("threshold", p.Threshold).
		Dur("button_duration", p.ButtonDuration).
		Dur("video_duration", p.VideoDuration).
		Str("unlock_mode", string(p.UnlockMode)).
		Int("sessions", len(live)).
		Msg("gate policy updated")
	return nil
}

// Do runs fn for the session while keeping it out of the sweeper's reach.
// It is how long-polling permission requests hold on to a session.
func (r *Registry) Do(id string, fn func(*Session) error) error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.inflight++
	s.lastSeen = r.clock.Now()
	r.wg.Add(1)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		s.inflight--
		s.lastSeen = r.clock.Now()
		r.mu.Unlock()
		r.wg.Done()
	}()
	return fn(s)
}

// Sweep removes sessions idle for longer than the TTL and returns how many went.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.clock.Now()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.inflight > 0 || now.Sub(s.lastSeen) < r.ttl {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	gateSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, s := range expired {
		s.ctrl.Close()
		gateSessionsSwept.Inc()
	}
	if len(expired) > 0 {
		r.logger.Info().
			Str("event", "gate.sessions_swept").
			Int("count", len(expired)).
			Msg("idle gate sessions removed")
	}
	return len(expired)
}

// Close cancels every active ad, refuses new sessions and waits for in-flight
// requests to return.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.ctrl.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gate request drain timeout: %w", ctx.Err())
	}
}
