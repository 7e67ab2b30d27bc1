// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adgate

import (
	"context"
	"sync"

	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/rs/zerolog"
)

// pendingRequest is a single-resolution future for one permission request.
type pendingRequest struct {
	kind   Kind
	done   chan struct{}
	result bool
	once   sync.Once
}

func newPendingRequest(kind Kind) *pendingRequest {
	return &pendingRequest{kind: kind, done: make(chan struct{})}
}

// resolve settles the request. Only the first call has an effect.
func (p *pendingRequest) resolve(v bool) bool {
	settled := false
	p.once.Do(func() {
		p.result = v
		close(p.done)
		settled = true
	})
	return settled
}

// Controller arbitrates gated actions for one viewer session.
//
// Invariant: pending != nil <=> state.IsAdActive <=> modal != nil.
type Controller struct {
	mu      sync.Mutex
	policy  Policy
	clock   Clock
	state   GateState
	pending *pendingRequest
	modal   *Modal
	logger  zerolog.Logger
	events  Observer
}

// Observer is notified of gate transitions. Implementations must not block.
type Observer interface {
	GateEvent(kind Kind, outcome Outcome)
}

// Outcome labels a resolved or rejected request.
type Outcome string

const (
	OutcomeFastPath  Outcome = "fast_path"
	OutcomeShown     Outcome = "shown"
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAbandoned Outcome = "abandoned"
)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the wall clock used by modals.
func WithClock(c Clock) ControllerOption {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) ControllerOption {
	return func(ctrl *Controller) { ctrl.events = o }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// NewController creates an idle controller with completedCount = 0.
func NewController(policy Policy, opts ...ControllerOption) *Controller {
	c := &Controller{
		policy: policy,
		clock:  RealClock{},
		state:  GateState{ActiveAdKind: KindNone},
		logger: xglog.WithComponent("adgate"),
		events: metricsObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the policy applied to the next request.
func (c *Controller) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy swaps the policy. An ad already showing keeps its countdown.
func (c *Controller) SetPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
}

// RequestPermission asks to run a gated action.
//
// Once CompletedCount has reached the threshold it returns true at once and no
// ad is shown. Otherwise it opens a modal for kind and blocks until the viewer
// continues (true) or cancels (false). A request while an ad is already
// showing fails with ErrAdActive and leaves the state untouched. If ctx ends
// first the ad is cancelled and ctx.Err() is returned.
func (c *Controller) RequestPermission(ctx context.Context, kind Kind) (bool, error) {
	p, fast, err := c.begin(kind)
	if err != nil {
		return false, err
	}
	if fast {
		return true, nil
	}

	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		c.abandon(p)
		<-p.done
		if p.result {
			// the viewer continued while the caller was leaving
			return true, nil
		}
		return false, ctx.Err()
	}
}

func (c *Controller) begin(kind Kind) (*pendingRequest, bool, error) {
	if !kind.Valid() {
		return nil, false, ErrInvalidKind
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CompletedCount >= c.policy.Threshold {
		c.events.GateEvent(kind, OutcomeFastPath)
		return nil, true, nil
	}
	if c.pending != nil {
		c.events.GateEvent(kind, OutcomeRejected)
		return nil, false, ErrAdActive
	}

	p := newPendingRequest(kind)
	b := &modalBinding{ctrl: c}
	m := NewModal(ModalConfig{
		Kind:       kind,
		Countdown:  c.policy.Countdown(kind),
		ShowCancel: c.policy.ShowCancel,
		Tick:       c.policy.Tick,
		Clock:      c.clock,
	}, b)
	b.modal = m

	c.pending = p
	c.modal = m
	c.state.IsAdActive = true
	c.state.ActiveAdKind = kind
	m.Start()

	c.events.GateEvent(kind, OutcomeShown)
	c.logger.Debug().
		Str("event", "gate.ad_opened").
		Str(xglog.FieldAdKind, string(kind)).
		Int(xglog.FieldCompletedCount, c.state.CompletedCount).
		Msg("ad opened")
	return p, false, nil
}

// OnComplete finishes the active ad: the count goes up by one and the pending
// request resolves true. Without a pending request it does nothing.
func (c *Controller) OnComplete() {
	c.finish(nil, true, OutcomeCompleted)
}

// OnCancel aborts the active ad: the pending request resolves false and the
// count is unchanged. Without a pending request it does nothing.
func (c *Controller) OnCancel() {
	c.finish(nil, false, OutcomeCancelled)
}

func (c *Controller) abandon(p *pendingRequest) {
	c.settle(nil, p, false, OutcomeAbandoned)
}

func (c *Controller) finish(from *Modal, ok bool, outcome Outcome) {
	c.settle(from, nil, ok, outcome)
}

// settle resolves the pending request. A non-nil from or req restricts the
// call to that modal or request, so a stale modal or an abandoning caller can
// never resolve a later request.
func (c *Controller) settle(from *Modal, req *pendingRequest, ok bool, outcome Outcome) {
	c.mu.Lock()
	if c.pending == nil || (from != nil && from != c.modal) || (req != nil && req != c.pending) {
		c.mu.Unlock()
		c.logger.Debug().
			Str("event", "gate.resolve_ignored").
			Str("outcome", string(outcome)).
			Msg("no pending request")
		return
	}

	p := c.pending
	m := c.modal
	kind := c.state.ActiveAdKind
	c.pending = nil
	c.modal = nil
	c.state.IsAdActive = false
	c.state.ActiveAdKind = KindNone
	if ok {
		c.state.CompletedCount++
	}
	count := c.state.CompletedCount
	c.mu.Unlock()

	m.Close()
	p.resolve(ok)
	c.events.GateEvent(kind, outcome)
	c.logger.Debug().
		Str("event", "gate.ad_resolved").
		Str(xglog.FieldAdKind, string(kind)).
		Str("outcome", string(outcome)).
		Int(xglog.FieldCompletedCount, count).
		Msg("ad resolved")
}

// Modal returns the modal currently on screen, or nil.
func (c *Controller) Modal() *Modal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modal
}

// State returns the bare GateState.
func (c *Controller) State() GateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the gate state together with the countdown, if any.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		GateState: c.state,
		Phase:     PhaseIdle,
		Threshold: c.policy.Threshold,
	}
	m := c.modal
	c.mu.Unlock()

	if s.IsAdActive {
		s.Phase = PhaseAdShowing
	}
	s.Remaining = s.Threshold - s.CompletedCount
	if s.Remaining <= 0 {
		s.Remaining = 0
		s.Bypassed = true
	}
	if m != nil {
		ts := m.State()
		s.Timer = &ts
	}
	return s
}

// Close cancels any ad on screen.
func (c *Controller) Close() {
	c.finish(nil, false, OutcomeAbandoned)
}

// modalBinding routes a modal's decision back to the controller that opened it.
type modalBinding struct {
	ctrl  *Controller
	modal *Modal
}

func (b *modalBinding) OnComplete() { b.ctrl.finish(b.modal, true, OutcomeCompleted) }
func (b *modalBinding) OnCancel()   { b.ctrl.finish(b.modal, false, OutcomeCancelled) }
