// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adgate

import (
	"sync"
	"time"
)

// Resolver receives the viewer's decision once a modal unlocks.
type Resolver interface {
	OnComplete()
	OnCancel()
}

// ModalConfig describes one ad showing.
type ModalConfig struct {
	Kind       Kind
	Countdown  int // ticks until unlock
	ShowCancel bool
	Tick       time.Duration
	Clock      Clock
}

// Modal enforces the minimum watch time of one ad showing.
//
// Once unlocked it stays unlocked. Continue and Cancel before unlock are inert.
// After the first accepted Continue/Cancel or Close, the modal is closed and
// the countdown goroutine is gone.
type Modal struct {
	mu         sync.Mutex
	kind       Kind
	remaining  int
	unlocked   bool
	closed     bool
	started    bool
	showCancel bool
	openedAt   time.Time
	unlockedAt time.Time

	resolver Resolver
	clock    Clock
	tick     time.Duration

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewModal builds a modal. The countdown starts with Start.
func NewModal(cfg ModalConfig, resolver Resolver) *Modal {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Countdown < 0 {
		cfg.Countdown = 0
	}
	m := &Modal{
		kind:       cfg.Kind,
		remaining:  cfg.Countdown,
		showCancel: cfg.ShowCancel,
		resolver:   resolver,
		clock:      cfg.Clock,
		tick:       cfg.Tick,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		openedAt:   cfg.Clock.Now(),
	}
	if m.remaining == 0 {
		m.unlocked = true
		m.unlockedAt = m.openedAt
	}
	return m
}

// Start begins the countdown. The ticker is created before Start returns so
// that no tick is lost between opening and the first clock advance.
func (m *Modal) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	idle := m.unlocked || m.closed
	m.mu.Unlock()

	if idle {
		close(m.done)
		return
	}
	t := m.clock.NewTicker(m.tick)
	go m.run(t)
}

func (m *Modal) run(t Ticker) {
	defer close(m.done)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C():
			if m.Tick() {
				return
			}
		}
	}
}

// Tick advances the countdown by one step and reports whether the modal is
// unlocked (or closed) afterwards.
func (m *Modal) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.unlocked {
		return true
	}
	m.remaining--
	if m.remaining <= 0 {
		m.remaining = 0
		m.unlocked = true
		m.unlockedAt = m.clock.Now()
	}
	return m.unlocked
}

// State returns the timer as shown to the viewer.
func (m *Modal) State() TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TimerState{
		SecondsRemaining: m.remaining,
		Unlocked:         m.unlocked,
		ShowCancel:       m.showCancel,
	}
}

// Kind returns the presentation kind of this showing.
func (m *Modal) Kind() Kind { return m.kind }

// Watched returns how long the ad was on screen before it unlocked.
func (m *Modal) Watched() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return m.clock.Now().Sub(m.openedAt)
	}
	return m.unlockedAt.Sub(m.openedAt)
}

// Continue accepts the ad and reports completion to the resolver.
func (m *Modal) Continue() error {
	if err := m.accept(false); err != nil {
		return err
	}
	m.Close()
	m.resolver.OnComplete()
	return nil
}

// Cancel rejects the ad and reports cancellation to the resolver.
func (m *Modal) Cancel() error {
	if err := m.accept(true); err != nil {
		return err
	}
	m.Close()
	m.resolver.OnCancel()
	return nil
}

func (m *Modal) accept(cancel bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrModalClosed
	case cancel && !m.showCancel:
		return ErrCancelHidden
	case !m.unlocked:
		return ErrLocked
	}
	m.closed = true
	return nil
}

// Close stops the countdown and waits for its goroutine. It never calls the
// resolver and is safe to call more than once.
func (m *Modal) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.stop)
	})
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}
