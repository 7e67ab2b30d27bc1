// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adgate

import (
	"fmt"
	"time"
)

// UnlockMode decides what a single completed ad buys below the threshold.
type UnlockMode string

const (
	// UnlockPerAd lets the action proceed after every completed ad.
	UnlockPerAd UnlockMode = "per_ad"
	// UnlockThreshold only lets the action proceed once the threshold is reached.
	UnlockThreshold UnlockMode = "threshold"
)

// Policy holds the tunables of a gate. Thresholds and durations are
// configuration, not contract.
type Policy struct {
	Threshold      int
	ButtonDuration time.Duration
	VideoDuration  time.Duration
	ShowCancel     bool
	Tick           time.Duration
	UnlockMode     UnlockMode
}

// DefaultPolicy returns the catalog defaults: 3 ads, 15s button ads, 10s video ads.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:      3,
		ButtonDuration: 15 * time.Second,
		VideoDuration:  10 * time.Second,
		ShowCancel:     true,
		Tick:           time.Second,
		UnlockMode:     UnlockPerAd,
	}
}

// Validate rejects policies the controller cannot run.
func (p Policy) Validate() error {
	if p.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be >= 0, got %d", ErrInvalidPolicy, p.Threshold)
	}
	if p.ButtonDuration < 0 || p.VideoDuration < 0 {
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidPolicy)
	}
	if p.Tick <= 0 {
		return fmt.Errorf("%w: tick must be > 0", ErrInvalidPolicy)
	}
	switch p.UnlockMode {
	case UnlockPerAd, UnlockThreshold:
	default:
		return fmt.Errorf("%w: unknown unlock mode %q", ErrInvalidPolicy, p.UnlockMode)
	}
	return nil
}

// Countdown returns the countdown length for kind in whole ticks.
func (p Policy) Countdown(kind Kind) int {
	d := p.ButtonDuration
	if kind == KindVideo {
		d = p.VideoDuration
	}
	tick := p.Tick
	if tick <= 0 {
		tick = time.Second
	}
	n := int(d / tick)
	if d%tick != 0 {
		n++
	}
	return n
}
