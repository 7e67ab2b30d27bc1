// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package adgate gates download/stream actions behind simulated advertisements.
//
// A Controller owns the per-session GateState and at most one pending
// permission request. While a request is pending, a Modal counts down the
// minimum watch time; once it unlocks, the viewer may continue (the request
// resolves true) or cancel (it resolves false). After Threshold completed ads
// every further request is granted without showing anything.
package adgate

import (
	"fmt"
	"strings"
)

// Kind identifies which ad presentation a gated action asks for.
type Kind string

const (
	KindNone   Kind = "none"
	KindButton Kind = "button"
	KindVideo  Kind = "video"
)

// ParseKind maps a wire value onto a Kind. "none" is not requestable.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindButton:
		return KindButton, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return KindNone, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Valid reports whether k can be requested.
func (k Kind) Valid() bool {
	return k == KindButton || k == KindVideo
}

// Phase is the controller lifecycle.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseAdShowing Phase = "AD_SHOWING"
)

// GateState is the session-wide ad bookkeeping.
type GateState struct {
	CompletedCount int  `json:"completedCount"`
	IsAdActive     bool `json:"isAdActive"`
	ActiveAdKind   Kind `json:"activeAdKind"`
}

// TimerState is the countdown of the modal currently on screen.
type TimerState struct {
	SecondsRemaining int  `json:"secondsRemaining"`
	Unlocked         bool `json:"unlocked"`
	ShowCancel       bool `json:"showCancel"`
}

// Snapshot is a consistent read of a controller.
type Snapshot struct {
	GateState
	Phase     Phase       `json:"phase"`
	Threshold int         `json:"threshold"`
	Remaining int         `json:"remaining"`
	Bypassed  bool        `json:"bypassed"`
	Timer     *TimerState `json:"timer,omitempty"`
}
