// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adgate

import (
	"context"
)

// Gate is what a GatedAction needs from a controller.
type Gate interface {
	RequestPermission(ctx context.Context, kind Kind) (bool, error)
	Snapshot() Snapshot
	Policy() Policy
}

// Effect performs the gated side effect (resolving a download link, an
// external page, ...). It runs only after the gate yields.
type Effect func(ctx context.Context) (any, error)

// GatedAction wraps an Effect behind a gate.
type GatedAction struct {
	Name   string
	Kind   Kind
	Effect Effect
}

// Invoke asks the gate for permission and runs the effect on success.
//
// A declined ad returns ErrDeclined and the effect is not run; invoking again
// simply re-enters the gate. In threshold unlock mode a completed ad below the
// threshold returns a *MoreAdsError. Effect errors are returned as-is and do
// not touch the gate.
func (a GatedAction) Invoke(ctx context.Context, g Gate) (any, error) {
	ok, err := g.RequestPermission(ctx, a.Kind)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDeclined
	}

	if g.Policy().UnlockMode == UnlockThreshold {
		if snap := g.Snapshot(); !snap.Bypassed {
			return nil, &MoreAdsError{Remaining: snap.Remaining}
		}
	}
	return a.Effect(ctx)
}
