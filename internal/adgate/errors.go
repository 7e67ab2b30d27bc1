// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adgate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKind     = errors.New("invalid ad kind")
	ErrAdActive        = errors.New("an ad is already showing")
	ErrLocked          = errors.New("ad is still locked")
	ErrCancelHidden    = errors.New("cancel is not offered for this ad")
	ErrModalClosed     = errors.New("ad already resolved")
	ErrDeclined        = errors.New("ad was cancelled")
	ErrMoreAdsRequired = errors.New("more ads required")
	ErrSessionNotFound = errors.New("gate session not found")
	ErrRegistryClosed  = errors.New("gate registry closed")
	ErrInvalidPolicy   = errors.New("invalid gate policy")
)

// MoreAdsError is returned by GatedAction in threshold unlock mode when the
// completed ad did not yet reach the threshold.
type MoreAdsError struct {
	Remaining int
}

func (e *MoreAdsError) Error() string {
	return fmt.Sprintf("%s: watch %d more", ErrMoreAdsRequired, e.Remaining)
}

func (e *MoreAdsError) Is(target error) bool {
	return target == ErrMoreAdsRequired
}
