// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a resolver matches exactly one of
// these with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate submission")
	ErrState      = errors.New("plan does not allow this operation")
	ErrNotReady   = errors.New("plan not ready")
	ErrNotFound   = errors.New("not found")
	ErrInternal   = errors.New("internal error")
)

var (
	ErrInvalidRanking = fmt.Errorf("%w: invalid ranking", ErrValidation)
	ErrWrongMode      = fmt.Errorf("%w: operation does not match plan mode", ErrValidation)
	ErrDuplicateVote  = fmt.Errorf("%w: vote already recorded", ErrDuplicate)
	ErrPlanClosed     = fmt.Errorf("%w: plan is closed", ErrState)
	ErrAlreadyLocked  = fmt.Errorf("%w: plan is already locked", ErrState)
	ErrPlanFull       = fmt.Errorf("%w: every participant has already voted", ErrState)
	ErrPlanNotFound   = fmt.Errorf("%w: plan", ErrNotFound)
	ErrOptionNotFound = fmt.Errorf("%w: option", ErrNotFound)
)

// Internal wraps a store failure so callers can tell it from a rule
// violation. Internal errors are the only kind worth retrying.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
