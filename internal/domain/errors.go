package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidTerm      = errors.New("term outside supported bounds")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrBelowMinimum     = errors.New("commitment below offer minimum")
	ErrOfferFull        = errors.New("offer has no remaining capacity")
	ErrExceedsRemaining = errors.New("commitment exceeds remaining capacity")
	ErrRateLimited      = errors.New("rate limited")
	ErrLockHeld         = errors.New("lock already held")
	ErrContextDone      = errors.New("context cancelled")
)

// ExceedsRemainingError rejects an over-large commitment and carries the exact
// remaining capacity so the caller can re-offer that amount. The engine never
// silently clamps a request down to what fits; a partial fill is an explicit
// caller decision.
type ExceedsRemainingError struct {
	Remaining decimal.Decimal
}

func (e *ExceedsRemainingError) Error() string {
	return fmt.Sprintf("commitment exceeds remaining capacity of %s", e.Remaining.StringFixed(2))
}

// Unwrap lets errors.Is(err, ErrExceedsRemaining) match.
func (e *ExceedsRemainingError) Unwrap() error { return ErrExceedsRemaining }
