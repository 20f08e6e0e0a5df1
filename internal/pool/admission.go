// Package pool implements the admission rules for capped funding offers. The
// decision itself is pure; serializing concurrent admissions against the same
// offer is the job of the persistence layer's atomic CommitFunds plus the
// per-offer lock in the funding service.
package pool

import (
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// TryAdmit decides whether a requested commitment fits the offer. Checks run
// in order, first failure wins:
//
//  1. requested must be positive
//  2. requested must meet the offer's minimum commitment
//  3. the offer must have remaining capacity
//  4. requested must not exceed the remaining capacity
//
// An over-large request is rejected with an ExceedsRemainingError carrying
// the exact remaining amount, never clamped down; callers wanting a partial
// fill re-invoke with that amount.
func TryAdmit(offer domain.FundingOffer, requested decimal.Decimal) (domain.AdmissionResult, error) {
	if !requested.IsPositive() {
		return domain.AdmissionResult{}, domain.ErrInvalidAmount
	}
	if requested.LessThan(offer.MinimumCommitment) {
		return domain.AdmissionResult{}, domain.ErrBelowMinimum
	}

	remaining := offer.Remaining()
	if remaining.Sign() <= 0 {
		return domain.AdmissionResult{}, domain.ErrOfferFull
	}
	if requested.GreaterThan(remaining) {
		return domain.AdmissionResult{}, &domain.ExceedsRemainingError{Remaining: remaining}
	}

	return domain.AdmissionResult{
		AcceptedAmount:     requested,
		NewCommittedAmount: offer.CommittedAmount.Add(requested),
	}, nil
}

// PercentFunded reports funding progress clamped to [0, 100]. It exists for
// display only; admission decisions always use raw amounts so rounding can
// never cause an over-commitment.
func PercentFunded(offer domain.FundingOffer) float64 {
	if offer.TargetAmount.Sign() <= 0 {
		return 0
	}
	pct := offer.CommittedAmount.Div(offer.TargetAmount).Mul(hundred)
	switch {
	case pct.IsNegative():
		return 0
	case pct.GreaterThan(hundred):
		return 100
	default:
		f, _ := pct.Round(1).Float64()
		return f
	}
}
