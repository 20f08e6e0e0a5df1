package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus tracks the funding offer lifecycle.
type OfferStatus string

const (
	OfferStatusOpen   OfferStatus = "open"
	OfferStatusFunded OfferStatus = "funded"
	OfferStatusClosed OfferStatus = "closed"
)

// FundingOffer is a capital request posted for investor commitments.
// TargetAmount is fixed at creation; CommittedAmount only grows, and the
// admission path guarantees it never exceeds TargetAmount.
type FundingOffer struct {
	ID                string
	LoanID            string
	TargetAmount      decimal.Decimal
	CommittedAmount   decimal.Decimal
	MinimumCommitment decimal.Decimal
	Status            OfferStatus
	CreatedAt         time.Time
}

// Remaining returns the capacity still open for commitments.
func (o FundingOffer) Remaining() decimal.Decimal {
	return o.TargetAmount.Sub(o.CommittedAmount)
}

// Commitment is a single investor's accepted pledge against a FundingOffer.
// Once accepted it is never mutated or deleted here; cancellation is handled
// upstream.
type Commitment struct {
	ID         string
	OfferID    string
	InvestorID string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// AdmissionResult reports a successful admission decision.
type AdmissionResult struct {
	AcceptedAmount     decimal.Decimal
	NewCommittedAmount decimal.Decimal
}
