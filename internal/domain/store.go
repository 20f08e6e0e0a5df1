package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LoanStore persists loans.
type LoanStore interface {
	Create(ctx context.Context, loan Loan) error
	GetByID(ctx context.Context, id string) (Loan, error)
	ListByBorrower(ctx context.Context, borrowerID string, opts ListOpts) ([]Loan, error)
	UpdateStatus(ctx context.Context, id string, status LoanStatus) error
}

// InstallmentStore persists repayment schedules.
type InstallmentStore interface {
	CreateBatch(ctx context.Context, installments []Installment) error
	ListByLoan(ctx context.Context, loanID string) ([]Installment, error)
	MarkPaid(ctx context.Context, loanID string, sequence int, paidAt time.Time) error
	CountUnpaid(ctx context.Context, loanID string) (int, error)
}

// OfferStore persists funding offers.
//
// CommitFunds is the authoritative admission write: it must atomically verify
// that amount still fits the offer's remaining capacity and add it to
// CommittedAmount, returning the new committed total. Two concurrent calls
// must never jointly push CommittedAmount past TargetAmount. On a capacity
// miss it returns ErrOfferFull or an ExceedsRemainingError.
type OfferStore interface {
	Create(ctx context.Context, offer FundingOffer) error
	GetByID(ctx context.Context, id string) (FundingOffer, error)
	GetByLoan(ctx context.Context, loanID string) (FundingOffer, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]FundingOffer, error)
	CommitFunds(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, id string, status OfferStatus) error
}

// CommitmentStore persists accepted investor commitments.
type CommitmentStore interface {
	Create(ctx context.Context, c Commitment) error
	ListByOffer(ctx context.Context, offerID string, opts ListOpts) ([]Commitment, error)
	ListByInvestor(ctx context.Context, investorID string, opts ListOpts) ([]Commitment, error)
	SumByOffer(ctx context.Context, offerID string) (decimal.Decimal, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
