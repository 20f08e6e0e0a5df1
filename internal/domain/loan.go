package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// All monetary fields in this package are decimal.Decimal so that repeated
// quote recomputation stays exact. Amounts are rounded to cents only at the
// display/persistence edge, never inside the calculators.

// LoanQuote is the priced result of a loan request. It is a value object:
// InstallmentAmount and TotalPayable are pure functions of
// (Principal, TermMonths) and are always recomputed together.
type LoanQuote struct {
	Principal         decimal.Decimal
	TermMonths        int
	MonthlyRate       decimal.Decimal
	InstallmentAmount decimal.Decimal
	TotalPayable      decimal.Decimal
}

// LoanStatus tracks the loan lifecycle.
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusSettled   LoanStatus = "settled"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// Loan is a funded borrower loan together with its pricing snapshot.
type Loan struct {
	ID                string
	BorrowerID        string
	Principal         decimal.Decimal
	TermMonths        int
	MonthlyRate       decimal.Decimal
	InstallmentAmount decimal.Decimal
	TotalPayable      decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time // due date of the final installment
	Status            LoanStatus
	CreatedAt         time.Time
}

// Quote reconstructs the loan's pricing snapshot as a LoanQuote value.
func (l Loan) Quote() LoanQuote {
	return LoanQuote{
		Principal:         l.Principal,
		TermMonths:        l.TermMonths,
		MonthlyRate:       l.MonthlyRate,
		InstallmentAmount: l.InstallmentAmount,
		TotalPayable:      l.TotalPayable,
	}
}

// InstallmentStatus is derived from (paid marker, due date, reference date)
// on every read; it is never stored.
type InstallmentStatus string

const (
	InstallmentStatusPaid     InstallmentStatus = "paid"
	InstallmentStatusOpen     InstallmentStatus = "open"
	InstallmentStatusOverdue  InstallmentStatus = "overdue"
	InstallmentStatusUpcoming InstallmentStatus = "upcoming"
)

// Installment is one row of a loan's repayment schedule. The schedule is
// generated once at loan creation and is read-only afterwards except for the
// paid marker.
type Installment struct {
	LoanID   string
	Sequence int // 1-based, unique within a loan
	DueDate  time.Time
	Amount   decimal.Decimal
	PaidAt   *time.Time
	Status   InstallmentStatus
}

// Paid reports whether a payment has been recorded for this installment.
func (i Installment) Paid() bool { return i.PaidAt != nil }
