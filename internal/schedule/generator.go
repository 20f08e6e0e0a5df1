// Package schedule generates repayment schedules and derives per-installment
// status. Status is a pure function of (paid marker, due date, reference
// date) recomputed on every read; there is no stored transition. Callers
// should capture "now" once per render and pass it as the reference date so
// one installment cannot flip state mid-list.
package schedule

import (
	"time"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// Generate builds the full schedule for a quote: exactly quote.TermMonths
// installments with 1-based sequence numbers, equal amounts, and due dates
// one calendar month apart starting one month after startDate. Paid markers
// and the reference date drive status classification.
func Generate(quote domain.LoanQuote, startDate time.Time, paid map[int]time.Time, referenceDate time.Time) []domain.Installment {
	installments := make([]domain.Installment, 0, quote.TermMonths)
	for seq := 1; seq <= quote.TermMonths; seq++ {
		inst := domain.Installment{
			Sequence: seq,
			DueDate:  startDate.AddDate(0, seq, 0),
			Amount:   quote.InstallmentAmount,
		}
		if paidAt, ok := paid[seq]; ok {
			t := paidAt
			inst.PaidAt = &t
		}
		inst.Status = Classify(inst, referenceDate)
		installments = append(installments, inst)
	}
	return installments
}

// Classify derives the status of a single installment relative to the
// reference date. Paid is terminal regardless of dates. An unpaid
// installment is overdue the day after its due date passes; one not yet
// due is open while the reference date sits in its due month and
// upcoming before that.
func Classify(inst domain.Installment, referenceDate time.Time) domain.InstallmentStatus {
	switch {
	case inst.Paid():
		return domain.InstallmentStatusPaid
	case inst.DueDate.Before(referenceDate):
		return domain.InstallmentStatusOverdue
	case sameMonth(inst.DueDate, referenceDate):
		return domain.InstallmentStatusOpen
	default:
		return domain.InstallmentStatusUpcoming
	}
}

// Reclassify recomputes the status of every installment against a new
// reference date, returning a fresh slice. The input is not mutated.
func Reclassify(installments []domain.Installment, referenceDate time.Time) []domain.Installment {
	out := make([]domain.Installment, len(installments))
	for i, inst := range installments {
		inst.Status = Classify(inst, referenceDate)
		out[i] = inst
	}
	return out
}

// FilterByStatus returns the installments matching status. It is a pure
// post-filter for display; the generated sequence is never mutated.
func FilterByStatus(installments []domain.Installment, status domain.InstallmentStatus) []domain.Installment {
	var out []domain.Installment
	for _, inst := range installments {
		if inst.Status == status {
			out = append(out, inst)
		}
	}
	return out
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
