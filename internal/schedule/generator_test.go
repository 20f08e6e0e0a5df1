package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

func testQuote(termMonths int) domain.LoanQuote {
	return domain.LoanQuote{
		Principal:         decimal.NewFromInt(12000),
		TermMonths:        termMonths,
		MonthlyRate:       decimal.RequireFromString("0.02"),
		InstallmentAmount: decimal.RequireFromString("1100.00"),
		TotalPayable:      decimal.RequireFromString("1100.00").Mul(decimal.NewFromInt(int64(termMonths))),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_LengthAndSequences(t *testing.T) {
	start := date(2026, time.January, 15)
	installments := Generate(testQuote(12), start, nil, start)

	if len(installments) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(installments))
	}

	for i, inst := range installments {
		if inst.Sequence != i+1 {
			t.Errorf("index %d: expected sequence %d, got %d", i, i+1, inst.Sequence)
		}
		want := start.AddDate(0, i+1, 0)
		if !inst.DueDate.Equal(want) {
			t.Errorf("sequence %d: expected due date %s, got %s",
				inst.Sequence, want, inst.DueDate)
		}
	}
}

func TestGenerate_DueDatesStrictlyIncreasing(t *testing.T) {
	start := date(2026, time.March, 31)
	installments := Generate(testQuote(24), start, nil, start)

	for i := 1; i < len(installments); i++ {
		if !installments[i].DueDate.After(installments[i-1].DueDate) {
			t.Errorf("due date %s (seq %d) not after %s (seq %d)",
				installments[i].DueDate, installments[i].Sequence,
				installments[i-1].DueDate, installments[i-1].Sequence)
		}
	}
}

func TestGenerate_EqualAmounts(t *testing.T) {
	start := date(2026, time.June, 1)
	quote := testQuote(6)
	installments := Generate(quote, start, nil, start)

	for _, inst := range installments {
		if !inst.Amount.Equal(quote.InstallmentAmount) {
			t.Errorf("sequence %d: expected amount %s, got %s",
				inst.Sequence, quote.InstallmentAmount, inst.Amount)
		}
	}
}

func TestClassify_PaidWinsOverDates(t *testing.T) {
	paidAt := date(2026, time.February, 10)
	inst := domain.Installment{
		Sequence: 1,
		DueDate:  date(2026, time.February, 15),
		PaidAt:   &paidAt,
	}

	// Paid regardless of whether the reference date is before, inside, or
	// after the due month.
	for _, ref := range []time.Time{
		date(2026, time.January, 1),
		date(2026, time.February, 20),
		date(2027, time.August, 1),
	} {
		if got := Classify(inst, ref); got != domain.InstallmentStatusPaid {
			t.Errorf("ref %s: expected paid, got %s", ref, got)
		}
	}
}

func TestClassify_DateBoundaries(t *testing.T) {
	inst := domain.Installment{
		Sequence: 1,
		DueDate:  date(2026, time.February, 15),
	}

	cases := []struct {
		ref  time.Time
		want domain.InstallmentStatus
	}{
		{date(2026, time.February, 1), domain.InstallmentStatusOpen},
		{date(2026, time.February, 14), domain.InstallmentStatusOpen},
		{date(2026, time.February, 15), domain.InstallmentStatusOpen},
		{date(2026, time.February, 16), domain.InstallmentStatusOverdue},
		{date(2026, time.February, 28), domain.InstallmentStatusOverdue},
		{date(2026, time.March, 1), domain.InstallmentStatusOverdue},
		{date(2026, time.January, 31), domain.InstallmentStatusUpcoming},
		{date(2025, time.December, 31), domain.InstallmentStatusUpcoming},
	}

	for _, c := range cases {
		if got := Classify(inst, c.ref); got != c.want {
			t.Errorf("ref %s: expected %s, got %s", c.ref.Format("2006-01-02"), c.want, got)
		}
	}
}

func TestClassify_OverdueDayAfterDueDate(t *testing.T) {
	inst := domain.Installment{
		Sequence: 1,
		DueDate:  date(2026, time.February, 15),
	}

	// An unpaid installment turns overdue the day after its due date even
	// while the reference date is still inside the due month.
	if got := Classify(inst, date(2026, time.February, 16)); got != domain.InstallmentStatusOverdue {
		t.Errorf("expected overdue the day after the due date, got %s", got)
	}

	paidAt := date(2026, time.February, 15)
	inst.PaidAt = &paidAt
	if got := Classify(inst, date(2026, time.February, 16)); got != domain.InstallmentStatusPaid {
		t.Errorf("expected paid to win over the date checks, got %s", got)
	}
}

func TestClassify_SameMonthDifferentYear(t *testing.T) {
	inst := domain.Installment{
		Sequence: 1,
		DueDate:  date(2026, time.February, 15),
	}

	// February of a different year is not the grace window.
	if got := Classify(inst, date(2027, time.February, 10)); got != domain.InstallmentStatusOverdue {
		t.Errorf("expected overdue one year later, got %s", got)
	}
}

func TestReclassify_DoesNotMutateInput(t *testing.T) {
	start := date(2026, time.January, 1)
	installments := Generate(testQuote(6), start, nil, start)
	original := installments[0].Status

	out := Reclassify(installments, date(2030, time.January, 1))

	if installments[0].Status != original {
		t.Errorf("input slice status mutated to %s", installments[0].Status)
	}
	if out[0].Status != domain.InstallmentStatusOverdue {
		t.Errorf("expected overdue after reclassify far in future, got %s", out[0].Status)
	}
}

func TestFilterByStatus(t *testing.T) {
	start := date(2026, time.January, 1)
	paid := map[int]time.Time{
		1: date(2026, time.February, 3),
		2: date(2026, time.March, 2),
	}
	// Reference date on the due date of sequence 4 (May 1): 1-2 paid,
	// 3 overdue, 4 open, 5-6 upcoming.
	ref := date(2026, time.May, 1)
	installments := Generate(testQuote(6), start, paid, ref)

	checks := []struct {
		status domain.InstallmentStatus
		count  int
	}{
		{domain.InstallmentStatusPaid, 2},
		{domain.InstallmentStatusOverdue, 1},
		{domain.InstallmentStatusOpen, 1},
		{domain.InstallmentStatusUpcoming, 2},
	}

	total := 0
	for _, c := range checks {
		got := FilterByStatus(installments, c.status)
		if len(got) != c.count {
			t.Errorf("status %s: expected %d installments, got %d", c.status, c.count, len(got))
		}
		total += len(got)
	}
	if total != len(installments) {
		t.Errorf("statuses do not partition the schedule: %d of %d accounted for",
			total, len(installments))
	}
}
