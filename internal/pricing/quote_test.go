package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

func TestResolveMonthlyRate_TierBoundaries(t *testing.T) {
	cases := []struct {
		term int
		want string
	}{
		{1, "0.02"},
		{6, "0.02"},
		{12, "0.02"},
		{13, "0.025"},
		{24, "0.025"},
		{25, "0.03"},
		{36, "0.03"},
		{37, "0.035"},
		{48, "0.035"},
		{120, "0.035"},
	}

	for _, c := range cases {
		rate, err := ResolveMonthlyRate(c.term)
		if err != nil {
			t.Fatalf("term %d: unexpected error: %v", c.term, err)
		}
		if rate.String() != c.want {
			t.Errorf("term %d: expected rate %s, got %s", c.term, c.want, rate)
		}
	}
}

func TestResolveMonthlyRate_InvalidTerm(t *testing.T) {
	for _, term := range []int{0, -1, -12} {
		_, err := ResolveMonthlyRate(term)
		if !errors.Is(err, domain.ErrInvalidTerm) {
			t.Errorf("term %d: expected ErrInvalidTerm, got %v", term, err)
		}
	}
}

func TestQuote_TwelveMonths(t *testing.T) {
	quote, err := Quote(decimal.NewFromInt(10000), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10000 * 1.02^12 / 12, rounded to cents.
	if got := quote.InstallmentAmount.StringFixed(2); got != "1056.87" {
		t.Errorf("expected installment 1056.87, got %s", got)
	}
	if got := quote.TotalPayable.StringFixed(2); got != "12682.44" {
		t.Errorf("expected total payable 12682.44, got %s", got)
	}
	if quote.MonthlyRate.String() != "0.02" {
		t.Errorf("expected rate 0.02, got %s", quote.MonthlyRate)
	}
}

func TestQuote_TotalIsExactMultipleOfInstallment(t *testing.T) {
	principals := []int64{1000, 2500, 9999, 10000, 33333, 50000}
	terms := []int{6, 12, 18, 24, 36, 48}

	for _, p := range principals {
		for _, term := range terms {
			quote, err := Quote(decimal.NewFromInt(p), term)
			if err != nil {
				t.Fatalf("quote(%d, %d): unexpected error: %v", p, term, err)
			}

			want := quote.InstallmentAmount.Mul(decimal.NewFromInt(int64(term)))
			if !quote.TotalPayable.Equal(want) {
				t.Errorf("quote(%d, %d): total %s != installment*term %s",
					p, term, quote.TotalPayable, want)
			}
			if quote.InstallmentAmount.Exponent() < -2 {
				t.Errorf("quote(%d, %d): installment %s has sub-cent precision",
					p, term, quote.InstallmentAmount)
			}
		}
	}
}

func TestQuote_Deterministic(t *testing.T) {
	a, err := Quote(decimal.NewFromInt(25000), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Quote(decimal.NewFromInt(25000), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.InstallmentAmount.Equal(b.InstallmentAmount) || !a.TotalPayable.Equal(b.TotalPayable) {
		t.Errorf("repeated quote differs: %+v vs %+v", a, b)
	}
}

func TestQuote_LongerTermCostsMore(t *testing.T) {
	principal := decimal.NewFromInt(10000)

	prev, err := Quote(principal, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for term := 7; term <= 48; term++ {
		q, err := Quote(principal, term)
		if err != nil {
			t.Fatalf("term %d: unexpected error: %v", term, err)
		}
		if q.TotalPayable.LessThan(prev.TotalPayable) {
			t.Errorf("term %d: total %s dropped below term %d total %s",
				term, q.TotalPayable, term-1, prev.TotalPayable)
		}
		prev = q
	}
}

func TestQuote_TermOutOfBounds(t *testing.T) {
	principal := decimal.NewFromInt(10000)

	for _, term := range []int{0, 5, 49, -3} {
		_, err := Quote(principal, term)
		if !errors.Is(err, domain.ErrInvalidTerm) {
			t.Errorf("term %d: expected ErrInvalidTerm, got %v", term, err)
		}
	}
}

func TestQuote_InvalidPrincipal(t *testing.T) {
	for _, p := range []int64{0, -1000} {
		_, err := Quote(decimal.NewFromInt(p), 12)
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("principal %d: expected ErrInvalidAmount, got %v", p, err)
		}
	}
}
