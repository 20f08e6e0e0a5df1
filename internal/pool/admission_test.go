package pool

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

func testOffer(target, committed, minimum int64) domain.FundingOffer {
	return domain.FundingOffer{
		ID:                "offer-1",
		LoanID:            "loan-1",
		TargetAmount:      decimal.NewFromInt(target),
		CommittedAmount:   decimal.NewFromInt(committed),
		MinimumCommitment: decimal.NewFromInt(minimum),
		Status:            domain.OfferStatusOpen,
	}
}

func TestTryAdmit_AcceptsFittingCommitment(t *testing.T) {
	offer := testOffer(10000, 2000, 100)

	result, err := TryAdmit(offer, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.AcceptedAmount.StringFixed(2); got != "500.00" {
		t.Errorf("expected accepted 500.00, got %s", got)
	}
	if got := result.NewCommittedAmount.StringFixed(2); got != "2500.00" {
		t.Errorf("expected new committed 2500.00, got %s", got)
	}
}

func TestTryAdmit_NearlyFullOffer(t *testing.T) {
	// 9500 of 10000 committed, 500 remaining.
	offer := testOffer(10000, 9500, 100)

	// 600 does not fit and reports the exact remaining capacity.
	_, err := TryAdmit(offer, decimal.NewFromInt(600))
	var exceeds *domain.ExceedsRemainingError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected ExceedsRemainingError, got %v", err)
	}
	if got := exceeds.Remaining.StringFixed(2); got != "500.00" {
		t.Errorf("expected remaining 500.00, got %s", got)
	}
	if !errors.Is(err, domain.ErrExceedsRemaining) {
		t.Errorf("expected errors.Is to match ErrExceedsRemaining")
	}

	// The exact remaining amount fills the offer.
	result, err := TryAdmit(offer, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.NewCommittedAmount.Equal(offer.TargetAmount) {
		t.Errorf("expected committed to reach target, got %s", result.NewCommittedAmount)
	}

	// A full offer rejects even the smallest admissible commitment.
	full := testOffer(10000, 10000, 100)
	_, err = TryAdmit(full, decimal.NewFromInt(100))
	if !errors.Is(err, domain.ErrOfferFull) {
		t.Errorf("expected ErrOfferFull, got %v", err)
	}
}

func TestTryAdmit_CheckOrder(t *testing.T) {
	// A non-positive amount fails before anything else, even on a full offer
	// with a minimum.
	full := testOffer(10000, 10000, 100)
	_, err := TryAdmit(full, decimal.Zero)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount first, got %v", err)
	}

	// Below-minimum fails before capacity checks.
	_, err = TryAdmit(full, decimal.NewFromInt(50))
	if !errors.Is(err, domain.ErrBelowMinimum) {
		t.Errorf("expected ErrBelowMinimum before ErrOfferFull, got %v", err)
	}

	// OfferFull fails before ExceedsRemaining.
	_, err = TryAdmit(full, decimal.NewFromInt(100))
	if !errors.Is(err, domain.ErrOfferFull) {
		t.Errorf("expected ErrOfferFull, got %v", err)
	}
}

func TestTryAdmit_NeverClamps(t *testing.T) {
	offer := testOffer(10000, 9900, 10)

	_, err := TryAdmit(offer, decimal.NewFromInt(200))
	var exceeds *domain.ExceedsRemainingError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected ExceedsRemainingError, got %v", err)
	}

	// A partial fill only happens when the caller re-offers the remaining
	// amount explicitly.
	result, err := TryAdmit(offer, exceeds.Remaining)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.AcceptedAmount.StringFixed(2); got != "100.00" {
		t.Errorf("expected accepted 100.00, got %s", got)
	}
}

func TestPercentFunded(t *testing.T) {
	cases := []struct {
		target    int64
		committed int64
		want      float64
	}{
		{10000, 0, 0},
		{10000, 2500, 25},
		{10000, 9999, 100.0}, // 99.99 rounds to 100.0 at one decimal
		{10000, 10000, 100},
		{3000, 1000, 33.3},
		{0, 500, 0}, // degenerate target
	}

	for _, c := range cases {
		offer := testOffer(c.target, c.committed, 1)
		if got := PercentFunded(offer); got != c.want {
			t.Errorf("percent(%d/%d): expected %.1f, got %.1f",
				c.committed, c.target, c.want, got)
		}
	}
}
