package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestFundingService(t *testing.T) (*FundingService, *memory.OfferStore, *memory.CommitmentStore) {
	t.Helper()
	offers := memory.NewOfferStore()
	commitments := memory.NewCommitmentStore()
	return NewFundingService(
		offers, commitments, nil, nil,
		memory.NewSignalBus(), memory.NewAuditStore(), nil,
		discardLogger(),
	), offers, commitments
}

func seedOffer(t *testing.T, offers *memory.OfferStore, target, committed, minimum int64) domain.FundingOffer {
	t.Helper()
	offer := domain.FundingOffer{
		ID:                "offer-1",
		LoanID:            "loan-1",
		TargetAmount:      decimal.NewFromInt(target),
		CommittedAmount:   decimal.NewFromInt(committed),
		MinimumCommitment: decimal.NewFromInt(minimum),
		Status:            domain.OfferStatusOpen,
		CreatedAt:         time.Now().UTC(),
	}
	if err := offers.Create(context.Background(), offer); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return offer
}

func TestAdmit_AcceptsAndRecordsCommitment(t *testing.T) {
	svc, offers, commitments := newTestFundingService(t)
	seedOffer(t, offers, 10000, 0, 100)
	ctx := context.Background()

	result, err := svc.Admit(ctx, "offer-1", "investor-1", decimal.NewFromInt(2500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.NewCommittedAmount.StringFixed(2); got != "2500.00" {
		t.Errorf("expected committed 2500.00, got %s", got)
	}

	ledger, err := commitments.ListByOffer(ctx, "offer-1", domain.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list commitments: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("expected 1 commitment, got %d", len(ledger))
	}
	if ledger[0].InvestorID != "investor-1" {
		t.Errorf("expected investor-1, got %s", ledger[0].InvestorID)
	}
}

func TestAdmit_RejectionsInOrder(t *testing.T) {
	svc, offers, commitments := newTestFundingService(t)
	seedOffer(t, offers, 10000, 9500, 100)
	ctx := context.Background()

	_, err := svc.Admit(ctx, "offer-1", "investor-1", decimal.Zero)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	_, err = svc.Admit(ctx, "offer-1", "investor-1", decimal.NewFromInt(50))
	if !errors.Is(err, domain.ErrBelowMinimum) {
		t.Errorf("expected ErrBelowMinimum, got %v", err)
	}

	_, err = svc.Admit(ctx, "offer-1", "investor-1", decimal.NewFromInt(600))
	var exceeds *domain.ExceedsRemainingError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected ExceedsRemainingError, got %v", err)
	}
	if got := exceeds.Remaining.StringFixed(2); got != "500.00" {
		t.Errorf("expected remaining 500.00, got %s", got)
	}

	// No rejected attempt may leave a ledger entry.
	ledger, _ := commitments.ListByOffer(ctx, "offer-1", domain.ListOpts{Limit: 10})
	if len(ledger) != 0 {
		t.Errorf("expected empty ledger after rejections, got %d entries", len(ledger))
	}
}

func TestAdmit_ExactFillMarksOfferFunded(t *testing.T) {
	svc, offers, _ := newTestFundingService(t)
	seedOffer(t, offers, 10000, 9500, 100)
	ctx := context.Background()

	result, err := svc.Admit(ctx, "offer-1", "investor-1", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.NewCommittedAmount.StringFixed(2); got != "10000.00" {
		t.Errorf("expected committed 10000.00, got %s", got)
	}

	offer, err := offers.GetByID(ctx, "offer-1")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if offer.Status != domain.OfferStatusFunded {
		t.Errorf("expected status funded, got %s", offer.Status)
	}

	// A funded offer admits nothing further.
	_, err = svc.Admit(ctx, "offer-1", "investor-2", decimal.NewFromInt(100))
	if !errors.Is(err, domain.ErrOfferFull) {
		t.Errorf("expected ErrOfferFull on funded offer, got %v", err)
	}
}

func TestAdmit_ConcurrentCommitmentsNeverOverfill(t *testing.T) {
	svc, offers, commitments := newTestFundingService(t)
	target := int64(10000)
	seedOffer(t, offers, target, 0, 100)
	ctx := context.Background()

	// 60 investors race to commit 300 each: 18000 requested against a
	// 10000 target. Some must be rejected.
	const investors = 60
	amount := decimal.NewFromInt(300)

	var wg sync.WaitGroup
	accepted := make([]bool, investors)
	for i := 0; i < investors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Admit(ctx, "offer-1", "investor", amount)
			accepted[i] = err == nil
		}(i)
	}
	wg.Wait()

	offer, err := offers.GetByID(ctx, "offer-1")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if offer.CommittedAmount.GreaterThan(offer.TargetAmount) {
		t.Fatalf("offer overfilled: %s committed against target %s",
			offer.CommittedAmount, offer.TargetAmount)
	}

	// Committed total must equal the sum of accepted commitments exactly.
	var acceptedCount int64
	for _, ok := range accepted {
		if ok {
			acceptedCount++
		}
	}
	wantCommitted := amount.Mul(decimal.NewFromInt(acceptedCount))
	if !offer.CommittedAmount.Equal(wantCommitted) {
		t.Errorf("committed %s != %d accepted * 300 = %s",
			offer.CommittedAmount, acceptedCount, wantCommitted)
	}

	// The ledger must agree with the offer counter.
	sum, err := commitments.SumByOffer(ctx, "offer-1")
	if err != nil {
		t.Fatalf("sum commitments: %v", err)
	}
	if !sum.Equal(offer.CommittedAmount) {
		t.Errorf("ledger sum %s != committed %s", sum, offer.CommittedAmount)
	}
}

func TestReconcile_DetectsLedgerDrift(t *testing.T) {
	svc, offers, commitments := newTestFundingService(t)
	seedOffer(t, offers, 10000, 0, 100)
	ctx := context.Background()

	if _, err := svc.Admit(ctx, "offer-1", "investor-1", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := svc.Reconcile(ctx, "offer-1"); err != nil {
		t.Fatalf("expected clean reconcile, got %v", err)
	}

	// A phantom ledger entry that bypassed admission must be flagged.
	err := commitments.Create(ctx, domain.Commitment{
		ID:         "phantom",
		OfferID:    "offer-1",
		InvestorID: "investor-2",
		Amount:     decimal.NewFromInt(500),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create phantom commitment: %v", err)
	}
	if err := svc.Reconcile(ctx, "offer-1"); err == nil {
		t.Errorf("expected reconcile to report drift")
	}
}
