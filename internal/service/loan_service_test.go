package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/store/memory"
)

type loanFixture struct {
	svc    *LoanService
	offers *memory.OfferStore
}

func newTestLoanService(t *testing.T) loanFixture {
	t.Helper()
	offers := memory.NewOfferStore()
	svc := NewLoanService(
		memory.NewLoanStore(),
		memory.NewInstallmentStore(),
		offers,
		memory.NewSignalBus(),
		memory.NewAuditStore(),
		discardLogger(),
	)
	return loanFixture{svc: svc, offers: offers}
}

func validRequest() LoanRequest {
	return LoanRequest{
		BorrowerID:        "borrower-1",
		Principal:         decimal.NewFromInt(10000),
		TermMonths:        12,
		StartDate:         time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		MinimumCommitment: decimal.NewFromInt(100),
	}
}

func TestRequestLoan_CreatesScheduleAndOffer(t *testing.T) {
	f := newTestLoanService(t)
	ctx := context.Background()

	loan, err := f.svc.RequestLoan(ctx, validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := loan.InstallmentAmount.StringFixed(2); got != "1056.87" {
		t.Errorf("expected installment 1056.87, got %s", got)
	}
	if got := loan.TotalPayable.StringFixed(2); got != "12682.44" {
		t.Errorf("expected total 12682.44, got %s", got)
	}
	if loan.Status != domain.LoanStatusActive {
		t.Errorf("expected active loan, got %s", loan.Status)
	}

	installments, err := f.svc.GetSchedule(ctx, loan.ID, loan.StartDate)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if len(installments) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(installments))
	}

	offer, err := f.offers.GetByLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("expected funding offer for loan: %v", err)
	}
	if !offer.TargetAmount.Equal(loan.Principal) {
		t.Errorf("expected offer target %s, got %s", loan.Principal, offer.TargetAmount)
	}
	if offer.Status != domain.OfferStatusOpen {
		t.Errorf("expected open offer, got %s", offer.Status)
	}
}

func TestRequestLoan_PrincipalBounds(t *testing.T) {
	f := newTestLoanService(t)
	ctx := context.Background()

	req := validRequest()
	req.Principal = decimal.NewFromInt(999)
	if _, err := f.svc.RequestLoan(ctx, req); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("principal 999: expected ErrInvalidAmount, got %v", err)
	}

	req = validRequest()
	req.Principal = decimal.NewFromInt(50001)
	if _, err := f.svc.RequestLoan(ctx, req); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("principal 50001: expected ErrInvalidAmount, got %v", err)
	}

	req = validRequest()
	req.TermMonths = 5
	if _, err := f.svc.RequestLoan(ctx, req); !errors.Is(err, domain.ErrInvalidTerm) {
		t.Errorf("term 5: expected ErrInvalidTerm, got %v", err)
	}

	req = validRequest()
	req.MinimumCommitment = decimal.Zero
	if _, err := f.svc.RequestLoan(ctx, req); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero minimum: expected ErrInvalidAmount, got %v", err)
	}
}

func TestPriceQuote_MatchesRequestLoanPricing(t *testing.T) {
	f := newTestLoanService(t)

	quote, err := f.svc.PriceQuote(decimal.NewFromInt(10000), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loan, err := f.svc.RequestLoan(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	if !loan.InstallmentAmount.Equal(quote.InstallmentAmount) {
		t.Errorf("preview installment %s != persisted %s",
			quote.InstallmentAmount, loan.InstallmentAmount)
	}
	if !loan.TotalPayable.Equal(quote.TotalPayable) {
		t.Errorf("preview total %s != persisted %s",
			quote.TotalPayable, loan.TotalPayable)
	}
}

func TestRecordPayment_SettlesLoanWhenAllPaid(t *testing.T) {
	f := newTestLoanService(t)
	ctx := context.Background()

	req := validRequest()
	req.TermMonths = 6
	loan, err := f.svc.RequestLoan(ctx, req)
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	for seq := 1; seq <= 6; seq++ {
		paidAt := loan.StartDate.AddDate(0, seq, 0)
		if err := f.svc.RecordPayment(ctx, loan.ID, seq, paidAt); err != nil {
			t.Fatalf("pay %d: %v", seq, err)
		}

		got, err := f.svc.GetLoan(ctx, loan.ID)
		if err != nil {
			t.Fatalf("get loan: %v", err)
		}
		want := domain.LoanStatusActive
		if seq == 6 {
			want = domain.LoanStatusSettled
		}
		if got.Status != want {
			t.Errorf("after payment %d: expected %s, got %s", seq, want, got.Status)
		}
	}

	balance, err := f.svc.OutstandingBalance(ctx, loan.ID)
	if err != nil {
		t.Fatalf("outstanding balance: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("expected zero balance on settled loan, got %s", balance)
	}
}

func TestRecordPayment_Idempotence(t *testing.T) {
	f := newTestLoanService(t)
	ctx := context.Background()

	loan, err := f.svc.RequestLoan(ctx, validRequest())
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	paidAt := loan.StartDate.AddDate(0, 1, 0)
	if err := f.svc.RecordPayment(ctx, loan.ID, 1, paidAt); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if err := f.svc.RecordPayment(ctx, loan.ID, 1, paidAt); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on double payment, got %v", err)
	}

	if err := f.svc.RecordPayment(ctx, loan.ID, 99, paidAt); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown sequence, got %v", err)
	}
}

func TestOutstandingBalance_CountsUnpaidInstallments(t *testing.T) {
	f := newTestLoanService(t)
	ctx := context.Background()

	loan, err := f.svc.RequestLoan(ctx, validRequest())
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	if err := f.svc.RecordPayment(ctx, loan.ID, 1, loan.StartDate.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("pay 1: %v", err)
	}

	balance, err := f.svc.OutstandingBalance(ctx, loan.ID)
	if err != nil {
		t.Fatalf("outstanding balance: %v", err)
	}
	want := loan.InstallmentAmount.Mul(decimal.NewFromInt(11))
	if !balance.Equal(want) {
		t.Errorf("expected balance %s, got %s", want, balance)
	}
}
