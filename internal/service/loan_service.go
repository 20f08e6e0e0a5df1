package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/pricing"
	"github.com/mvbarbosa/lendpool/internal/schedule"
)

// Product bounds for a loan request, matching the borrower request sliders.
var (
	MinPrincipal = decimal.NewFromInt(1000)
	MaxPrincipal = decimal.NewFromInt(50000)
)

// LoanRequest carries the parameters of a new borrower loan.
type LoanRequest struct {
	BorrowerID        string
	Principal         decimal.Decimal
	TermMonths        int
	StartDate         time.Time
	MinimumCommitment decimal.Decimal
}

// LoanService owns the borrower side: pricing a request, persisting the loan
// with its full repayment schedule, opening its funding offer, and tracking
// repayment progress.
type LoanService struct {
	loans        domain.LoanStore
	installments domain.InstallmentStore
	offers       domain.OfferStore
	bus          domain.SignalBus
	audit        domain.AuditStore
	logger       *slog.Logger
}

// NewLoanService creates a LoanService with all required dependencies.
func NewLoanService(
	loans domain.LoanStore,
	installments domain.InstallmentStore,
	offers domain.OfferStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *LoanService {
	return &LoanService{
		loans:        loans,
		installments: installments,
		offers:       offers,
		bus:          bus,
		audit:        audit,
		logger:       logger,
	}
}

// PriceQuote prices a (principal, term) pair against the product bounds
// without persisting anything. It backs the preview slider on the request
// form.
func (s *LoanService) PriceQuote(principal decimal.Decimal, termMonths int) (domain.LoanQuote, error) {
	if principal.LessThan(MinPrincipal) {
		return domain.LoanQuote{}, fmt.Errorf("loan_service: principal below product minimum %s: %w",
			MinPrincipal.StringFixed(2), domain.ErrInvalidAmount)
	}
	if principal.GreaterThan(MaxPrincipal) {
		return domain.LoanQuote{}, fmt.Errorf("loan_service: principal above product maximum %s: %w",
			MaxPrincipal.StringFixed(2), domain.ErrInvalidAmount)
	}
	quote, err := pricing.Quote(principal, termMonths)
	if err != nil {
		return domain.LoanQuote{}, fmt.Errorf("loan_service: quote: %w", err)
	}
	return quote, nil
}

// RequestLoan prices the request, persists the loan and its schedule, and
// opens the funding offer investors commit against. The quote is recomputed
// here rather than trusted from the client so a stale slider preview can
// never fix a loan's price.
func (s *LoanService) RequestLoan(ctx context.Context, req LoanRequest) (domain.Loan, error) {
	if !req.MinimumCommitment.IsPositive() || req.MinimumCommitment.GreaterThan(req.Principal) {
		return domain.Loan{}, fmt.Errorf("loan_service: minimum commitment must be in (0, principal]: %w",
			domain.ErrInvalidAmount)
	}

	quote, err := s.PriceQuote(req.Principal, req.TermMonths)
	if err != nil {
		return domain.Loan{}, err
	}

	now := time.Now().UTC()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}

	loan := domain.Loan{
		ID:                uuid.New().String(),
		BorrowerID:        req.BorrowerID,
		Principal:         quote.Principal,
		TermMonths:        quote.TermMonths,
		MonthlyRate:       quote.MonthlyRate,
		InstallmentAmount: quote.InstallmentAmount,
		TotalPayable:      quote.TotalPayable,
		StartDate:         start,
		EndDate:           start.AddDate(0, quote.TermMonths, 0),
		Status:            domain.LoanStatusActive,
		CreatedAt:         now,
	}

	if err := s.loans.Create(ctx, loan); err != nil {
		return domain.Loan{}, fmt.Errorf("loan_service: create loan: %w", err)
	}

	installments := schedule.Generate(quote, start, nil, start)
	for i := range installments {
		installments[i].LoanID = loan.ID
	}
	if err := s.installments.CreateBatch(ctx, installments); err != nil {
		return domain.Loan{}, fmt.Errorf("loan_service: create schedule for %s: %w", loan.ID, err)
	}

	offer := domain.FundingOffer{
		ID:                uuid.New().String(),
		LoanID:            loan.ID,
		TargetAmount:      loan.Principal,
		CommittedAmount:   decimal.Zero,
		MinimumCommitment: req.MinimumCommitment,
		Status:            domain.OfferStatusOpen,
		CreatedAt:         now,
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return domain.Loan{}, fmt.Errorf("loan_service: open offer for %s: %w", loan.ID, err)
	}

	s.publish(ctx, "loans", map[string]any{
		"event":       "loan_requested",
		"loan_id":     loan.ID,
		"borrower_id": loan.BorrowerID,
		"principal":   loan.Principal.StringFixed(2),
		"term_months": loan.TermMonths,
		"offer_id":    offer.ID,
	})

	if auditErr := s.audit.Log(ctx, "loan_requested", map[string]any{
		"loan_id":      loan.ID,
		"borrower_id":  loan.BorrowerID,
		"principal":    loan.Principal.StringFixed(2),
		"term_months":  loan.TermMonths,
		"monthly_rate": loan.MonthlyRate.String(),
		"installment":  loan.InstallmentAmount.StringFixed(2),
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "loan_service: audit log failed",
			slog.String("loan_id", loan.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "loan_service: loan requested",
		slog.String("loan_id", loan.ID),
		slog.String("borrower_id", loan.BorrowerID),
		slog.String("principal", loan.Principal.StringFixed(2)),
		slog.Int("term_months", loan.TermMonths),
	)

	return loan, nil
}

// GetLoan returns a loan by ID.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (domain.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("loan_service: get loan %q: %w", loanID, err)
	}
	return loan, nil
}

// ListByBorrower returns a borrower's loans.
func (s *LoanService) ListByBorrower(ctx context.Context, borrowerID string, opts domain.ListOpts) ([]domain.Loan, error) {
	loans, err := s.loans.ListByBorrower(ctx, borrowerID, opts)
	if err != nil {
		return nil, fmt.Errorf("loan_service: list loans for %q: %w", borrowerID, err)
	}
	return loans, nil
}

// GetSchedule returns a loan's installments classified against referenceDate.
// Callers pass one reference date per render so the whole list is classified
// against the same instant.
func (s *LoanService) GetSchedule(ctx context.Context, loanID string, referenceDate time.Time) ([]domain.Installment, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, fmt.Errorf("loan_service: get loan %q: %w", loanID, err)
	}

	installments, err := s.installments.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("loan_service: list schedule for %q: %w", loanID, err)
	}

	return schedule.Reclassify(installments, referenceDate), nil
}

// RecordPayment marks one installment paid. When the last installment is
// paid the loan transitions to settled.
func (s *LoanService) RecordPayment(ctx context.Context, loanID string, sequence int, paidAt time.Time) error {
	if err := s.installments.MarkPaid(ctx, loanID, sequence, paidAt); err != nil {
		return fmt.Errorf("loan_service: mark %s/%d paid: %w", loanID, sequence, err)
	}

	unpaid, err := s.installments.CountUnpaid(ctx, loanID)
	if err != nil {
		return fmt.Errorf("loan_service: count unpaid for %s: %w", loanID, err)
	}

	if unpaid == 0 {
		if err := s.loans.UpdateStatus(ctx, loanID, domain.LoanStatusSettled); err != nil {
			return fmt.Errorf("loan_service: settle loan %s: %w", loanID, err)
		}
	}

	s.publish(ctx, "loans", map[string]any{
		"event":    "installment_paid",
		"loan_id":  loanID,
		"sequence": sequence,
		"settled":  unpaid == 0,
	})

	if auditErr := s.audit.Log(ctx, "installment_paid", map[string]any{
		"loan_id":  loanID,
		"sequence": sequence,
		"paid_at":  paidAt,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "loan_service: audit log failed",
			slog.String("loan_id", loanID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "loan_service: payment recorded",
		slog.String("loan_id", loanID),
		slog.Int("sequence", sequence),
		slog.Bool("settled", unpaid == 0),
	)

	return nil
}

// OutstandingBalance returns the sum still owed on a loan: unpaid
// installment count times the flat installment amount.
func (s *LoanService) OutstandingBalance(ctx context.Context, loanID string) (decimal.Decimal, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("loan_service: get loan %q: %w", loanID, err)
	}

	unpaid, err := s.installments.CountUnpaid(ctx, loanID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("loan_service: count unpaid for %q: %w", loanID, err)
	}

	return loan.InstallmentAmount.Mul(decimal.NewFromInt(int64(unpaid))), nil
}

func (s *LoanService) publish(ctx context.Context, channel string, event map[string]any) {
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "loan_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
