package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/schedule"
	"github.com/mvbarbosa/lendpool/internal/service"
)

// LoanPortfolio defines the methods the loan handler requires from the
// service layer.
type LoanPortfolio interface {
	RequestLoan(ctx context.Context, req service.LoanRequest) (domain.Loan, error)
	GetLoan(ctx context.Context, loanID string) (domain.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID string, opts domain.ListOpts) ([]domain.Loan, error)
	GetSchedule(ctx context.Context, loanID string, referenceDate time.Time) ([]domain.Installment, error)
	RecordPayment(ctx context.Context, loanID string, sequence int, paidAt time.Time) error
	OutstandingBalance(ctx context.Context, loanID string) (decimal.Decimal, error)
}

// LoanHandler serves loan-related HTTP endpoints.
type LoanHandler struct {
	loans  LoanPortfolio
	logger *slog.Logger
}

// NewLoanHandler creates a LoanHandler with the given service and logger.
func NewLoanHandler(loans LoanPortfolio, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{
		loans:  loans,
		logger: logger,
	}
}

// createLoanRequest is the JSON body for a new loan request.
type createLoanRequest struct {
	BorrowerID        string          `json:"borrower_id"`
	Principal         decimal.Decimal `json:"principal"`
	TermMonths        int             `json:"term_months"`
	StartDate         string          `json:"start_date"` // YYYY-MM-DD, optional
	MinimumCommitment decimal.Decimal `json:"minimum_commitment"`
}

// loanResponse flattens a domain.Loan for API clients.
type loanResponse struct {
	ID                string `json:"id"`
	BorrowerID        string `json:"borrower_id"`
	Principal         string `json:"principal"`
	TermMonths        int    `json:"term_months"`
	MonthlyRate       string `json:"monthly_rate"`
	InstallmentAmount string `json:"installment_amount"`
	TotalPayable      string `json:"total_payable"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
}

func toLoanResponse(l domain.Loan) loanResponse {
	return loanResponse{
		ID:                l.ID,
		BorrowerID:        l.BorrowerID,
		Principal:         l.Principal.StringFixed(2),
		TermMonths:        l.TermMonths,
		MonthlyRate:       l.MonthlyRate.String(),
		InstallmentAmount: l.InstallmentAmount.StringFixed(2),
		TotalPayable:      l.TotalPayable.StringFixed(2),
		StartDate:         l.StartDate.Format("2006-01-02"),
		EndDate:           l.EndDate.Format("2006-01-02"),
		Status:            string(l.Status),
		CreatedAt:         l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// installmentResponse flattens a domain.Installment for API clients.
type installmentResponse struct {
	Sequence int    `json:"sequence"`
	DueDate  string `json:"due_date"`
	Amount   string `json:"amount"`
	PaidAt   string `json:"paid_at,omitempty"`
	Status   string `json:"status"`
}

func toInstallmentResponse(in domain.Installment) installmentResponse {
	resp := installmentResponse{
		Sequence: in.Sequence,
		DueDate:  in.DueDate.Format("2006-01-02"),
		Amount:   in.Amount.StringFixed(2),
		Status:   string(in.Status),
	}
	if in.PaidAt != nil {
		resp.PaidAt = in.PaidAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// CreateLoan prices and persists a new loan with its repayment schedule and
// funding offer.
// POST /api/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var body createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.BorrowerID == "" {
		writeError(w, http.StatusBadRequest, "borrower_id is required")
		return
	}

	req := service.LoanRequest{
		BorrowerID:        body.BorrowerID,
		Principal:         body.Principal,
		TermMonths:        body.TermMonths,
		MinimumCommitment: body.MinimumCommitment,
	}
	if body.StartDate != "" {
		start, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		req.StartDate = start
	}

	loan, err := h.loans.RequestLoan(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTerm) || errors.Is(err, domain.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create loan failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create loan")
		return
	}

	writeJSON(w, http.StatusCreated, toLoanResponse(loan))
}

// listLoansResponse wraps the list loans response.
type listLoansResponse struct {
	Loans []loanResponse `json:"loans"`
}

// ListLoans returns loans for a borrower.
// GET /api/loans?borrower_id=...&limit=50&offset=0
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID := r.URL.Query().Get("borrower_id")
	if borrowerID == "" {
		writeError(w, http.StatusBadRequest, "borrower_id query parameter required")
		return
	}

	loans, err := h.loans.ListByBorrower(r.Context(), borrowerID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list loans failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}

	resp := listLoansResponse{Loans: make([]loanResponse, 0, len(loans))}
	for _, l := range loans {
		resp.Loans = append(resp.Loans, toLoanResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLoan returns a single loan by its ID.
// GET /api/loans/{id}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing loan id")
		return
	}

	loan, err := h.loans.GetLoan(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get loan failed",
			slog.String("loan_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get loan")
		return
	}

	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

// scheduleResponse wraps a loan's repayment schedule.
type scheduleResponse struct {
	LoanID       string                `json:"loan_id"`
	AsOf         string                `json:"as_of"`
	Installments []installmentResponse `json:"installments"`
}

// GetSchedule returns a loan's repayment schedule with statuses derived
// against the as_of date (default: today). An optional status filter keeps
// only installments in that state.
// GET /api/loans/{id}/schedule?status=overdue&as_of=2026-08-30
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing loan id")
		return
	}

	asOf, err := parseDateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		return
	}

	installments, err := h.loans.GetSchedule(r.Context(), id, asOf)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get schedule failed",
			slog.String("loan_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}

	if filter := r.URL.Query().Get("status"); filter != "" {
		status := domain.InstallmentStatus(filter)
		switch status {
		case domain.InstallmentStatusPaid, domain.InstallmentStatusOpen,
			domain.InstallmentStatusOverdue, domain.InstallmentStatusUpcoming:
			installments = schedule.FilterByStatus(installments, status)
		default:
			writeError(w, http.StatusBadRequest, "unknown status filter: "+filter)
			return
		}
	}

	resp := scheduleResponse{
		LoanID:       id,
		AsOf:         asOf.Format("2006-01-02"),
		Installments: make([]installmentResponse, 0, len(installments)),
	}
	for _, in := range installments {
		resp.Installments = append(resp.Installments, toInstallmentResponse(in))
	}
	writeJSON(w, http.StatusOK, resp)
}

// paymentRequest is the JSON body for recording an installment payment.
type paymentRequest struct {
	Sequence int    `json:"sequence"`
	PaidAt   string `json:"paid_at"` // RFC 3339, optional
}

// RecordPayment marks an installment as paid.
// POST /api/loans/{id}/payments
func (h *LoanHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing loan id")
		return
	}

	var body paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Sequence < 1 {
		writeError(w, http.StatusBadRequest, "sequence must be >= 1")
		return
	}

	paidAt := time.Now().UTC()
	if body.PaidAt != "" {
		t, err := time.Parse(time.RFC3339, body.PaidAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "paid_at must be RFC 3339")
			return
		}
		paidAt = t
	}

	if err := h.loans.RecordPayment(r.Context(), id, body.Sequence, paidAt); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "installment not found")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "installment already paid")
		default:
			h.logger.ErrorContext(r.Context(), "handler: record payment failed",
				slog.String("loan_id", id),
				slog.Int("sequence", body.Sequence),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to record payment")
		}
		return
	}

	balance, err := h.loans.OutstandingBalance(r.Context(), id)
	if err != nil {
		// Payment was recorded; report it without the balance.
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "paid",
			"loan_id":  id,
			"sequence": body.Sequence,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "paid",
		"loan_id":             id,
		"sequence":            body.Sequence,
		"outstanding_balance": balance.StringFixed(2),
	})
}
