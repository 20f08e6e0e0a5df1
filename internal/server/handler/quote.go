package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// QuoteService defines the methods the quote handler requires from the
// service layer.
type QuoteService interface {
	PriceQuote(principal decimal.Decimal, termMonths int) (domain.LoanQuote, error)
}

// QuoteHandler serves the stateless pricing endpoint.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler with the given service and logger.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logger,
	}
}

// quoteRequest is the JSON body for a pricing preview.
type quoteRequest struct {
	Principal  decimal.Decimal `json:"principal"`
	TermMonths int             `json:"term_months"`
}

// quoteResponse flattens a LoanQuote for API clients.
type quoteResponse struct {
	Principal         string `json:"principal"`
	TermMonths        int    `json:"term_months"`
	MonthlyRate       string `json:"monthly_rate"`
	InstallmentAmount string `json:"installment_amount"`
	TotalPayable      string `json:"total_payable"`
}

// PriceQuote prices a (principal, term) pair without creating anything.
// POST /api/quotes
func (h *QuoteHandler) PriceQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	quote, err := h.quotes.PriceQuote(req.Principal, req.TermMonths)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTerm):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: price quote failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to price quote")
		}
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Principal:         quote.Principal.StringFixed(2),
		TermMonths:        quote.TermMonths,
		MonthlyRate:       quote.MonthlyRate.String(),
		InstallmentAmount: quote.InstallmentAmount.StringFixed(2),
		TotalPayable:      quote.TotalPayable.StringFixed(2),
	})
}
