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
	"github.com/mvbarbosa/lendpool/internal/service"
)

// FundingDesk defines the methods the offer handler requires from the
// service layer.
type FundingDesk interface {
	Admit(ctx context.Context, offerID, investorID string, amount decimal.Decimal) (domain.AdmissionResult, error)
	Progress(ctx context.Context, offerID string) (service.FundingProgress, error)
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.FundingOffer, error)
	ListCommitments(ctx context.Context, offerID string, opts domain.ListOpts) ([]domain.Commitment, error)
}

// OfferHandler serves funding-offer HTTP endpoints.
type OfferHandler struct {
	funding FundingDesk
	logger  *slog.Logger
}

// NewOfferHandler creates an OfferHandler with the given service and logger.
func NewOfferHandler(funding FundingDesk, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{
		funding: funding,
		logger:  logger,
	}
}

// offerResponse flattens a domain.FundingOffer for API clients.
type offerResponse struct {
	ID                string `json:"id"`
	LoanID            string `json:"loan_id"`
	TargetAmount      string `json:"target_amount"`
	CommittedAmount   string `json:"committed_amount"`
	MinimumCommitment string `json:"minimum_commitment"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
}

func toOfferResponse(o domain.FundingOffer) offerResponse {
	return offerResponse{
		ID:                o.ID,
		LoanID:            o.LoanID,
		TargetAmount:      o.TargetAmount.StringFixed(2),
		CommittedAmount:   o.CommittedAmount.StringFixed(2),
		MinimumCommitment: o.MinimumCommitment.StringFixed(2),
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// listOffersResponse wraps the list offers response.
type listOffersResponse struct {
	Offers []offerResponse `json:"offers"`
}

// ListOffers returns offers currently open for commitments.
// GET /api/offers?limit=50&offset=0
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.funding.ListOpen(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list offers failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list offers")
		return
	}

	resp := listOffersResponse{Offers: make([]offerResponse, 0, len(offers))}
	for _, o := range offers {
		resp.Offers = append(resp.Offers, toOfferResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// progressResponse reports an offer together with its funding progress.
type progressResponse struct {
	Offer         offerResponse `json:"offer"`
	Remaining     string        `json:"remaining"`
	PercentFunded float64       `json:"percent_funded"`
}

// GetOffer returns a single offer with its funding progress.
// GET /api/offers/{id}
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offer id")
		return
	}

	progress, err := h.funding.Progress(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offer not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get offer failed",
			slog.String("offer_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get offer")
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Offer:         toOfferResponse(progress.Offer),
		Remaining:     progress.Remaining.StringFixed(2),
		PercentFunded: progress.PercentFunded,
	})
}

// commitmentRequest is the JSON body for a new investor commitment.
type commitmentRequest struct {
	InvestorID string          `json:"investor_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// CreateCommitment admits an investor commitment against an offer. Rejections
// carry a machine-readable reason; an over-large commitment also reports the
// exact remaining capacity so the client can re-offer that amount.
// POST /api/offers/{id}/commitments
func (h *OfferHandler) CreateCommitment(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offer id")
		return
	}

	var body commitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.InvestorID == "" {
		writeError(w, http.StatusBadRequest, "investor_id is required")
		return
	}

	result, err := h.funding.Admit(r.Context(), id, body.InvestorID, body.Amount)
	if err != nil {
		var exceeds *domain.ExceedsRemainingError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "offer not found")
		case errors.As(err, &exceeds):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":     err.Error(),
				"reason":    "exceeds_remaining",
				"remaining": exceeds.Remaining.StringFixed(2),
			})
		case errors.Is(err, domain.ErrOfferFull):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "offer is fully funded",
				"reason": "offer_full",
			})
		case errors.Is(err, domain.ErrBelowMinimum):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  err.Error(),
				"reason": "below_minimum",
			})
		case errors.Is(err, domain.ErrInvalidAmount):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  err.Error(),
				"reason": "invalid_amount",
			})
		default:
			h.logger.ErrorContext(r.Context(), "handler: create commitment failed",
				slog.String("offer_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create commitment")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status":           "accepted",
		"offer_id":         id,
		"accepted_amount":  result.AcceptedAmount.StringFixed(2),
		"committed_amount": result.NewCommittedAmount.StringFixed(2),
	})
}

// commitmentResponse flattens a domain.Commitment for API clients.
type commitmentResponse struct {
	ID         string `json:"id"`
	InvestorID string `json:"investor_id"`
	Amount     string `json:"amount"`
	CreatedAt  string `json:"created_at"`
}

// listCommitmentsResponse wraps the ledger listing for an offer.
type listCommitmentsResponse struct {
	OfferID     string               `json:"offer_id"`
	Commitments []commitmentResponse `json:"commitments"`
}

// ListCommitments returns the commitment ledger for an offer.
// GET /api/offers/{id}/commitments?limit=50&offset=0
func (h *OfferHandler) ListCommitments(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offer id")
		return
	}

	commitments, err := h.funding.ListCommitments(r.Context(), id, parseListOpts(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offer not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list commitments failed",
			slog.String("offer_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list commitments")
		return
	}

	resp := listCommitmentsResponse{
		OfferID:     id,
		Commitments: make([]commitmentResponse, 0, len(commitments)),
	}
	for _, c := range commitments {
		resp.Commitments = append(resp.Commitments, commitmentResponse{
			ID:         c.ID,
			InvestorID: c.InvestorID,
			Amount:     c.Amount.StringFixed(2),
			CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
