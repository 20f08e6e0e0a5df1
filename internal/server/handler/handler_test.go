package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/service"
	"github.com/mvbarbosa/lendpool/internal/store/memory"
)

func testMux(t *testing.T) (*http.ServeMux, *service.LoanService, *service.FundingService) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	loans := memory.NewLoanStore()
	installments := memory.NewInstallmentStore()
	offers := memory.NewOfferStore()
	commitments := memory.NewCommitmentStore()
	audit := memory.NewAuditStore()
	bus := memory.NewSignalBus()

	loanSvc := service.NewLoanService(loans, installments, offers, bus, audit, logger)
	fundingSvc := service.NewFundingService(offers, commitments, nil, nil, bus, audit, nil, logger)

	qh := NewQuoteHandler(loanSvc, logger)
	lh := NewLoanHandler(loanSvc, logger)
	oh := NewOfferHandler(fundingSvc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/quotes", qh.PriceQuote)
	mux.HandleFunc("POST /api/loans", lh.CreateLoan)
	mux.HandleFunc("GET /api/loans/{id}", lh.GetLoan)
	mux.HandleFunc("GET /api/loans/{id}/schedule", lh.GetSchedule)
	mux.HandleFunc("POST /api/loans/{id}/payments", lh.RecordPayment)
	mux.HandleFunc("GET /api/offers", oh.ListOffers)
	mux.HandleFunc("GET /api/offers/{id}", oh.GetOffer)
	mux.HandleFunc("POST /api/offers/{id}/commitments", oh.CreateCommitment)

	return mux, loanSvc, fundingSvc
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestPriceQuoteHandler_OK(t *testing.T) {
	mux, _, _ := testMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/quotes",
		`{"principal": 10000, "term_months": 12}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["installment_amount"] != "1056.87" {
		t.Errorf("expected installment 1056.87, got %v", resp["installment_amount"])
	}
	if resp["total_payable"] != "12682.44" {
		t.Errorf("expected total 12682.44, got %v", resp["total_payable"])
	}
}

func TestPriceQuoteHandler_InvalidTerm(t *testing.T) {
	mux, _, _ := testMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/quotes",
		`{"principal": 10000, "term_months": 3}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", w.Code, w.Body)
	}
}

func TestCreateLoanHandler_CreatesAndFetches(t *testing.T) {
	mux, _, _ := testMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/loans", `{
		"borrower_id": "borrower-1",
		"principal": 10000,
		"term_months": 12,
		"start_date": "2026-01-15",
		"minimum_commitment": 100
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	var created loanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected loan id in response")
	}

	w = doJSON(t, mux, http.MethodGet, "/api/loans/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, mux, http.MethodGet, "/api/loans/"+created.ID+"/schedule?status=upcoming&as_of=2026-01-20", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var sched scheduleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sched); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if len(sched.Installments) != 12 {
		t.Errorf("expected 12 upcoming installments, got %d", len(sched.Installments))
	}
}

func TestGetLoanHandler_NotFound(t *testing.T) {
	mux, _, _ := testMux(t)

	w := doJSON(t, mux, http.MethodGet, "/api/loans/no-such-loan", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCreateCommitmentHandler_ReportsRemaining(t *testing.T) {
	mux, loanSvc, fundingSvc := testMux(t)
	ctx := context.Background()

	loan, err := loanSvc.RequestLoan(ctx, service.LoanRequest{
		BorrowerID:        "borrower-1",
		Principal:         decimal.NewFromInt(10000),
		TermMonths:        12,
		StartDate:         time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		MinimumCommitment: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	offersList, err := fundingSvc.ListOpen(ctx, domain.ListOpts{Limit: 10})
	if err != nil || len(offersList) != 1 {
		t.Fatalf("expected one open offer, got %d (err %v)", len(offersList), err)
	}
	offerID := offersList[0].ID

	// Nearly fill the offer, then over-commit and check the remaining hint.
	if _, err := fundingSvc.Admit(ctx, offerID, "investor-1", decimal.NewFromInt(9500)); err != nil {
		t.Fatalf("seed commitment: %v", err)
	}

	w := doJSON(t, mux, http.MethodPost, "/api/offers/"+offerID+"/commitments",
		`{"investor_id": "investor-2", "amount": 600}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["reason"] != "exceeds_remaining" {
		t.Errorf("expected reason exceeds_remaining, got %q", resp["reason"])
	}
	if resp["remaining"] != "500.00" {
		t.Errorf("expected remaining 500.00, got %q", resp["remaining"])
	}

	// The exact remaining amount is accepted and completes the offer.
	w = doJSON(t, mux, http.MethodPost, "/api/offers/"+offerID+"/commitments",
		`{"investor_id": "investor-2", "amount": 500}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, mux, http.MethodGet, "/api/offers/"+offerID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var progress progressResponse
	if err := json.Unmarshal(w.Body.Bytes(), &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.PercentFunded != 100 {
		t.Errorf("expected 100%% funded, got %.1f", progress.PercentFunded)
	}
	if progress.Offer.LoanID != loan.ID {
		t.Errorf("expected offer bound to loan %s, got %s", loan.ID, progress.Offer.LoanID)
	}
}

func TestRecordPaymentHandler_Conflict(t *testing.T) {
	mux, loanSvc, _ := testMux(t)
	ctx := context.Background()

	loan, err := loanSvc.RequestLoan(ctx, service.LoanRequest{
		BorrowerID:        "borrower-1",
		Principal:         decimal.NewFromInt(5000),
		TermMonths:        6,
		StartDate:         time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		MinimumCommitment: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	w := doJSON(t, mux, http.MethodPost, "/api/loans/"+loan.ID+"/payments",
		`{"sequence": 1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/loans/"+loan.ID+"/payments",
		`{"sequence": 1}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on double payment, got %d", w.Code)
	}
}
