package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// StatementArchiver defines the methods the statement handler requires from
// the service layer.
type StatementArchiver interface {
	Archive(ctx context.Context, loanID string, referenceDate time.Time) (string, error)
	ExportPortfolio(ctx context.Context, borrowerID string, referenceDate time.Time) (string, error)
}

// StatementHandler serves statement-archival HTTP endpoints.
type StatementHandler struct {
	statements StatementArchiver
	logger     *slog.Logger
}

// NewStatementHandler creates a StatementHandler with the given service and
// logger.
func NewStatementHandler(statements StatementArchiver, logger *slog.Logger) *StatementHandler {
	return &StatementHandler{
		statements: statements,
		logger:     logger,
	}
}

// ArchiveStatement renders a loan's schedule snapshot and archives it to
// object storage, returning the blob key.
// POST /api/loans/{id}/statements?as_of=2026-08-30
func (h *StatementHandler) ArchiveStatement(w http.ResponseWriter, r *http.Request) {
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

	key, err := h.statements.Archive(r.Context(), id, asOf)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: archive statement failed",
			slog.String("loan_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to archive statement")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "archived",
		"key":    key,
	})
}

// ExportPortfolio renders every loan of a borrower into a single export and
// uploads it to object storage, returning the blob key.
// POST /api/borrowers/{id}/exports?as_of=2026-08-30
func (h *StatementHandler) ExportPortfolio(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing borrower id")
		return
	}

	asOf, err := parseDateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		return
	}

	key, err := h.statements.ExportPortfolio(r.Context(), id, asOf)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "borrower has no loans")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: export portfolio failed",
			slog.String("borrower_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to export portfolio")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "exported",
		"key":    key,
	})
}
