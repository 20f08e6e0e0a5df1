package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/schedule"
)

// exportPartSize is the multipart part size for portfolio exports.
const exportPartSize int64 = 8 * 1024 * 1024

// statement is the archived JSON shape of one loan's schedule snapshot.
type statement struct {
	Loan          domain.Loan          `json:"loan"`
	ReferenceDate time.Time            `json:"reference_date"`
	Installments  []domain.Installment `json:"installments"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

// StatementService renders schedule snapshots and archives them to object
// storage, so borrowers can retrieve historical statements without replaying
// status derivation against past dates.
type StatementService struct {
	loans        domain.LoanStore
	installments domain.InstallmentStore
	blob         domain.BlobWriter
	logger       *slog.Logger
}

// NewStatementService creates a StatementService.
func NewStatementService(
	loans domain.LoanStore,
	installments domain.InstallmentStore,
	blob domain.BlobWriter,
	logger *slog.Logger,
) *StatementService {
	return &StatementService{
		loans:        loans,
		installments: installments,
		blob:         blob,
		logger:       logger,
	}
}

// Archive snapshots one loan's schedule as of referenceDate and uploads it
// under statements/{loanID}/{date}.json, returning the object path.
func (s *StatementService) Archive(ctx context.Context, loanID string, referenceDate time.Time) (string, error) {
	stmt, err := s.buildStatement(ctx, loanID, referenceDate)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(stmt)
	if err != nil {
		return "", fmt.Errorf("statement_service: marshal statement for %s: %w", loanID, err)
	}

	path := fmt.Sprintf("statements/%s/%s.json", loanID, referenceDate.Format("2006-01-02"))
	if err := s.blob.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("statement_service: archive %s: %w", loanID, err)
	}

	s.logger.InfoContext(ctx, "statement_service: statement archived",
		slog.String("loan_id", loanID),
		slog.String("path", path),
	)

	return path, nil
}

// ExportPortfolio archives a borrower's complete schedule history as one
// object under exports/{borrowerID}/{date}.json, using a multipart upload
// since a long borrower history can run large.
func (s *StatementService) ExportPortfolio(ctx context.Context, borrowerID string, referenceDate time.Time) (string, error) {
	loans, err := s.loans.ListByBorrower(ctx, borrowerID, domain.ListOpts{Limit: 1000})
	if err != nil {
		return "", fmt.Errorf("statement_service: list loans for %s: %w", borrowerID, err)
	}

	statements := make([]statement, 0, len(loans))
	for _, loan := range loans {
		stmt, err := s.buildStatement(ctx, loan.ID, referenceDate)
		if err != nil {
			return "", err
		}
		statements = append(statements, stmt)
	}

	data, err := json.Marshal(map[string]any{
		"borrower_id":    borrowerID,
		"reference_date": referenceDate,
		"statements":     statements,
	})
	if err != nil {
		return "", fmt.Errorf("statement_service: marshal export for %s: %w", borrowerID, err)
	}

	path := fmt.Sprintf("exports/%s/%s.json", borrowerID, referenceDate.Format("2006-01-02"))
	if err := s.blob.PutMultipart(ctx, path, bytes.NewReader(data), exportPartSize); err != nil {
		return "", fmt.Errorf("statement_service: export %s: %w", borrowerID, err)
	}

	s.logger.InfoContext(ctx, "statement_service: portfolio exported",
		slog.String("borrower_id", borrowerID),
		slog.String("path", path),
		slog.Int("loans", len(statements)),
	)

	return path, nil
}

func (s *StatementService) buildStatement(ctx context.Context, loanID string, referenceDate time.Time) (statement, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return statement{}, fmt.Errorf("statement_service: get loan %q: %w", loanID, err)
	}

	installments, err := s.installments.ListByLoan(ctx, loanID)
	if err != nil {
		return statement{}, fmt.Errorf("statement_service: list schedule for %q: %w", loanID, err)
	}

	return statement{
		Loan:          loan,
		ReferenceDate: referenceDate,
		Installments:  schedule.Reclassify(installments, referenceDate),
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
