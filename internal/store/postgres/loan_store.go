package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// LoanStore implements domain.LoanStore using PostgreSQL.
type LoanStore struct {
	pool *pgxpool.Pool
}

// NewLoanStore creates a new LoanStore backed by the given connection pool.
func NewLoanStore(pool *pgxpool.Pool) *LoanStore {
	return &LoanStore{pool: pool}
}

const loanSelectCols = `id, borrower_id, principal, term_months, monthly_rate,
	installment_amount, total_payable, start_date, end_date, status, created_at`

func scanLoanRow(row pgx.Row) (domain.Loan, error) {
	var l domain.Loan
	var status string

	err := row.Scan(
		&l.ID, &l.BorrowerID, &l.Principal, &l.TermMonths, &l.MonthlyRate,
		&l.InstallmentAmount, &l.TotalPayable, &l.StartDate, &l.EndDate,
		&status, &l.CreatedAt,
	)
	if err != nil {
		return domain.Loan{}, err
	}
	l.Status = domain.LoanStatus(status)
	return l, nil
}

// Create inserts a new loan.
func (s *LoanStore) Create(ctx context.Context, l domain.Loan) error {
	const query = `
		INSERT INTO loans (
			id, borrower_id, principal, term_months, monthly_rate,
			installment_amount, total_payable, start_date, end_date,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.BorrowerID, l.Principal, l.TermMonths, l.MonthlyRate,
		l.InstallmentAmount, l.TotalPayable, l.StartDate, l.EndDate,
		string(l.Status), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create loan %s: %w", l.ID, err)
	}
	return nil
}

// GetByID returns a loan by its ID.
func (s *LoanStore) GetByID(ctx context.Context, id string) (domain.Loan, error) {
	query := `SELECT ` + loanSelectCols + ` FROM loans WHERE id = $1`

	l, err := scanLoanRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Loan{}, domain.ErrNotFound
		}
		return domain.Loan{}, fmt.Errorf("postgres: get loan %s: %w", id, err)
	}
	return l, nil
}

// ListByBorrower returns a borrower's loans, newest first.
func (s *LoanStore) ListByBorrower(ctx context.Context, borrowerID string, opts domain.ListOpts) ([]domain.Loan, error) {
	query := `SELECT ` + loanSelectCols + `
		FROM loans WHERE borrower_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, borrowerID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list loans for %s: %w", borrowerID, err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// UpdateStatus transitions a loan's lifecycle status.
func (s *LoanStore) UpdateStatus(ctx context.Context, id string, status domain.LoanStatus) error {
	const query = `UPDATE loans SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update loan %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.LoanStore = (*LoanStore)(nil)
