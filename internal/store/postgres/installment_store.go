package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// InstallmentStore implements domain.InstallmentStore using PostgreSQL.
// Rows carry no status column: status is derived at read time by the
// schedule package.
type InstallmentStore struct {
	pool *pgxpool.Pool
}

// NewInstallmentStore creates a new InstallmentStore backed by the given
// connection pool.
func NewInstallmentStore(pool *pgxpool.Pool) *InstallmentStore {
	return &InstallmentStore{pool: pool}
}

// CreateBatch inserts a loan's full schedule in one batch.
func (s *InstallmentStore) CreateBatch(ctx context.Context, installments []domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}

	const query = `
		INSERT INTO installments (loan_id, sequence, due_date, amount, paid_at)
		VALUES ($1, $2, $3, $4, $5)`

	batch := &pgx.Batch{}
	for _, inst := range installments {
		batch.Queue(query, inst.LoanID, inst.Sequence, inst.DueDate, inst.Amount, inst.PaidAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range installments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert installments: %w", err)
		}
	}
	return nil
}

// ListByLoan returns a loan's installments in sequence order.
func (s *InstallmentStore) ListByLoan(ctx context.Context, loanID string) ([]domain.Installment, error) {
	const query = `
		SELECT loan_id, sequence, due_date, amount, paid_at
		FROM installments
		WHERE loan_id = $1
		ORDER BY sequence`

	rows, err := s.pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list installments for %s: %w", loanID, err)
	}
	defer rows.Close()

	var installments []domain.Installment
	for rows.Next() {
		var inst domain.Installment
		if err := rows.Scan(&inst.LoanID, &inst.Sequence, &inst.DueDate, &inst.Amount, &inst.PaidAt); err != nil {
			return nil, fmt.Errorf("postgres: scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// MarkPaid records the payment timestamp for one installment. Re-marking an
// already-paid installment is rejected so the first payment timestamp wins.
func (s *InstallmentStore) MarkPaid(ctx context.Context, loanID string, sequence int, paidAt time.Time) error {
	const query = `
		UPDATE installments SET paid_at = $3
		WHERE loan_id = $1 AND sequence = $2 AND paid_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, loanID, sequence, paidAt)
	if err != nil {
		return fmt.Errorf("postgres: mark installment %s/%d paid: %w", loanID, sequence, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM installments WHERE loan_id = $1 AND sequence = $2)",
			loanID, sequence,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("postgres: check installment %s/%d: %w", loanID, sequence, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyExists
	}
	return nil
}

// CountUnpaid returns the number of installments still awaiting payment.
func (s *InstallmentStore) CountUnpaid(ctx context.Context, loanID string) (int, error) {
	const query = `SELECT COUNT(*) FROM installments WHERE loan_id = $1 AND paid_at IS NULL`

	var count int
	if err := s.pool.QueryRow(ctx, query, loanID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count unpaid for %s: %w", loanID, err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.InstallmentStore = (*InstallmentStore)(nil)
