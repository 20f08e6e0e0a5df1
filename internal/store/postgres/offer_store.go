package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// OfferStore implements domain.OfferStore using PostgreSQL.
type OfferStore struct {
	pool *pgxpool.Pool
}

// NewOfferStore creates a new OfferStore backed by the given connection pool.
func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

const offerSelectCols = `id, loan_id, target_amount, committed_amount,
	minimum_commitment, status, created_at`

func scanOfferRow(row pgx.Row) (domain.FundingOffer, error) {
	var o domain.FundingOffer
	var status string

	err := row.Scan(
		&o.ID, &o.LoanID, &o.TargetAmount, &o.CommittedAmount,
		&o.MinimumCommitment, &status, &o.CreatedAt,
	)
	if err != nil {
		return domain.FundingOffer{}, err
	}
	o.Status = domain.OfferStatus(status)
	return o, nil
}

// Create inserts a new funding offer.
func (s *OfferStore) Create(ctx context.Context, o domain.FundingOffer) error {
	const query = `
		INSERT INTO funding_offers (
			id, loan_id, target_amount, committed_amount,
			minimum_commitment, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.LoanID, o.TargetAmount, o.CommittedAmount,
		o.MinimumCommitment, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create offer %s: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a funding offer by its ID.
func (s *OfferStore) GetByID(ctx context.Context, id string) (domain.FundingOffer, error) {
	query := `SELECT ` + offerSelectCols + ` FROM funding_offers WHERE id = $1`

	o, err := scanOfferRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FundingOffer{}, domain.ErrNotFound
		}
		return domain.FundingOffer{}, fmt.Errorf("postgres: get offer %s: %w", id, err)
	}
	return o, nil
}

// GetByLoan returns the funding offer attached to a loan.
func (s *OfferStore) GetByLoan(ctx context.Context, loanID string) (domain.FundingOffer, error) {
	query := `SELECT ` + offerSelectCols + ` FROM funding_offers WHERE loan_id = $1`

	o, err := scanOfferRow(s.pool.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FundingOffer{}, domain.ErrNotFound
		}
		return domain.FundingOffer{}, fmt.Errorf("postgres: get offer for loan %s: %w", loanID, err)
	}
	return o, nil
}

// ListOpen returns open offers, oldest first so early borrowers fill first.
func (s *OfferStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.FundingOffer, error) {
	query := `SELECT ` + offerSelectCols + `
		FROM funding_offers WHERE status = 'open'
		ORDER BY created_at
		LIMIT $1 OFFSET $2`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.FundingOffer
	for rows.Next() {
		o, err := scanOfferRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// CommitFunds atomically adds amount to the offer's committed total. The
// conditional WHERE clause is the authoritative capacity check: two
// concurrent commits race on the row lock and the loser re-evaluates against
// the updated committed_amount, so the target can never be jointly exceeded
// even if callers skip the advisory offer lock.
func (s *OfferStore) CommitFunds(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE funding_offers
		SET committed_amount = committed_amount + $2, updated_at = NOW()
		WHERE id = $1 AND committed_amount + $2 <= target_amount
		RETURNING committed_amount`

	var newCommitted decimal.Decimal
	err := s.pool.QueryRow(ctx, query, id, amount).Scan(&newCommitted)
	if err == nil {
		return newCommitted, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, fmt.Errorf("postgres: commit funds to offer %s: %w", id, err)
	}

	// The guard failed (or the offer is gone). Re-read to report the precise
	// rejection reason.
	offer, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return decimal.Decimal{}, getErr
	}

	remaining := offer.Remaining()
	if remaining.Sign() <= 0 {
		return decimal.Decimal{}, domain.ErrOfferFull
	}
	return decimal.Decimal{}, &domain.ExceedsRemainingError{Remaining: remaining}
}

// UpdateStatus transitions an offer's lifecycle status.
func (s *OfferStore) UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error {
	const query = `UPDATE funding_offers SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update offer %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.OfferStore = (*OfferStore)(nil)
