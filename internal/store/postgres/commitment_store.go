package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// CommitmentStore implements domain.CommitmentStore using PostgreSQL.
// Commitments are append-only; there is no update or delete path.
type CommitmentStore struct {
	pool *pgxpool.Pool
}

// NewCommitmentStore creates a new CommitmentStore backed by the given
// connection pool.
func NewCommitmentStore(pool *pgxpool.Pool) *CommitmentStore {
	return &CommitmentStore{pool: pool}
}

// Create inserts an accepted commitment.
func (s *CommitmentStore) Create(ctx context.Context, c domain.Commitment) error {
	const query = `
		INSERT INTO commitments (id, offer_id, investor_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, c.ID, c.OfferID, c.InvestorID, c.Amount, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create commitment %s: %w", c.ID, err)
	}
	return nil
}

// ListByOffer returns an offer's commitments in acceptance order.
func (s *CommitmentStore) ListByOffer(ctx context.Context, offerID string, opts domain.ListOpts) ([]domain.Commitment, error) {
	const query = `
		SELECT id, offer_id, investor_id, amount, created_at
		FROM commitments WHERE offer_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`

	return s.list(ctx, query, offerID, opts)
}

// ListByInvestor returns an investor's commitments, newest first.
func (s *CommitmentStore) ListByInvestor(ctx context.Context, investorID string, opts domain.ListOpts) ([]domain.Commitment, error) {
	const query = `
		SELECT id, offer_id, investor_id, amount, created_at
		FROM commitments WHERE investor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return s.list(ctx, query, investorID, opts)
}

func (s *CommitmentStore) list(ctx context.Context, query, key string, opts domain.ListOpts) ([]domain.Commitment, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, key, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list commitments for %s: %w", key, err)
	}
	defer rows.Close()

	var commitments []domain.Commitment
	for rows.Next() {
		var c domain.Commitment
		if err := rows.Scan(&c.ID, &c.OfferID, &c.InvestorID, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan commitment: %w", err)
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

// SumByOffer returns the total committed against an offer. Used by the
// reconciliation check that the commitment ledger matches the offer's
// running total.
func (s *CommitmentStore) SumByOffer(ctx context.Context, offerID string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM commitments WHERE offer_id = $1`

	var sum decimal.Decimal
	if err := s.pool.QueryRow(ctx, query, offerID).Scan(&sum); err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: sum commitments for %s: %w", offerID, err)
	}
	return sum, nil
}

// Compile-time interface check.
var _ domain.CommitmentStore = (*CommitmentStore)(nil)
