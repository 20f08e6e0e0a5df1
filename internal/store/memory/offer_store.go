package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// OfferStore is an in-memory domain.OfferStore. CommitFunds performs its
// capacity check and write under one mutex hold, matching the atomicity of
// the postgres conditional update.
type OfferStore struct {
	mu     sync.RWMutex
	offers map[string]domain.FundingOffer
}

// NewOfferStore creates an empty in-memory OfferStore.
func NewOfferStore() *OfferStore {
	return &OfferStore{offers: make(map[string]domain.FundingOffer)}
}

func (s *OfferStore) Create(ctx context.Context, o domain.FundingOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.offers[o.ID] = o
	return nil
}

func (s *OfferStore) GetByID(ctx context.Context, id string) (domain.FundingOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	if !ok {
		return domain.FundingOffer{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *OfferStore) GetByLoan(ctx context.Context, loanID string) (domain.FundingOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.offers {
		if o.LoanID == loanID {
			return o, nil
		}
	}
	return domain.FundingOffer{}, domain.ErrNotFound
}

func (s *OfferStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.FundingOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offers []domain.FundingOffer
	for _, o := range s.offers {
		if o.Status == domain.OfferStatusOpen {
			offers = append(offers, o)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
	return paginate(offers, opts), nil
}

func (s *OfferStore) CommitFunds(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}

	remaining := o.Remaining()
	if remaining.Sign() <= 0 {
		return decimal.Decimal{}, domain.ErrOfferFull
	}
	if amount.GreaterThan(remaining) {
		return decimal.Decimal{}, &domain.ExceedsRemainingError{Remaining: remaining}
	}

	o.CommittedAmount = o.CommittedAmount.Add(amount)
	s.offers[id] = o
	return o.CommittedAmount, nil
}

func (s *OfferStore) UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	s.offers[id] = o
	return nil
}

// CommitmentStore is an in-memory domain.CommitmentStore.
type CommitmentStore struct {
	mu          sync.RWMutex
	commitments []domain.Commitment
}

// NewCommitmentStore creates an empty in-memory CommitmentStore.
func NewCommitmentStore() *CommitmentStore {
	return &CommitmentStore{}
}

func (s *CommitmentStore) Create(ctx context.Context, c domain.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitments = append(s.commitments, c)
	return nil
}

func (s *CommitmentStore) ListByOffer(ctx context.Context, offerID string, opts domain.ListOpts) ([]domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Commitment
	for _, c := range s.commitments {
		if c.OfferID == offerID {
			out = append(out, c)
		}
	}
	return paginate(out, opts), nil
}

func (s *CommitmentStore) ListByInvestor(ctx context.Context, investorID string, opts domain.ListOpts) ([]domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Commitment
	for _, c := range s.commitments {
		if c.InvestorID == investorID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts), nil
}

func (s *CommitmentStore) SumByOffer(ctx context.Context, offerID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, c := range s.commitments {
		if c.OfferID == offerID {
			sum = sum.Add(c.Amount)
		}
	}
	return sum, nil
}

// Compile-time interface checks.
var (
	_ domain.OfferStore      = (*OfferStore)(nil)
	_ domain.CommitmentStore = (*CommitmentStore)(nil)
)
