// Package memory provides mutex-guarded in-memory implementations of the
// domain store interfaces. They back the standalone mode and the service
// tests; the semantics, including the atomic capacity check in CommitFunds,
// mirror the postgres package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

// LoanStore is an in-memory domain.LoanStore.
type LoanStore struct {
	mu    sync.RWMutex
	loans map[string]domain.Loan
}

// NewLoanStore creates an empty in-memory LoanStore.
func NewLoanStore() *LoanStore {
	return &LoanStore{loans: make(map[string]domain.Loan)}
}

func (s *LoanStore) Create(ctx context.Context, l domain.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[l.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.loans[l.ID] = l
	return nil
}

func (s *LoanStore) GetByID(ctx context.Context, id string) (domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[id]
	if !ok {
		return domain.Loan{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *LoanStore) ListByBorrower(ctx context.Context, borrowerID string, opts domain.ListOpts) ([]domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loans []domain.Loan
	for _, l := range s.loans {
		if l.BorrowerID == borrowerID {
			loans = append(loans, l)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})
	return paginate(loans, opts), nil
}

func (s *LoanStore) UpdateStatus(ctx context.Context, id string, status domain.LoanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	s.loans[id] = l
	return nil
}

// InstallmentStore is an in-memory domain.InstallmentStore.
type InstallmentStore struct {
	mu     sync.RWMutex
	byLoan map[string][]domain.Installment
}

// NewInstallmentStore creates an empty in-memory InstallmentStore.
func NewInstallmentStore() *InstallmentStore {
	return &InstallmentStore{byLoan: make(map[string][]domain.Installment)}
}

func (s *InstallmentStore) CreateBatch(ctx context.Context, installments []domain.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range installments {
		s.byLoan[inst.LoanID] = append(s.byLoan[inst.LoanID], inst)
	}
	return nil
}

func (s *InstallmentStore) ListByLoan(ctx context.Context, loanID string) ([]domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	installments := make([]domain.Installment, len(s.byLoan[loanID]))
	copy(installments, s.byLoan[loanID])
	sort.Slice(installments, func(i, j int) bool {
		return installments[i].Sequence < installments[j].Sequence
	})
	return installments, nil
}

func (s *InstallmentStore) MarkPaid(ctx context.Context, loanID string, sequence int, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	installments := s.byLoan[loanID]
	for i, inst := range installments {
		if inst.Sequence != sequence {
			continue
		}
		if inst.PaidAt != nil {
			return domain.ErrAlreadyExists
		}
		t := paidAt
		installments[i].PaidAt = &t
		return nil
	}
	return domain.ErrNotFound
}

func (s *InstallmentStore) CountUnpaid(ctx context.Context, loanID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, inst := range s.byLoan[loanID] {
		if inst.PaidAt == nil {
			count++
		}
	}
	return count, nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface checks.
var (
	_ domain.LoanStore        = (*LoanStore)(nil)
	_ domain.InstallmentStore = (*InstallmentStore)(nil)
)
