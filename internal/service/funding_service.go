package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/notify"
	"github.com/mvbarbosa/lendpool/internal/pool"
)

const (
	// offerLockTTL bounds how long a crashed admission can hold an offer.
	offerLockTTL = 5 * time.Second

	// lockRetryInterval is the poll interval while waiting for an offer lock.
	lockRetryInterval = 25 * time.Millisecond
)

// FundingProgress is the investor-dashboard view of an offer.
type FundingProgress struct {
	Offer         domain.FundingOffer
	Remaining     decimal.Decimal
	PercentFunded float64
}

// FundingService owns the investor side: admitting commitments against
// capped offers, keeping the offer cache fresh, and fanning funding events
// out to dashboards.
//
// Admission is serialized per offer with a distributed lock, and the store's
// CommitFunds performs its own atomic capacity check, so the target amount
// cannot be jointly exceeded by concurrent callers even if the lock layer is
// unavailable.
type FundingService struct {
	offers      domain.OfferStore
	commitments domain.CommitmentStore
	cache       domain.OfferCache  // optional
	locks       domain.LockManager // optional; stores remain atomic without it
	bus         domain.SignalBus
	audit       domain.AuditStore
	notifier    *notify.Notifier // optional
	logger      *slog.Logger
}

// NewFundingService creates a FundingService. cache, locks, and notifier may
// be nil; admission correctness does not depend on them.
func NewFundingService(
	offers domain.OfferStore,
	commitments domain.CommitmentStore,
	cache domain.OfferCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *FundingService {
	return &FundingService{
		offers:      offers,
		commitments: commitments,
		cache:       cache,
		locks:       locks,
		bus:         bus,
		audit:       audit,
		notifier:    notifier,
		logger:      logger,
	}
}

// Admit accepts or rejects an investor's commitment against an offer.
// Rejections name the violated constraint: ErrInvalidAmount, ErrBelowMinimum,
// ErrOfferFull, or an ExceedsRemainingError carrying the exact remaining
// capacity. On success the commitment is durable and the new committed total
// is returned.
func (s *FundingService) Admit(ctx context.Context, offerID, investorID string, amount decimal.Decimal) (domain.AdmissionResult, error) {
	unlock, err := s.acquireOfferLock(ctx, offerID)
	if err != nil {
		return domain.AdmissionResult{}, err
	}
	defer unlock()

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return domain.AdmissionResult{}, fmt.Errorf("funding_service: get offer %q: %w", offerID, err)
	}
	if offer.Status != domain.OfferStatusOpen {
		return domain.AdmissionResult{}, domain.ErrOfferFull
	}

	// Pure decision first so precondition failures are reported before any
	// write is attempted.
	if _, err := pool.TryAdmit(offer, amount); err != nil {
		return domain.AdmissionResult{}, err
	}

	// Authoritative write: the store re-checks capacity atomically.
	newCommitted, err := s.offers.CommitFunds(ctx, offerID, amount)
	if err != nil {
		return domain.AdmissionResult{}, err
	}

	commitment := domain.Commitment{
		ID:         uuid.New().String(),
		OfferID:    offerID,
		InvestorID: investorID,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.commitments.Create(ctx, commitment); err != nil {
		return domain.AdmissionResult{}, fmt.Errorf("funding_service: record commitment: %w", err)
	}

	offer.CommittedAmount = newCommitted
	fullyFunded := newCommitted.GreaterThanOrEqual(offer.TargetAmount)
	if fullyFunded {
		if err := s.offers.UpdateStatus(ctx, offerID, domain.OfferStatusFunded); err != nil {
			s.logger.WarnContext(ctx, "funding_service: mark offer funded failed",
				slog.String("offer_id", offerID),
				slog.String("error", err.Error()),
			)
		} else {
			offer.Status = domain.OfferStatusFunded
		}
	}

	s.refreshCache(ctx, offer)

	s.publish(ctx, "offers", map[string]any{
		"event":          "commitment_accepted",
		"offer_id":       offerID,
		"loan_id":        offer.LoanID,
		"investor_id":    investorID,
		"amount":         amount.StringFixed(2),
		"committed":      newCommitted.StringFixed(2),
		"percent_funded": pool.PercentFunded(offer),
		"fully_funded":   fullyFunded,
	})

	if auditErr := s.audit.Log(ctx, "commitment_accepted", map[string]any{
		"commitment_id": commitment.ID,
		"offer_id":      offerID,
		"investor_id":   investorID,
		"amount":        amount.StringFixed(2),
		"committed":     newCommitted.StringFixed(2),
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "funding_service: audit log failed",
			slog.String("offer_id", offerID),
			slog.String("error", auditErr.Error()),
		)
	}

	if fullyFunded && s.notifier != nil {
		msg := fmt.Sprintf("Offer %s reached its target of %s.", offerID, offer.TargetAmount.StringFixed(2))
		if notifyErr := s.notifier.Notify(ctx, "offer_funded", "Offer fully funded", msg); notifyErr != nil {
			s.logger.WarnContext(ctx, "funding_service: notify failed",
				slog.String("offer_id", offerID),
				slog.String("error", notifyErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "funding_service: commitment accepted",
		slog.String("offer_id", offerID),
		slog.String("investor_id", investorID),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("committed", newCommitted.StringFixed(2)),
		slog.Bool("fully_funded", fullyFunded),
	)

	return domain.AdmissionResult{
		AcceptedAmount:     amount,
		NewCommittedAmount: newCommitted,
	}, nil
}

// Progress returns the dashboard view of an offer, preferring the cache.
func (s *FundingService) Progress(ctx context.Context, offerID string) (FundingProgress, error) {
	var offer domain.FundingOffer
	var err error

	if s.cache != nil {
		offer, err = s.cache.Get(ctx, offerID)
	}
	if s.cache == nil || err != nil {
		offer, err = s.offers.GetByID(ctx, offerID)
		if err != nil {
			return FundingProgress{}, fmt.Errorf("funding_service: get offer %q: %w", offerID, err)
		}
		s.refreshCache(ctx, offer)
	}

	return FundingProgress{
		Offer:         offer,
		Remaining:     offer.Remaining(),
		PercentFunded: pool.PercentFunded(offer),
	}, nil
}

// ListOpen returns open offers for the investor pool view.
func (s *FundingService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.FundingOffer, error) {
	offers, err := s.offers.ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("funding_service: list open offers: %w", err)
	}
	return offers, nil
}

// ListCommitments returns an offer's accepted commitments in order.
func (s *FundingService) ListCommitments(ctx context.Context, offerID string, opts domain.ListOpts) ([]domain.Commitment, error) {
	commitments, err := s.commitments.ListByOffer(ctx, offerID, opts)
	if err != nil {
		return nil, fmt.Errorf("funding_service: list commitments for %q: %w", offerID, err)
	}
	return commitments, nil
}

// Reconcile verifies that the commitment ledger sums to the offer's running
// total. A mismatch means a write was lost or duplicated and is worth an
// operator alert.
func (s *FundingService) Reconcile(ctx context.Context, offerID string) error {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return fmt.Errorf("funding_service: get offer %q: %w", offerID, err)
	}

	sum, err := s.commitments.SumByOffer(ctx, offerID)
	if err != nil {
		return fmt.Errorf("funding_service: sum commitments for %q: %w", offerID, err)
	}

	if !sum.Equal(offer.CommittedAmount) {
		return fmt.Errorf("funding_service: offer %s committed %s but ledger sums to %s",
			offerID, offer.CommittedAmount.StringFixed(2), sum.StringFixed(2))
	}
	return nil
}

// acquireOfferLock serializes admissions per offer. It polls until the lock
// is free or the context is done. Ordering under contention is approximate;
// the store's conditional update is what prevents joint over-commitment.
func (s *FundingService) acquireOfferLock(ctx context.Context, offerID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	key := "offer:" + offerID
	for {
		unlock, err := s.locks.Acquire(ctx, key, offerLockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("funding_service: acquire offer lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("funding_service: waiting for offer lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

func (s *FundingService) refreshCache(ctx context.Context, offer domain.FundingOffer) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, offer); err != nil {
		s.logger.WarnContext(ctx, "funding_service: refresh offer cache failed",
			slog.String("offer_id", offer.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *FundingService) publish(ctx context.Context, channel string, event map[string]any) {
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "funding_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
