package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvbarbosa/lendpool/internal/domain"
)

const offerTTL = 30 * time.Second

// OfferCache implements domain.OfferCache using JSON-serialized offer
// snapshots with a short TTL. The pool dashboard polls funding progress far
// more often than it changes; the TTL bounds how stale a displayed
// percentage can get, and the funding service refreshes the entry on every
// accepted commitment.
//
// Key schema:
//
//	offer:{id} - JSON snapshot of the FundingOffer
type OfferCache struct {
	rdb *redis.Client
}

// NewOfferCache creates an OfferCache backed by the given Client.
func NewOfferCache(c *Client) *OfferCache {
	return &OfferCache{rdb: c.Underlying()}
}

func offerKey(id string) string { return "offer:" + id }

// Set stores an offer snapshot.
func (oc *OfferCache) Set(ctx context.Context, offer domain.FundingOffer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("redis: marshal offer %s: %w", offer.ID, err)
	}

	if err := oc.rdb.Set(ctx, offerKey(offer.ID), data, offerTTL).Err(); err != nil {
		return fmt.Errorf("redis: set offer %s: %w", offer.ID, err)
	}
	return nil
}

// Get retrieves an offer snapshot by ID. It returns domain.ErrNotFound when
// the key does not exist or has expired.
func (oc *OfferCache) Get(ctx context.Context, id string) (domain.FundingOffer, error) {
	data, err := oc.rdb.Get(ctx, offerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.FundingOffer{}, domain.ErrNotFound
		}
		return domain.FundingOffer{}, fmt.Errorf("redis: get offer %s: %w", id, err)
	}

	var offer domain.FundingOffer
	if err := json.Unmarshal(data, &offer); err != nil {
		return domain.FundingOffer{}, fmt.Errorf("redis: unmarshal offer %s: %w", id, err)
	}
	return offer, nil
}

// Invalidate removes an offer snapshot from the cache.
func (oc *OfferCache) Invalidate(ctx context.Context, id string) error {
	if err := oc.rdb.Del(ctx, offerKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate offer %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OfferCache = (*OfferCache)(nil)
