package domain

import (
	"context"
	"time"
)

// OfferCache provides fast funding-offer snapshots for the investor pool
// dashboard, so progress polling does not hit the database.
type OfferCache interface {
	Set(ctx context.Context, offer FundingOffer) error
	Get(ctx context.Context, id string) (FundingOffer, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. Admission uses one lock per
// funding offer so that capacity decisions serialize across processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of funding and schedule events to the
// dashboard WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
