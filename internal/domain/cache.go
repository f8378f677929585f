package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetByToken(ctx context.Context, tokenID string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// LockManager provides advisory, non-blocking locking. Acquire returns
// ErrLockHeld immediately when another holder owns key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// MarketLockKey is the advisory lock key every order flow touching a market
// must hold while it trades that market.
func MarketLockKey(marketID string) string {
	return "market:" + marketID
}
