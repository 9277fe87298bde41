package domain

import (
	"context"
	"time"
)

// PriceCache stores spot prices for a short TTL. Prices are advisory; the
// pipeline treats a cache miss as "fetch again", never as zero. Allowance
// readings are never cached.
type PriceCache interface {
	GetPrices(ctx context.Context, addresses []string) (map[string]float64, error)
	SetPrices(ctx context.Context, prices map[string]float64, ttl time.Duration) error
}

// LockManager hands out exclusive distributed locks. Acquire returns
// ErrLockHeld when another holder owns the key, and otherwise an unlock
// function that is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
