package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// PriceCache stores USD spot prices per token address with a short TTL.
// Entries are advisory: a miss means "fetch again". Allowance readings never
// go through here.
type PriceCache struct {
	rdb *redis.Client
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(address string) string {
	return "price:usd:" + strings.ToLower(address)
}

// GetPrices fetches cached prices for the given addresses in one pipeline
// round trip. Addresses without a cached entry are absent from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	if len(addresses) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(addresses))
	for i, addr := range addresses {
		cmds[i] = pipe.Get(ctx, priceKey(addr))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis: get prices: %w", err)
	}

	out := make(map[string]float64, len(addresses))
	for i, cmd := range cmds {
		s, err := cmd.Result()
		if err != nil {
			continue // miss
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil || p <= 0 {
			continue
		}
		out[strings.ToLower(addresses[i])] = p
	}
	return out, nil
}

// SetPrices writes prices with the given TTL in one pipeline round trip.
func (pc *PriceCache) SetPrices(ctx context.Context, prices map[string]float64, ttl time.Duration) error {
	if len(prices) == 0 {
		return nil
	}

	pipe := pc.rdb.Pipeline()
	for addr, p := range prices {
		pipe.Set(ctx, priceKey(addr), strconv.FormatFloat(p, 'f', -1, 64), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices: %w", err)
	}
	return nil
}
