package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// PriceSource fetches spot prices from the aggregator. *oneinch.Client
// satisfies it.
type PriceSource interface {
	SpotPrices(ctx context.Context, addresses []string) (map[string]float64, error)
}

// CachedPricer serves spot prices through a short-TTL cache, fetching only
// the misses from the source. Cache failures degrade to a direct fetch.
type CachedPricer struct {
	source PriceSource
	cache  domain.PriceCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedPricer creates a CachedPricer. A nil cache disables caching.
func NewCachedPricer(source PriceSource, cache domain.PriceCache, ttl time.Duration, logger *slog.Logger) *CachedPricer {
	return &CachedPricer{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "pricer")),
	}
}

// SpotPrices returns USD prices keyed by lowercase address. Tokens neither
// cached nor priced by the source are absent from the result.
func (p *CachedPricer) SpotPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	out := make(map[string]float64, len(addresses))

	if p.cache != nil {
		cached, err := p.cache.GetPrices(ctx, addresses)
		if err != nil {
			p.logger.WarnContext(ctx, "price cache read failed", slog.String("error", err.Error()))
		} else {
			for k, v := range cached {
				out[k] = v
			}
		}
	}

	var missing []string
	for _, addr := range addresses {
		if _, ok := out[strings.ToLower(addr)]; !ok {
			missing = append(missing, addr)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := p.source.SpotPrices(ctx, missing)
	if err != nil {
		// Partial cache hits are not enough: the caller needs a definitive
		// answer for every address it can get one for.
		return nil, err
	}
	for k, v := range fetched {
		out[k] = v
	}

	if p.cache != nil && len(fetched) > 0 {
		if err := p.cache.SetPrices(ctx, fetched, p.ttl); err != nil {
			p.logger.WarnContext(ctx, "price cache write failed", slog.String("error", err.Error()))
		}
	}
	return out, nil
}
