package position

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// PoolReader reads v3 pool state from the chain. *chain.Client satisfies it.
type PoolReader interface {
	ResolvePool(ctx context.Context, factory, token0, token1 string, fee int) (string, error)
	PoolState(ctx context.Context, pool string) (domain.PoolState, error)
}

// Builder constructs a PositionSpec around the current pool tick.
type Builder struct {
	reader         PoolReader
	factoryAddress string

	// RangeSpacings is the half-width of the position in tick spacings.
	RangeSpacings int
	// SlippageBps shrinks the minimum amounts relative to what the
	// liquidity would pull at the current price.
	SlippageBps int

	logger *slog.Logger
}

// NewBuilder creates a position Builder.
func NewBuilder(reader PoolReader, factoryAddress string, rangeSpacings, slippageBps int, logger *slog.Logger) *Builder {
	return &Builder{
		reader:         reader,
		factoryAddress: factoryAddress,
		RangeSpacings:  rangeSpacings,
		SlippageBps:    slippageBps,
		logger:         logger.With(slog.String("component", "position")),
	}
}

// Build reads fresh pool state and produces a mintable PositionSpec with the
// tick range centered on the current tick and minimum amounts derived from
// the full-precision liquidity the desired amounts can fund.
func (b *Builder) Build(ctx context.Context, pool domain.PoolRecommendation, amount0, amount1 domain.TokenAmount, recipient string) (domain.PositionSpec, error) {
	poolAddr := pool.PoolAddress
	if poolAddr == "" {
		resolved, err := b.reader.ResolvePool(ctx, b.factoryAddress, pool.Token0.Address, pool.Token1.Address, pool.FeeTier)
		if err != nil {
			return domain.PositionSpec{}, fmt.Errorf("position: resolve pool: %w", err)
		}
		poolAddr = resolved
	}

	state, err := b.reader.PoolState(ctx, poolAddr)
	if err != nil {
		return domain.PositionSpec{}, fmt.Errorf("position: read pool %s: %w", poolAddr, err)
	}
	if state.TickSpacing <= 0 {
		return domain.PositionSpec{}, fmt.Errorf("%w: pool %s reports tick spacing %d", domain.ErrPoolStateUnavailable, poolAddr, state.TickSpacing)
	}

	center := NearestUsableTick(state.Tick, state.TickSpacing)
	tickLower := center - b.RangeSpacings*state.TickSpacing
	tickUpper := center + b.RangeSpacings*state.TickSpacing
	if tickLower >= tickUpper || tickLower < MinTick || tickUpper > MaxTick {
		return domain.PositionSpec{}, fmt.Errorf("%w: [%d, %d] around tick %d with spacing %d",
			domain.ErrInvalidTickRange, tickLower, tickUpper, state.Tick, state.TickSpacing)
	}

	sqrtA, err := SqrtRatioAtTick(tickLower)
	if err != nil {
		return domain.PositionSpec{}, err
	}
	sqrtB, err := SqrtRatioAtTick(tickUpper)
	if err != nil {
		return domain.PositionSpec{}, err
	}

	raw0 := amount0.Raw
	if raw0 == nil {
		raw0 = new(big.Int)
	}
	raw1 := amount1.Raw
	if raw1 == nil {
		raw1 = new(big.Int)
	}

	liquidity := LiquidityForAmounts(state.SqrtPriceX96, sqrtA, sqrtB, raw0, raw1)
	pull0, pull1 := AmountsForLiquidity(state.SqrtPriceX96, sqrtA, sqrtB, liquidity)

	b.logger.DebugContext(ctx, "position built",
		slog.String("pool", poolAddr),
		slog.Int("tick_lower", tickLower),
		slog.Int("tick_upper", tickUpper),
		slog.String("liquidity", liquidity.String()),
	)

	spec := domain.PositionSpec{
		Pool:       pool,
		State:      state,
		TickLower:  tickLower,
		TickUpper:  tickUpper,
		Amount0:    amount0,
		Amount1:    amount1,
		Amount0Min: applySlippage(pull0, b.SlippageBps),
		Amount1Min: applySlippage(pull1, b.SlippageBps),
		Liquidity:  liquidity,
		Recipient:  recipient,
	}
	spec.Pool.PoolAddress = poolAddr
	return spec, nil
}

// applySlippage floors amount down by bps basis points.
func applySlippage(amount *big.Int, bps int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(domain.BasisPointDenominator-bps)))
	return out.Div(out, big.NewInt(domain.BasisPointDenominator))
}
