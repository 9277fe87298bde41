// Package position builds and mints Uniswap v3 concentrated-liquidity
// positions: tick alignment, liquidity math, and the mint transaction.
package position

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// MinTick and MaxTick bound the usable tick range of any v3 pool.
const (
	MinTick = -887272
	MaxTick = 887272
)

// sqrtRatioMultipliers are the Q128.128 constants of the canonical
// getSqrtRatioAtTick bit decomposition, indexed by bit position.
var sqrtRatioMultipliers = []string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
}

var (
	sqrtMultipliers []*big.Int
	one128          = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint256      = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	q96             = new(big.Int).Lsh(big.NewInt(1), 96)
)

func init() {
	sqrtMultipliers = make([]*big.Int, len(sqrtRatioMultipliers))
	for i, s := range sqrtRatioMultipliers {
		m, ok := new(big.Int).SetString(s, 16)
		if !ok {
			panic("position: bad sqrt ratio constant " + s)
		}
		sqrtMultipliers[i] = m
	}
}

// NearestUsableTick rounds tick to the nearest multiple of spacing, clamped
// inside the usable range. Ties round up, matching the reference rounding.
func NearestUsableTick(tick, spacing int) int {
	if spacing <= 0 {
		return tick
	}

	q := tick / spacing
	r := tick % spacing
	if r < 0 {
		q--
		r += spacing
	}
	rounded := q * spacing
	if 2*r >= spacing {
		rounded += spacing
	}

	if rounded < MinTick {
		rounded += spacing
	} else if rounded > MaxTick {
		rounded -= spacing
	}
	return rounded
}

// SqrtRatioAtTick computes sqrt(1.0001^tick) as a Q64.96 value using the
// exact integer decomposition from the v3 core TickMath library.
func SqrtRatioAtTick(tick int) (*big.Int, error) {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > MaxTick {
		return nil, fmt.Errorf("%w: tick %d outside [%d, %d]", domain.ErrInvalidTickRange, tick, MinTick, MaxTick)
	}

	ratio := new(big.Int).Set(one128)
	if absTick&1 != 0 {
		ratio.Set(sqrtMultipliers[0])
	}
	for i := 1; i < len(sqrtMultipliers); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, sqrtMultipliers[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Round Q128.128 up to Q64.96.
	rem := new(big.Int).And(ratio, big.NewInt((1<<32)-1))
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}
