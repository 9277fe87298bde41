package domain

import "math/big"

// PositionSpec is everything needed to mint one concentrated-liquidity
// position: the pool, the aligned tick range, the desired token amounts, and
// the slippage-adjusted minimums.
type PositionSpec struct {
	Pool       PoolRecommendation
	State      PoolState
	TickLower  int
	TickUpper  int
	Amount0    TokenAmount
	Amount1    TokenAmount
	Amount0Min *big.Int
	Amount1Min *big.Int
	Liquidity  *big.Int
	Recipient  string
}
