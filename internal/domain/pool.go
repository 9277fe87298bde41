package domain

import "math/big"

// Token identifies an ERC-20 token by address with its decimal scale.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// PoolRecommendation is one Uniswap v3 pool suggested by the advisor for a
// risk band. FeeTier is in hundredths of a basis point (v3 convention:
// 500, 3000, 10000).
type PoolRecommendation struct {
	PoolAddress string   `json:"poolAddress"`
	Token0      Token    `json:"token0"`
	Token1      Token    `json:"token1"`
	FeeTier     int      `json:"feeTier"`
	Band        RiskBand `json:"band"`
}

// Recommendations is the advisor response for a split deposit. Either field
// may be nil when the corresponding band received no budget or no pool.
type Recommendations struct {
	Risky        *PoolRecommendation
	Conservative *PoolRecommendation
}

// Empty reports whether the advisor returned nothing actionable.
func (r Recommendations) Empty() bool {
	return r.Risky == nil && r.Conservative == nil
}

// PoolState is the on-chain snapshot a position is built against.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int
	Liquidity    *big.Int
	TickSpacing  int
	Fee          int
}
