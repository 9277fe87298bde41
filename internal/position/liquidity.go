package position

import "math/big"

// liquidityForAmount0 computes amount0 * (sqrtA * sqrtB / Q96) / (sqrtB - sqrtA).
// Callers guarantee sqrtA < sqrtB.
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Div(intermediate, q96)
	num := new(big.Int).Mul(amount0, intermediate)
	den := new(big.Int).Sub(sqrtB, sqrtA)
	return num.Div(num, den)
}

// liquidityForAmount1 computes amount1 * Q96 / (sqrtB - sqrtA).
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	num := new(big.Int).Mul(amount1, q96)
	den := new(big.Int).Sub(sqrtB, sqrtA)
	return num.Div(num, den)
}

// LiquidityForAmounts computes the maximum liquidity the desired amounts can
// fund over [sqrtA, sqrtB] given the current price sqrtP, mirroring the v3
// periphery LiquidityAmounts library at full precision.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) < 0:
		l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// AmountsForLiquidity computes the token amounts a position of the given
// liquidity holds over [sqrtA, sqrtB] at the current price sqrtP. These are
// the amounts the mint will actually pull.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (amount0, amount1 *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	amount0 = new(big.Int)
	amount1 = new(big.Int)
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		amount0 = amount0ForLiquidity(sqrtA, sqrtB, liquidity)
	case sqrtP.Cmp(sqrtB) < 0:
		amount0 = amount0ForLiquidity(sqrtP, sqrtB, liquidity)
		amount1 = amount1ForLiquidity(sqrtA, sqrtP, liquidity)
	default:
		amount1 = amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	}
	return amount0, amount1
}

// amount0ForLiquidity computes liquidity * Q96 * (sqrtB - sqrtA) / sqrtB / sqrtA.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	num := new(big.Int).Mul(liquidity, q96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))
	num.Div(num, sqrtB)
	return num.Div(num, sqrtA)
}

// amount1ForLiquidity computes liquidity * (sqrtB - sqrtA) / Q96.
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return num.Div(num, q96)
}
