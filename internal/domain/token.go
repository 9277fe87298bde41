package domain

import (
	"math/big"
	"strings"
)

// TokenAmount pairs a token with a raw amount in its smallest units.
type TokenAmount struct {
	Token Token
	Raw   *big.Int
}

// IsZero reports whether the amount is nil or zero.
func (a TokenAmount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// TokenAmountFromStable converts a stable budget (smallest units of the
// stable asset) into raw units of token at the given USD price per whole
// token. The result is floored; it never rounds up. A non-positive price
// yields a zero amount, which the caller must treat as "price missing",
// not as a real zero.
func TokenAmountFromStable(token Token, stableRaw *big.Int, usdPrice float64) TokenAmount {
	out := TokenAmount{Token: token, Raw: new(big.Int)}
	if stableRaw == nil || stableRaw.Sign() <= 0 || usdPrice <= 0 {
		return out
	}
	price := new(big.Rat).SetFloat64(usdPrice)
	if price == nil || price.Sign() <= 0 {
		return out
	}
	// raw = floor(stableRaw / 10^StableDecimals / price * 10^decimals)
	amount := new(big.Rat).SetInt(stableRaw)
	amount.Quo(amount, new(big.Rat).SetInt(pow10(StableDecimals)))
	amount.Quo(amount, price)
	amount.Mul(amount, new(big.Rat).SetInt(pow10(token.Decimals)))
	out.Raw.Quo(amount.Num(), amount.Denom())
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
