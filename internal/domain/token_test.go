package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAmountFromStable(t *testing.T) {
	weth := Token{Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18}
	usdbc := Token{Address: "0xd9aa", Symbol: "USDbC", Decimals: 6}

	t.Run("whole division", func(t *testing.T) {
		// 50 USD at 2 USD per token is 25 whole tokens.
		got := TokenAmountFromStable(weth, big.NewInt(50_000_000), 2.0)
		want, ok := new(big.Int).SetString("25000000000000000000", 10)
		require.True(t, ok)
		assert.Zero(t, got.Raw.Cmp(want))
	})

	t.Run("floors the remainder", func(t *testing.T) {
		// 1 USD at 3 USD per token in 6 decimals floors to 333333, never up.
		got := TokenAmountFromStable(usdbc, big.NewInt(1_000_000), 3.0)
		assert.Equal(t, int64(333_333), got.Raw.Int64())
	})

	t.Run("zero price means missing", func(t *testing.T) {
		got := TokenAmountFromStable(weth, big.NewInt(1_000_000), 0)
		assert.True(t, got.IsZero())
	})

	t.Run("negative price means missing", func(t *testing.T) {
		got := TokenAmountFromStable(weth, big.NewInt(1_000_000), -1.5)
		assert.True(t, got.IsZero())
	})

	t.Run("nil budget", func(t *testing.T) {
		got := TokenAmountFromStable(weth, nil, 2.0)
		assert.True(t, got.IsZero())
	})
}

func TestTokenAmountIsZero(t *testing.T) {
	assert.True(t, TokenAmount{}.IsZero())
	assert.True(t, TokenAmount{Raw: new(big.Int)}.IsZero())
	assert.False(t, TokenAmount{Raw: big.NewInt(1)}.IsZero())
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress(
		"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	))
	assert.False(t, SameAddress(
		"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		"0x4200000000000000000000000000000000000006",
	))
}
