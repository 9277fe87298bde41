package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStable(t *testing.T) {
	tests := []struct {
		name             string
		totalUSD         float64
		riskyBps         int
		wantTotal        int64
		wantRisky        int64
		wantConservative int64
	}{
		{
			name:             "even thirty seventy",
			totalUSD:         1000,
			riskyBps:         3000,
			wantTotal:        1_000_000_000,
			wantRisky:        300_000_000,
			wantConservative: 700_000_000,
		},
		{
			name:             "all risky",
			totalUSD:         50,
			riskyBps:         10_000,
			wantTotal:        50_000_000,
			wantRisky:        50_000_000,
			wantConservative: 0,
		},
		{
			name:             "all conservative",
			totalUSD:         50,
			riskyBps:         0,
			wantTotal:        50_000_000,
			wantRisky:        0,
			wantConservative: 50_000_000,
		},
		{
			name:             "odd unit goes to conservative",
			totalUSD:         0.000033,
			riskyBps:         5000,
			wantTotal:        33,
			wantRisky:        16,
			wantConservative: 17,
		},
		{
			name:             "zero amount",
			totalUSD:         0,
			riskyBps:         5000,
			wantTotal:        0,
			wantRisky:        0,
			wantConservative: 0,
		},
		{
			name:             "negative amount",
			totalUSD:         -12.5,
			riskyBps:         5000,
			wantTotal:        0,
			wantRisky:        0,
			wantConservative: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, risky, conservative := SplitStable(tt.totalUSD, tt.riskyBps)
			assert.Equal(t, tt.wantTotal, total.Int64())
			assert.Equal(t, tt.wantRisky, risky.Int64())
			assert.Equal(t, tt.wantConservative, conservative.Int64())

			sum := new(big.Int).Add(risky, conservative)
			assert.Zero(t, sum.Cmp(total), "parts must sum to the total")
		})
	}
}

func TestSplitStableFloorsSubUnitInput(t *testing.T) {
	// More precision than the stable asset carries: the excess is floored away.
	total, _, _ := SplitStable(10.1234567, 5000)
	assert.Equal(t, int64(10_123_456), total.Int64())
}

func TestSplitStableDeterministic(t *testing.T) {
	a, _, _ := SplitStable(123.456789, 2500)
	b, _, _ := SplitStable(123.456789, 2500)
	assert.Zero(t, a.Cmp(b))
}

func TestHalveStable(t *testing.T) {
	tests := []struct {
		name      string
		in        int64
		wantHalf0 int64
		wantHalf1 int64
	}{
		{"even", 100, 50, 50},
		{"odd unit goes to second half", 101, 50, 51},
		{"one", 1, 0, 1},
		{"zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			half0, half1 := HalveStable(big.NewInt(tt.in))
			assert.Equal(t, tt.wantHalf0, half0.Int64())
			assert.Equal(t, tt.wantHalf1, half1.Int64())
		})
	}
}

func TestInvestmentRequestValidate(t *testing.T) {
	valid := InvestmentRequest{UserID: "user-1", TotalUSD: 100, RiskyBps: 5000}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  InvestmentRequest
	}{
		{"missing user", InvestmentRequest{TotalUSD: 100, RiskyBps: 5000}},
		{"zero amount", InvestmentRequest{UserID: "u", TotalUSD: 0, RiskyBps: 5000}},
		{"negative amount", InvestmentRequest{UserID: "u", TotalUSD: -1, RiskyBps: 5000}},
		{"bps below range", InvestmentRequest{UserID: "u", TotalUSD: 100, RiskyBps: -1}},
		{"bps above range", InvestmentRequest{UserID: "u", TotalUSD: 100, RiskyBps: 10_001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}
