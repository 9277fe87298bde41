// Package domain holds the core types, interfaces, and error taxonomy shared
// by every layer of poolpilot. It has no dependencies on other internal
// packages so that collaborators can be swapped freely in tests.
package domain

import (
	"fmt"
	"math/big"
	"time"
)

// BasisPointDenominator is the full scale for basis-point splits.
const BasisPointDenominator = 10_000

// StableDecimals is the decimal scale of the stable asset (USDC on Base).
const StableDecimals = 6

// InvestmentRequest is the validated input of a pipeline run. TotalUSD enters
// as a decimal at the API boundary and is floored into stable smallest units
// before any arithmetic happens.
type InvestmentRequest struct {
	UserID        string  `json:"userId"`
	TotalUSD      float64 `json:"totalUsd"`
	RiskyBps      int     `json:"riskyBps"`
	WalletAddress string  `json:"walletAddress"`
}

// Validate checks the request against the input invariants.
func (r InvestmentRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrConfiguration)
	}
	if r.TotalUSD <= 0 {
		return fmt.Errorf("%w: total amount must be positive, got %f", ErrConfiguration, r.TotalUSD)
	}
	if r.RiskyBps < 0 || r.RiskyBps > BasisPointDenominator {
		return fmt.Errorf("%w: risky share %d outside [0, %d]", ErrConfiguration, r.RiskyBps, BasisPointDenominator)
	}
	return nil
}

// RiskBand labels the two sub-allocations of a deposit.
type RiskBand string

const (
	BandRisky        RiskBand = "risky"
	BandConservative RiskBand = "conservative"
)

// AllocationLeg is one sub-allocation: a risk band, its stable budget in
// smallest units, and the pool recommended for it.
type AllocationLeg struct {
	Band      RiskBand
	StableRaw *big.Int
	Pool      PoolRecommendation
}

// SplitStable floors a USD decimal into stable smallest units and divides it
// by basis points. The two parts always sum to the floored total; the
// conservative part absorbs the rounding remainder.
func SplitStable(totalUSD float64, riskyBps int) (total, risky, conservative *big.Int) {
	rat := new(big.Rat).SetFloat64(totalUSD)
	if rat == nil || rat.Sign() <= 0 {
		z := new(big.Int)
		return z, new(big.Int), new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(StableDecimals), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	total = new(big.Int).Quo(rat.Num(), rat.Denom())

	risky = new(big.Int).Mul(total, big.NewInt(int64(riskyBps)))
	risky.Quo(risky, big.NewInt(BasisPointDenominator))
	conservative = new(big.Int).Sub(total, risky)
	return total, risky, conservative
}

// HalveStable splits a stable budget evenly between the two pool tokens.
// The second half absorbs the odd unit so the halves always sum to the input.
func HalveStable(stableRaw *big.Int) (half0, half1 *big.Int) {
	half0 = new(big.Int).Quo(stableRaw, big.NewInt(2))
	half1 = new(big.Int).Sub(stableRaw, half0)
	return half0, half1
}

// Outcome is the terminal result of a pipeline run.
type Outcome struct {
	OperationID string
	Status      OutcomeStatus
	Positions   []MintedPosition
	FailedLeg   RiskBand
	FailedStep  string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// OutcomeStatus is the terminal state of a run.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// MintedPosition records one successfully minted position.
type MintedPosition struct {
	Band      RiskBand
	Pool      PoolRecommendation
	TickLower int
	TickUpper int
	Liquidity *big.Int
	TxHash    string
}
