package position

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

const positionManagerABIJSON = `[
  {"inputs": [{"components": [
    {"name": "token0", "type": "address"},
    {"name": "token1", "type": "address"},
    {"name": "fee", "type": "uint24"},
    {"name": "tickLower", "type": "int24"},
    {"name": "tickUpper", "type": "int24"},
    {"name": "amount0Desired", "type": "uint256"},
    {"name": "amount1Desired", "type": "uint256"},
    {"name": "amount0Min", "type": "uint256"},
    {"name": "amount1Min", "type": "uint256"},
    {"name": "recipient", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "params", "type": "tuple"}],
  "name": "mint",
  "outputs": [
    {"name": "tokenId", "type": "uint256"},
    {"name": "liquidity", "type": "uint128"},
    {"name": "amount0", "type": "uint256"},
    {"name": "amount1", "type": "uint256"}
  ],
  "stateMutability": "payable", "type": "function"}
]`

var (
	managerABI     abi.ABI
	managerABIOnce sync.Once
	managerABIErr  error
)

func managerABIInstance() (abi.ABI, error) {
	managerABIOnce.Do(func() {
		managerABI, managerABIErr = abi.JSON(strings.NewReader(positionManagerABIJSON))
	})
	return managerABI, managerABIErr
}

// mintParams mirrors the position manager's MintParams tuple.
type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// Minter submits mint transactions to the NonfungiblePositionManager.
type Minter struct {
	wallet           domain.Wallet
	managerAddress   string
	deadline         time.Duration
	confirmationWait time.Duration
	logger           *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMinter creates a position Minter.
func NewMinter(wallet domain.Wallet, managerAddress string, deadline, confirmationWait time.Duration, logger *slog.Logger) *Minter {
	return &Minter{
		wallet:           wallet,
		managerAddress:   managerAddress,
		deadline:         deadline,
		confirmationWait: confirmationWait,
		logger:           logger.With(slog.String("component", "minter")),
		now:              time.Now,
		sleep:            sleepCtx,
	}
}

// Mint ABI-encodes and submits the mint for the given spec, waits the fixed
// confirmation delay, and returns the transaction hash. The mint is never
// retried here; a failure surfaces to the caller as-is.
func (m *Minter) Mint(ctx context.Context, spec domain.PositionSpec) (string, error) {
	mabi, err := managerABIInstance()
	if err != nil {
		return "", fmt.Errorf("position: parse manager abi: %w", err)
	}

	deadline := m.now().Add(m.deadline).Unix()
	calldata, err := mabi.Pack("mint", mintParams{
		Token0:         common.HexToAddress(spec.Pool.Token0.Address),
		Token1:         common.HexToAddress(spec.Pool.Token1.Address),
		Fee:            big.NewInt(int64(spec.Pool.FeeTier)),
		TickLower:      big.NewInt(int64(spec.TickLower)),
		TickUpper:      big.NewInt(int64(spec.TickUpper)),
		Amount0Desired: orZero(spec.Amount0.Raw),
		Amount1Desired: orZero(spec.Amount1.Raw),
		Amount0Min:     orZero(spec.Amount0Min),
		Amount1Min:     orZero(spec.Amount1Min),
		Recipient:      common.HexToAddress(spec.Recipient),
		Deadline:       big.NewInt(deadline),
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode mint: %v", domain.ErrMintTransactionFailed, err)
	}

	txHash, err := m.wallet.SignAndSend(ctx, m.managerAddress, calldata, nil)
	if err != nil {
		return "", fmt.Errorf("%w: pool %s: %v", domain.ErrMintTransactionFailed, spec.Pool.PoolAddress, err)
	}
	m.logger.InfoContext(ctx, "mint submitted",
		slog.String("pool", spec.Pool.PoolAddress),
		slog.Int("tick_lower", spec.TickLower),
		slog.Int("tick_upper", spec.TickUpper),
		slog.String("tx", txHash),
	)

	if err := m.sleep(ctx, m.confirmationWait); err != nil {
		return "", err
	}
	return txHash, nil
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
