// Package swap turns a stable budget into a pool token through the
// aggregator: quote, sign, submit, wait.
package swap

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/poolpilot/internal/domain"
	"github.com/alanyoungcy/poolpilot/internal/platform/oneinch"
)

// Quoter builds aggregator swap transactions. *oneinch.Client satisfies it.
type Quoter interface {
	Swap(ctx context.Context, params oneinch.SwapParams) (oneinch.SwapTx, error)
}

// Executor executes swaps from the stable asset into pool tokens.
type Executor struct {
	quoter           Quoter
	wallet           domain.Wallet
	stableAddress    string
	confirmationWait time.Duration
	logger           *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a swap Executor.
func NewExecutor(quoter Quoter, wallet domain.Wallet, stableAddress string, confirmationWait time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		quoter:           quoter,
		wallet:           wallet,
		stableAddress:    stableAddress,
		confirmationWait: confirmationWait,
		logger:           logger.With(slog.String("component", "swap")),
		sleep:            sleepCtx,
	}
}

// Result reports one executed (or skipped) swap.
type Result struct {
	TxHash  string
	Skipped bool
}

// Execute swaps stableRaw units of the stable asset into dst. A destination
// equal to the stable asset itself is a no-op: the budget already is the
// destination token, so no transaction is built or submitted. A zero or nil
// amount is likewise skipped.
func (e *Executor) Execute(ctx context.Context, dst domain.Token, stableRaw *big.Int) (Result, error) {
	if stableRaw == nil || stableRaw.Sign() == 0 {
		e.logger.WarnContext(ctx, "skipping zero-amount swap", slog.String("dst", dst.Address))
		return Result{Skipped: true}, nil
	}
	if domain.SameAddress(dst.Address, e.stableAddress) {
		e.logger.DebugContext(ctx, "destination is the stable asset, skipping swap")
		return Result{Skipped: true}, nil
	}

	tx, err := e.quoter.Swap(ctx, oneinch.SwapParams{
		Src:    e.stableAddress,
		Dst:    dst.Address,
		Amount: stableRaw.String(),
		From:   e.wallet.Address(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("swap: quote %s -> %s: %w", e.stableAddress, dst.Address, err)
	}

	calldata, err := hexutil.Decode(tx.Data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode swap calldata: %v", domain.ErrSwapTransactionFailed, err)
	}
	value := new(big.Int)
	if tx.Value != "" {
		if _, ok := value.SetString(tx.Value, 10); !ok {
			return Result{}, fmt.Errorf("%w: invalid swap value %q", domain.ErrSwapTransactionFailed, tx.Value)
		}
	}

	txHash, err := e.wallet.SignAndSend(ctx, tx.To, calldata, value)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s -> %s: %v", domain.ErrSwapTransactionFailed, e.stableAddress, dst.Address, err)
	}
	e.logger.InfoContext(ctx, "swap submitted",
		slog.String("dst", dst.Address),
		slog.String("amount", stableRaw.String()),
		slog.String("tx", txHash),
	)

	if err := e.sleep(ctx, e.confirmationWait); err != nil {
		return Result{}, err
	}
	return Result{TxHash: txHash}, nil
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
