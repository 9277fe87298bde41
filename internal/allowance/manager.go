// Package allowance checks and raises ERC-20 allowances for the two spender
// domains the pipeline touches: the aggregation router and the position
// manager. The two domains never share a reading, and readings are never
// cached across runs.
package allowance

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/poolpilot/internal/chain"
	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// Reader reads current on-chain allowances. *chain.Client satisfies it.
type Reader interface {
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
}

// routerDomain and managerDomain label the two spender domains in logs.
const (
	routerDomain  = "router"
	managerDomain = "position_manager"
)

// managerCeilingFactor sizes the approval granted to the position manager:
// a bounded multiple of the immediate need, so one approval covers many
// future mints without handing a compromised contract an unlimited grant.
const managerCeilingFactor = 1000

// Manager performs allowance checks and approvals through a wallet.
type Manager struct {
	reader           Reader
	wallet           domain.Wallet
	confirmationWait time.Duration
	logger           *slog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates an allowance Manager.
func NewManager(reader Reader, wallet domain.Wallet, confirmationWait time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		reader:           reader,
		wallet:           wallet,
		confirmationWait: confirmationWait,
		logger:           logger.With(slog.String("component", "allowance")),
		sleep:            sleepCtx,
	}
}

// Check reads the current allowance for spender without side effects.
func (m *Manager) Check(ctx context.Context, token, spender string) (*big.Int, error) {
	current, err := m.reader.Allowance(ctx, token, m.wallet.Address(), spender)
	if err != nil {
		return nil, fmt.Errorf("allowance: check %s for %s: %w", token, spender, err)
	}
	return current, nil
}

// EnsureRouter guarantees the aggregation router can spend exactly the
// required amount of token. See ensure for the read-approve-reread protocol.
func (m *Manager) EnsureRouter(ctx context.Context, token, router string, required *big.Int) error {
	return m.ensure(ctx, routerDomain, token, router, required, required)
}

// EnsureManager guarantees the position manager can spend at least the
// required amount of token. When an approval is needed it grants a finite
// ceiling of managerCeilingFactor times the requirement rather than the
// exact amount.
func (m *Manager) EnsureManager(ctx context.Context, token, manager string, required *big.Int) error {
	var ceiling *big.Int
	if required != nil {
		ceiling = new(big.Int).Mul(required, big.NewInt(managerCeilingFactor))
	}
	return m.ensure(ctx, managerDomain, token, manager, required, ceiling)
}

// ensure reads the current allowance, returns immediately when it already
// covers required, and otherwise submits an approval for grantAmount, waits
// the fixed confirmation delay, and re-reads. A reading still below required
// after the wait is ErrApprovalNotConfirmed.
func (m *Manager) ensure(ctx context.Context, domainName, token, spender string, required, grantAmount *big.Int) error {
	if required == nil || required.Sign() <= 0 {
		return nil
	}

	current, err := m.Check(ctx, token, spender)
	if err != nil {
		return err
	}
	if current.Cmp(required) >= 0 {
		m.logger.DebugContext(ctx, "allowance sufficient",
			slog.String("domain", domainName),
			slog.String("token", token),
			slog.String("current", current.String()),
			slog.String("required", required.String()),
		)
		return nil
	}

	calldata, err := chain.ApproveCalldata(spender, grantAmount)
	if err != nil {
		return fmt.Errorf("allowance: encode approve: %w", err)
	}

	txHash, err := m.wallet.SignAndSend(ctx, token, calldata, nil)
	if err != nil {
		return fmt.Errorf("%w: approve %s for %s: %v", domain.ErrApprovalNotConfirmed, token, spender, err)
	}
	m.logger.InfoContext(ctx, "approval submitted",
		slog.String("domain", domainName),
		slog.String("token", token),
		slog.String("spender", spender),
		slog.String("tx", txHash),
	)

	if err := m.sleep(ctx, m.confirmationWait); err != nil {
		return err
	}

	after, err := m.Check(ctx, token, spender)
	if err != nil {
		return err
	}
	if after.Cmp(required) < 0 {
		return fmt.Errorf("%w: %s allowance %s still below %s after tx %s",
			domain.ErrApprovalNotConfirmed, token, after.String(), required.String(), txHash)
	}
	return nil
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
