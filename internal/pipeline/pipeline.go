// Package pipeline orchestrates one investment run end to end: fetch pool
// recommendations, check the router allowance once for the whole spend, then
// process the risky and conservative legs in order. Each leg prices its pool
// tokens, swaps the stable budget into them, raises mint approvals, builds a
// position around the current tick, and mints it. The pipeline fails fast:
// the first error ends the run with leg and step context, and nothing is
// retried or rolled back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/poolpilot/internal/domain"
	"github.com/alanyoungcy/poolpilot/internal/platform/oneinch"
	"github.com/alanyoungcy/poolpilot/internal/swap"
)

// Step names as they appear in progress updates and failure records.
const (
	StepFetchingRecommendations = "fetching_recommendations"
	StepAllowanceCheck          = "allowance_check"
	StepPricingTokens           = "pricing_tokens"
	StepSwappingToken0          = "swapping_token0"
	StepSwappingToken1          = "swapping_token1"
	StepApprovingForMint        = "approving_for_mint"
	StepBuildingPosition        = "building_position"
	StepMintingPosition         = "minting_position"
	StepCompleted               = "completed"
	StepFailed                  = "failed"
)

// Advisor fetches pool recommendations for a split deposit.
type Advisor interface {
	Recommendations(ctx context.Context, userID string, totalUSD, riskyUSD, conservativeUSD float64) (domain.Recommendations, error)
}

// Pricer fetches USD spot prices for token addresses. Missing entries mean
// the price is unavailable, never that it is zero.
type Pricer interface {
	SpotPrices(ctx context.Context, addresses []string) (map[string]float64, error)
}

// RouterResolver returns the aggregation router address swaps must be
// approved for.
type RouterResolver interface {
	RouterAddress(ctx context.Context) (string, error)
}

// AllowanceEnsurer raises allowances for the two spender domains.
type AllowanceEnsurer interface {
	EnsureRouter(ctx context.Context, token, router string, required *big.Int) error
	EnsureManager(ctx context.Context, token, manager string, required *big.Int) error
}

// Swapper executes a single stable-to-token swap.
type Swapper interface {
	Execute(ctx context.Context, dst domain.Token, stableRaw *big.Int) (swap.Result, error)
}

// Builder produces a mintable position spec from fresh pool state.
type Builder interface {
	Build(ctx context.Context, pool domain.PoolRecommendation, amount0, amount1 domain.TokenAmount, recipient string) (domain.PositionSpec, error)
}

// Minter submits the mint transaction for a built position.
type Minter interface {
	Mint(ctx context.Context, spec domain.PositionSpec) (string, error)
}

// Pipeline runs investments. All collaborators are injected; the pipeline
// holds no global state and is safe to share across runs.
type Pipeline struct {
	advisor   Advisor
	pricer    Pricer
	router    RouterResolver
	allowance AllowanceEnsurer
	swapper   Swapper
	builder   Builder
	minter    Minter
	wallet    domain.Wallet

	stable         domain.Token
	managerAddress string
	logger         *slog.Logger

	now func() time.Time
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Advisor   Advisor
	Pricer    Pricer
	Router    RouterResolver
	Allowance AllowanceEnsurer
	Swapper   Swapper
	Builder   Builder
	Minter    Minter
	Wallet    domain.Wallet

	Stable         domain.Token
	ManagerAddress string
}

// New creates a Pipeline.
func New(deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		advisor:        deps.Advisor,
		pricer:         deps.Pricer,
		router:         deps.Router,
		allowance:      deps.Allowance,
		swapper:        deps.Swapper,
		builder:        deps.Builder,
		minter:         deps.Minter,
		wallet:         deps.Wallet,
		stable:         deps.Stable,
		managerAddress: deps.ManagerAddress,
		logger:         logger.With(slog.String("component", "pipeline")),
		now:            time.Now,
	}
}

// Run executes one investment and always returns a terminal Outcome. The
// request must already be validated. Progress lands on 100 exactly once, at
// the terminal update, whether the run completed or failed.
func (p *Pipeline) Run(ctx context.Context, req domain.InvestmentRequest, sink domain.ProgressSink) domain.Outcome {
	return p.RunWithID(ctx, uuid.New().String(), req, sink)
}

// RunWithID is Run with a caller-assigned operation id, used when the
// operation record is created before the run starts.
func (p *Pipeline) RunWithID(ctx context.Context, operationID string, req domain.InvestmentRequest, sink domain.ProgressSink) domain.Outcome {
	if sink == nil {
		sink = domain.NopProgress
	}
	started := p.now()
	tracker := newTracker(operationID, sink, p.now)
	logger := p.logger.With(slog.String("operation_id", operationID))

	logger.InfoContext(ctx, "starting investment run",
		slog.Float64("total_usd", req.TotalUSD),
		slog.Int("risky_bps", req.RiskyBps),
	)

	outcome := p.run(ctx, req, operationID, tracker, logger)
	outcome.OperationID = operationID
	outcome.StartedAt = started
	outcome.FinishedAt = p.now()

	if outcome.Status == domain.OutcomeCompleted {
		tracker.publish(StepCompleted, "", 100, "investment completed")
		logger.InfoContext(ctx, "investment run completed",
			slog.Int("positions", len(outcome.Positions)),
			slog.Duration("elapsed", outcome.FinishedAt.Sub(started)),
		)
	} else {
		tracker.publish(StepFailed, outcome.FailedLeg, 100, failMessage(outcome))
		logger.ErrorContext(ctx, "investment run failed",
			slog.String("leg", string(outcome.FailedLeg)),
			slog.String("step", outcome.FailedStep),
			slog.String("error", errString(outcome.Err)),
		)
	}
	return outcome
}

func (p *Pipeline) run(ctx context.Context, req domain.InvestmentRequest, operationID string, tracker *tracker, logger *slog.Logger) domain.Outcome {
	// Phase 1 (0-25): recommendations.
	tracker.publish(StepFetchingRecommendations, "", 5, "fetching pool recommendations")

	total, riskyRaw, conservativeRaw := domain.SplitStable(req.TotalUSD, req.RiskyBps)
	riskyUSD := usdFromRaw(riskyRaw)
	conservativeUSD := usdFromRaw(conservativeRaw)

	recs, err := p.advisor.Recommendations(ctx, req.UserID, req.TotalUSD, riskyUSD, conservativeUSD)
	if err != nil {
		return failed(domain.Outcome{}, "", StepFetchingRecommendations, err)
	}

	legs := buildLegs(recs, riskyRaw, conservativeRaw)
	if len(legs) == 0 {
		return failed(domain.Outcome{}, "", StepFetchingRecommendations, domain.ErrNoRecommendations)
	}
	tracker.publish(StepFetchingRecommendations, "", 15, fmt.Sprintf("%d pool(s) recommended", len(legs)))

	// Phase 1b (to 25): one router allowance check for the full stable spend.
	routerAddr, err := p.router.RouterAddress(ctx)
	if err != nil {
		return failed(domain.Outcome{}, "", StepAllowanceCheck, err)
	}
	if err := p.allowance.EnsureRouter(ctx, p.stable.Address, routerAddr, total); err != nil {
		return failed(domain.Outcome{}, "", StepAllowanceCheck, err)
	}
	tracker.publish(StepAllowanceCheck, "", 25, "router allowance verified")

	// Phases 2-3: legs in fixed order, risky first. Each band owns its
	// progress window even when the other band is absent.
	windows := map[domain.RiskBand][2]int{
		domain.BandRisky:        {25, 70},
		domain.BandConservative: {70, 95},
	}
	outcome := domain.Outcome{Status: domain.OutcomeCompleted}
	for _, leg := range legs {
		window := windows[leg.Band]
		minted, err := p.processLeg(ctx, leg, tracker, window, logger)
		if err != nil {
			var stepErr *stepError
			step := StepFailed
			if errors.As(err, &stepErr) {
				step = stepErr.step
				err = stepErr.err
			}
			return failed(outcome, leg.Band, step, err)
		}
		outcome.Positions = append(outcome.Positions, minted)
	}

	return outcome
}

// processLeg runs the per-leg sub-machine inside the given progress window.
func (p *Pipeline) processLeg(ctx context.Context, leg domain.AllocationLeg, tracker *tracker, window [2]int, logger *slog.Logger) (domain.MintedPosition, error) {
	at := func(fraction float64) int {
		return window[0] + int(float64(window[1]-window[0])*fraction)
	}
	band := leg.Band
	pool := leg.Pool
	logger = logger.With(slog.String("band", string(band)), slog.String("pool", pool.PoolAddress))

	// Pricing.
	tracker.publish(StepPricingTokens, band, at(0.05), "pricing pool tokens")
	prices, err := p.pricer.SpotPrices(ctx, []string{pool.Token0.Address, pool.Token1.Address})
	if err != nil {
		return domain.MintedPosition{}, &stepError{StepPricingTokens, err}
	}

	half0, half1 := domain.HalveStable(leg.StableRaw)
	amount0 := p.desiredAmount(ctx, pool.Token0, half0, prices, logger)
	amount1 := p.desiredAmount(ctx, pool.Token1, half1, prices, logger)
	if amount0.IsZero() && amount1.IsZero() {
		return domain.MintedPosition{}, &stepError{StepPricingTokens,
			fmt.Errorf("%w: no price for either pool token", domain.ErrPriceUnavailable)}
	}

	// Swaps. A zero desired amount means the price was missing: the stable
	// half is not spent and the leg proceeds one-sided.
	tracker.publish(StepSwappingToken0, band, at(0.2), "swapping into "+pool.Token0.Symbol)
	if !amount0.IsZero() {
		if _, err := p.swapper.Execute(ctx, pool.Token0, half0); err != nil {
			return domain.MintedPosition{}, &stepError{StepSwappingToken0, err}
		}
	}
	tracker.publish(StepSwappingToken1, band, at(0.4), "swapping into "+pool.Token1.Symbol)
	if !amount1.IsZero() {
		if _, err := p.swapper.Execute(ctx, pool.Token1, half1); err != nil {
			return domain.MintedPosition{}, &stepError{StepSwappingToken1, err}
		}
	}

	// Mint approvals, one spender domain per token actually deposited.
	tracker.publish(StepApprovingForMint, band, at(0.55), "raising mint allowances")
	if !amount0.IsZero() {
		if err := p.allowance.EnsureManager(ctx, pool.Token0.Address, p.managerAddress, amount0.Raw); err != nil {
			return domain.MintedPosition{}, &stepError{StepApprovingForMint, err}
		}
	}
	if !amount1.IsZero() {
		if err := p.allowance.EnsureManager(ctx, pool.Token1.Address, p.managerAddress, amount1.Raw); err != nil {
			return domain.MintedPosition{}, &stepError{StepApprovingForMint, err}
		}
	}

	// Position.
	tracker.publish(StepBuildingPosition, band, at(0.7), "reading pool state")
	spec, err := p.builder.Build(ctx, pool, amount0, amount1, p.wallet.Address())
	if err != nil {
		return domain.MintedPosition{}, &stepError{StepBuildingPosition, err}
	}

	tracker.publish(StepMintingPosition, band, at(0.85), "minting position")
	txHash, err := p.minter.Mint(ctx, spec)
	if err != nil {
		return domain.MintedPosition{}, &stepError{StepMintingPosition, err}
	}

	tracker.publish(StepMintingPosition, band, at(1.0), "position minted")
	logger.InfoContext(ctx, "leg completed", slog.String("tx", txHash))

	return domain.MintedPosition{
		Band:      band,
		Pool:      spec.Pool,
		TickLower: spec.TickLower,
		TickUpper: spec.TickUpper,
		Liquidity: spec.Liquidity,
		TxHash:    txHash,
	}, nil
}

// desiredAmount converts a stable half-budget into the target token at the
// fetched price. A missing price yields a zero amount and a warning; the
// caller decides whether the leg can continue.
func (p *Pipeline) desiredAmount(ctx context.Context, token domain.Token, halfRaw *big.Int, prices map[string]float64, logger *slog.Logger) domain.TokenAmount {
	price, ok := prices[strings.ToLower(token.Address)]
	if !ok || price <= 0 {
		logger.WarnContext(ctx, "price missing for pool token, skipping its side",
			slog.String("token", token.Address),
			slog.String("symbol", token.Symbol),
		)
		return domain.TokenAmount{Token: token, Raw: new(big.Int)}
	}
	return domain.TokenAmountFromStable(token, halfRaw, price)
}

// buildLegs orders the sub-allocations risky first and drops bands with no
// recommendation or no budget.
func buildLegs(recs domain.Recommendations, riskyRaw, conservativeRaw *big.Int) []domain.AllocationLeg {
	var legs []domain.AllocationLeg
	if recs.Risky != nil && riskyRaw.Sign() > 0 {
		legs = append(legs, domain.AllocationLeg{Band: domain.BandRisky, StableRaw: riskyRaw, Pool: *recs.Risky})
	}
	if recs.Conservative != nil && conservativeRaw.Sign() > 0 {
		legs = append(legs, domain.AllocationLeg{Band: domain.BandConservative, StableRaw: conservativeRaw, Pool: *recs.Conservative})
	}
	return legs
}

// stepError carries the failing step name up to Run.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func failed(out domain.Outcome, band domain.RiskBand, step string, err error) domain.Outcome {
	out.Status = domain.OutcomeFailed
	out.FailedLeg = band
	out.FailedStep = step
	out.Err = err
	return out
}

func failMessage(out domain.Outcome) string {
	msg := "investment failed at " + out.FailedStep
	if out.Err != nil {
		msg += ": " + out.Err.Error()
	}
	return msg
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// usdFromRaw converts stable smallest units back to a USD decimal for the
// advisor request boundary.
func usdFromRaw(raw *big.Int) float64 {
	f := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.StableDecimals), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}
