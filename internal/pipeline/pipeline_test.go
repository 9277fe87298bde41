package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolpilot/internal/domain"
	"github.com/alanyoungcy/poolpilot/internal/swap"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeAdvisor struct {
	recs domain.Recommendations
	err  error
}

func (f *fakeAdvisor) Recommendations(ctx context.Context, userID string, totalUSD, riskyUSD, conservativeUSD float64) (domain.Recommendations, error) {
	return f.recs, f.err
}

type fakePricer struct {
	prices map[string]float64
	err    error
}

func (f *fakePricer) SpotPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, a := range addresses {
		if p, ok := f.prices[strings.ToLower(a)]; ok {
			out[strings.ToLower(a)] = p
		}
	}
	return out, nil
}

type fakeRouter struct{ err error }

func (f *fakeRouter) RouterAddress(ctx context.Context) (string, error) {
	return "0xrouter", f.err
}

type ensureCall struct {
	token    string
	spender  string
	required *big.Int
}

type fakeAllowance struct {
	routerCalls  []ensureCall
	managerCalls []ensureCall
	routerErr    error
	managerErr   error
}

func (f *fakeAllowance) EnsureRouter(ctx context.Context, token, router string, required *big.Int) error {
	f.routerCalls = append(f.routerCalls, ensureCall{token, router, required})
	return f.routerErr
}

func (f *fakeAllowance) EnsureManager(ctx context.Context, token, manager string, required *big.Int) error {
	f.managerCalls = append(f.managerCalls, ensureCall{token, manager, required})
	return f.managerErr
}

type swapCall struct {
	dst       string
	stableRaw *big.Int
}

type fakeSwapper struct {
	calls []swapCall
	err   error
}

func (f *fakeSwapper) Execute(ctx context.Context, dst domain.Token, stableRaw *big.Int) (swap.Result, error) {
	f.calls = append(f.calls, swapCall{dst.Address, stableRaw})
	if f.err != nil {
		return swap.Result{}, f.err
	}
	return swap.Result{TxHash: "0xswap"}, nil
}

type fakeBuilder struct {
	err   error
	calls int
}

func (f *fakeBuilder) Build(ctx context.Context, pool domain.PoolRecommendation, amount0, amount1 domain.TokenAmount, recipient string) (domain.PositionSpec, error) {
	f.calls++
	if f.err != nil {
		return domain.PositionSpec{}, f.err
	}
	return domain.PositionSpec{
		Pool:      pool,
		TickLower: -120,
		TickUpper: 120,
		Amount0:   amount0,
		Amount1:   amount1,
		Liquidity: big.NewInt(777),
		Recipient: recipient,
	}, nil
}

type fakeMinter struct {
	err   error
	calls int
}

func (f *fakeMinter) Mint(ctx context.Context, spec domain.PositionSpec) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "0xmint", nil
}

type fakeWallet struct{}

func (fakeWallet) Address() string   { return "0xowner" }
func (fakeWallet) ChainID() *big.Int { return big.NewInt(8453) }
func (fakeWallet) SignAndSend(ctx context.Context, to string, data []byte, value *big.Int) (string, error) {
	return "0xtx", nil
}

type progressRecorder struct {
	updates []domain.Progress
}

func (r *progressRecorder) Publish(p domain.Progress) {
	r.updates = append(r.updates, p)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const (
	wethAddr  = "0x4200000000000000000000000000000000000006"
	cbethAddr = "0x2ae3f1ec7f1f5012cfeab0185bfc7aa3cf0dec22"
	usdcAddr  = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	daiAddr   = "0x50c5725949a6f0c72e6c4a641f24049a917db0cb"
)

func testRecs() domain.Recommendations {
	return domain.Recommendations{
		Risky: &domain.PoolRecommendation{
			PoolAddress: "0xriskypool",
			Token0:      domain.Token{Address: wethAddr, Symbol: "WETH", Decimals: 18},
			Token1:      domain.Token{Address: cbethAddr, Symbol: "cbETH", Decimals: 18},
			FeeTier:     3000,
			Band:        domain.BandRisky,
		},
		Conservative: &domain.PoolRecommendation{
			PoolAddress: "0xconspool",
			Token0:      domain.Token{Address: usdcAddr, Symbol: "USDC", Decimals: 6},
			Token1:      domain.Token{Address: daiAddr, Symbol: "DAI", Decimals: 18},
			FeeTier:     100,
			Band:        domain.BandConservative,
		},
	}
}

type fixture struct {
	advisor   *fakeAdvisor
	pricer    *fakePricer
	router    *fakeRouter
	allowance *fakeAllowance
	swapper   *fakeSwapper
	builder   *fakeBuilder
	minter    *fakeMinter
	sink      *progressRecorder
	pipeline  *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		advisor: &fakeAdvisor{recs: testRecs()},
		pricer: &fakePricer{prices: map[string]float64{
			wethAddr:  2000,
			cbethAddr: 2100,
			usdcAddr:  1,
			daiAddr:   1,
		}},
		router:    &fakeRouter{},
		allowance: &fakeAllowance{},
		swapper:   &fakeSwapper{},
		builder:   &fakeBuilder{},
		minter:    &fakeMinter{},
		sink:      &progressRecorder{},
	}
	f.pipeline = New(Deps{
		Advisor:        f.advisor,
		Pricer:         f.pricer,
		Router:         f.router,
		Allowance:      f.allowance,
		Swapper:        f.swapper,
		Builder:        f.builder,
		Minter:         f.minter,
		Wallet:         fakeWallet{},
		Stable:         domain.Token{Address: usdcAddr, Symbol: "USDC", Decimals: 6},
		ManagerAddress: "0xmanager",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func testRequest() domain.InvestmentRequest {
	return domain.InvestmentRequest{UserID: "user-1", TotalUSD: 100, RiskyBps: 3000}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestRunCompletesBothLegs(t *testing.T) {
	f := newFixture()

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeCompleted, outcome.Status)
	require.Len(t, outcome.Positions, 2)
	assert.Equal(t, domain.BandRisky, outcome.Positions[0].Band, "risky leg runs first")
	assert.Equal(t, domain.BandConservative, outcome.Positions[1].Band)
	assert.Equal(t, "0xmint", outcome.Positions[0].TxHash)
	assert.NotEmpty(t, outcome.OperationID)
	assert.Equal(t, 2, f.builder.calls)
	assert.Equal(t, 2, f.minter.calls)
}

func TestRunEnsuresRouterOnceForFullSpend(t *testing.T) {
	f := newFixture()

	f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Len(t, f.allowance.routerCalls, 1, "one router check covers the whole spend")
	call := f.allowance.routerCalls[0]
	assert.Equal(t, usdcAddr, call.token)
	assert.Equal(t, "0xrouter", call.spender)
	assert.Equal(t, int64(100_000_000), call.required.Int64())
}

func TestRunSwapsEachHalfBudget(t *testing.T) {
	f := newFixture()

	f.pipeline.Run(context.Background(), testRequest(), f.sink)

	// Four swap requests, one per priced token. The stable-to-stable one is
	// the executor's no-op to make, not the pipeline's to skip.
	require.Len(t, f.swapper.calls, 4)
	assert.Equal(t, wethAddr, f.swapper.calls[0].dst)
	assert.Equal(t, cbethAddr, f.swapper.calls[1].dst)
	assert.Equal(t, usdcAddr, f.swapper.calls[2].dst)
	assert.Equal(t, daiAddr, f.swapper.calls[3].dst)

	// Risky leg: 30 USD split into 15/15.
	assert.Equal(t, int64(15_000_000), f.swapper.calls[0].stableRaw.Int64())
	assert.Equal(t, int64(15_000_000), f.swapper.calls[1].stableRaw.Int64())
}

func TestRunMissingPriceProceedsOneSided(t *testing.T) {
	f := newFixture()
	delete(f.pricer.prices, cbethAddr)

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeCompleted, outcome.Status)
	require.Len(t, outcome.Positions, 2)

	// cbETH has no price: its swap half is skipped entirely.
	var dsts []string
	for _, c := range f.swapper.calls {
		dsts = append(dsts, c.dst)
	}
	assert.NotContains(t, dsts, cbethAddr)
	assert.Contains(t, dsts, wethAddr)

	// Only the priced side gets a mint approval on the risky leg.
	var approved []string
	for _, c := range f.allowance.managerCalls {
		approved = append(approved, c.token)
	}
	assert.NotContains(t, approved, cbethAddr)
	assert.Contains(t, approved, wethAddr)
}

func TestRunFailsWhenBothPricesMissing(t *testing.T) {
	f := newFixture()
	delete(f.pricer.prices, wethAddr)
	delete(f.pricer.prices, cbethAddr)

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.BandRisky, outcome.FailedLeg)
	assert.Equal(t, StepPricingTokens, outcome.FailedStep)
	assert.ErrorIs(t, outcome.Err, domain.ErrPriceUnavailable)
	assert.Zero(t, f.minter.calls, "nothing is minted after a failed leg")
}

func TestRunFailsWithoutRecommendations(t *testing.T) {
	f := newFixture()
	f.advisor.recs = domain.Recommendations{}

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, StepFetchingRecommendations, outcome.FailedStep)
	assert.ErrorIs(t, outcome.Err, domain.ErrNoRecommendations)
}

func TestRunFailsFastOnSwapError(t *testing.T) {
	f := newFixture()
	f.swapper.err = domain.ErrSwapTransactionFailed

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.BandRisky, outcome.FailedLeg)
	assert.Equal(t, StepSwappingToken0, outcome.FailedStep)
	assert.Len(t, f.swapper.calls, 1, "the conservative leg never starts")
	assert.Zero(t, f.builder.calls)
}

func TestRunFailsOnAllowanceError(t *testing.T) {
	f := newFixture()
	f.allowance.routerErr = domain.ErrApprovalNotConfirmed

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, StepAllowanceCheck, outcome.FailedStep)
	assert.Empty(t, outcome.FailedLeg, "the global check precedes any leg")
	assert.Empty(t, f.swapper.calls)
}

func TestRunKeepsCompletedPositionsOnLaterFailure(t *testing.T) {
	f := newFixture()
	// Mint succeeds for the first leg, then fails.
	mintCount := 0
	f.pipeline.minter = minterFunc(func(ctx context.Context, spec domain.PositionSpec) (string, error) {
		mintCount++
		if mintCount > 1 {
			return "", domain.ErrMintTransactionFailed
		}
		return "0xfirst", nil
	})

	outcome := f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.BandConservative, outcome.FailedLeg)
	assert.Equal(t, StepMintingPosition, outcome.FailedStep)
	require.Len(t, outcome.Positions, 1, "the already minted risky position is reported")
	assert.Equal(t, "0xfirst", outcome.Positions[0].TxHash)
}

type minterFunc func(ctx context.Context, spec domain.PositionSpec) (string, error)

func (f minterFunc) Mint(ctx context.Context, spec domain.PositionSpec) (string, error) {
	return f(ctx, spec)
}

func TestRunProgressIsMonotoneAndTerminal(t *testing.T) {
	f := newFixture()

	f.pipeline.Run(context.Background(), testRequest(), f.sink)

	require.NotEmpty(t, f.sink.updates)
	last := -1
	hundreds := 0
	for _, u := range f.sink.updates {
		assert.GreaterOrEqual(t, u.Percent, last, "progress must never move backwards")
		assert.LessOrEqual(t, u.Percent, 100)
		if u.Percent == 100 {
			hundreds++
		}
		last = u.Percent
	}
	assert.Equal(t, 1, hundreds, "exactly one terminal update")
	final := f.sink.updates[len(f.sink.updates)-1]
	assert.Equal(t, StepCompleted, final.Step)
	assert.Equal(t, 100, final.Percent)
}

func TestRunProgressTerminalOnFailure(t *testing.T) {
	f := newFixture()
	f.builder.err = errors.New("pool state unreadable")

	f.pipeline.Run(context.Background(), testRequest(), f.sink)

	final := f.sink.updates[len(f.sink.updates)-1]
	assert.Equal(t, StepFailed, final.Step)
	assert.Equal(t, 100, final.Percent)
}

func TestRunConservativeOnlyStaysInItsWindow(t *testing.T) {
	f := newFixture()
	recs := testRecs()
	recs.Risky = nil
	f.advisor.recs = recs

	outcome := f.pipeline.Run(context.Background(), domain.InvestmentRequest{
		UserID: "user-1", TotalUSD: 100, RiskyBps: 0,
	}, f.sink)

	require.Equal(t, domain.OutcomeCompleted, outcome.Status)
	require.Len(t, outcome.Positions, 1)
	assert.Equal(t, domain.BandConservative, outcome.Positions[0].Band)

	// The conservative band keeps its own window even with no risky leg.
	for _, u := range f.sink.updates {
		if u.Band != domain.BandConservative || u.Percent == 100 {
			continue
		}
		assert.GreaterOrEqual(t, u.Percent, 70, "step %s", u.Step)
		assert.LessOrEqual(t, u.Percent, 95, "step %s", u.Step)
	}
}

func TestRunWithIDUsesCallerID(t *testing.T) {
	f := newFixture()

	outcome := f.pipeline.RunWithID(context.Background(), "op-42", testRequest(), f.sink)

	assert.Equal(t, "op-42", outcome.OperationID)
	for _, u := range f.sink.updates {
		assert.Equal(t, "op-42", u.OperationID)
	}
}
