package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

type fakeRunner struct {
	outcome domain.Outcome
	calls   int
	lastID  string
}

func (f *fakeRunner) RunWithID(ctx context.Context, operationID string, req domain.InvestmentRequest, sink domain.ProgressSink) domain.Outcome {
	f.calls++
	f.lastID = operationID
	out := f.outcome
	out.OperationID = operationID
	return out
}

type memStore struct {
	mu       sync.Mutex
	ops      map[string]*domain.Operation
	statusCh chan domain.OperationStatus
}

func newMemStore() *memStore {
	return &memStore{
		ops:      make(map[string]*domain.Operation),
		statusCh: make(chan domain.OperationStatus, 4),
	}
}

func (s *memStore) Create(ctx context.Context, op *domain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *op
	s.ops[op.ID] = &cp
	return nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status domain.OperationStatus, failedStep, reason string) error {
	s.mu.Lock()
	if op, ok := s.ops[id]; ok {
		op.Status = status
		op.FailedStep = failedStep
		op.FailureReason = reason
	}
	s.mu.Unlock()
	s.statusCh <- status
	return nil
}

func (s *memStore) AttachPools(ctx context.Context, id, riskyPool, conservativePool string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.ops[id]; ok {
		op.RiskyPool = riskyPool
		op.ConservativePool = conservativePool
	}
	return nil
}

func (s *memStore) AppendMintTx(ctx context.Context, id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.ops[id]; ok {
		op.MintTxHashes = append(op.MintTxHashes, txHash)
	}
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*domain.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, f domain.OperationFilter) ([]*domain.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Operation
	for _, op := range s.ops {
		cp := *op
		out = append(out, &cp)
	}
	return out, nil
}

type fakeLocks struct {
	err      error
	acquired int
	released int
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() { f.released++ }, nil
}

func completedOutcome() domain.Outcome {
	return domain.Outcome{
		Status: domain.OutcomeCompleted,
		Positions: []domain.MintedPosition{
			{
				Band:   domain.BandRisky,
				Pool:   domain.PoolRecommendation{PoolAddress: "0xriskypool"},
				TxHash: "0xmint1",
			},
			{
				Band:   domain.BandConservative,
				Pool:   domain.PoolRecommendation{PoolAddress: "0xconspool"},
				TxHash: "0xmint2",
			},
		},
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
}

func newTestService(runner Runner, store domain.OperationStore, locks domain.LockManager) *InvestService {
	return NewInvestService(InvestServiceConfig{
		Runner:        runner,
		Store:         store,
		Locks:         locks,
		WalletAddress: "0xowner",
		LockTTL:       5 * time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInvestRecordsCompletedRun(t *testing.T) {
	runner := &fakeRunner{outcome: completedOutcome()}
	store := newMemStore()
	locks := &fakeLocks{}
	svc := newTestService(runner, store, locks)

	outcome, err := svc.Invest(context.Background(), domain.InvestmentRequest{
		UserID: "user-1", TotalUSD: 100, RiskyBps: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, outcome.Status)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released, "the wallet lock is released after the run")

	op, err := store.Get(context.Background(), outcome.OperationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveInvestment, op.Status)
	assert.Equal(t, "0xriskypool", op.RiskyPool)
	assert.Equal(t, "0xconspool", op.ConservativePool)
	assert.Equal(t, []string{"0xmint1", "0xmint2"}, op.MintTxHashes)
	assert.Equal(t, "0xowner", op.WalletAddress, "wallet defaults to the service wallet")
}

func TestInvestRecordsFailedRun(t *testing.T) {
	runner := &fakeRunner{outcome: domain.Outcome{
		Status:     domain.OutcomeFailed,
		FailedLeg:  domain.BandRisky,
		FailedStep: "swapping_token0",
		Err:        domain.ErrSwapTransactionFailed,
	}}
	store := newMemStore()
	svc := newTestService(runner, store, &fakeLocks{})

	outcome, err := svc.Invest(context.Background(), domain.InvestmentRequest{
		UserID: "user-1", TotalUSD: 100, RiskyBps: 3000,
	})
	require.NoError(t, err, "a failed run is an outcome, not a service error")

	op, err := store.Get(context.Background(), outcome.OperationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDepositFailed, op.Status)
	assert.Equal(t, "swapping_token0", op.FailedStep)
	assert.NotEmpty(t, op.FailureReason)
}

func TestInvestRejectsInvalidRequest(t *testing.T) {
	runner := &fakeRunner{outcome: completedOutcome()}
	svc := newTestService(runner, newMemStore(), &fakeLocks{})

	_, err := svc.Invest(context.Background(), domain.InvestmentRequest{TotalUSD: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Zero(t, runner.calls)
}

func TestInvestLockHeld(t *testing.T) {
	runner := &fakeRunner{outcome: completedOutcome()}
	svc := newTestService(runner, newMemStore(), &fakeLocks{err: domain.ErrLockHeld})

	_, err := svc.Invest(context.Background(), domain.InvestmentRequest{
		UserID: "user-1", TotalUSD: 100, RiskyBps: 3000,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Zero(t, runner.calls)
}

func TestStartInvestmentRunsInBackground(t *testing.T) {
	runner := &fakeRunner{outcome: completedOutcome()}
	store := newMemStore()
	locks := &fakeLocks{}
	svc := newTestService(runner, store, locks)

	id, err := svc.StartInvestment(context.Background(), domain.InvestmentRequest{
		UserID: "user-1", TotalUSD: 100, RiskyBps: 3000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case status := <-store.statusCh:
		assert.Equal(t, domain.StatusActiveInvestment, status)
	case <-time.After(2 * time.Second):
		t.Fatal("background run never recorded a terminal status")
	}
	assert.Equal(t, id, runner.lastID, "pipeline runs under the returned operation id")
}

func TestGetOperationNotFound(t *testing.T) {
	svc := newTestService(&fakeRunner{}, newMemStore(), &fakeLocks{})
	_, err := svc.GetOperation(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
