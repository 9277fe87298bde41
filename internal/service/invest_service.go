// Package service coordinates pipeline runs with persistence, locking,
// archival, and notifications.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// Runner executes investment pipelines. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunWithID(ctx context.Context, operationID string, req domain.InvestmentRequest, sink domain.ProgressSink) domain.Outcome
}

// Archiver uploads terminal operation receipts. *s3blob.Archiver satisfies it.
type Archiver interface {
	ArchiveOutcome(ctx context.Context, op *domain.Operation, outcome domain.Outcome) (string, error)
}

// Notifier delivers operator notifications. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// InvestService runs investments: it creates the operation record, holds the
// wallet lock for the duration of the run, streams progress, and records the
// terminal outcome.
type InvestService struct {
	runner   Runner
	store    domain.OperationStore
	locks    domain.LockManager
	progress domain.ProgressSink
	archiver Archiver
	notifier Notifier

	walletAddress string
	lockTTL       time.Duration
	runTimeout    time.Duration
	logger        *slog.Logger
}

// InvestServiceConfig bundles InvestService construction parameters.
// Archiver and Notifier may be nil.
type InvestServiceConfig struct {
	Runner        Runner
	Store         domain.OperationStore
	Locks         domain.LockManager
	Progress      domain.ProgressSink
	Archiver      Archiver
	Notifier      Notifier
	WalletAddress string
	LockTTL       time.Duration
	RunTimeout    time.Duration
}

// NewInvestService creates an InvestService.
func NewInvestService(cfg InvestServiceConfig, logger *slog.Logger) *InvestService {
	progress := cfg.Progress
	if progress == nil {
		progress = domain.NopProgress
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &InvestService{
		runner:        cfg.Runner,
		store:         cfg.Store,
		locks:         cfg.Locks,
		progress:      progress,
		archiver:      cfg.Archiver,
		notifier:      cfg.Notifier,
		walletAddress: cfg.WalletAddress,
		lockTTL:       cfg.LockTTL,
		runTimeout:    runTimeout,
		logger:        logger.With(slog.String("component", "invest_service")),
	}
}

// Invest validates the request and runs the pipeline synchronously. The
// wallet lock is held for the whole run so concurrent requests against the
// same wallet fail fast with ErrLockHeld instead of racing on nonces.
func (s *InvestService) Invest(ctx context.Context, req domain.InvestmentRequest) (domain.Outcome, error) {
	if err := req.Validate(); err != nil {
		return domain.Outcome{}, err
	}
	if req.WalletAddress == "" {
		req.WalletAddress = s.walletAddress
	}

	unlock, err := s.locks.Acquire(ctx, "wallet:"+s.walletAddress, s.lockTTL)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("service: acquire wallet lock: %w", err)
	}
	defer unlock()

	op := s.createOperation(ctx, req)
	outcome := s.runner.RunWithID(ctx, op.ID, req, s.progress)
	s.recordOutcome(ctx, op, outcome)
	return outcome, nil
}

// StartInvestment validates the request, creates the operation record, and
// runs the pipeline in the background. It returns the operation id
// immediately; progress is observable through the progress sink and the
// operation store.
func (s *InvestService) StartInvestment(ctx context.Context, req domain.InvestmentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.WalletAddress == "" {
		req.WalletAddress = s.walletAddress
	}

	unlock, err := s.locks.Acquire(ctx, "wallet:"+s.walletAddress, s.lockTTL)
	if err != nil {
		return "", fmt.Errorf("service: acquire wallet lock: %w", err)
	}

	op := s.createOperation(ctx, req)

	go func() {
		defer unlock()
		runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		outcome := s.runner.RunWithID(runCtx, op.ID, req, s.progress)
		s.recordOutcome(runCtx, op, outcome)
	}()

	return op.ID, nil
}

// GetOperation fetches one operation record.
func (s *InvestService) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	return s.store.Get(ctx, id)
}

// ListOperations lists operation records matching the filter.
func (s *InvestService) ListOperations(ctx context.Context, f domain.OperationFilter) ([]*domain.Operation, error) {
	return s.store.List(ctx, f)
}

// createOperation persists the initial operation row. A store failure is
// logged but does not block the run; the record is only bookkeeping.
func (s *InvestService) createOperation(ctx context.Context, req domain.InvestmentRequest) *domain.Operation {
	total, _, _ := domain.SplitStable(req.TotalUSD, req.RiskyBps)
	op := &domain.Operation{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		WalletAddress:  req.WalletAddress,
		TotalStableRaw: total,
		RiskyBps:       req.RiskyBps,
		Status:         domain.StatusRecommendationInit,
	}
	if err := s.store.Create(ctx, op); err != nil {
		s.logger.ErrorContext(ctx, "create operation record",
			slog.String("operation_id", op.ID),
			slog.String("error", err.Error()),
		)
	}
	return op
}

// recordOutcome moves the operation to its terminal status, attaches pools
// and mint transactions, archives the receipt, and notifies operators.
func (s *InvestService) recordOutcome(ctx context.Context, op *domain.Operation, outcome domain.Outcome) {
	var riskyPool, conservativePool string
	for _, pos := range outcome.Positions {
		switch pos.Band {
		case domain.BandRisky:
			riskyPool = pos.Pool.PoolAddress
		case domain.BandConservative:
			conservativePool = pos.Pool.PoolAddress
		}
		if err := s.store.AppendMintTx(ctx, op.ID, pos.TxHash); err != nil {
			s.logger.WarnContext(ctx, "record mint tx", slog.String("error", err.Error()))
		}
	}
	if riskyPool != "" || conservativePool != "" {
		if err := s.store.AttachPools(ctx, op.ID, riskyPool, conservativePool); err != nil {
			s.logger.WarnContext(ctx, "attach pools", slog.String("error", err.Error()))
		}
	}

	status := domain.StatusActiveInvestment
	failedStep, reason := "", ""
	if outcome.Status == domain.OutcomeFailed {
		status = domain.StatusDepositFailed
		failedStep = outcome.FailedStep
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
	}
	if err := s.store.UpdateStatus(ctx, op.ID, status, failedStep, reason); err != nil {
		s.logger.ErrorContext(ctx, "update operation status",
			slog.String("operation_id", op.ID),
			slog.String("error", err.Error()),
		)
	}
	op.Status = status
	op.FailedStep = failedStep
	op.FailureReason = reason

	if s.archiver != nil {
		if _, err := s.archiver.ArchiveOutcome(ctx, op, outcome); err != nil {
			s.logger.WarnContext(ctx, "archive receipt", slog.String("error", err.Error()))
		}
	}

	if s.notifier != nil {
		if outcome.Status == domain.OutcomeCompleted {
			msg := fmt.Sprintf("Operation %s minted %d position(s) for user %s.",
				op.ID, len(outcome.Positions), op.UserID)
			_ = s.notifier.Notify(ctx, "investment_completed", "Investment completed", msg)
		} else {
			msg := fmt.Sprintf("Operation %s failed at %s: %s", op.ID, outcome.FailedStep, reason)
			_ = s.notifier.Notify(ctx, "investment_failed", "Investment failed", msg)
		}
	}
}
