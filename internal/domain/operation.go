package domain

import (
	"context"
	"math/big"
	"time"
)

// OperationStatus tracks an investment operation through its lifecycle.
type OperationStatus string

const (
	StatusRecommendationInit OperationStatus = "RECOMMENDATION_INIT"
	StatusDepositPending     OperationStatus = "DEPOSIT_PENDING"
	StatusActiveInvestment   OperationStatus = "ACTIVE_INVESTMENT"
	StatusDepositFailed      OperationStatus = "DEPOSIT_FAILED"
)

// Operation is the persistent record of one pipeline run.
type Operation struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	WalletAddress    string          `json:"walletAddress"`
	TotalStableRaw   *big.Int        `json:"totalStableRaw"`
	RiskyBps         int             `json:"riskyBps"`
	Status           OperationStatus `json:"status"`
	FailedStep       string          `json:"failedStep,omitempty"`
	FailureReason    string          `json:"failureReason,omitempty"`
	RiskyPool        string          `json:"riskyPool,omitempty"`
	ConservativePool string          `json:"conservativePool,omitempty"`
	MintTxHashes     []string        `json:"mintTxHashes,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OperationFilter narrows operation listings.
type OperationFilter struct {
	UserID string
	Status OperationStatus
	Limit  int
}

// OperationStore persists operation records. Implementations return
// ErrNotFound when an id does not exist.
type OperationStore interface {
	Create(ctx context.Context, op *Operation) error
	UpdateStatus(ctx context.Context, id string, status OperationStatus, failedStep, reason string) error
	AttachPools(ctx context.Context, id string, riskyPool, conservativePool string) error
	AppendMintTx(ctx context.Context, id string, txHash string) error
	Get(ctx context.Context, id string) (*Operation, error)
	List(ctx context.Context, f OperationFilter) ([]*Operation, error)
}
