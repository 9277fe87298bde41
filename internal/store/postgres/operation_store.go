package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// OperationStore persists investment operation records.
type OperationStore struct {
	client *Client
}

// Compile-time interface check.
var _ domain.OperationStore = (*OperationStore)(nil)

// NewOperationStore creates an OperationStore backed by the given client.
func NewOperationStore(client *Client) *OperationStore {
	return &OperationStore{client: client}
}

// Create inserts a new operation row.
func (s *OperationStore) Create(ctx context.Context, op *domain.Operation) error {
	const q = `
		INSERT INTO operations
			(id, user_id, wallet_address, total_stable_raw, risky_bps, status,
			 failed_step, failure_reason, risky_pool, conservative_pool, mint_tx_hashes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	total := "0"
	if op.TotalStableRaw != nil {
		total = op.TotalStableRaw.String()
	}
	txHashes := op.MintTxHashes
	if txHashes == nil {
		txHashes = []string{}
	}

	_, err := s.client.pool.Exec(ctx, q,
		op.ID, op.UserID, op.WalletAddress, total, op.RiskyBps, string(op.Status),
		op.FailedStep, op.FailureReason, op.RiskyPool, op.ConservativePool, txHashes,
	)
	if err != nil {
		return fmt.Errorf("postgres: create operation %s: %w", op.ID, err)
	}
	return nil
}

// UpdateStatus moves an operation to a new lifecycle status, recording the
// failing step and reason when the status is a failure.
func (s *OperationStore) UpdateStatus(ctx context.Context, id string, status domain.OperationStatus, failedStep, reason string) error {
	const q = `
		UPDATE operations
		SET status = $2, failed_step = $3, failure_reason = $4, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.client.pool.Exec(ctx, q, id, string(status), failedStep, reason)
	if err != nil {
		return fmt.Errorf("postgres: update operation %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: operation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AttachPools records the recommended pools for an operation.
func (s *OperationStore) AttachPools(ctx context.Context, id string, riskyPool, conservativePool string) error {
	const q = `
		UPDATE operations
		SET risky_pool = $2, conservative_pool = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.client.pool.Exec(ctx, q, id, riskyPool, conservativePool)
	if err != nil {
		return fmt.Errorf("postgres: attach pools to operation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: operation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AppendMintTx appends a mint transaction hash to the operation record.
func (s *OperationStore) AppendMintTx(ctx context.Context, id string, txHash string) error {
	const q = `
		UPDATE operations
		SET mint_tx_hashes = array_append(mint_tx_hashes, $2), updated_at = NOW()
		WHERE id = $1`

	tag, err := s.client.pool.Exec(ctx, q, id, txHash)
	if err != nil {
		return fmt.Errorf("postgres: append mint tx to operation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: operation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Get fetches a single operation by id.
func (s *OperationStore) Get(ctx context.Context, id string) (*domain.Operation, error) {
	const q = selectColumns + ` WHERE id = $1`

	row := s.client.pool.QueryRow(ctx, q, id)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: operation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get operation %s: %w", id, err)
	}
	return op, nil
}

// List returns operations matching the filter, newest first.
func (s *OperationStore) List(ctx context.Context, f domain.OperationFilter) ([]*domain.Operation, error) {
	q := selectColumns + ` WHERE 1=1`
	args := []any{}
	argn := 0

	if f.UserID != "" {
		argn++
		q += fmt.Sprintf(" AND user_id = $%d", argn)
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		argn++
		q += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, string(f.Status))
	}
	q += " ORDER BY created_at DESC"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	argn++
	q += fmt.Sprintf(" LIMIT $%d", argn)
	args = append(args, limit)

	rows, err := s.client.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list operations: %w", err)
	}
	defer rows.Close()

	var ops []*domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list operations: %w", err)
	}
	return ops, nil
}

const selectColumns = `
	SELECT id, user_id, wallet_address, total_stable_raw::TEXT, risky_bps, status,
	       failed_step, failure_reason, risky_pool, conservative_pool,
	       mint_tx_hashes, created_at, updated_at
	FROM operations`

func scanOperation(row pgx.Row) (*domain.Operation, error) {
	var (
		op       domain.Operation
		totalStr string
		status   string
	)
	err := row.Scan(
		&op.ID, &op.UserID, &op.WalletAddress, &totalStr, &op.RiskyBps, &status,
		&op.FailedStep, &op.FailureReason, &op.RiskyPool, &op.ConservativePool,
		&op.MintTxHashes, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Status = domain.OperationStatus(status)
	op.TotalStableRaw = new(big.Int)
	if _, ok := op.TotalStableRaw.SetString(totalStr, 10); !ok {
		return nil, fmt.Errorf("invalid total_stable_raw %q", totalStr)
	}
	return &op, nil
}
