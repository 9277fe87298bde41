package domain

import "errors"

// Pipeline error taxonomy. Every collaborator failure is wrapped around one of
// these sentinels so callers can classify outcomes without string matching.
var (
	ErrConfiguration         = errors.New("invalid investment request")
	ErrNoRecommendations     = errors.New("no pool recommendations")
	ErrPriceUnavailable      = errors.New("token price unavailable")
	ErrAllowanceCheckFailed  = errors.New("allowance check failed")
	ErrApprovalNotConfirmed  = errors.New("approval not confirmed")
	ErrSwapQuoteUnavailable  = errors.New("swap quote unavailable")
	ErrSwapTransactionFailed = errors.New("swap transaction failed")
	ErrPoolStateUnavailable  = errors.New("pool state unavailable")
	ErrInvalidTickRange      = errors.New("invalid tick range")
	ErrMintTransactionFailed = errors.New("mint transaction failed")
)

// Infrastructure sentinels shared by stores and caches.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
	ErrRateLimited   = errors.New("rate limited")
)
