package engine

import "errors"

// Sentinel errors returned by engine operations. Callers match with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	ErrPaused           = errors.New("engine is paused")
	ErrNotApproved      = errors.New("caller is not approved")
	ErrPoolNotFound     = errors.New("pool not found")
	ErrWrongState       = errors.New("pool is in the wrong state")
	ErrTimeWindow       = errors.New("outside the allowed time window")
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrBelowMinimum     = errors.New("amount below the minimum deposit")
	ErrCapExceeded      = errors.New("deposit exceeds the pool's maximum supply")
	ErrAlreadyRefunded  = errors.New("refund already taken")
	ErrAlreadyClaimed   = errors.New("claim already taken")
	ErrPriceUnavailable = errors.New("oracle price unavailable")
	ErrSlippage         = errors.New("swap proceeds below the required amount")
	ErrReentrancy       = errors.New("reentrant call rejected")
)
