package pool

import (
	sdkmath "cosmossdk.io/math"
)

// State tracks a pool's lifecycle.
type State int32

const (
	StateMatch State = iota
	StateExecution
	StateFinish
	StateLiquidation
	StateUndone
)

func (s State) String() string {
	switch s {
	case StateMatch:
		return "Match"
	case StateExecution:
		return "Execution"
	case StateFinish:
		return "Finish"
	case StateLiquidation:
		return "Liquidation"
	case StateUndone:
		return "Undone"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates lifecycle transitions. Terminal states
// (Finish, Liquidation, Undone) are absorbing.
func (s State) CanTransitionTo(next State) bool {
	validTransitions := map[State][]State{
		StateMatch: {
			StateExecution,
			StateUndone,
		},
		StateExecution: {
			StateFinish,
			StateLiquidation,
		},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedState := range allowed {
		if next == allowedState {
			return true
		}
	}

	return false
}

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	return s == StateFinish || s == StateLiquidation || s == StateUndone
}

// Terms are a pool's immutable parameters, fixed at creation.
type Terms struct {
	SettleTime int64 // Matching deadline (unix seconds)
	EndTime    int64 // Term end (unix seconds)

	InterestRate  sdkmath.Int // Annualized, 8-decimal
	MaxLendSupply sdkmath.Int

	// MortgageRate is the collateralization ratio in the 8-decimal domain:
	// the matched lend amount is the collateral's funding value divided by
	// this ratio.
	MortgageRate sdkmath.Int

	LendAsset   string // Funding asset identifier
	BorrowAsset string // Collateral asset identifier

	SPToken string // Lend-side debt-share token
	JPToken string // Borrow-side debt-share token

	// AutoLiquidateThreshold is the 8-decimal margin above the settled lend
	// value below which the collateral value triggers liquidation.
	AutoLiquidateThreshold sdkmath.Int
}

// Pool is one lend/borrow matching instance: immutable terms plus mutable
// runtime supply and lifecycle state.
type Pool struct {
	ID    uint64
	Terms Terms

	LendSupply   sdkmath.Int // Sum of lender deposits
	BorrowSupply sdkmath.Int // Sum of borrower collateral deposits
	State        State

	Version int64
}

// NewPool returns a pool in the Match state with zero supplies.
func NewPool(id uint64, terms Terms) *Pool {
	return &Pool{
		ID:           id,
		Terms:        terms,
		LendSupply:   sdkmath.ZeroInt(),
		BorrowSupply: sdkmath.ZeroInt(),
		State:        StateMatch,
	}
}
