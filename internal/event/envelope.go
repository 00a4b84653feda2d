package event

import (
	"time"

	"github.com/google/uuid"
)

// Action discriminates audit record payloads.
type Action int32

const (
	ActionUnknown Action = iota
	ActionPoolCreated
	ActionDepositLend
	ActionDepositBorrow
	ActionRefundLend
	ActionRefundBorrow
	ActionClaimLend
	ActionClaimBorrow
	ActionWithdrawLend
	ActionWithdrawBorrow
	ActionEmergencyLendWithdrawal
	ActionEmergencyBorrowWithdrawal
	ActionSettle
	ActionFinish
	ActionLiquidate
	ActionFeeSkimmed
	ActionParamChange
)

func (a Action) String() string {
	switch a {
	case ActionPoolCreated:
		return "PoolCreated"
	case ActionDepositLend:
		return "DepositLend"
	case ActionDepositBorrow:
		return "DepositBorrow"
	case ActionRefundLend:
		return "RefundLend"
	case ActionRefundBorrow:
		return "RefundBorrow"
	case ActionClaimLend:
		return "ClaimLend"
	case ActionClaimBorrow:
		return "ClaimBorrow"
	case ActionWithdrawLend:
		return "WithdrawLend"
	case ActionWithdrawBorrow:
		return "WithdrawBorrow"
	case ActionEmergencyLendWithdrawal:
		return "EmergencyLendWithdrawal"
	case ActionEmergencyBorrowWithdrawal:
		return "EmergencyBorrowWithdrawal"
	case ActionSettle:
		return "Settle"
	case ActionFinish:
		return "Finish"
	case ActionLiquidate:
		return "Liquidate"
	case ActionFeeSkimmed:
		return "FeeSkimmed"
	case ActionParamChange:
		return "ParamChange"
	default:
		return "Unknown"
	}
}

// Envelope wraps every audit record in the log. Records are append-only
// output for external observability; the engine never reads them back.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Unique record identifier
	RecordID uuid.UUID

	// Action discriminator
	Action Action

	// Pool context (nil for global/admin records)
	PoolID *uint64

	// Caller or participant address (empty for derived records)
	Participant string

	// Lifecycle transitions record before/after state names
	FromState *string
	ToState   *string

	// Engine clock at emission
	Timestamp time.Time

	// JSON-encoded action-specific data
	Payload []byte
}
