package query

import (
	"encoding/json"
	"time"
)

// PoolSummary is the list-view projection of one pool.
type PoolSummary struct {
	PoolID       uint64 `json:"pool_id"`
	State        string `json:"state"`
	LendAsset    string `json:"lend_asset"`
	BorrowAsset  string `json:"borrow_asset"`
	LendSupply   string `json:"lend_supply"`
	BorrowSupply string `json:"borrow_supply"`
	SettleTime   int64  `json:"settle_time"`
	EndTime      int64  `json:"end_time"`
}

// PoolDetail is the full projection: immutable terms, runtime supplies and
// the settlement amounts realized so far.
type PoolDetail struct {
	PoolSummary

	InterestRate           string `json:"interest_rate"`
	MaxLendSupply          string `json:"max_lend_supply"`
	MortgageRate           string `json:"mortgage_rate"`
	SPToken                string `json:"sp_token"`
	JPToken                string `json:"jp_token"`
	AutoLiquidateThreshold string `json:"auto_liquidate_threshold"`

	SettleAmountLend        string `json:"settle_amount_lend"`
	SettleAmountBorrow      string `json:"settle_amount_borrow"`
	FinishAmountLend        string `json:"finish_amount_lend"`
	FinishAmountBorrow      string `json:"finish_amount_borrow"`
	LiquidationAmountLend   string `json:"liquidation_amount_lend"`
	LiquidationAmountBorrow string `json:"liquidation_amount_borrow"`
}

// StakeResponse is one participant's record on one side of a pool.
type StakeResponse struct {
	PoolID       uint64 `json:"pool_id"`
	Side         string `json:"side"`
	Participant  string `json:"participant"`
	StakeAmount  string `json:"stake_amount"`
	RefundAmount string `json:"refund_amount"`
	HasRefunded  bool   `json:"has_refunded"`
	HasClaimed   bool   `json:"has_claimed"`
}

// PricesResponse carries current oracle prices for a pool's asset pair.
type PricesResponse struct {
	PoolID      uint64 `json:"pool_id"`
	PriceLend   string `json:"price_lend"`
	PriceBorrow string `json:"price_borrow"`
}

// LiquidationCheckResponse reports a pool's threshold status.
type LiquidationCheckResponse struct {
	PoolID       uint64 `json:"pool_id"`
	Liquidatable bool   `json:"liquidatable"`
}

// HistoryRecord is one audit record read back from Postgres.
type HistoryRecord struct {
	Sequence    int64           `json:"sequence"`
	RecordID    string          `json:"record_id"`
	Action      string          `json:"action"`
	PoolID      *int64          `json:"pool_id,omitempty"`
	Participant string          `json:"participant,omitempty"`
	FromState   *string         `json:"from_state,omitempty"`
	ToState     *string         `json:"to_state,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}
