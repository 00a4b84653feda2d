package event

// Typed payloads for audit records. Amounts are decimal strings to survive
// JSON round-trips without precision loss.

type PoolCreatedRecord struct {
	PoolID                 uint64 `json:"pool_id"`
	SettleTime             int64  `json:"settle_time"`
	EndTime                int64  `json:"end_time"`
	InterestRate           string `json:"interest_rate"`
	MaxLendSupply          string `json:"max_lend_supply"`
	MortgageRate           string `json:"mortgage_rate"`
	LendAsset              string `json:"lend_asset"`
	BorrowAsset            string `json:"borrow_asset"`
	SPToken                string `json:"sp_token"`
	JPToken                string `json:"jp_token"`
	AutoLiquidateThreshold string `json:"auto_liquidate_threshold"`
}

type DepositRecord struct {
	PoolID      uint64 `json:"pool_id"`
	Participant string `json:"participant"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	TotalStake  string `json:"total_stake"`
}

type RefundRecord struct {
	PoolID      uint64 `json:"pool_id"`
	Participant string `json:"participant"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}

type ClaimRecord struct {
	PoolID      uint64 `json:"pool_id"`
	Participant string `json:"participant"`
	ShareToken  string `json:"share_token"`
	ShareAmount string `json:"share_amount"`
	PayoutAsset string `json:"payout_asset,omitempty"`
	Payout      string `json:"payout,omitempty"`
}

type WithdrawRecord struct {
	PoolID      uint64 `json:"pool_id"`
	Participant string `json:"participant"`
	ShareToken  string `json:"share_token"`
	Burned      string `json:"burned"`
	Asset       string `json:"asset"`
	Payout      string `json:"payout"`
}

type SettleRecord struct {
	PoolID             uint64 `json:"pool_id"`
	PriceLend          string `json:"price_lend"`
	PriceBorrow        string `json:"price_borrow"`
	SettleAmountLend   string `json:"settle_amount_lend"`
	SettleAmountBorrow string `json:"settle_amount_borrow"`
}

// SwapSettleRecord covers both Finish and Liquidate: the two transitions
// share one swap-settlement algorithm.
type SwapSettleRecord struct {
	PoolID       uint64 `json:"pool_id"`
	Interest     string `json:"interest"`
	LendAmount   string `json:"lend_amount"`
	SellAmount   string `json:"sell_amount"`
	AmountSell   string `json:"amount_sell"`
	AmountIn     string `json:"amount_in"`
	AmountLend   string `json:"amount_lend"`
	AmountBorrow string `json:"amount_borrow"`
}

type FeeSkimRecord struct {
	PoolID    uint64 `json:"pool_id"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type ParamChangeRecord struct {
	Name     string `json:"name"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}
