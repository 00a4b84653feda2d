package pool

import (
	sdkmath "cosmossdk.io/math"
)

// SettleInfo holds the amounts realized at each lifecycle stage. All fields
// are zero until the corresponding transition writes them, exactly once.
// Finish and liquidation are mutually exclusive per pool.
type SettleInfo struct {
	SettleAmountLend   sdkmath.Int
	SettleAmountBorrow sdkmath.Int

	FinishAmountLend   sdkmath.Int
	FinishAmountBorrow sdkmath.Int

	LiquidationAmountLend   sdkmath.Int
	LiquidationAmountBorrow sdkmath.Int
}

// NewSettleInfo returns a zeroed settlement record.
func NewSettleInfo() *SettleInfo {
	z := sdkmath.ZeroInt()
	return &SettleInfo{
		SettleAmountLend:        z,
		SettleAmountBorrow:      z,
		FinishAmountLend:        z,
		FinishAmountBorrow:      z,
		LiquidationAmountLend:   z,
		LiquidationAmountBorrow: z,
	}
}
