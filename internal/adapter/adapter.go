package adapter

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// NativeAsset is the sentinel identifier for the chain's native currency.
// All other asset identifiers are fungible-token addresses.
const NativeAsset = "0x0000000000000000000000000000000000000000"

// Funds receives and returns the funding or collateral asset. Receive
// reports the amount actually moved, which may be less than requested for
// fee-on-transfer tokens; callers must account the reported amount, not the
// requested one.
type Funds interface {
	Receive(ctx context.Context, asset, from string, amount sdkmath.Int) (sdkmath.Int, error)
	Send(ctx context.Context, asset, to string, amount sdkmath.Int) error
}

// PriceOracle returns current 8-decimal fixed-point prices for a set of
// asset identifiers, as parallel slices. A zero price signifies the price
// is unavailable.
type PriceOracle interface {
	PricesOf(ctx context.Context, assets []string) ([]sdkmath.Int, error)
}

// SwapVenue executes bounded trades through an external exchange.
// QuoteAmountIn is the reverse quote: the input amount required to realize
// desiredOut of the output asset. Swap spends amountIn and returns the
// amount received.
type SwapVenue interface {
	QuoteAmountIn(ctx context.Context, assetIn, assetOut string, desiredOut sdkmath.Int) (sdkmath.Int, error)
	Swap(ctx context.Context, assetIn, assetOut string, amountIn sdkmath.Int, deadline int64) (sdkmath.Int, error)
}

// ShareToken mints and burns debt-share tokens, keyed by token identifier.
// One token exists per pool per side; burns drive proportional payout at
// withdrawal so shares remain transferable beforehand.
type ShareToken interface {
	Mint(ctx context.Context, token, account string, amount sdkmath.Int) error
	Burn(ctx context.Context, token, account string, amount sdkmath.Int) error
	TotalSupply(ctx context.Context, token string) (sdkmath.Int, error)
	BalanceOf(ctx context.Context, token, account string) (sdkmath.Int, error)
}

// AuthGate answers whether a specific administrative call is pre-approved
// for (caller, contract). Consulted synchronously before every privileged
// body executes; an unapproved call fails immediately.
type AuthGate interface {
	IsApproved(ctx context.Context, caller, contract string) (bool, error)
}
