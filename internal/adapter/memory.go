package adapter

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// In-memory adapter implementations. Used by tests and by deployments that
// run the engine against a custodial balance table instead of a chain.

// MemoryFunds keeps per-asset, per-account balances and moves them on
// Receive/Send. The custody account holds everything received.
type MemoryFunds struct {
	custody  string
	balances map[string]map[string]sdkmath.Int // asset -> account -> balance

	// ReceiveHaircut, if set in the 8-decimal domain, simulates
	// fee-on-transfer tokens: Receive reports amount × (1 - haircut).
	ReceiveHaircut sdkmath.Int
}

func NewMemoryFunds(custody string) *MemoryFunds {
	return &MemoryFunds{
		custody:  custody,
		balances: make(map[string]map[string]sdkmath.Int),
	}
}

func (f *MemoryFunds) balance(asset, account string) sdkmath.Int {
	if accounts, ok := f.balances[asset]; ok {
		if b, ok := accounts[account]; ok {
			return b
		}
	}
	return sdkmath.ZeroInt()
}

func (f *MemoryFunds) setBalance(asset, account string, amount sdkmath.Int) {
	accounts, ok := f.balances[asset]
	if !ok {
		accounts = make(map[string]sdkmath.Int)
		f.balances[asset] = accounts
	}
	accounts[account] = amount
}

// Fund credits an account directly (test setup).
func (f *MemoryFunds) Fund(asset, account string, amount sdkmath.Int) {
	f.setBalance(asset, account, f.balance(asset, account).Add(amount))
}

// Balance reports an account's balance (test assertions).
func (f *MemoryFunds) Balance(asset, account string) sdkmath.Int {
	return f.balance(asset, account)
}

func (f *MemoryFunds) Receive(ctx context.Context, asset, from string, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("receive %s from %s: non-positive amount", asset, from)
	}
	have := f.balance(asset, from)
	if have.LT(amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("receive %s from %s: insufficient balance (have=%s, need=%s)",
			asset, from, have, amount)
	}

	actual := amount
	if !f.ReceiveHaircut.IsNil() && f.ReceiveHaircut.IsPositive() {
		cut := amount.Mul(f.ReceiveHaircut).Quo(sdkmath.NewIntWithDecimal(1, 8))
		actual = amount.Sub(cut)
	}

	f.setBalance(asset, from, have.Sub(amount))
	f.setBalance(asset, f.custody, f.balance(asset, f.custody).Add(actual))
	return actual, nil
}

func (f *MemoryFunds) Send(ctx context.Context, asset, to string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("send %s to %s: negative amount", asset, to)
	}
	if amount.IsZero() {
		return nil
	}
	have := f.balance(asset, f.custody)
	if have.LT(amount) {
		return fmt.Errorf("send %s to %s: custody underfunded (have=%s, need=%s)", asset, to, have, amount)
	}
	f.setBalance(asset, f.custody, have.Sub(amount))
	f.setBalance(asset, to, f.balance(asset, to).Add(amount))
	return nil
}

// MemoryOracle serves prices from a settable map.
type MemoryOracle struct {
	prices map[string]sdkmath.Int
}

func NewMemoryOracle() *MemoryOracle {
	return &MemoryOracle{prices: make(map[string]sdkmath.Int)}
}

// SetPrice sets an asset's 8-decimal price. A zero price marks the asset
// unavailable.
func (o *MemoryOracle) SetPrice(asset string, price sdkmath.Int) {
	o.prices[asset] = price
}

func (o *MemoryOracle) PricesOf(ctx context.Context, assets []string) ([]sdkmath.Int, error) {
	out := make([]sdkmath.Int, len(assets))
	for idx, asset := range assets {
		if p, ok := o.prices[asset]; ok {
			out[idx] = p
		} else {
			out[idx] = sdkmath.ZeroInt()
		}
	}
	return out, nil
}

// MemorySwap fills exact-output trades at the oracle's relative price minus
// a configurable slippage, against the custody balances in funds.
type MemorySwap struct {
	oracle *MemoryOracle
	funds  *MemoryFunds

	// SlippageRate, 8-decimal, shaves the realized output. Zero by default.
	SlippageRate sdkmath.Int

	// ForceAmountOut, when non-nil, overrides the realized output of the
	// next Swap call (test hook for adverse fills).
	ForceAmountOut *sdkmath.Int
}

func NewMemorySwap(oracle *MemoryOracle, funds *MemoryFunds) *MemorySwap {
	return &MemorySwap{
		oracle:       oracle,
		funds:        funds,
		SlippageRate: sdkmath.ZeroInt(),
	}
}

func (s *MemorySwap) relPrice(ctx context.Context, assetIn, assetOut string) (sdkmath.Int, sdkmath.Int, error) {
	prices, err := s.oracle.PricesOf(ctx, []string{assetIn, assetOut})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if prices[0].IsZero() || prices[1].IsZero() {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("swap %s/%s: price unavailable", assetIn, assetOut)
	}
	return prices[0], prices[1], nil
}

func (s *MemorySwap) QuoteAmountIn(ctx context.Context, assetIn, assetOut string, desiredOut sdkmath.Int) (sdkmath.Int, error) {
	pIn, pOut, err := s.relPrice(ctx, assetIn, assetOut)
	if err != nil {
		return sdkmath.Int{}, err
	}
	// requiredIn = desiredOut × pOut / pIn, rounded up
	num := desiredOut.Mul(pOut)
	in := num.Quo(pIn)
	if !num.Mod(pIn).IsZero() {
		in = in.Add(sdkmath.OneInt())
	}
	return in, nil
}

func (s *MemorySwap) Swap(ctx context.Context, assetIn, assetOut string, amountIn sdkmath.Int, deadline int64) (sdkmath.Int, error) {
	pIn, pOut, err := s.relPrice(ctx, assetIn, assetOut)
	if err != nil {
		return sdkmath.Int{}, err
	}

	out := amountIn.Mul(pIn).Quo(pOut)
	if s.SlippageRate.IsPositive() {
		out = out.Sub(out.Mul(s.SlippageRate).Quo(sdkmath.NewIntWithDecimal(1, 8)))
	}
	if s.ForceAmountOut != nil {
		out = *s.ForceAmountOut
		s.ForceAmountOut = nil
	}

	// Move balances in custody: spend assetIn, credit assetOut.
	if s.funds != nil {
		custody := s.funds.custody
		have := s.funds.balance(assetIn, custody)
		if have.LT(amountIn) {
			return sdkmath.Int{}, fmt.Errorf("swap: custody short of %s (have=%s, need=%s)", assetIn, have, amountIn)
		}
		s.funds.setBalance(assetIn, custody, have.Sub(amountIn))
		s.funds.setBalance(assetOut, custody, s.funds.balance(assetOut, custody).Add(out))
	}

	return out, nil
}

// MemoryShareToken tracks supplies and balances per token identifier.
type MemoryShareToken struct {
	supplies map[string]sdkmath.Int
	balances map[string]map[string]sdkmath.Int // token -> account -> balance
}

func NewMemoryShareToken() *MemoryShareToken {
	return &MemoryShareToken{
		supplies: make(map[string]sdkmath.Int),
		balances: make(map[string]map[string]sdkmath.Int),
	}
}

func (t *MemoryShareToken) Mint(ctx context.Context, token, account string, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return fmt.Errorf("mint %s: negative amount", token)
	}
	accounts, ok := t.balances[token]
	if !ok {
		accounts = make(map[string]sdkmath.Int)
		t.balances[token] = accounts
	}
	cur, ok := accounts[account]
	if !ok {
		cur = sdkmath.ZeroInt()
	}
	accounts[account] = cur.Add(amount)

	supply, ok := t.supplies[token]
	if !ok {
		supply = sdkmath.ZeroInt()
	}
	t.supplies[token] = supply.Add(amount)
	return nil
}

func (t *MemoryShareToken) Burn(ctx context.Context, token, account string, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return fmt.Errorf("burn %s: negative amount", token)
	}
	bal, err := t.BalanceOf(ctx, token, account)
	if err != nil {
		return err
	}
	if bal.LT(amount) {
		return fmt.Errorf("burn %s: %s holds %s, needs %s", token, account, bal, amount)
	}
	t.balances[token][account] = bal.Sub(amount)
	t.supplies[token] = t.supplies[token].Sub(amount)
	return nil
}

func (t *MemoryShareToken) TotalSupply(ctx context.Context, token string) (sdkmath.Int, error) {
	if supply, ok := t.supplies[token]; ok {
		return supply, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (t *MemoryShareToken) BalanceOf(ctx context.Context, token, account string) (sdkmath.Int, error) {
	if accounts, ok := t.balances[token]; ok {
		if b, ok := accounts[account]; ok {
			return b, nil
		}
	}
	return sdkmath.ZeroInt(), nil
}

// MemoryAuthGate approves callers from a static set.
type MemoryAuthGate struct {
	approved map[string]bool
	AllowAll bool
}

func NewMemoryAuthGate() *MemoryAuthGate {
	return &MemoryAuthGate{approved: make(map[string]bool)}
}

func (g *MemoryAuthGate) Approve(caller string) {
	g.approved[caller] = true
}

func (g *MemoryAuthGate) Revoke(caller string) {
	delete(g.approved, caller)
}

func (g *MemoryAuthGate) IsApproved(ctx context.Context, caller, contract string) (bool, error) {
	if g.AllowAll {
		return true, nil
	}
	return g.approved[caller], nil
}
