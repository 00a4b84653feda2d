package engine

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"pledgepool/internal/event"
	"pledgepool/internal/fixmath"
	"pledgepool/internal/ledger"
	"pledgepool/internal/pool"
)

// DepositLend stakes funding asset into a pool during the matching window.
// The credited amount is whatever the funds adapter reports received, which
// can be less than requested for fee-on-transfer tokens.
func (e *Engine) DepositLend(ctx context.Context, caller string, poolID uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	return e.deposit(ctx, caller, poolID, amount, ledger.SideLend)
}

// DepositBorrow stakes collateral into a pool during the matching window.
func (e *Engine) DepositBorrow(ctx context.Context, caller string, poolID uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	return e.deposit(ctx, caller, poolID, amount, ledger.SideBorrow)
}

func (e *Engine) deposit(ctx context.Context, caller string, poolID uint64, amount sdkmath.Int, side ledger.Side) (sdkmath.Int, error) {
	op := "deposit_" + side.String()
	start := time.Now()
	var err error
	defer func() { e.observe(op, start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), err
	}
	p, _, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), err
	}
	if p.State != pool.StateMatch {
		err = fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
		return sdkmath.ZeroInt(), err
	}
	if now := e.clock().Unix(); now >= p.Terms.SettleTime {
		err = fmt.Errorf("%w: matching window closed at %d", ErrTimeWindow, p.Terms.SettleTime)
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || !amount.IsPositive() {
		err = ErrZeroAmount
		return sdkmath.ZeroInt(), err
	}
	// The minimum ticket size binds lenders only; collateral deposits of
	// any positive size are accepted.
	if side == ledger.SideLend && amount.LT(e.cfg.MinDeposit) {
		err = fmt.Errorf("%w: %s < %s", ErrBelowMinimum, amount, e.cfg.MinDeposit)
		return sdkmath.ZeroInt(), err
	}
	if side == ledger.SideLend && p.LendSupply.Add(amount).GT(p.Terms.MaxLendSupply) {
		err = fmt.Errorf("%w: supply %s + %s > %s", ErrCapExceeded, p.LendSupply, amount, p.Terms.MaxLendSupply)
		return sdkmath.ZeroInt(), err
	}

	asset := p.Terms.LendAsset
	actionDeposit := event.ActionDepositLend
	if side == ledger.SideBorrow {
		asset = p.Terms.BorrowAsset
		actionDeposit = event.ActionDepositBorrow
	}

	actual, recvErr := e.funds.Receive(withGuard(ctx), asset, caller, amount)
	if recvErr != nil {
		err = fmt.Errorf("receive deposit for pool %d: %w", poolID, recvErr)
		return sdkmath.ZeroInt(), err
	}

	key := ledger.StakeKey{Participant: caller, PoolID: poolID, Side: side}
	rec := e.stakes.AddStake(key, actual)
	if side == ledger.SideLend {
		p.LendSupply = p.LendSupply.Add(actual)
	} else {
		p.BorrowSupply = p.BorrowSupply.Add(actual)
	}
	p.Version++

	e.logger.Debug().
		Uint64("pool_id", poolID).
		Str("participant", caller).
		Str("side", side.String()).
		Str("amount", actual.String()).
		Msg("deposit accepted")
	e.emit(actionDeposit, &poolID, caller, nil, nil, event.DepositRecord{
		PoolID:      poolID,
		Participant: caller,
		Asset:       asset,
		Amount:      actual.String(),
		TotalStake:  rec.StakeAmount.String(),
	})
	return actual, nil
}

// RefundLend returns a lender's unmatched principal after settlement,
// pro rata over the lend supply. One shot per participant per pool.
func (e *Engine) RefundLend(ctx context.Context, caller string, poolID uint64) (sdkmath.Int, error) {
	return e.refund(ctx, caller, poolID, ledger.SideLend)
}

// RefundBorrow returns a borrower's unmatched collateral after settlement.
func (e *Engine) RefundBorrow(ctx context.Context, caller string, poolID uint64) (sdkmath.Int, error) {
	return e.refund(ctx, caller, poolID, ledger.SideBorrow)
}

func (e *Engine) refund(ctx context.Context, caller string, poolID uint64, side ledger.Side) (sdkmath.Int, error) {
	op := "refund_" + side.String()
	start := time.Now()
	var err error
	defer func() { e.observe(op, start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), err
	}
	if err = requireSettled(p, poolID); err != nil {
		return sdkmath.ZeroInt(), err
	}

	var (
		asset   string
		supply  sdkmath.Int
		settled sdkmath.Int
		action  event.Action
	)
	if side == ledger.SideLend {
		asset, supply, settled, action = p.Terms.LendAsset, p.LendSupply, si.SettleAmountLend, event.ActionRefundLend
	} else {
		asset, supply, settled, action = p.Terms.BorrowAsset, p.BorrowSupply, si.SettleAmountBorrow, event.ActionRefundBorrow
	}

	key := ledger.StakeKey{Participant: caller, PoolID: poolID, Side: side}
	rec := e.stakes.Get(key)
	if rec.StakeAmount.IsZero() {
		err = fmt.Errorf("%w: no stake for %s", ErrZeroAmount, key.AccountPath())
		return sdkmath.ZeroInt(), err
	}
	if rec.HasRefunded {
		err = fmt.Errorf("%w: %s", ErrAlreadyRefunded, key.AccountPath())
		return sdkmath.ZeroInt(), err
	}

	unmatched := supply.Sub(settled)
	if !unmatched.IsPositive() {
		err = fmt.Errorf("%w: pool %d fully matched on %s side", ErrZeroAmount, poolID, side)
		return sdkmath.ZeroInt(), err
	}
	refund := fixmath.ProRata(unmatched, rec.StakeAmount, supply)

	if sendErr := e.funds.Send(withGuard(ctx), asset, caller, refund); sendErr != nil {
		err = fmt.Errorf("refund pool %d: %w", poolID, sendErr)
		return sdkmath.ZeroInt(), err
	}
	if err = e.stakes.MarkRefunded(key, refund); err != nil {
		return sdkmath.ZeroInt(), err
	}

	e.emit(action, &poolID, caller, nil, nil, event.RefundRecord{
		PoolID:      poolID,
		Participant: caller,
		Asset:       asset,
		Amount:      refund.String(),
	})
	return refund, nil
}

// ClaimLend mints the lender's pro-rata share of the lend-side debt token.
// Shares are transferable; the eventual payout goes to whoever burns them.
func (e *Engine) ClaimLend(ctx context.Context, caller string, poolID uint64) (sdkmath.Int, error) {
	start := time.Now()
	var err error
	defer func() { e.observe("claim_lend", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), err
	}
	if err = requireSettled(p, poolID); err != nil {
		return sdkmath.ZeroInt(), err
	}

	key := ledger.StakeKey{Participant: caller, PoolID: poolID, Side: ledger.SideLend}
	rec := e.stakes.Get(key)
	if rec.StakeAmount.IsZero() {
		err = fmt.Errorf("%w: no stake for %s", ErrZeroAmount, key.AccountPath())
		return sdkmath.ZeroInt(), err
	}
	if rec.HasClaimed {
		err = fmt.Errorf("%w: %s", ErrAlreadyClaimed, key.AccountPath())
		return sdkmath.ZeroInt(), err
	}

	spAmount := fixmath.ProRata(si.SettleAmountLend, rec.StakeAmount, p.LendSupply)
	if mintErr := e.shares.Mint(withGuard(ctx), p.Terms.SPToken, caller, spAmount); mintErr != nil {
		err = fmt.Errorf("mint %s: %w", p.Terms.SPToken, mintErr)
		return sdkmath.ZeroInt(), err
	}
	if err = e.stakes.MarkClaimed(key); err != nil {
		return sdkmath.ZeroInt(), err
	}

	e.emit(event.ActionClaimLend, &poolID, caller, nil, nil, event.ClaimRecord{
		PoolID:      poolID,
		Participant: caller,
		ShareToken:  p.Terms.SPToken,
		ShareAmount: spAmount.String(),
	})
	return spAmount, nil
}

// ClaimBorrow mints the borrower's pro-rata share of the borrow-side debt
// token and pays out the borrowed principal in the funding asset.
func (e *Engine) ClaimBorrow(ctx context.Context, caller string, poolID uint64) (jpAmount, borrowAmount sdkmath.Int, err error) {
	start := time.Now()
	defer func() { e.observe("claim_borrow", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err = requireSettled(p, poolID); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	key := ledger.StakeKey{Participant: caller, PoolID: poolID, Side: ledger.SideBorrow}
	rec := e.stakes.Get(key)
	if rec.StakeAmount.IsZero() {
		err = fmt.Errorf("%w: no stake for %s", ErrZeroAmount, key.AccountPath())
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if rec.HasClaimed {
		err = fmt.Errorf("%w: %s", ErrAlreadyClaimed, key.AccountPath())
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	totalJP := fixmath.ApplyRate(si.SettleAmountLend, p.Terms.MortgageRate)
	jpAmount = fixmath.ProRata(totalJP, rec.StakeAmount, p.BorrowSupply)
	borrowAmount = fixmath.ProRata(si.SettleAmountLend, rec.StakeAmount, p.BorrowSupply)

	gctx := withGuard(ctx)
	if mintErr := e.shares.Mint(gctx, p.Terms.JPToken, caller, jpAmount); mintErr != nil {
		err = fmt.Errorf("mint %s: %w", p.Terms.JPToken, mintErr)
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if sendErr := e.funds.Send(gctx, p.Terms.LendAsset, caller, borrowAmount); sendErr != nil {
		// Unwind the mint so a failed payout leaves no stray shares.
		_ = e.shares.Burn(gctx, p.Terms.JPToken, caller, jpAmount)
		err = fmt.Errorf("pay borrow principal pool %d: %w", poolID, sendErr)
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err = e.stakes.MarkClaimed(key); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	e.emit(event.ActionClaimBorrow, &poolID, caller, nil, nil, event.ClaimRecord{
		PoolID:      poolID,
		Participant: caller,
		ShareToken:  p.Terms.JPToken,
		ShareAmount: jpAmount.String(),
		PayoutAsset: p.Terms.LendAsset,
		Payout:      borrowAmount.String(),
	})
	return jpAmount, borrowAmount, nil
}

// WithdrawLend burns lend-side shares for the proportional slice of the
// realized funding proceeds. Only valid once the pool is Finish or
// Liquidation.
func (e *Engine) WithdrawLend(ctx context.Context, caller string, poolID uint64, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	start := time.Now()
	var err error
	defer func() { e.observe("withdraw_lend", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), err
	}

	var realized sdkmath.Int
	switch p.State {
	case pool.StateFinish:
		realized = si.FinishAmountLend
	case pool.StateLiquidation:
		realized = si.LiquidationAmountLend
	default:
		err = fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
		return sdkmath.ZeroInt(), err
	}
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		err = ErrZeroAmount
		return sdkmath.ZeroInt(), err
	}

	// Total shares ever minted equals the settled lend amount.
	payout := fixmath.ProRata(realized, shareAmount, si.SettleAmountLend)

	gctx := withGuard(ctx)
	if burnErr := e.shares.Burn(gctx, p.Terms.SPToken, caller, shareAmount); burnErr != nil {
		err = fmt.Errorf("burn %s: %w", p.Terms.SPToken, burnErr)
		return sdkmath.ZeroInt(), err
	}
	if sendErr := e.funds.Send(gctx, p.Terms.LendAsset, caller, payout); sendErr != nil {
		_ = e.shares.Mint(gctx, p.Terms.SPToken, caller, shareAmount)
		err = fmt.Errorf("withdraw pool %d: %w", poolID, sendErr)
		return sdkmath.ZeroInt(), err
	}

	e.emit(event.ActionWithdrawLend, &poolID, caller, nil, nil, event.WithdrawRecord{
		PoolID:      poolID,
		Participant: caller,
		ShareToken:  p.Terms.SPToken,
		Burned:      shareAmount.String(),
		Asset:       p.Terms.LendAsset,
		Payout:      payout.String(),
	})
	return payout, nil
}

// WithdrawBorrow burns borrow-side shares for the proportional slice of the
// remaining collateral.
func (e *Engine) WithdrawBorrow(ctx context.Context, caller string, poolID uint64, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	start := time.Now()
	var err error
	defer func() { e.observe("withdraw_borrow", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), err
	}

	var realized sdkmath.Int
	switch p.State {
	case pool.StateFinish:
		realized = si.FinishAmountBorrow
	case pool.StateLiquidation:
		realized = si.LiquidationAmountBorrow
	default:
		err = fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
		return sdkmath.ZeroInt(), err
	}
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		err = ErrZeroAmount
		return sdkmath.ZeroInt(), err
	}

	totalJP := fixmath.ApplyRate(si.SettleAmountLend, p.Terms.MortgageRate)
	payout := fixmath.ProRata(realized, shareAmount, totalJP)

	gctx := withGuard(ctx)
	if burnErr := e.shares.Burn(gctx, p.Terms.JPToken, caller, shareAmount); burnErr != nil {
		err = fmt.Errorf("burn %s: %w", p.Terms.JPToken, burnErr)
		return sdkmath.ZeroInt(), err
	}
	if sendErr := e.funds.Send(gctx, p.Terms.BorrowAsset, caller, payout); sendErr != nil {
		_ = e.shares.Mint(gctx, p.Terms.JPToken, caller, shareAmount)
		err = fmt.Errorf("withdraw pool %d: %w", poolID, sendErr)
		return sdkmath.ZeroInt(), err
	}

	e.emit(event.ActionWithdrawBorrow, &poolID, caller, nil, nil, event.WithdrawRecord{
		PoolID:      poolID,
		Participant: caller,
		ShareToken:  p.Terms.JPToken,
		Burned:      shareAmount.String(),
		Asset:       p.Terms.BorrowAsset,
		Payout:      payout.String(),
	})
	return payout, nil
}

// EmergencyLendWithdrawal returns a lender's full stake from an Undone pool.
func (e *Engine) EmergencyLendWithdrawal(ctx context.Context, caller string, poolID uint64) (sdkmath.Int, error) {
	return e.emergencyWithdrawal(ctx, caller, poolID, ledger.SideLend)
}

// EmergencyBorrowWithdrawal returns a borrower's full stake from an Undone
// pool.
func (e *Engine) EmergencyBorrowWithdrawal(ctx context.Context, caller string, poolID uint64) (sdkmath.Int, error) {
	return e.emergencyWithdrawal(ctx, caller, poolID, ledger.SideBorrow)
}

func (e *Engine) emergencyWithdrawal(ctx context.Context, caller string, poolID uint64, side ledger.Side) (sdkmath.Int, error) {
	op := "emergency_" + side.String()
	start := time.Now()
	var err error
	defer func() { e.observe(op, start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		err = ErrPaused
		return sdkmath.ZeroInt(), err
	}
	p, _, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return sdkmath.ZeroInt(), err
	}
	if p.State != pool.StateUndone {
		err = fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
		return sdkmath.ZeroInt(), err
	}

	asset := p.Terms.LendAsset
	action := event.ActionEmergencyLendWithdrawal
	if side == ledger.SideBorrow {
		asset = p.Terms.BorrowAsset
		action = event.ActionEmergencyBorrowWithdrawal
	}

	key := ledger.StakeKey{Participant: caller, PoolID: poolID, Side: side}
	rec := e.stakes.Get(key)
	if rec.StakeAmount.IsZero() {
		err = fmt.Errorf("%w: no stake for %s", ErrZeroAmount, key.AccountPath())
		return sdkmath.ZeroInt(), err
	}
	if rec.HasRefunded {
		err = fmt.Errorf("%w: %s", ErrAlreadyRefunded, key.AccountPath())
		return sdkmath.ZeroInt(), err
	}

	if sendErr := e.funds.Send(withGuard(ctx), asset, caller, rec.StakeAmount); sendErr != nil {
		err = fmt.Errorf("emergency withdrawal pool %d: %w", poolID, sendErr)
		return sdkmath.ZeroInt(), err
	}
	if err = e.stakes.MarkRefunded(key, rec.StakeAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	e.emit(action, &poolID, caller, nil, nil, event.RefundRecord{
		PoolID:      poolID,
		Participant: caller,
		Asset:       asset,
		Amount:      rec.StakeAmount.String(),
	})
	return rec.StakeAmount, nil
}

// requireSettled gates post-settlement participant operations: the pool must
// have left Match by matching, not by being undone.
func requireSettled(p *pool.Pool, poolID uint64) error {
	switch p.State {
	case pool.StateExecution, pool.StateFinish, pool.StateLiquidation:
		return nil
	default:
		return fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
	}
}
