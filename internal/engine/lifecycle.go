package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"pledgepool/internal/event"
	"pledgepool/internal/fixmath"
	"pledgepool/internal/pool"
)

// CreatePool registers a new pool in the Match state. Privileged.
func (e *Engine) CreatePool(ctx context.Context, caller string, terms pool.Terms) (uint64, error) {
	start := time.Now()
	var err error
	defer func() { e.observe("create_pool", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireApproved(ctx, caller); err != nil {
		return 0, err
	}
	if err = validateTerms(terms); err != nil {
		return 0, err
	}

	p := e.registry.Append(terms)
	if e.metrics != nil {
		e.metrics.PoolsCreated.Inc()
	}
	e.logger.Info().
		Uint64("pool_id", p.ID).
		Str("lend_asset", terms.LendAsset).
		Str("borrow_asset", terms.BorrowAsset).
		Int64("settle_time", terms.SettleTime).
		Int64("end_time", terms.EndTime).
		Msg("pool created")

	e.emit(event.ActionPoolCreated, &p.ID, caller, nil, nil, event.PoolCreatedRecord{
		PoolID:                 p.ID,
		SettleTime:             terms.SettleTime,
		EndTime:                terms.EndTime,
		InterestRate:           terms.InterestRate.String(),
		MaxLendSupply:          terms.MaxLendSupply.String(),
		MortgageRate:           terms.MortgageRate.String(),
		LendAsset:              terms.LendAsset,
		BorrowAsset:            terms.BorrowAsset,
		SPToken:                terms.SPToken,
		JPToken:                terms.JPToken,
		AutoLiquidateThreshold: terms.AutoLiquidateThreshold.String(),
	})
	return p.ID, nil
}

func validateTerms(t pool.Terms) error {
	if t.SettleTime <= 0 || t.EndTime <= t.SettleTime {
		return fmt.Errorf("%w: end time must follow settle time", ErrTimeWindow)
	}
	if t.InterestRate.IsNil() || t.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate", ErrZeroAmount)
	}
	if t.MaxLendSupply.IsNil() || !t.MaxLendSupply.IsPositive() {
		return fmt.Errorf("%w: max lend supply", ErrZeroAmount)
	}
	if t.MortgageRate.IsNil() || !t.MortgageRate.IsPositive() {
		return fmt.Errorf("%w: mortgage rate", ErrZeroAmount)
	}
	if t.AutoLiquidateThreshold.IsNil() || t.AutoLiquidateThreshold.IsNegative() {
		return fmt.Errorf("%w: liquidation threshold", ErrZeroAmount)
	}
	if t.LendAsset == t.BorrowAsset {
		return fmt.Errorf("lend and borrow assets must differ")
	}
	return nil
}

// Settle closes the matching window. Both sides funded: the smaller side is
// matched in full, the larger side clamped to the collateralization ratio at
// current prices, and the pool enters Execution. Either side empty: the pool
// is Undone and stakes become emergency-withdrawable. Privileged.
func (e *Engine) Settle(ctx context.Context, caller string, poolID uint64) error {
	start := time.Now()
	var err error
	defer func() { e.observe("settle", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireApproved(ctx, caller); err != nil {
		return err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return err
	}
	if p.State != pool.StateMatch {
		err = fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
		return err
	}
	if now := e.clock().Unix(); now < p.Terms.SettleTime {
		err = fmt.Errorf("%w: settle time not reached (now=%d, settle=%d)", ErrTimeWindow, now, p.Terms.SettleTime)
		return err
	}

	from := p.State

	// A one-sided pool cannot match: unwind it. The settlement amounts
	// record the raw supplies, of which at least one is zero.
	if p.LendSupply.IsZero() || p.BorrowSupply.IsZero() {
		si.SettleAmountLend = p.LendSupply
		si.SettleAmountBorrow = p.BorrowSupply
		if err = e.transition(p, pool.StateUndone); err != nil {
			return err
		}
		to := p.State
		e.emit(event.ActionSettle, &poolID, caller, &from, &to, event.SettleRecord{
			PoolID:             poolID,
			SettleAmountLend:   si.SettleAmountLend.String(),
			SettleAmountBorrow: si.SettleAmountBorrow.String(),
		})
		return nil
	}

	priceLend, priceBorrow, priceErr := e.pricesOf(ctx, p)
	if priceErr != nil {
		err = priceErr
		return err
	}

	ratio := fixmath.PriceRatio(priceBorrow, priceLend)
	totalValue := fixmath.ValueByRatio(p.BorrowSupply, ratio)
	fundableValue := fixmath.UnapplyRate(totalValue, p.Terms.MortgageRate)

	if p.LendSupply.GT(fundableValue) {
		// Collateral is the scarce side: fund up to its capacity, commit
		// all collateral.
		si.SettleAmountLend = fundableValue
		si.SettleAmountBorrow = p.BorrowSupply
	} else {
		// Funding is the scarce side: commit it all, lock only the
		// collateral that covers it at the required ratio.
		si.SettleAmountLend = p.LendSupply
		matchedValue := fixmath.ApplyRate(p.LendSupply, p.Terms.MortgageRate)
		si.SettleAmountBorrow = fixmath.AmountByRatio(matchedValue, ratio)
		if si.SettleAmountBorrow.GT(p.BorrowSupply) {
			si.SettleAmountBorrow = p.BorrowSupply
		}
	}

	if err = e.transition(p, pool.StateExecution); err != nil {
		return err
	}
	to := p.State
	e.logger.Info().
		Uint64("pool_id", poolID).
		Str("settle_lend", si.SettleAmountLend.String()).
		Str("settle_borrow", si.SettleAmountBorrow.String()).
		Msg("pool settled")
	e.emit(event.ActionSettle, &poolID, caller, &from, &to, event.SettleRecord{
		PoolID:             poolID,
		PriceLend:          priceLend.String(),
		PriceBorrow:        priceBorrow.String(),
		SettleAmountLend:   si.SettleAmountLend.String(),
		SettleAmountBorrow: si.SettleAmountBorrow.String(),
	})
	return nil
}

// Finish closes a pool at term end: collateral is sold for exactly the lend
// principal plus full-term interest (grossed up by the lend fee), and the
// pool enters Finish. Privileged; only valid at or after the end time.
func (e *Engine) Finish(ctx context.Context, caller string, poolID uint64) error {
	start := time.Now()
	var err error
	defer func() { e.observe("finish", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireApproved(ctx, caller); err != nil {
		return err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return err
	}
	if now := e.clock().Unix(); now < p.Terms.EndTime {
		err = fmt.Errorf("%w: end time not reached (now=%d, end=%d)", ErrTimeWindow, now, p.Terms.EndTime)
		return err
	}

	err = e.swapSettle(ctx, caller, p, si, pool.StateFinish, event.ActionFinish)
	return err
}

// Liquidate closes a pool early when the collateral value has breached the
// threshold. Same realization algorithm as Finish, different terminal state.
// Privileged.
func (e *Engine) Liquidate(ctx context.Context, caller string, poolID uint64) error {
	start := time.Now()
	var err error
	defer func() { e.observe("liquidate", start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireApproved(ctx, caller); err != nil {
		return err
	}
	p, si, getErr := e.getPool(poolID)
	if getErr != nil {
		err = getErr
		return err
	}

	err = e.swapSettle(ctx, caller, p, si, pool.StateLiquidation, event.ActionLiquidate)
	return err
}

// swapSettle realizes a pool's obligations by selling committed collateral
// for the funding asset. Both terminal paths out of Execution share it.
//
// On a shortfall (proceeds below principal plus interest) the pool stays in
// Execution and the operator retries; realized proceeds remain in custody.
func (e *Engine) swapSettle(ctx context.Context, caller string, p *pool.Pool, si *pool.SettleInfo, target pool.State, action event.Action) error {
	if p.State != pool.StateExecution {
		return fmt.Errorf("%w: pool %d is %s", ErrWrongState, p.ID, p.State)
	}

	terms := p.Terms
	interest := fixmath.SimpleInterest(si.SettleAmountLend, terms.InterestRate, terms.EndTime-terms.SettleTime)
	lendAmount := si.SettleAmountLend.Add(interest)
	sellAmount := fixmath.GrossUp(lendAmount, e.cfg.LendFee)

	gctx := withGuard(ctx)
	amountSell, err := e.swap.QuoteAmountIn(gctx, terms.BorrowAsset, terms.LendAsset, sellAmount)
	if err != nil {
		return fmt.Errorf("quote pool %d: %w", p.ID, err)
	}
	if amountSell.GT(si.SettleAmountBorrow) {
		amountSell = si.SettleAmountBorrow
	}

	deadline := e.clock().Add(e.cfg.SwapDeadline).Unix()
	swapStart := time.Now()
	amountIn, err := e.swap.Swap(gctx, terms.BorrowAsset, terms.LendAsset, amountSell, deadline)
	if e.metrics != nil {
		e.metrics.SwapDuration.Observe(time.Since(swapStart).Seconds())
	}
	if err != nil {
		return fmt.Errorf("swap pool %d: %w", p.ID, err)
	}
	if amountIn.LT(lendAmount) {
		if e.metrics != nil {
			e.metrics.SlippageAborts.Inc()
		}
		e.logger.Warn().
			Uint64("pool_id", p.ID).
			Str("amount_in", amountIn.String()).
			Str("required", lendAmount.String()).
			Msg("settlement swap shortfall, pool stays in execution")
		return fmt.Errorf("%w: pool %d got %s, need %s", ErrSlippage, p.ID, amountIn, lendAmount)
	}

	// Surplus over the target is the lend-side fee take.
	if surplus := amountIn.Sub(lendAmount); surplus.IsPositive() {
		if err := e.skimFee(ctx, p.ID, terms.LendAsset, surplus); err != nil {
			return err
		}
	}

	remain := si.SettleAmountBorrow.Sub(amountSell)
	borrowFeeAmt := fixmath.ApplyRate(remain, e.cfg.BorrowFee)
	if borrowFeeAmt.IsPositive() {
		if err := e.skimFee(ctx, p.ID, terms.BorrowAsset, borrowFeeAmt); err != nil {
			return err
		}
	}
	amountBorrow := remain.Sub(borrowFeeAmt)

	from := p.State
	if err := e.transition(p, target); err != nil {
		return err
	}
	switch target {
	case pool.StateFinish:
		si.FinishAmountLend = lendAmount
		si.FinishAmountBorrow = amountBorrow
	case pool.StateLiquidation:
		si.LiquidationAmountLend = lendAmount
		si.LiquidationAmountBorrow = amountBorrow
	}

	to := p.State
	e.emit(action, &p.ID, caller, &from, &to, event.SwapSettleRecord{
		PoolID:       p.ID,
		Interest:     interest.String(),
		LendAmount:   lendAmount.String(),
		SellAmount:   sellAmount.String(),
		AmountSell:   amountSell.String(),
		AmountIn:     amountIn.String(),
		AmountLend:   lendAmount.String(),
		AmountBorrow: amountBorrow.String(),
	})
	return nil
}

// skimFee sends a fee amount to the configured recipient. With no recipient
// configured the fee stays in custody.
func (e *Engine) skimFee(ctx context.Context, poolID uint64, asset string, amount sdkmath.Int) error {
	if e.cfg.FeeRecipient == "" {
		return nil
	}
	if err := e.funds.Send(withGuard(ctx), asset, e.cfg.FeeRecipient, amount); err != nil {
		return fmt.Errorf("skim fee for pool %d: %w", poolID, err)
	}
	if e.metrics != nil {
		if f, err := strconv.ParseFloat(amount.String(), 64); err == nil {
			e.metrics.FeesSkimmed.WithLabelValues(asset).Add(f)
		}
	}
	e.emit(event.ActionFeeSkimmed, &poolID, "", nil, nil, event.FeeSkimRecord{
		PoolID:    poolID,
		Asset:     asset,
		Amount:    amount.String(),
		Recipient: e.cfg.FeeRecipient,
	})
	return nil
}
