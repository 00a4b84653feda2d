package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"pledgepool/internal/adapter"
	"pledgepool/internal/event"
)

// Administrative setters. Every call is gated on the auth adapter and
// recorded as a ParamChange in the audit log.

func (e *Engine) SetLendFee(ctx context.Context, caller string, fee sdkmath.Int) error {
	return e.setParam(ctx, caller, "lend_fee", func() (string, string, error) {
		if fee.IsNil() || fee.IsNegative() {
			return "", "", fmt.Errorf("%w: lend fee", ErrZeroAmount)
		}
		old := e.cfg.LendFee.String()
		e.cfg.LendFee = fee
		return old, fee.String(), nil
	})
}

func (e *Engine) SetBorrowFee(ctx context.Context, caller string, fee sdkmath.Int) error {
	return e.setParam(ctx, caller, "borrow_fee", func() (string, string, error) {
		if fee.IsNil() || fee.IsNegative() {
			return "", "", fmt.Errorf("%w: borrow fee", ErrZeroAmount)
		}
		old := e.cfg.BorrowFee.String()
		e.cfg.BorrowFee = fee
		return old, fee.String(), nil
	})
}

func (e *Engine) SetFeeRecipient(ctx context.Context, caller, recipient string) error {
	return e.setParam(ctx, caller, "fee_recipient", func() (string, string, error) {
		old := e.cfg.FeeRecipient
		e.cfg.FeeRecipient = recipient
		return old, recipient, nil
	})
}

func (e *Engine) SetMinDeposit(ctx context.Context, caller string, min sdkmath.Int) error {
	return e.setParam(ctx, caller, "min_deposit", func() (string, string, error) {
		if min.IsNil() || min.IsNegative() {
			return "", "", fmt.Errorf("%w: minimum deposit", ErrZeroAmount)
		}
		old := e.cfg.MinDeposit.String()
		e.cfg.MinDeposit = min
		return old, min.String(), nil
	})
}

// SetSwapVenue swaps out the exchange adapter, for venue migrations.
func (e *Engine) SetSwapVenue(ctx context.Context, caller string, venue adapter.SwapVenue) error {
	return e.setParam(ctx, caller, "swap_venue", func() (string, string, error) {
		if venue == nil {
			return "", "", fmt.Errorf("swap venue must not be nil")
		}
		e.swap = venue
		return "", fmt.Sprintf("%T", venue), nil
	})
}

// SetPause halts or resumes the participant entry points. Queries and the
// auth-gated lifecycle triggers keep working while paused, so a distressed
// pool can still be settled or liquidated.
func (e *Engine) SetPause(ctx context.Context, caller string, paused bool) error {
	return e.setParam(ctx, caller, "paused", func() (string, string, error) {
		old := strconv.FormatBool(e.paused)
		e.paused = paused
		return old, strconv.FormatBool(paused), nil
	})
}

func (e *Engine) setParam(ctx context.Context, caller, name string, apply func() (old, new string, err error)) error {
	start := time.Now()
	var err error
	defer func() { e.observe("set_"+name, start, err) }()

	if err = checkReentrancy(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireApproved(ctx, caller); err != nil {
		return err
	}
	oldVal, newVal, applyErr := apply()
	if applyErr != nil {
		err = applyErr
		return err
	}

	e.logger.Info().
		Str("param", name).
		Str("old", oldVal).
		Str("new", newVal).
		Str("caller", caller).
		Msg("parameter changed")
	e.emit(event.ActionParamChange, nil, caller, nil, nil, event.ParamChangeRecord{
		Name:     name,
		OldValue: oldVal,
		NewValue: newVal,
	})
	return nil
}
