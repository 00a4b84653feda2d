package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pledgepool/internal/adapter"
	"pledgepool/internal/event"
	"pledgepool/internal/fixmath"
	"pledgepool/internal/ledger"
	"pledgepool/internal/observability"
	"pledgepool/internal/pool"
)

// Config carries the engine's mutable operating parameters. Fees and the
// minimum deposit live in the 8-decimal domain.
type Config struct {
	LendFee      sdkmath.Int
	BorrowFee    sdkmath.Int
	FeeRecipient string
	MinDeposit   sdkmath.Int

	// SwapDeadline bounds settlement swaps relative to the engine clock.
	SwapDeadline time.Duration
}

// DefaultConfig returns zero fees, no minimum and a 5 minute swap deadline.
func DefaultConfig() Config {
	return Config{
		LendFee:      sdkmath.ZeroInt(),
		BorrowFee:    sdkmath.ZeroInt(),
		MinDeposit:   sdkmath.ZeroInt(),
		SwapDeadline: 5 * time.Minute,
	}
}

// Engine is the single-writer pool lifecycle processor. All state mutation
// happens under one lock; adapters are called with a guarded context so a
// re-entrant callback is rejected instead of deadlocking.
type Engine struct {
	mu sync.Mutex

	registry *pool.Registry
	stakes   *ledger.Tracker

	funds  adapter.Funds
	oracle adapter.PriceOracle
	swap   adapter.SwapVenue
	shares adapter.ShareToken
	auth   adapter.AuthGate

	// self is the engine's own identity, the contract argument of every
	// authorization check.
	self string

	cfg    Config
	paused bool

	clock func() time.Time
	seq   int64

	// persistChan blocks when full (durability over liveness);
	// publishChan drops when full. Either may be nil.
	persistChan chan<- *event.Envelope
	publishChan chan<- *event.Envelope

	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Deps bundles the adapter set the engine drives.
type Deps struct {
	Funds     adapter.Funds
	Oracle    adapter.PriceOracle
	Swap      adapter.SwapVenue
	Shares    adapter.ShareToken
	Auth      adapter.AuthGate
	Self      string
	Persist   chan<- *event.Envelope
	Publish   chan<- *event.Envelope
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Clock     func() time.Time
	StartSeq  int64
}

func New(cfg Config, deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		registry:    pool.NewRegistry(),
		stakes:      ledger.NewTracker(),
		funds:       deps.Funds,
		oracle:      deps.Oracle,
		swap:        deps.Swap,
		shares:      deps.Shares,
		auth:        deps.Auth,
		self:        deps.Self,
		cfg:         cfg,
		clock:       clock,
		seq:         deps.StartSeq,
		persistChan: deps.Persist,
		publishChan: deps.Publish,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// requireApproved consults the auth gate for privileged operations.
func (e *Engine) requireApproved(ctx context.Context, caller string) error {
	ok, err := e.auth.IsApproved(withGuard(ctx), caller, e.self)
	if err != nil {
		return fmt.Errorf("auth check for %s: %w", caller, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotApproved, caller)
	}
	return nil
}

func (e *Engine) getPool(id uint64) (*pool.Pool, *pool.SettleInfo, error) {
	p, err := e.registry.Get(id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	si, err := e.registry.GetSettle(id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	return p, si, nil
}

// transition moves a pool to next, enforcing the lifecycle map.
func (e *Engine) transition(p *pool.Pool, next pool.State) error {
	if !p.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrWrongState, p.State, next)
	}
	from := p.State
	p.State = next
	p.Version++
	if e.metrics != nil {
		e.metrics.PoolTransitions.WithLabelValues(from.String(), next.String()).Inc()
	}
	e.logger.Info().
		Uint64("pool_id", p.ID).
		Str("from", from.String()).
		Str("to", next.String()).
		Msg("pool transitioned")
	return nil
}

// emit appends one record to the audit log. The payload must be
// JSON-marshalable; marshal failures are a programming error and panic.
func (e *Engine) emit(action event.Action, poolID *uint64, participant string, from, to *pool.State, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal audit payload %s: %v", action, err))
	}

	e.seq++
	env := &event.Envelope{
		Sequence:    e.seq,
		RecordID:    uuid.New(),
		Action:      action,
		PoolID:      poolID,
		Participant: participant,
		Timestamp:   e.clock(),
		Payload:     data,
	}
	if from != nil {
		s := from.String()
		env.FromState = &s
	}
	if to != nil {
		s := to.String()
		env.ToState = &s
	}
	if e.metrics != nil {
		e.metrics.AuditSequence.Set(float64(e.seq))
	}

	if e.persistChan != nil {
		select {
		case e.persistChan <- env:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- env
		}
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- env:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
	} else {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
	}
}

// pricesOf reads current prices for the pool's asset pair and rejects zero
// quotes.
func (e *Engine) pricesOf(ctx context.Context, p *pool.Pool) (priceLend, priceBorrow sdkmath.Int, err error) {
	prices, err := e.oracle.PricesOf(withGuard(ctx), []string{p.Terms.LendAsset, p.Terms.BorrowAsset})
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleReads.WithLabelValues("error").Inc()
		}
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("read prices for pool %d: %w", p.ID, err)
	}
	if prices[0].IsZero() || prices[1].IsZero() {
		if e.metrics != nil {
			e.metrics.OracleReads.WithLabelValues("unavailable").Inc()
			e.metrics.OracleUnavailable.Inc()
		}
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: pool %d", ErrPriceUnavailable, p.ID)
	}
	if e.metrics != nil {
		e.metrics.OracleReads.WithLabelValues("ok").Inc()
	}
	return prices[0], prices[1], nil
}

// PoolSnapshot is a read-only copy of one pool's runtime state.
type PoolSnapshot struct {
	Pool   pool.Pool
	Settle pool.SettleInfo
}

// Snapshot returns a copy of pool id, safe to use outside the lock.
func (e *Engine) Snapshot(id uint64) (PoolSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, si, err := e.getPool(id)
	if err != nil {
		return PoolSnapshot{}, err
	}
	return PoolSnapshot{Pool: *p, Settle: *si}, nil
}

// SnapshotAll returns copies of every pool, oldest first.
func (e *Engine) SnapshotAll() []PoolSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PoolSnapshot, 0, e.registry.Len())
	for _, p := range e.registry.All() {
		si, _ := e.registry.GetSettle(p.ID)
		out = append(out, PoolSnapshot{Pool: *p, Settle: *si})
	}
	return out
}

// Stake returns a copy of one participant's record.
func (e *Engine) Stake(poolID uint64, side ledger.Side, participant string) ledger.StakeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.stakes.Get(ledger.StakeKey{Participant: participant, PoolID: poolID, Side: side})
}

// PoolPrices returns the current oracle prices for a pool's asset pair.
func (e *Engine) PoolPrices(ctx context.Context, poolID uint64) (priceLend, priceBorrow sdkmath.Int, err error) {
	if err := checkReentrancy(ctx); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, _, err := e.getPool(poolID)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return e.pricesOf(ctx, p)
}

// CheckLiquidation reports whether a pool's collateral value has fallen
// below the liquidation threshold. Only meaningful in Execution.
func (e *Engine) CheckLiquidation(ctx context.Context, poolID uint64) (bool, error) {
	if err := checkReentrancy(ctx); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, si, err := e.getPool(poolID)
	if err != nil {
		return false, err
	}
	if p.State != pool.StateExecution {
		return false, fmt.Errorf("%w: pool %d is %s", ErrWrongState, poolID, p.State)
	}

	priceLend, priceBorrow, err := e.pricesOf(ctx, p)
	if err != nil {
		return false, err
	}

	ratio := fixmath.PriceRatio(priceBorrow, priceLend)
	collateralValue := fixmath.ValueByRatio(si.SettleAmountBorrow, ratio)
	threshold := fixmath.ApplyRate(si.SettleAmountLend,
		fixmath.BaseConfig.Scale.Add(p.Terms.AutoLiquidateThreshold))
	return collateralValue.LT(threshold), nil
}

func rejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrNotApproved):
		return "auth"
	case errors.Is(err, ErrPoolNotFound):
		return "not_found"
	case errors.Is(err, ErrWrongState):
		return "state"
	case errors.Is(err, ErrTimeWindow):
		return "window"
	case errors.Is(err, ErrZeroAmount), errors.Is(err, ErrBelowMinimum), errors.Is(err, ErrCapExceeded):
		return "amount"
	case errors.Is(err, ErrAlreadyRefunded), errors.Is(err, ErrAlreadyClaimed):
		return "duplicate"
	case errors.Is(err, ErrPriceUnavailable):
		return "oracle"
	case errors.Is(err, ErrSlippage):
		return "slippage"
	case errors.Is(err, ErrReentrancy):
		return "reentrancy"
	default:
		return "other"
	}
}
