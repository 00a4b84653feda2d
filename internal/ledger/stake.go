package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Side distinguishes the two independent stake ledgers.
type Side uint8

const (
	SideLend Side = iota
	SideBorrow
)

func (s Side) String() string {
	switch s {
	case SideLend:
		return "lend"
	case SideBorrow:
		return "borrow"
	default:
		return "unknown"
	}
}

// StakeKey identifies one participant's record on one side of one pool.
type StakeKey struct {
	Participant string // Hex address
	PoolID      uint64
	Side        Side
}

// AccountPath returns the string form for storage and logging.
func (k StakeKey) AccountPath() string {
	return fmt.Sprintf("%s:%d:%s", k.Side, k.PoolID, k.Participant)
}

// StakeRecord tracks a participant's deposit, refund and claim status.
// StakeAmount only grows until the pool leaves Match; RefundAmount is
// written at most once, enforced by HasRefunded.
type StakeRecord struct {
	StakeAmount  sdkmath.Int
	RefundAmount sdkmath.Int
	HasRefunded  bool
	HasClaimed   bool
}

// Tracker maintains all stake records in memory.
// Not thread-safe — only accessed under the engine's single-writer lock.
type Tracker struct {
	records map[StakeKey]*StakeRecord
}

func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[StakeKey]*StakeRecord),
	}
}

// Get returns the record for key, or a zero record if none exists. The
// returned record is never nil but is not stored until AddStake touches it.
func (t *Tracker) Get(key StakeKey) *StakeRecord {
	if rec, ok := t.records[key]; ok {
		return rec
	}
	return &StakeRecord{
		StakeAmount:  sdkmath.ZeroInt(),
		RefundAmount: sdkmath.ZeroInt(),
	}
}

// AddStake accumulates a deposit onto the participant's record.
func (t *Tracker) AddStake(key StakeKey, amount sdkmath.Int) *StakeRecord {
	rec, ok := t.records[key]
	if !ok {
		rec = &StakeRecord{
			StakeAmount:  sdkmath.ZeroInt(),
			RefundAmount: sdkmath.ZeroInt(),
		}
		t.records[key] = rec
	}
	rec.StakeAmount = rec.StakeAmount.Add(amount)
	return rec
}

// MarkRefunded records the refund amount exactly once.
func (t *Tracker) MarkRefunded(key StakeKey, amount sdkmath.Int) error {
	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("no stake record for %s", key.AccountPath())
	}
	if rec.HasRefunded {
		return fmt.Errorf("refund already taken for %s", key.AccountPath())
	}
	rec.RefundAmount = amount
	rec.HasRefunded = true
	return nil
}

// MarkClaimed sets the claim flag exactly once.
func (t *Tracker) MarkClaimed(key StakeKey) error {
	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("no stake record for %s", key.AccountPath())
	}
	if rec.HasClaimed {
		return fmt.Errorf("claim already taken for %s", key.AccountPath())
	}
	rec.HasClaimed = true
	return nil
}

// PoolStakes returns every record on one side of a pool, for conservation
// checks and projections.
func (t *Tracker) PoolStakes(poolID uint64, side Side) map[string]*StakeRecord {
	out := make(map[string]*StakeRecord)
	for key, rec := range t.records {
		if key.PoolID == poolID && key.Side == side {
			out[key.Participant] = rec
		}
	}
	return out
}

// TotalRefunded sums refunds on one side of a pool.
func (t *Tracker) TotalRefunded(poolID uint64, side Side) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for key, rec := range t.records {
		if key.PoolID == poolID && key.Side == side && rec.HasRefunded {
			total = total.Add(rec.RefundAmount)
		}
	}
	return total
}
