package query

import (
	"context"
	"database/sql"
	"fmt"

	"pledgepool/internal/engine"
	"pledgepool/internal/ledger"
)

// Service provides read-only views over the engine's live state and the
// persisted audit log. Live state comes from engine snapshots (always
// current); history comes from Postgres and trails the engine by at most
// one flush interval.
type Service struct {
	eng *engine.Engine
	db  *sql.DB
}

func NewService(eng *engine.Engine, db *sql.DB) *Service {
	return &Service{eng: eng, db: db}
}

// ListPools returns a summary of every pool.
func (s *Service) ListPools(ctx context.Context) []PoolSummary {
	snaps := s.eng.SnapshotAll()
	out := make([]PoolSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, summarize(snap))
	}
	return out
}

// GetPool returns the full projection of one pool.
func (s *Service) GetPool(ctx context.Context, poolID uint64) (PoolDetail, error) {
	snap, err := s.eng.Snapshot(poolID)
	if err != nil {
		return PoolDetail{}, err
	}
	t := snap.Pool.Terms
	return PoolDetail{
		PoolSummary:            summarize(snap),
		InterestRate:           t.InterestRate.String(),
		MaxLendSupply:          t.MaxLendSupply.String(),
		MortgageRate:           t.MortgageRate.String(),
		SPToken:                t.SPToken,
		JPToken:                t.JPToken,
		AutoLiquidateThreshold: t.AutoLiquidateThreshold.String(),

		SettleAmountLend:        snap.Settle.SettleAmountLend.String(),
		SettleAmountBorrow:      snap.Settle.SettleAmountBorrow.String(),
		FinishAmountLend:        snap.Settle.FinishAmountLend.String(),
		FinishAmountBorrow:      snap.Settle.FinishAmountBorrow.String(),
		LiquidationAmountLend:   snap.Settle.LiquidationAmountLend.String(),
		LiquidationAmountBorrow: snap.Settle.LiquidationAmountBorrow.String(),
	}, nil
}

// GetStake returns one participant's record on one side of a pool.
func (s *Service) GetStake(ctx context.Context, poolID uint64, side ledger.Side, participant string) (StakeResponse, error) {
	if _, err := s.eng.Snapshot(poolID); err != nil {
		return StakeResponse{}, err
	}
	rec := s.eng.Stake(poolID, side, participant)
	return StakeResponse{
		PoolID:       poolID,
		Side:         side.String(),
		Participant:  participant,
		StakeAmount:  rec.StakeAmount.String(),
		RefundAmount: rec.RefundAmount.String(),
		HasRefunded:  rec.HasRefunded,
		HasClaimed:   rec.HasClaimed,
	}, nil
}

// GetPrices returns current oracle prices for a pool's asset pair.
func (s *Service) GetPrices(ctx context.Context, poolID uint64) (PricesResponse, error) {
	priceLend, priceBorrow, err := s.eng.PoolPrices(ctx, poolID)
	if err != nil {
		return PricesResponse{}, err
	}
	return PricesResponse{
		PoolID:      poolID,
		PriceLend:   priceLend.String(),
		PriceBorrow: priceBorrow.String(),
	}, nil
}

// CheckLiquidation reports whether a pool has breached its threshold.
func (s *Service) CheckLiquidation(ctx context.Context, poolID uint64) (LiquidationCheckResponse, error) {
	due, err := s.eng.CheckLiquidation(ctx, poolID)
	if err != nil {
		return LiquidationCheckResponse{}, err
	}
	return LiquidationCheckResponse{PoolID: poolID, Liquidatable: due}, nil
}

// PoolHistory returns a pool's persisted audit records, oldest first.
func (s *Service) PoolHistory(ctx context.Context, poolID uint64, limit int) ([]HistoryRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not configured")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, record_id, action, pool_id, participant, from_state, to_state, timestamp, payload
		FROM audit.records
		WHERE pool_id = $1
		ORDER BY sequence ASC
		LIMIT $2`,
		int64(poolID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history for pool %d: %w", poolID, err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(
			&r.Sequence, &r.RecordID, &r.Action, &r.PoolID, &r.Participant,
			&r.FromState, &r.ToState, &r.Timestamp, &r.Payload,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func summarize(snap engine.PoolSnapshot) PoolSummary {
	return PoolSummary{
		PoolID:       snap.Pool.ID,
		State:        snap.Pool.State.String(),
		LendAsset:    snap.Pool.Terms.LendAsset,
		BorrowAsset:  snap.Pool.Terms.BorrowAsset,
		LendSupply:   snap.Pool.LendSupply.String(),
		BorrowSupply: snap.Pool.BorrowSupply.String(),
		SettleTime:   snap.Pool.Terms.SettleTime,
		EndTime:      snap.Pool.Terms.EndTime,
	}
}
