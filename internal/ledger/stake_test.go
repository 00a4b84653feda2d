package ledger_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"

	"pledgepool/internal/ledger"
)

func key(participant string) ledger.StakeKey {
	return ledger.StakeKey{Participant: participant, PoolID: 0, Side: ledger.SideLend}
}

func TestStakeKey_AccountPath(t *testing.T) {
	k := ledger.StakeKey{Participant: "0xabc", PoolID: 3, Side: ledger.SideBorrow}
	if got := k.AccountPath(); got != "borrow:3:0xabc" {
		t.Errorf("got %q, want %q", got, "borrow:3:0xabc")
	}
}

func TestTracker_GetUnknownIsZero(t *testing.T) {
	tr := ledger.NewTracker()
	rec := tr.Get(key("0xa"))
	if !rec.StakeAmount.IsZero() || rec.HasRefunded || rec.HasClaimed {
		t.Error("unknown record should be zeroed")
	}
}

func TestTracker_AddStakeAccumulates(t *testing.T) {
	tr := ledger.NewTracker()
	tr.AddStake(key("0xa"), sdkmath.NewInt(100))
	tr.AddStake(key("0xa"), sdkmath.NewInt(250))

	rec := tr.Get(key("0xa"))
	if !rec.StakeAmount.Equal(sdkmath.NewInt(350)) {
		t.Errorf("got %s, want 350", rec.StakeAmount)
	}
}

func TestTracker_SidesIndependent(t *testing.T) {
	tr := ledger.NewTracker()
	lendKey := ledger.StakeKey{Participant: "0xa", PoolID: 0, Side: ledger.SideLend}
	borrowKey := ledger.StakeKey{Participant: "0xa", PoolID: 0, Side: ledger.SideBorrow}

	tr.AddStake(lendKey, sdkmath.NewInt(100))

	if !tr.Get(borrowKey).StakeAmount.IsZero() {
		t.Error("borrow side should be untouched by lend stake")
	}
}

func TestTracker_RefundOnce(t *testing.T) {
	tr := ledger.NewTracker()
	tr.AddStake(key("0xa"), sdkmath.NewInt(100))

	if err := tr.MarkRefunded(key("0xa"), sdkmath.NewInt(40)); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if err := tr.MarkRefunded(key("0xa"), sdkmath.NewInt(40)); err == nil {
		t.Error("second refund should fail")
	}

	rec := tr.Get(key("0xa"))
	if !rec.RefundAmount.Equal(sdkmath.NewInt(40)) {
		t.Errorf("got refund %s, want 40", rec.RefundAmount)
	}
}

func TestTracker_RefundWithoutStake(t *testing.T) {
	tr := ledger.NewTracker()
	if err := tr.MarkRefunded(key("0xa"), sdkmath.NewInt(1)); err == nil {
		t.Error("refund without stake should fail")
	}
}

func TestTracker_ClaimOnce(t *testing.T) {
	tr := ledger.NewTracker()
	tr.AddStake(key("0xa"), sdkmath.NewInt(100))

	if err := tr.MarkClaimed(key("0xa")); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := tr.MarkClaimed(key("0xa")); err == nil {
		t.Error("second claim should fail")
	}
}

func TestTracker_TotalRefunded(t *testing.T) {
	tr := ledger.NewTracker()
	tr.AddStake(key("0xa"), sdkmath.NewInt(100))
	tr.AddStake(key("0xb"), sdkmath.NewInt(300))
	tr.MarkRefunded(key("0xa"), sdkmath.NewInt(25))
	tr.MarkRefunded(key("0xb"), sdkmath.NewInt(75))

	got := tr.TotalRefunded(0, ledger.SideLend)
	if !got.Equal(sdkmath.NewInt(100)) {
		t.Errorf("got %s, want 100", got)
	}
	if !tr.TotalRefunded(0, ledger.SideBorrow).IsZero() {
		t.Error("borrow side should have no refunds")
	}
}
