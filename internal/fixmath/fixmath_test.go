package fixmath_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"

	"pledgepool/internal/fixmath"
)

func i(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

func TestMulDiv_Truncates(t *testing.T) {
	got := fixmath.MulDiv(i(7), i(3), i(2))
	if !got.Equal(i(10)) {
		t.Errorf("got %s, want 10", got)
	}
}

func TestPriceRatio_RoundTrip(t *testing.T) {
	// priceBorrow = 2.00000000, priceLend = 1.00000000
	ratio := fixmath.PriceRatio(i(2_0000_0000), i(1_0000_0000))
	if !ratio.Equal(sdkmath.NewIntWithDecimal(2, 18)) {
		t.Fatalf("ratio: got %s", ratio)
	}

	value := fixmath.ValueByRatio(i(500), ratio)
	if !value.Equal(i(1000)) {
		t.Errorf("value: got %s, want 1000", value)
	}

	back := fixmath.AmountByRatio(value, ratio)
	if !back.Equal(i(500)) {
		t.Errorf("amount: got %s, want 500", back)
	}
}

func TestApplyRate(t *testing.T) {
	// 50% of 1000
	got := fixmath.ApplyRate(i(1000), i(50_000_000))
	if !got.Equal(i(500)) {
		t.Errorf("got %s, want 500", got)
	}
}

func TestUnapplyRate(t *testing.T) {
	// 1000 / 50%
	got := fixmath.UnapplyRate(i(1000), i(50_000_000))
	if !got.Equal(i(2000)) {
		t.Errorf("got %s, want 2000", got)
	}
}

func TestSimpleInterest_FullYear(t *testing.T) {
	// 5% annual on 1000 for a full year
	got := fixmath.SimpleInterest(i(1000), i(5_000_000), fixmath.SecondsPerYear)
	if !got.Equal(i(50)) {
		t.Errorf("got %s, want 50", got)
	}
}

func TestSimpleInterest_HalfYear(t *testing.T) {
	got := fixmath.SimpleInterest(i(1000), i(5_000_000), fixmath.SecondsPerYear/2)
	if !got.Equal(i(25)) {
		t.Errorf("got %s, want 25", got)
	}
}

func TestSimpleInterest_NonPositiveElapsed(t *testing.T) {
	got := fixmath.SimpleInterest(i(1000), i(5_000_000), 0)
	if !got.IsZero() {
		t.Errorf("got %s, want 0", got)
	}
	got = fixmath.SimpleInterest(i(1000), i(5_000_000), -10)
	if !got.IsZero() {
		t.Errorf("got %s, want 0", got)
	}
}

func TestProRata(t *testing.T) {
	got := fixmath.ProRata(i(900), i(100), i(300))
	if !got.Equal(i(300)) {
		t.Errorf("got %s, want 300", got)
	}
}

func TestProRata_ZeroSupply(t *testing.T) {
	got := fixmath.ProRata(i(900), i(100), i(0))
	if !got.IsZero() {
		t.Errorf("got %s, want 0", got)
	}
}

func TestGrossUp(t *testing.T) {
	// 1% fee on 1000 → 1010
	got := fixmath.GrossUp(i(1000), i(1_000_000))
	if !got.Equal(i(1010)) {
		t.Errorf("got %s, want 1010", got)
	}
}
