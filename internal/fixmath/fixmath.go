package fixmath

import (
	sdkmath "cosmossdk.io/math"
)

// DecimalConfig defines fixed-point precision for one numeric domain.
type DecimalConfig struct {
	DecimalPrecision int         // Number of decimal places
	Scale            sdkmath.Int // 10^DecimalPrecision
}

var (
	// CalConfig is the 18-decimal domain used for price ratios and share
	// intermediates (calDecimal).
	CalConfig = DecimalConfig{DecimalPrecision: 18, Scale: sdkmath.NewIntWithDecimal(1, 18)}

	// BaseConfig is the 8-decimal domain used for rates, fees and
	// collateralization ratios (baseDecimal).
	BaseConfig = DecimalConfig{DecimalPrecision: 8, Scale: sdkmath.NewIntWithDecimal(1, 8)}
)

// SecondsPerYear is the fixed day-count basis for simple interest.
const SecondsPerYear int64 = 365 * 86400

// MulDiv computes a * b / den with arbitrary-precision intermediates,
// truncating toward zero. den must be non-zero.
func MulDiv(a, b, den sdkmath.Int) sdkmath.Int {
	return a.Mul(b).Quo(den)
}

// PriceRatio returns priceA/priceB scaled into the 18-decimal domain.
// Both inputs are 8-decimal oracle prices; the scales cancel.
func PriceRatio(priceA, priceB sdkmath.Int) sdkmath.Int {
	return MulDiv(priceA, CalConfig.Scale, priceB)
}

// ValueByRatio converts an asset amount into its funding-denominated value
// using an 18-decimal price ratio from PriceRatio.
func ValueByRatio(amount, ratio sdkmath.Int) sdkmath.Int {
	return MulDiv(amount, ratio, CalConfig.Scale)
}

// AmountByRatio inverts ValueByRatio: the asset amount whose
// funding-denominated value equals value under the given ratio.
func AmountByRatio(value, ratio sdkmath.Int) sdkmath.Int {
	return MulDiv(value, CalConfig.Scale, ratio)
}

// ApplyRate multiplies an amount by an 8-decimal rate (fee, margin,
// collateralization ratio).
func ApplyRate(amount, rate sdkmath.Int) sdkmath.Int {
	return MulDiv(amount, rate, BaseConfig.Scale)
}

// UnapplyRate divides an amount by an 8-decimal rate.
func UnapplyRate(amount, rate sdkmath.Int) sdkmath.Int {
	return MulDiv(amount, BaseConfig.Scale, rate)
}

// SimpleInterest computes principal × annualRate × elapsed / SecondsPerYear
// with the rate in the 8-decimal domain. Negative elapsed yields zero.
func SimpleInterest(principal, annualRate sdkmath.Int, elapsedSeconds int64) sdkmath.Int {
	if elapsedSeconds <= 0 {
		return sdkmath.ZeroInt()
	}
	timeRate := MulDiv(annualRate, sdkmath.NewInt(elapsedSeconds), sdkmath.NewInt(SecondsPerYear))
	return ApplyRate(principal, timeRate)
}

// ProRata computes total × stake / supply, the participant's proportional
// entitlement. Returns zero when supply is zero.
func ProRata(total, stake, supply sdkmath.Int) sdkmath.Int {
	if supply.IsZero() {
		return sdkmath.ZeroInt()
	}
	return MulDiv(total, stake, supply)
}

// GrossUp scales an amount by (BaseScale + fee) / BaseScale, the payout a
// seller must realize so that the fee can be deducted without shorting the
// principal target.
func GrossUp(amount, fee sdkmath.Int) sdkmath.Int {
	return MulDiv(amount, BaseConfig.Scale.Add(fee), BaseConfig.Scale)
}
