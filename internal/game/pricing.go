package game

import "github.com/shopspring/decimal"

var (
	multiplierStep = decimal.New(5, -2)
	maxMultiplier  = decimal.NewFromInt(3)
	priceBaseRate  = decimal.New(1, -1)
)

// PriceMultiplierForStreak grows 5% per streak period and caps at 3x. It
// mirrors tycoon.update_stock_price_by_streak.
func PriceMultiplierForStreak(streak int) decimal.Decimal {
	if streak < 0 {
		streak = 0
	}
	m := decimal.NewFromInt(1).Add(multiplierStep.Mul(decimal.NewFromInt(int64(streak))))
	if m.GreaterThan(maxMultiplier) {
		return maxMultiplier
	}
	return m
}

// FallbackPrice is round(base_cost * 0.1 * multiplier, 2), used when the
// stored procedure cannot be reached.
func FallbackPrice(baseCostMicros int64, multiplier decimal.Decimal) int64 {
	if multiplier.LessThanOrEqual(decimal.Zero) {
		multiplier = decimal.NewFromInt(1)
	}
	price := microsDecimal(baseCostMicros).Mul(priceBaseRate).Mul(multiplier)
	return decimalMicros(price.Round(2))
}
