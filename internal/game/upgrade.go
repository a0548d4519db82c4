package game

import "github.com/shopspring/decimal"

// upgradeHorizonDays is how many days of streak earnings an upgrade cashes in.
const upgradeHorizonDays = 30

func CalculateUpgradeOptions(h HabitBusiness, currentBaseCostMicros int64, catalog []BusinessType) UpgradeCalculation {
	streakMultiplier := h.Streak
	if streakMultiplier < 1 {
		streakMultiplier = 1
	}
	out := UpgradeCalculation{
		StreakMultiplier:           streakMultiplier,
		CurrentBusinessValueMicros: h.EarningsPerCompletionMicros * int64(streakMultiplier),
	}
	out.TotalStreakValueMicros = out.CurrentBusinessValueMicros * int64(h.Streak) * upgradeHorizonDays

	for _, bt := range catalog {
		if bt.BaseCostMicros <= currentBaseCostMicros {
			continue
		}
		out.AvailableUpgrades = append(out.AvailableUpgrades, bt)
		out.UpgradeOptions = append(out.UpgradeOptions, UpgradeOption{
			BusinessType:      bt,
			UpgradeCostMicros: bt.BaseCostMicros,
			ProfitMicros:      out.TotalStreakValueMicros - bt.BaseCostMicros,
			CanAfford:         out.TotalStreakValueMicros >= bt.BaseCostMicros,
		})
	}
	return out
}

// FindUpgrade returns the affordable option for the requested type.
func (c UpgradeCalculation) FindUpgrade(typeID int64) (UpgradeOption, error) {
	for _, opt := range c.UpgradeOptions {
		if opt.BusinessType.ID == typeID {
			if !opt.CanAfford {
				return opt, ErrUpgradeUnavailable
			}
			return opt, nil
		}
	}
	return UpgradeOption{}, ErrUpgradeUnavailable
}

// SellRefund pays back 70% of the purchase cost in whole currency units.
func SellRefund(costMicros int64) int64 {
	refund := microsDecimal(costMicros).Mul(decimal.NewFromFloat(SellRefundRate)).Floor()
	return decimalMicros(refund)
}

// LiquidationPayout is what a holder receives when a business closes.
func LiquidationPayout(sharesOwned, priceMicros int64) int64 {
	if sharesOwned <= 0 {
		return 0
	}
	return sharesOwned * priceMicros
}
