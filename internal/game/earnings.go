package game

import "github.com/shopspring/decimal"

var (
	streakRate   = decimal.NewFromFloat(StreakBonusPerDay)
	hundred      = decimal.NewFromInt(100)
	dividendRate = decimal.NewFromFloat(DividendPoolRate)
)

// HolderShares is one external position as seen by the earnings and
// dividend math.
type HolderShares struct {
	HolderID string `json:"holder_id"`
	Shares   int64  `json:"shares"`
}

// StockState is the slice of a business stock the payout math needs.
type StockState struct {
	StockID            string         `json:"stock_id"`
	OwnerID            string         `json:"owner_id"`
	TotalSharesIssued  int64          `json:"total_shares_issued"`
	SharesOwnedByOwner int64          `json:"shares_owned_by_owner"`
	Holders            []HolderShares `json:"holders"`
}

// SharesOwnedByOthers is every issued share the owner does not hold,
// whether or not an investor has bought it yet.
func (s StockState) SharesOwnedByOthers() int64 {
	return max(0, s.TotalSharesIssued-s.SharesOwnedByOwner)
}

// BoostPercent is 5% per full 10% of externally held shares.
func (s StockState) BoostPercent() int64 {
	if s.TotalSharesIssued <= 0 {
		return 0
	}
	others := s.SharesOwnedByOthers()
	if others <= 0 {
		return 0
	}
	steps := others * 100 / s.TotalSharesIssued / OwnershipStepPct
	return steps * BoostPercentPerStep
}

type EarningsInput struct {
	PerCompletionMicros int64
	NextStreak          int
	GoalCompleting      bool
	Stock               *StockState
}

type Earnings struct {
	BaseMicros        int64 `json:"base_micros"`
	StreakBonusMicros int64 `json:"streak_bonus_micros"`
	BaseTotalMicros   int64 `json:"base_total_micros"`
	BoostPercent      int64 `json:"boost_percent"`
	StockBoostMicros  int64 `json:"stock_boost_micros"`
	TotalMicros       int64 `json:"total_micros"`
}

// EarningsPerCompletion spreads base pay across the goal, clamped to
// [1% of base pay, base pay].
func EarningsPerCompletion(basePayMicros int64, goal int) int64 {
	if goal <= 0 {
		return basePayMicros
	}
	per := decimalMicros(microsDecimal(basePayMicros).Div(decimal.NewFromInt(int64(goal))))
	floor := basePayMicros / 100
	if per < floor {
		per = floor
	}
	if per > basePayMicros {
		per = basePayMicros
	}
	return per
}

func ComputeEarnings(in EarningsInput) Earnings {
	out := Earnings{
		BaseMicros:      in.PerCompletionMicros,
		BaseTotalMicros: in.PerCompletionMicros,
		TotalMicros:     in.PerCompletionMicros,
	}
	if !in.GoalCompleting {
		return out
	}

	base := microsDecimal(in.PerCompletionMicros)
	if in.NextStreak > 1 {
		multiplier := decimal.NewFromInt(int64(in.NextStreak - 1)).Mul(streakRate)
		out.StreakBonusMicros = decimalMicros(base.Mul(multiplier))
	}
	out.BaseTotalMicros = out.BaseMicros + out.StreakBonusMicros

	if in.Stock != nil {
		out.BoostPercent = in.Stock.BoostPercent()
		if out.BoostPercent > 0 {
			boost := microsDecimal(out.BaseTotalMicros).Mul(decimal.NewFromInt(out.BoostPercent)).Div(hundred)
			out.StockBoostMicros = decimalMicros(boost)
		}
	}
	out.TotalMicros = out.BaseTotalMicros + out.StockBoostMicros
	return out
}
