package game

import (
	"sort"

	"github.com/shopspring/decimal"
)

type DividendLine struct {
	HolderID     string `json:"holder_id"`
	SharesOwned  int64  `json:"shares_owned"`
	AmountMicros int64  `json:"amount_micros"`
}

// DividendPlan is computed once per goal-completing event and persisted.
// Settlement replays the stored lines, never a fresh computation.
type DividendPlan struct {
	StockID           string          `json:"stock_id"`
	PoolMicros        int64           `json:"pool_micros"`
	SharesOutstanding int64           `json:"shares_outstanding"`
	PerShare          decimal.Decimal `json:"dividend_per_share"`
	Lines             []DividendLine  `json:"lines"`
}

func (p DividendPlan) Empty() bool {
	return p.PoolMicros <= 0 || len(p.Lines) == 0
}

func (p DividendPlan) TotalMicros() int64 {
	var total int64
	for _, l := range p.Lines {
		total += l.AmountMicros
	}
	return total
}

// ComputeDividendPlan splits half of the stock boost over every share the
// owner does not hold. Each holder is paid shares * per-share, rounded down
// to whole micros. The portion belonging to unsold shares is not paid out.
func ComputeDividendPlan(stock StockState, stockBoostMicros int64) DividendPlan {
	plan := DividendPlan{StockID: stock.StockID, PerShare: decimal.Zero}
	outstanding := stock.SharesOwnedByOthers()
	if stockBoostMicros <= 0 || outstanding <= 0 {
		return plan
	}
	pool := decimalMicros(microsDecimal(stockBoostMicros).Mul(dividendRate))
	if pool <= 0 {
		return plan
	}
	plan.PoolMicros = pool
	plan.SharesOutstanding = outstanding
	plan.PerShare = microsDecimal(pool).DivRound(decimal.NewFromInt(outstanding), 12)

	holders := make([]HolderShares, 0, len(stock.Holders))
	for _, h := range stock.Holders {
		if h.Shares > 0 && h.HolderID != stock.OwnerID {
			holders = append(holders, h)
		}
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].HolderID < holders[j].HolderID })

	for _, h := range holders {
		amount := pool * h.Shares / outstanding
		if amount <= 0 {
			continue
		}
		plan.Lines = append(plan.Lines, DividendLine{HolderID: h.HolderID, SharesOwned: h.Shares, AmountMicros: amount})
	}
	return plan
}
