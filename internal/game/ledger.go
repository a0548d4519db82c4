package game

import (
	"sort"
	"time"

	"habittycoon/internal/clock"
)

// CompletionInput is everything the completion planner reads. Today holds
// the ledger records whose local date is today; PeriodCount is the number
// of ledger records in the current period and is the source of truth for
// progress.
type CompletionInput struct {
	Habit       HabitBusiness
	Now         time.Time
	ClientTime  *time.Time
	Location    *time.Location
	Today       []CompletionRecord
	PeriodCount int
	Stock       *StockState
}

type CompletionPlan struct {
	Record          CompletionRecord
	NextProgress    int
	GoalCompleting  bool
	NextStreak      int
	Earnings        Earnings
	Dividends       DividendPlan
	LastCompletedAt time.Time
}

func PlanCompletion(in CompletionInput) (CompletionPlan, error) {
	var plan CompletionPlan
	h := in.Habit
	if err := ValidateGoalValue(h.GoalValue); err != nil {
		return plan, err
	}
	if err := clock.ValidateNotFuture(in.Now, in.Location); err != nil {
		return plan, err
	}
	if in.ClientTime != nil {
		if err := clock.ValidateNotFutureAgainst(*in.ClientTime, in.Now, in.Location); err != nil {
			return plan, err
		}
	}

	if IsGoalMetThisPeriod(h, in.Now, in.Location) {
		return plan, ErrAlreadyCompleted
	}
	if len(in.Today) >= h.GoalValue || in.PeriodCount >= h.GoalValue {
		return plan, ErrAlreadyCompleted
	}

	plan.NextProgress = in.PeriodCount + 1
	plan.GoalCompleting = plan.NextProgress >= h.GoalValue
	plan.NextStreak = h.Streak
	if plan.GoalCompleting {
		plan.NextStreak = NextStreak(h, in.Now)
	}

	var stock *StockState
	if plan.GoalCompleting {
		stock = in.Stock
	}
	plan.Earnings = ComputeEarnings(EarningsInput{
		PerCompletionMicros: h.EarningsPerCompletionMicros,
		NextStreak:          plan.NextStreak,
		GoalCompleting:      plan.GoalCompleting,
		Stock:               stock,
	})
	if stock != nil {
		plan.Dividends = ComputeDividendPlan(*stock, plan.Earnings.StockBoostMicros)
	}

	slot := 0
	for _, r := range in.Today {
		if r.Slot > slot {
			slot = r.Slot
		}
	}
	plan.Record = CompletionRecord{
		HabitBusinessID: h.ID,
		UserID:          h.UserID,
		EarningsMicros:  plan.Earnings.TotalMicros,
		StreakCount:     plan.NextStreak,
		CompletedAt:     clock.LocalNoon(in.Now, in.Location),
		LocalDate:       clock.LocalDateKey(in.Now, in.Location),
		Slot:            slot + 1,
		GoalCompleting:  plan.GoalCompleting,
	}
	plan.LastCompletedAt = in.Now
	return plan, nil
}

// UndoInput carries recent ledger records, newest or oldest first, which must
// include every record of today plus the newest earlier one.
type UndoInput struct {
	Habit          HabitBusiness
	Now            time.Time
	Location       *time.Location
	Recent         []CompletionRecord
	PeriodCount    int
	CashMicros     int64
	NetWorthMicros int64
}

type UndoPlan struct {
	Removed             CompletionRecord
	NextProgress        int
	NextStreak          int
	TotalCompletions    int64
	TotalEarningsMicros int64
	CashMicros          int64
	NetWorthMicros      int64
	LastCompletedAt     *time.Time
}

// PlanUndo removes today's newest record. Undo is scoped to today's date even
// for weekly habits, and paid dividends stay paid.
func PlanUndo(in UndoInput) (UndoPlan, error) {
	var plan UndoPlan
	today := clock.LocalDateKey(in.Now, in.Location)

	records := make([]CompletionRecord, 0, len(in.Recent))
	for _, r := range in.Recent {
		if recordDateKey(r, in.Location) <= today {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		ki, kj := recordDateKey(records[i], in.Location), recordDateKey(records[j], in.Location)
		if ki != kj {
			return ki > kj
		}
		return records[i].Slot > records[j].Slot
	})
	if len(records) == 0 || recordDateKey(records[0], in.Location) != today {
		return plan, ErrNoCompletionToday
	}

	h := in.Habit
	plan.Removed = records[0]
	earned := plan.Removed.EarningsMicros

	plan.NextProgress = in.PeriodCount - 1
	if plan.NextProgress < 0 {
		plan.NextProgress = 0
	}
	plan.NextStreak = h.Streak
	// Only the goal-completing record ever moved the streak, so undoing an
	// earlier partial completion leaves it alone.
	if plan.Removed.GoalCompleting && plan.NextStreak > 0 {
		plan.NextStreak--
	}
	plan.TotalCompletions = clampZero(h.TotalCompletions - 1)
	plan.TotalEarningsMicros = clampZero(h.TotalEarningsMicros - earned)
	plan.CashMicros = clampZero(in.CashMicros - earned)
	plan.NetWorthMicros = clampZero(in.NetWorthMicros - earned)
	if len(records) > 1 {
		prev := records[1].CompletedAt
		plan.LastCompletedAt = &prev
	}
	return plan, nil
}

func recordDateKey(r CompletionRecord, loc *time.Location) string {
	if r.LocalDate != "" {
		return r.LocalDate
	}
	return clock.LocalDateKey(r.CompletedAt, loc)
}
