package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"habittycoon/internal/clock"
)

// ledgerSim applies plans the same way the service persists them.
type ledgerSim struct {
	habit   HabitBusiness
	records []CompletionRecord
	stock   *StockState
	cash    int64
	loc     *time.Location
	seq     int
}

func newSim(goal int, freq Frequency, perCompletion int64) *ledgerSim {
	return &ledgerSim{
		habit: HabitBusiness{
			ID:                          "habit-1",
			UserID:                      "owner",
			Frequency:                   freq,
			GoalValue:                   goal,
			EarningsPerCompletionMicros: perCompletion,
			IsActive:                    true,
		},
		cash: StarterCashMicros,
		loc:  time.UTC,
	}
}

func (s *ledgerSim) counts(now time.Time) ([]CompletionRecord, int) {
	today := clock.LocalDateKey(now, s.loc)
	var todays []CompletionRecord
	period := 0
	for _, r := range s.records {
		if r.LocalDate == today {
			todays = append(todays, r)
		}
		if IsSamePeriod(s.habit.Frequency, r.CompletedAt, now, s.loc) {
			period++
		}
	}
	return todays, period
}

func (s *ledgerSim) complete(now time.Time) (CompletionPlan, error) {
	todays, period := s.counts(now)
	plan, err := PlanCompletion(CompletionInput{
		Habit:       s.habit,
		Now:         now,
		Location:    s.loc,
		Today:       todays,
		PeriodCount: period,
		Stock:       s.stock,
	})
	if err != nil {
		return plan, err
	}
	s.seq++
	rec := plan.Record
	rec.ID = fmt.Sprintf("rec-%d", s.seq)
	s.records = append(s.records, rec)
	s.habit.CurrentProgress = plan.NextProgress
	s.habit.Streak = plan.NextStreak
	s.habit.TotalCompletions++
	s.habit.TotalEarningsMicros += plan.Earnings.TotalMicros
	last := plan.LastCompletedAt
	s.habit.LastCompletedAt = &last
	s.cash += plan.Earnings.TotalMicros
	return plan, nil
}

func (s *ledgerSim) undo(now time.Time) (UndoPlan, error) {
	_, period := s.counts(now)
	plan, err := PlanUndo(UndoInput{
		Habit:          s.habit,
		Now:            now,
		Location:       s.loc,
		Recent:         s.records,
		PeriodCount:    period,
		CashMicros:     s.cash,
		NetWorthMicros: s.cash,
	})
	if err != nil {
		return plan, err
	}
	kept := s.records[:0]
	for _, r := range s.records {
		if r.ID != plan.Removed.ID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.habit.CurrentProgress = plan.NextProgress
	s.habit.Streak = plan.NextStreak
	s.habit.TotalCompletions = plan.TotalCompletions
	s.habit.TotalEarningsMicros = plan.TotalEarningsMicros
	s.habit.LastCompletedAt = plan.LastCompletedAt
	s.cash = plan.CashMicros
	return plan, nil
}

func TestCompleteTwiceSameDayIsRejected(t *testing.T) {
	sim := newSim(1, FrequencyDaily, MicrosPerDollar)
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	if _, err := sim.complete(now); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	_, err := sim.complete(now.Add(5 * time.Hour))
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if len(sim.records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(sim.records))
	}
}

func TestLedgerCountGuardsStaleCounter(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	h := HabitBusiness{ID: "h", Frequency: FrequencyDaily, GoalValue: 2, EarningsPerCompletionMicros: MicrosPerDollar}
	today := []CompletionRecord{
		{ID: "a", LocalDate: "2025-03-03", Slot: 1},
		{ID: "b", LocalDate: "2025-03-03", Slot: 2},
	}
	_, err := PlanCompletion(CompletionInput{Habit: h, Now: now, Location: time.UTC, Today: today, PeriodCount: 0})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("ledger count must win over a stale counter, got %v", err)
	}
}

func TestCompletionRejectsFutureClientClock(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	client := now.Add(72 * time.Hour)
	h := HabitBusiness{ID: "h", Frequency: FrequencyDaily, GoalValue: 1, EarningsPerCompletionMicros: MicrosPerDollar}
	_, err := PlanCompletion(CompletionInput{Habit: h, Now: now, ClientTime: &client, Location: time.UTC})
	if !errors.Is(err, ErrFutureDate) {
		t.Fatalf("expected ErrFutureDate, got %v", err)
	}
}

func TestCompletionRecordIsPinnedToLocalNoon(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("timezone unavailable: %v", err)
	}
	sim := newSim(1, FrequencyDaily, MicrosPerDollar)
	sim.loc = tokyo
	// 23:30 UTC on Mar 3 is already Mar 4 in Tokyo.
	plan, err := sim.complete(time.Date(2025, 3, 3, 23, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if plan.Record.LocalDate != "2025-03-04" || plan.Record.CompletedAt.In(tokyo).Hour() != 12 {
		t.Fatalf("unexpected record %+v", plan.Record)
	}
	if plan.Record.Slot != 1 {
		t.Fatalf("slot got %d", plan.Record.Slot)
	}
}

func TestUndoRestoresCoreFields(t *testing.T) {
	sim := newSim(1, FrequencyDaily, MicrosPerDollar)
	before := sim.habit
	cashBefore := sim.cash
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	if _, err := sim.complete(now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := sim.undo(now.Add(time.Minute)); err != nil {
		t.Fatalf("undo: %v", err)
	}

	h := sim.habit
	if h.CurrentProgress != before.CurrentProgress || h.Streak != before.Streak ||
		h.TotalCompletions != before.TotalCompletions || h.TotalEarningsMicros != before.TotalEarningsMicros {
		t.Fatalf("fields not restored: before=%+v after=%+v", before, h)
	}
	if h.LastCompletedAt != nil {
		t.Fatalf("last completed should be cleared, got %v", h.LastCompletedAt)
	}
	if sim.cash != cashBefore {
		t.Fatalf("cash got %d want %d", sim.cash, cashBefore)
	}
	if len(sim.records) != 0 {
		t.Fatalf("ledger should be empty, got %d", len(sim.records))
	}
}

func TestUndoPartialCompletionKeepsStreak(t *testing.T) {
	sim := newSim(3, FrequencyDaily, MicrosPerDollar)
	sim.habit.Streak = 4
	yesterday := time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC)
	sim.habit.LastCompletedAt = &yesterday
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	if _, err := sim.complete(now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	plan, err := sim.undo(now.Add(time.Minute))
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if plan.NextStreak != 4 || plan.NextProgress != 0 {
		t.Fatalf("unexpected undo plan %+v", plan)
	}
}

func TestUndoIsScopedToToday(t *testing.T) {
	sim := newSim(2, FrequencyWeekly, MicrosPerDollar)
	tuesday := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	if _, err := sim.complete(tuesday); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := sim.undo(tuesday.Add(24 * time.Hour))
	if !errors.Is(err, ErrNoCompletionToday) {
		t.Fatalf("expected ErrNoCompletionToday, got %v", err)
	}
}

func TestUndoPointsLastCompletedAtToPreviousRecord(t *testing.T) {
	sim := newSim(1, FrequencyDaily, MicrosPerDollar)
	day1 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	if _, err := sim.complete(day1); err != nil {
		t.Fatalf("day1: %v", err)
	}
	if _, err := sim.complete(day2); err != nil {
		t.Fatalf("day2: %v", err)
	}
	plan, err := sim.undo(day2.Add(time.Hour))
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if plan.LastCompletedAt == nil || clock.LocalDateKey(*plan.LastCompletedAt, time.UTC) != "2025-03-03" {
		t.Fatalf("expected last completed on day1, got %v", plan.LastCompletedAt)
	}
	if plan.NextStreak != 1 {
		t.Fatalf("streak got %d want 1", plan.NextStreak)
	}
}

func TestUndoClampsAtZero(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	h := HabitBusiness{ID: "h", Frequency: FrequencyDaily, GoalValue: 1, TotalEarningsMicros: 100}
	plan, err := PlanUndo(UndoInput{
		Habit:       h,
		Now:         now,
		Location:    time.UTC,
		Recent:      []CompletionRecord{{ID: "r", LocalDate: "2025-03-03", Slot: 1, EarningsMicros: 5 * MicrosPerDollar}},
		PeriodCount: 1,
		CashMicros:  MicrosPerDollar,
	})
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if plan.CashMicros != 0 || plan.NetWorthMicros != 0 || plan.TotalEarningsMicros != 0 || plan.TotalCompletions != 0 {
		t.Fatalf("balances must not go negative: %+v", plan)
	}
}

func TestMultiGoalOnlyLastCompletionMovesStreak(t *testing.T) {
	sim := newSim(3, FrequencyDaily, MicrosPerDollar)
	sim.stock = externalStock(HolderShares{"a", 200})
	sim.habit.Streak = 2
	yesterday := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC)
	sim.habit.LastCompletedAt = &yesterday
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	for i := 1; i <= 2; i++ {
		plan, err := sim.complete(now.Add(time.Duration(i) * time.Hour))
		if err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
		if plan.GoalCompleting || sim.habit.Streak != 2 {
			t.Fatalf("completion %d changed streak: %+v", i, plan)
		}
		if plan.Earnings.StreakBonusMicros != 0 || plan.Earnings.StockBoostMicros != 0 {
			t.Fatalf("partial completion %d earned bonuses: %+v", i, plan.Earnings)
		}
		if !plan.Dividends.Empty() {
			t.Fatalf("partial completion %d planned dividends", i)
		}
	}

	plan, err := sim.complete(now.Add(3 * time.Hour))
	if err != nil {
		t.Fatalf("goal completion: %v", err)
	}
	if !plan.GoalCompleting || sim.habit.Streak != 3 {
		t.Fatalf("third completion should move streak: %+v", plan)
	}
	if plan.Earnings.StreakBonusMicros == 0 || plan.Earnings.StockBoostMicros == 0 {
		t.Fatalf("goal completion should carry bonuses: %+v", plan.Earnings)
	}
	if plan.Record.Slot != 3 {
		t.Fatalf("slot got %d", plan.Record.Slot)
	}
	if _, err := sim.complete(now.Add(4 * time.Hour)); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("fourth completion should be rejected, got %v", err)
	}
}

func TestStreakScenario(t *testing.T) {
	sim := newSim(1, FrequencyDaily, EarningsPerCompletion(MicrosPerDollar, 1))
	day1 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	steps := []struct {
		at         time.Time
		wantPay    int64
		wantStreak int
	}{
		{at: day1, wantPay: MicrosPerDollar, wantStreak: 1},
		{at: day1.AddDate(0, 0, 1), wantPay: 1_100_000, wantStreak: 2},
		{at: day1.AddDate(0, 0, 3), wantPay: MicrosPerDollar, wantStreak: 1},
	}
	for i, st := range steps {
		plan, err := sim.complete(st.at)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if plan.Earnings.TotalMicros != st.wantPay || sim.habit.Streak != st.wantStreak {
			t.Fatalf("step %d: pay=%d streak=%d want pay=%d streak=%d", i, plan.Earnings.TotalMicros, sim.habit.Streak, st.wantPay, st.wantStreak)
		}
	}
}

func TestExternalOwnershipScenario(t *testing.T) {
	sim := newSim(1, FrequencyDaily, 10*MicrosPerDollar)
	sim.stock = externalStock(HolderShares{"a", 120}, HolderShares{"b", 80})
	plan, err := sim.complete(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	e := plan.Earnings
	if e.BaseTotalMicros != 10*MicrosPerDollar || e.BoostPercent != 10 || e.StockBoostMicros != MicrosPerDollar || e.TotalMicros != 11*MicrosPerDollar {
		t.Fatalf("unexpected earnings %+v", e)
	}
	if plan.Dividends.PoolMicros != 500_000 || plan.Dividends.TotalMicros() != 500_000 {
		t.Fatalf("unexpected dividend plan %+v", plan.Dividends)
	}
	// 0.05 of the pre-boost total, split 60/40
	for _, l := range plan.Dividends.Lines {
		want := map[string]int64{"a": 300_000, "b": 200_000}[l.HolderID]
		if l.AmountMicros != want {
			t.Fatalf("holder %s got %d want %d", l.HolderID, l.AmountMicros, want)
		}
	}
}
