package game

import (
	"reflect"
	"testing"
	"time"
)

func TestPlanDailyReset(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	yesterday := now.Add(-20 * time.Hour)
	earlier := now.Add(-time.Hour)

	habits := []HabitBusiness{
		{ID: "stale", Frequency: FrequencyDaily, CurrentProgress: 1, LastCompletedAt: &yesterday, IsActive: true},
		{ID: "fresh", Frequency: FrequencyDaily, CurrentProgress: 1, LastCompletedAt: &earlier, IsActive: true},
		{ID: "weekly", Frequency: FrequencyWeekly, CurrentProgress: 1, LastCompletedAt: &yesterday, IsActive: true},
		{ID: "already-zero", Frequency: FrequencyDaily, CurrentProgress: 0, LastCompletedAt: &yesterday, IsActive: true},
		{ID: "orphan-progress", Frequency: FrequencyDaily, CurrentProgress: 2, IsActive: true},
		{ID: "sold", Frequency: FrequencyDaily, CurrentProgress: 1, LastCompletedAt: &yesterday},
	}
	got := PlanDailyReset(habits, now, time.UTC)
	want := []string{"stale", "orphan-progress"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPlanInvalidCleanup(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	records := []CompletionRecord{
		{ID: "ok", HabitBusinessID: "h1", CompletedAt: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)},
		{ID: "future-1", HabitBusinessID: "h1", CompletedAt: time.Date(2025, 3, 6, 12, 0, 0, 0, time.UTC)},
		{ID: "future-2", HabitBusinessID: "h1", CompletedAt: time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)},
		{ID: "future-3", HabitBusinessID: "h2", CompletedAt: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)},
	}
	plan := PlanInvalidCleanup(records, now, time.UTC)
	if !reflect.DeepEqual(plan.DeleteIDs, []string{"future-1", "future-2", "future-3"}) {
		t.Fatalf("delete ids %v", plan.DeleteIDs)
	}
	if !reflect.DeepEqual(plan.AffectedHabits, []string{"h1", "h2"}) {
		t.Fatalf("affected %v", plan.AffectedHabits)
	}
}

func TestPlanDuplicateCleanup(t *testing.T) {
	now := time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)
	noon := func(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC) }
	records := []CompletionRecord{
		{ID: "r5", CompletedAt: noon(5), Slot: 3},
		{ID: "r1", CompletedAt: noon(4), Slot: 1},
		{ID: "r3", CompletedAt: noon(5), Slot: 1},
		{ID: "r2", CompletedAt: noon(4), Slot: 2},
		{ID: "r4", CompletedAt: noon(5), Slot: 2},
	}
	plan := PlanDuplicateCleanup(records, now, time.UTC)
	if !reflect.DeepEqual(plan.DeleteIDs, []string{"r2", "r4", "r5"}) {
		t.Fatalf("delete ids %v", plan.DeleteIDs)
	}
	if plan.Kept != 2 || plan.TodayCount != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}
