package game

import (
	"sort"
	"time"

	"habittycoon/internal/clock"
)

// PlanDailyReset returns the daily habits whose stored progress belongs to an
// earlier day. Streaks are left alone; a missed day only shows up as a reset
// on the next goal-completing event.
func PlanDailyReset(habits []HabitBusiness, now time.Time, loc *time.Location) []string {
	var ids []string
	for _, h := range habits {
		if h.Frequency != FrequencyDaily || !h.IsActive || h.CurrentProgress == 0 {
			continue
		}
		if h.LastCompletedAt == nil || !IsSamePeriod(FrequencyDaily, *h.LastCompletedAt, now, loc) {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

type InvalidCleanupPlan struct {
	DeleteIDs      []string
	AffectedHabits []string
}

// PlanInvalidCleanup flags records stamped after the end of the local day.
func PlanInvalidCleanup(records []CompletionRecord, now time.Time, loc *time.Location) InvalidCleanupPlan {
	var plan InvalidCleanupPlan
	end := clock.EndOfDay(now, loc)
	seen := make(map[string]bool)
	for _, r := range records {
		if !r.CompletedAt.After(end) {
			continue
		}
		plan.DeleteIDs = append(plan.DeleteIDs, r.ID)
		if !seen[r.HabitBusinessID] {
			seen[r.HabitBusinessID] = true
			plan.AffectedHabits = append(plan.AffectedHabits, r.HabitBusinessID)
		}
	}
	return plan
}

type DuplicateCleanupPlan struct {
	DeleteIDs  []string
	Kept       int
	TodayCount int
}

// PlanDuplicateCleanup keeps the chronologically first record per local date
// and drops the rest.
func PlanDuplicateCleanup(records []CompletionRecord, now time.Time, loc *time.Location) DuplicateCleanupPlan {
	var plan DuplicateCleanupPlan
	sorted := append([]CompletionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CompletedAt.Equal(sorted[j].CompletedAt) {
			return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
		}
		return sorted[i].Slot < sorted[j].Slot
	})

	today := clock.LocalDateKey(now, loc)
	kept := make(map[string]bool)
	for _, r := range sorted {
		key := clock.LocalDateKey(r.CompletedAt, loc)
		if kept[key] {
			plan.DeleteIDs = append(plan.DeleteIDs, r.ID)
			continue
		}
		kept[key] = true
		plan.Kept++
		if key == today {
			plan.TodayCount++
		}
	}
	return plan
}
