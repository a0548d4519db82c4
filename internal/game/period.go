package game

import (
	"time"

	"habittycoon/internal/clock"
)

// IsSamePeriod reports whether two instants fall into the same accumulation
// window for freq, evaluated in loc.
func IsSamePeriod(freq Frequency, reference, candidate time.Time, loc *time.Location) bool {
	if freq == FrequencyWeekly {
		return WeekStart(reference, loc).Equal(WeekStart(candidate, loc))
	}
	return clock.LocalDateKey(reference, loc) == clock.LocalDateKey(candidate, loc)
}

// WeekStart returns local midnight of the Monday that opens t's week.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := clock.StartOfDay(t, loc)
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

func PeriodStart(freq Frequency, t time.Time, loc *time.Location) time.Time {
	if freq == FrequencyWeekly {
		return WeekStart(t, loc)
	}
	return clock.StartOfDay(t, loc)
}

// IsGoalMetThisPeriod needs both halves: a full counter left over from an
// earlier period that was never reset does not count.
func IsGoalMetThisPeriod(h HabitBusiness, now time.Time, loc *time.Location) bool {
	if h.LastCompletedAt == nil || h.CurrentProgress < h.GoalValue {
		return false
	}
	return IsSamePeriod(h.Frequency, *h.LastCompletedAt, now, loc)
}

// EffectiveProgress is the stored progress after applying the rollover rule.
func EffectiveProgress(h HabitBusiness, now time.Time, loc *time.Location) int {
	if h.LastCompletedAt == nil || !IsSamePeriod(h.Frequency, *h.LastCompletedAt, now, loc) {
		return 0
	}
	switch {
	case h.CurrentProgress < 0:
		return 0
	case h.CurrentProgress > h.GoalValue:
		return h.GoalValue
	}
	return h.CurrentProgress
}
