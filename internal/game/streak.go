package game

import "time"

const day = 24 * time.Hour

// NextStreak is only meaningful for a goal-completing event. Partial
// completions never touch the streak.
func NextStreak(h HabitBusiness, now time.Time) int {
	if h.LastCompletedAt == nil {
		return 1
	}
	delta := wholeDays(now.Sub(*h.LastCompletedAt))

	if h.Frequency == FrequencyWeekly {
		switch {
		case delta >= 7 && delta < 14:
			return h.Streak + 1
		case delta >= 14:
			return 1
		}
		return h.Streak + 1
	}

	switch {
	case delta == 1:
		return h.Streak + 1
	case delta > 1:
		return 1
	}
	// same-day retrigger; the period check normally stops this earlier
	return h.Streak + 1
}

func wholeDays(d time.Duration) int {
	n := d / day
	if d < 0 && d%day != 0 {
		n--
	}
	return int(n)
}
