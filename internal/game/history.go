package game

import (
	"iter"
	"time"

	"habittycoon/internal/clock"
)

// FullYearDays switches history to the current calendar year.
const FullYearDays = 365

const DefaultHistoryDays = 30

// HistoryRange returns the first and last local day covered by a history
// request. Both ends are inclusive.
func HistoryRange(days int, now time.Time, loc *time.Location) (time.Time, time.Time) {
	today := clock.StartOfDay(now, loc)
	if days == FullYearDays {
		y := today.Year()
		return time.Date(y, time.January, 1, 0, 0, 0, 0, today.Location()),
			time.Date(y, time.December, 31, 0, 0, 0, 0, today.Location())
	}
	if days < 0 {
		days = DefaultHistoryDays
	}
	return today.AddDate(0, 0, -days), today
}

// CompletionHistory yields one entry per local day in the range. A day's
// streak comes from its first completion, or currentStreak+1 when that
// record carries none. The sequence can be ranged over any number of times.
func CompletionHistory(records []CompletionRecord, currentStreak, days int, now time.Time, loc *time.Location) iter.Seq[HistoryDay] {
	first := make(map[string]CompletionRecord, len(records))
	for _, r := range records {
		key := recordDateKey(r, loc)
		if cur, ok := first[key]; !ok || r.Slot < cur.Slot {
			first[key] = r
		}
	}
	streaks := make(map[string]int, len(first))
	for key, r := range first {
		streak := r.StreakCount
		if streak == 0 {
			streak = currentStreak + 1
		}
		streaks[key] = streak
	}
	start, end := HistoryRange(days, now, loc)

	return func(yield func(HistoryDay) bool) {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			key := clock.LocalDateKey(d, loc)
			streak, ok := streaks[key]
			if !yield(HistoryDay{Date: key, Completed: ok, StreakDay: streak}) {
				return
			}
		}
	}
}
