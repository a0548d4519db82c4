package game

import (
	"testing"
	"time"
)

func collectHistory(t *testing.T, records []CompletionRecord, days int, now time.Time) []HistoryDay {
	t.Helper()
	var out []HistoryDay
	for d := range CompletionHistory(records, 0, days, now, time.UTC) {
		out = append(out, d)
	}
	return out
}

func TestCompletionHistoryTrailingWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	records := []CompletionRecord{
		{LocalDate: "2025-03-04", StreakCount: 2},
		{LocalDate: "2025-03-10", StreakCount: 3},
		{CompletedAt: time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC), StreakCount: 1},
	}
	got := collectHistory(t, records, 7, now)
	if len(got) != 8 {
		t.Fatalf("expected 8 days, got %d", len(got))
	}
	if got[0].Date != "2025-03-03" || got[7].Date != "2025-03-10" {
		t.Fatalf("range %s..%s", got[0].Date, got[7].Date)
	}
	want := map[string]int{"2025-03-04": 2, "2025-03-08": 1, "2025-03-10": 3}
	for _, d := range got {
		streak, ok := want[d.Date]
		if d.Completed != ok || d.StreakDay != streak {
			t.Fatalf("day %s: got %+v", d.Date, d)
		}
	}
}

func TestCompletionHistoryCalendarYear(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	got := collectHistory(t, nil, FullYearDays, now)
	if len(got) != 365 {
		t.Fatalf("expected 365 days in 2025, got %d", len(got))
	}
	if got[0].Date != "2025-01-01" || got[len(got)-1].Date != "2025-12-31" {
		t.Fatalf("range %s..%s", got[0].Date, got[len(got)-1].Date)
	}

	leap := collectHistory(t, nil, FullYearDays, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if len(leap) != 366 {
		t.Fatalf("expected 366 days in 2024, got %d", len(leap))
	}
}

func TestCompletionHistoryIsRestartable(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	seq := CompletionHistory([]CompletionRecord{{LocalDate: "2025-03-09", StreakCount: 1}}, 0, 3, now, time.UTC)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 4 || b != 4 {
		t.Fatalf("sequence not restartable: %d then %d", a, b)
	}

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("early break not honoured")
	}
}

func TestCompletionHistoryUsesFirstRecordOfDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	records := []CompletionRecord{
		{LocalDate: "2025-03-09", Slot: 2, StreakCount: 5},
		{LocalDate: "2025-03-09", Slot: 1, StreakCount: 4},
		{LocalDate: "2025-03-10", Slot: 1},
	}
	var got []HistoryDay
	for d := range CompletionHistory(records, 6, 1, now, time.UTC) {
		got = append(got, d)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	if got[0].StreakDay != 4 {
		t.Fatalf("first record of the day should win, got %+v", got[0])
	}
	if got[1].StreakDay != 7 {
		t.Fatalf("missing streak should fall back to current+1, got %+v", got[1])
	}
}
