package game

import (
	"testing"
	"time"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}

func TestIsSamePeriodDaily(t *testing.T) {
	a := ts(t, "2025-03-05T00:30:00Z")
	b := ts(t, "2025-03-05T23:30:00Z")
	c := ts(t, "2025-03-06T00:00:00Z")
	if !IsSamePeriod(FrequencyDaily, a, b, time.UTC) {
		t.Fatalf("same calendar day must be same period")
	}
	if IsSamePeriod(FrequencyDaily, b, c, time.UTC) {
		t.Fatalf("midnight must start a new daily period")
	}
}

func TestIsSamePeriodWeeklyCrossesOnMonday(t *testing.T) {
	sunday := ts(t, "2025-03-09T20:00:00Z")
	monday := ts(t, "2025-03-10T08:00:00Z")
	nextSunday := ts(t, "2025-03-16T23:00:00Z")
	if IsSamePeriod(FrequencyWeekly, sunday, monday, time.UTC) {
		t.Fatalf("sunday and the following monday are different weeks")
	}
	if !IsSamePeriod(FrequencyWeekly, monday, nextSunday, time.UTC) {
		t.Fatalf("monday through sunday is one week")
	}
}

func TestWeekStartUsesLocalCalendar(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone unavailable: %v", err)
	}
	// Monday 02:00 UTC is still Sunday evening in New York.
	instant := ts(t, "2025-03-10T02:00:00Z")
	if got := WeekStart(instant, time.UTC).Format("2006-01-02"); got != "2025-03-10" {
		t.Fatalf("utc week start got %s", got)
	}
	got := WeekStart(instant, ny)
	if got.Format("2006-01-02") != "2025-03-03" || got.Hour() != 0 {
		t.Fatalf("new york week start got %v", got)
	}
	if PeriodStart(FrequencyDaily, instant, ny).Format("2006-01-02") != "2025-03-09" {
		t.Fatalf("daily period start should be the local day")
	}
}

func TestIsGoalMetThisPeriodRequiresCurrentPeriod(t *testing.T) {
	now := ts(t, "2025-03-05T10:00:00Z")
	yesterday := now.Add(-24 * time.Hour)
	earlier := now.Add(-2 * time.Hour)

	tests := []struct {
		name     string
		progress int
		last     *time.Time
		want     bool
	}{
		{name: "never completed", progress: 0, last: nil, want: false},
		{name: "stale full counter", progress: 1, last: &yesterday, want: false},
		{name: "met today", progress: 1, last: &earlier, want: true},
		{name: "partial today", progress: 0, last: &earlier, want: false},
	}
	for _, tc := range tests {
		h := HabitBusiness{Frequency: FrequencyDaily, GoalValue: 1, CurrentProgress: tc.progress, LastCompletedAt: tc.last}
		if got := IsGoalMetThisPeriod(h, now, time.UTC); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestEffectiveProgress(t *testing.T) {
	now := ts(t, "2025-03-05T10:00:00Z")
	yesterday := now.Add(-24 * time.Hour)
	earlier := now.Add(-time.Hour)
	h := HabitBusiness{Frequency: FrequencyDaily, GoalValue: 3, CurrentProgress: 2, LastCompletedAt: &yesterday}
	if got := EffectiveProgress(h, now, time.UTC); got != 0 {
		t.Fatalf("rolled over progress should be 0, got %d", got)
	}
	h.LastCompletedAt = &earlier
	if got := EffectiveProgress(h, now, time.UTC); got != 2 {
		t.Fatalf("got %d want 2", got)
	}
	h.CurrentProgress = 7
	if got := EffectiveProgress(h, now, time.UTC); got != 3 {
		t.Fatalf("progress must be clamped to goal, got %d", got)
	}
}
