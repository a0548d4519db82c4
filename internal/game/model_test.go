package game

import (
	"errors"
	"testing"
)

func TestValidateGoalValue(t *testing.T) {
	for _, goal := range []int{1, 2, 50, 99} {
		if err := ValidateGoalValue(goal); err != nil {
			t.Fatalf("expected goal %d to be valid: %v", goal, err)
		}
	}
	for _, goal := range []int{-1, 0, 100, 1000} {
		err := ValidateGoalValue(goal)
		if !errors.Is(err, ErrInvalidGoalValue) {
			t.Fatalf("goal %d: expected ErrInvalidGoalValue, got %v", goal, err)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "daily", want: FrequencyDaily},
		{in: " Weekly ", want: FrequencyWeekly},
		{in: "monthly", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseFrequency(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidFrequency) {
				t.Fatalf("%q: expected ErrInvalidFrequency, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got=%q err=%v want=%q", tc.in, got, err, tc.want)
		}
	}
}

func TestRoundToCents(t *testing.T) {
	tests := []struct {
		in, want int64
	}{
		{in: 1_234_567, want: 1_230_000},
		{in: 1_235_000, want: 1_240_000},
		{in: 1_000_000, want: 1_000_000},
		{in: 4_999, want: 0},
		{in: 5_000, want: 10_000},
	}
	for _, tc := range tests {
		if got := RoundToCents(tc.in); got != tc.want {
			t.Fatalf("in=%d got=%d want=%d", tc.in, got, tc.want)
		}
	}
}

func TestDollarsMicrosRoundTrip(t *testing.T) {
	if got := DollarsToMicros(1.10); got != 1_100_000 {
		t.Fatalf("got %d", got)
	}
	if got := MicrosToDollars(11 * MicrosPerDollar); got != 11 {
		t.Fatalf("got %f", got)
	}
}
