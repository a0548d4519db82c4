// Package clock turns instants into local calendar days.
//
// Day keys are always built from the local year/month/day components. Converting to UTC
// first shifts the day near midnight for any non-UTC zone.
package clock

import (
	"errors"
	"fmt"
	"time"
)

const DateKeyLayout = "2006-01-02"

var ErrFutureDate = errors.New("cannot complete habits for future dates, check the device date and time")

type FutureDateError struct {
	LocalKey string
	UTCKey   string
	Days     int
}

func (e *FutureDateError) Error() string {
	return fmt.Sprintf("%s (local %s is %d days ahead of utc %s)", ErrFutureDate.Error(), e.LocalKey, e.Days, e.UTCKey)
}

func (e *FutureDateError) Unwrap() error {
	return ErrFutureDate
}

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always reports the same instant. Used by tests and replays.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

func LocalDateKey(t time.Time, loc *time.Location) string {
	y, m, d := t.In(orUTC(loc)).Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, orUTC(loc))
}

// ValidateNotFuture fails when the local date of now is more than one calendar day
// ahead of its UTC date. One day is a normal timezone artifact.
func ValidateNotFuture(now time.Time, loc *time.Location) error {
	return ValidateNotFutureAgainst(now, now, loc)
}

// ValidateNotFutureAgainst applies the same rule to a candidate instant, usually a
// client clock reading, against the reference instant of the server.
func ValidateNotFutureAgainst(candidate, reference time.Time, loc *time.Location) error {
	localKey := LocalDateKey(candidate, loc)
	utcKey := LocalDateKey(reference, time.UTC)
	if localKey <= utcKey {
		return nil
	}
	days := DaysBetweenKeys(utcKey, localKey)
	if days > 1 {
		return &FutureDateError{LocalKey: localKey, UTCKey: utcKey, Days: days}
	}
	return nil
}

// DaysBetweenKeys counts calendar days from a to b. Malformed keys count as zero.
func DaysBetweenKeys(a, b string) int {
	ta, err := time.Parse(DateKeyLayout, a)
	if err != nil {
		return 0
	}
	tb, err := time.Parse(DateKeyLayout, b)
	if err != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(orUTC(loc))
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, local.Location())
}

// EndOfDay is the last nanosecond of the local day containing t.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(orUTC(loc))
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, local.Location()).Add(-time.Nanosecond)
}

// LocalNoon pins a completion to 12:00 on its local day so later UTC storage and
// re-reads land on the same date key.
func LocalNoon(t time.Time, loc *time.Location) time.Time {
	local := t.In(orUTC(loc))
	y, m, d := local.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, local.Location())
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
