package game

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"habittycoon/internal/clock"

	"github.com/shopspring/decimal"
)

const (
	MicrosPerDollar = int64(1_000_000)
	MicrosPerCent   = MicrosPerDollar / 100

	StarterCashMicros = int64(100) * MicrosPerDollar

	MinGoalValue = 1
	MaxGoalValue = 99

	DefaultTotalShares   = int64(1000)
	DefaultOwnerShares   = int64(800)
	DefaultSharesForSale = DefaultTotalShares - DefaultOwnerShares

	SellRefundRate      = 0.7
	MinSellFeeRate      = 0.02
	DividendPoolRate    = 0.5
	StreakBonusPerDay   = 0.1
	BoostPercentPerStep = 5
	OwnershipStepPct    = 10
)

var (
	ErrNotAuthenticated     = errors.New("user not authenticated")
	ErrHabitNotFound        = errors.New("habit business not found")
	ErrStockNotFound        = errors.New("stock not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrBusinessTypeNotFound = errors.New("business type not found")
	ErrAlreadyCompleted     = errors.New("goal already completed for this period")
	ErrFutureDate           = clock.ErrFutureDate
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidGoalValue     = errors.New("goal value must be between 1 and 99")
	ErrInvalidFrequency     = errors.New("frequency must be daily or weekly")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrStaleProfile         = errors.New("could not load user profile")
	ErrNoCompletionToday    = errors.New("no completion found for today to undo")
	ErrLastBusiness         = errors.New("cannot sell your only active habit business")
	ErrUpgradeUnavailable   = errors.New("upgrade option not available or not affordable")
	ErrSelfTrade            = errors.New("cannot trade shares of your own business")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, retry")
	ErrHabitBusy            = errors.New("another completion for this habit is in progress")
	ErrUnauthorized         = errors.New("unauthorized")
)

func ValidateGoalValue(goal int) error {
	if goal < MinGoalValue || goal > MaxGoalValue {
		return fmt.Errorf("%w: got %d", ErrInvalidGoalValue, goal)
	}
	return nil
}

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	default:
		return "", ErrInvalidFrequency
	}
}

func DollarsToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerDollar)))
}

func MicrosToDollars(v int64) float64 {
	return float64(v) / float64(MicrosPerDollar)
}

func microsDecimal(v int64) decimal.Decimal {
	return decimal.New(v, -6)
}

func decimalMicros(d decimal.Decimal) int64 {
	return d.Shift(6).Round(0).IntPart()
}

// RoundToCents rounds half away from zero, matching round(x, 2).
func RoundToCents(micros int64) int64 {
	return decimal.New(micros, 0).Div(decimal.New(MicrosPerCent, 0)).Round(0).IntPart() * MicrosPerCent
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
