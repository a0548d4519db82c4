package game

import (
	"context"
	"fmt"
	"strings"

	"habittycoon/internal/clock"
	"habittycoon/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxBusinessNameLen = 48

func (s *Service) ListBusinessTypes(ctx context.Context) ([]BusinessType, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, icon, description, base_cost_micros, base_pay_micros
		FROM tycoon.business_types
		ORDER BY base_cost_micros, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BusinessType
	for rows.Next() {
		var bt BusinessType
		if err := rows.Scan(&bt.ID, &bt.Name, &bt.Icon, &bt.Description, &bt.BaseCostMicros, &bt.BasePayMicros); err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}

func (s *Service) ListHabitBusinesses(ctx context.Context, userID string) ([]HabitBusiness, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+habitColumns+`
		FROM tycoon.habit_businesses hb
		WHERE hb.user_id = $1 AND hb.is_active
		ORDER BY hb.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectHabits(rows)
}

// TodaysHabits is the checklist view: every active business with its progress
// as of the user's current period.
func (s *Service) TodaysHabits(ctx context.Context, userID string) ([]TodayHabit, error) {
	loc, err := s.userLocation(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	habits, err := s.ListHabitBusinesses(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	todayKey := clock.LocalDateKey(now, loc)

	rows, err := s.db.Query(ctx, `
		SELECT habit_business_id::text, COUNT(1)
		FROM tycoon.habit_completions
		WHERE user_id = $1 AND local_date = $2::date
		GROUP BY habit_business_id
	`, userID, todayKey)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			rows.Close()
			return nil, err
		}
		counts[id] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TodayHabit, 0, len(habits))
	for _, h := range habits {
		out = append(out, TodayHabit{
			HabitBusiness:     h,
			EffectiveProgress: EffectiveProgress(h, now, loc),
			CompletedToday:    counts[h.ID],
			GoalMet:           IsGoalMetThisPeriod(h, now, loc),
		})
	}
	return out, nil
}

func validateBusinessName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("business name is required")
	}
	if len([]rune(name)) > maxBusinessNameLen {
		return "", fmt.Errorf("business name must be at most %d characters", maxBusinessNameLen)
	}
	return name, nil
}

// insertHabitTx creates a business and its stock.
func insertHabitTx(ctx context.Context, tx pgx.Tx, userID string, bt BusinessType, name, description string, freq Frequency, goal int) (HabitBusiness, error) {
	id := uuid.NewString()
	h, err := scanHabit(tx.QueryRow(ctx, `
		INSERT INTO tycoon.habit_businesses AS hb
			(id, user_id, business_type_id, business_name, business_icon, habit_description,
			 frequency, goal_value, cost_micros, earnings_per_completion_micros)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+habitColumns,
		id, userID, bt.ID, name, bt.Icon, description, string(freq), goal,
		bt.BaseCostMicros, EarningsPerCompletion(bt.BasePayMicros, goal)))
	if err != nil {
		return h, err
	}
	if err := createStockTx(ctx, tx, id, userID, bt.BaseCostMicros); err != nil {
		return h, err
	}
	return h, nil
}

func (s *Service) CreateHabitBusiness(ctx context.Context, in CreateHabitInput) (HabitBusiness, error) {
	var out HabitBusiness
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	if err := ValidateGoalValue(in.GoalValue); err != nil {
		return out, err
	}
	freq, err := ParseFrequency(in.Frequency)
	if err != nil {
		return out, err
	}
	name, err := validateBusinessName(in.BusinessName)
	if err != nil {
		return out, err
	}
	description := strings.TrimSpace(in.HabitDescription)

	err = s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "create_business"); err != nil {
			return err
		}
		bt, err := loadBusinessType(ctx, tx, in.BusinessTypeID)
		if err != nil {
			return err
		}
		cash, _, err := lockCashTx(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if cash < bt.BaseCostMicros {
			return fmt.Errorf("%w: %s costs %.2f, have %.2f", ErrInsufficientFunds, bt.Name,
				MicrosToDollars(bt.BaseCostMicros), MicrosToDollars(cash))
		}
		if _, err := creditTx(ctx, tx, in.UserID, -bt.BaseCostMicros, 0); err != nil {
			return err
		}
		out, err = insertHabitTx(ctx, tx, in.UserID, bt, name, description, freq, in.GoalValue)
		return err
	})
	if err != nil {
		return HabitBusiness{}, err
	}
	s.publish(ctx, events.BusinessCreated, map[string]any{
		"user_id":          in.UserID,
		"habit_id":         out.ID,
		"business_type_id": out.BusinessTypeID,
		"cost_micros":      out.CostMicros,
	})
	return out, nil
}

// UpdateHabitBusiness edits the habit definition. A goal change reprices each
// completion and clamps progress to the new goal.
func (s *Service) UpdateHabitBusiness(ctx context.Context, in UpdateHabitInput) (HabitBusiness, error) {
	var out HabitBusiness
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		h, err := loadHabit(ctx, tx, in.UserID, in.HabitID, true)
		if err != nil {
			return err
		}
		if in.BusinessName != nil {
			if h.BusinessName, err = validateBusinessName(*in.BusinessName); err != nil {
				return err
			}
		}
		if in.HabitDescription != nil {
			h.HabitDescription = strings.TrimSpace(*in.HabitDescription)
		}
		if in.Frequency != nil {
			if h.Frequency, err = ParseFrequency(*in.Frequency); err != nil {
				return err
			}
		}
		if in.GoalValue != nil && *in.GoalValue != h.GoalValue {
			if err := ValidateGoalValue(*in.GoalValue); err != nil {
				return err
			}
			bt, err := loadBusinessType(ctx, tx, h.BusinessTypeID)
			if err != nil {
				return err
			}
			h.GoalValue = *in.GoalValue
			h.EarningsPerCompletionMicros = EarningsPerCompletion(bt.BasePayMicros, h.GoalValue)
			if h.CurrentProgress > h.GoalValue {
				h.CurrentProgress = h.GoalValue
			}
		}

		out, err = scanHabit(tx.QueryRow(ctx, `
			UPDATE tycoon.habit_businesses AS hb
			SET business_name = $1, habit_description = $2, frequency = $3, goal_value = $4,
			    earnings_per_completion_micros = $5, current_progress = $6, updated_at = now()
			WHERE hb.id = $7
			RETURNING `+habitColumns,
			h.BusinessName, h.HabitDescription, string(h.Frequency), h.GoalValue,
			h.EarningsPerCompletionMicros, h.CurrentProgress, h.ID))
		return err
	})
	if err != nil {
		return HabitBusiness{}, err
	}
	return out, nil
}

func countActiveBusinessesTx(ctx context.Context, tx pgx.Tx, userID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(1) FROM tycoon.habit_businesses WHERE user_id = $1 AND is_active
	`, userID).Scan(&n)
	return n, err
}

func deactivateHabitTx(ctx context.Context, tx pgx.Tx, habitID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE tycoon.habit_businesses SET is_active = false, updated_at = now() WHERE id = $1
	`, habitID)
	return err
}

// DeleteHabitBusiness sells a business back for 70% of its cost and closes
// its stock. The last active business cannot be sold.
func (s *Service) DeleteHabitBusiness(ctx context.Context, userID, habitID, idempotencyKey string) (SellBusinessResult, error) {
	var out SellBusinessResult
	if userID == "" {
		return out, ErrNotAuthenticated
	}
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, userID, idempotencyKey, "sell_business"); err != nil {
			return err
		}
		h, err := loadHabit(ctx, tx, userID, habitID, true)
		if err != nil {
			return err
		}
		active, err := countActiveBusinessesTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if active <= 1 {
			return ErrLastBusiness
		}

		refund := SellRefund(h.CostMicros)
		if err := deactivateHabitTx(ctx, tx, h.ID); err != nil {
			return err
		}
		holders, refunded, err := liquidateStockTx(ctx, tx, h.ID)
		if err != nil {
			return err
		}
		cash, err := creditTx(ctx, tx, userID, refund, 0)
		if err != nil {
			return err
		}
		out = SellBusinessResult{
			Success:         true,
			SellValueMicros: refund,
			HoldersRefunded: holders,
			RefundedMicros:  refunded,
			CashMicros:      cash,
		}
		return nil
	})
	if err != nil {
		return SellBusinessResult{}, err
	}
	s.publish(ctx, events.BusinessSold, map[string]any{
		"user_id":           userID,
		"habit_id":          habitID,
		"sell_value_micros": out.SellValueMicros,
		"holders_refunded":  out.HoldersRefunded,
	})
	return out, nil
}

func (s *Service) CalculateUpgradeOptions(ctx context.Context, userID, habitID string) (UpgradeCalculation, error) {
	h, err := loadHabit(ctx, s.db, userID, habitID, false)
	if err != nil {
		return UpgradeCalculation{}, err
	}
	current, err := loadBusinessType(ctx, s.db, h.BusinessTypeID)
	if err != nil {
		return UpgradeCalculation{}, err
	}
	catalog, err := s.ListBusinessTypes(ctx)
	if err != nil {
		return UpgradeCalculation{}, err
	}
	return CalculateUpgradeOptions(h, current.BaseCostMicros, catalog), nil
}

// UpgradeBusiness trades the streak value of a business for a higher tier.
// The new business keeps the habit definition and starts a fresh streak; any
// value above the new tier's cost is paid out as cash.
func (s *Service) UpgradeBusiness(ctx context.Context, in UpgradeInput) (UpgradeResult, error) {
	var out UpgradeResult
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "upgrade"); err != nil {
			return err
		}
		old, err := loadHabit(ctx, tx, in.UserID, in.HabitID, true)
		if err != nil {
			return err
		}
		current, err := loadBusinessType(ctx, tx, old.BusinessTypeID)
		if err != nil {
			return err
		}
		target, err := loadBusinessType(ctx, tx, in.NewBusinessTypeID)
		if err != nil {
			return err
		}
		calc := CalculateUpgradeOptions(old, current.BaseCostMicros, []BusinessType{target})
		opt, err := calc.FindUpgrade(target.ID)
		if err != nil {
			return err
		}

		name := strings.TrimSpace(in.NewBusinessName)
		if name == "" {
			name = target.Name
		}
		if name, err = validateBusinessName(name); err != nil {
			return err
		}
		description := strings.TrimSpace(in.NewDescription)
		if description == "" {
			description = old.HabitDescription
		}

		if err := deactivateHabitTx(ctx, tx, old.ID); err != nil {
			return err
		}
		if _, _, err := liquidateStockTx(ctx, tx, old.ID); err != nil {
			return err
		}
		created, err := insertHabitTx(ctx, tx, in.UserID, target, name, description, old.Frequency, old.GoalValue)
		if err != nil {
			return err
		}

		profit := opt.ProfitMicros
		if profit < 0 {
			profit = 0
		}
		cash, err := creditTx(ctx, tx, in.UserID, profit, profit)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO tycoon.business_upgrades
				(id, user_id, old_habit_business_id, new_habit_business_id, old_business_type_id,
				 new_business_type_id, streak_value_sold_micros, upgrade_cost_micros,
				 profit_from_upgrade_micros, old_streak_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, uuid.NewString(), in.UserID, old.ID, created.ID, old.BusinessTypeID, target.ID,
			calc.TotalStreakValueMicros, opt.UpgradeCostMicros, profit, old.Streak); err != nil {
			return err
		}
		out = UpgradeResult{NewBusiness: created, ProfitMicros: profit, CashMicros: cash}
		return nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}
	s.publish(ctx, events.BusinessUpgraded, map[string]any{
		"user_id":       in.UserID,
		"old_habit_id":  in.HabitID,
		"new_habit_id":  out.NewBusiness.ID,
		"profit_micros": out.ProfitMicros,
	})
	return out, nil
}
