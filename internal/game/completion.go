package game

import (
	"context"
	"iter"

	"habittycoon/internal/clock"
	"habittycoon/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// undoWindow bounds how many ledger rows undo looks at: every record of today
// plus the newest earlier one.
const undoWindow = MaxGoalValue + 2

// CompleteHabit appends one completion to the ledger and applies its effects
// to the business, the owner's cash and the pending dividend plan in a single
// transaction. Price recompute and dividend settlement run afterwards and only
// log on failure.
func (s *Service) CompleteHabit(ctx context.Context, in CompleteHabitInput) (CompleteResult, error) {
	var out CompleteResult
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	release, err := s.acquireHabit(ctx, in.HabitID)
	if err != nil {
		return out, err
	}
	defer release()

	var plan CompletionPlan
	var paymentID string
	err = s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		paymentID = ""
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "complete"); err != nil {
			return err
		}
		loc, err := s.userLocation(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		habit, err := loadHabit(ctx, tx, in.UserID, in.HabitID, true)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		todayKey := clock.LocalDateKey(now, loc)
		periodKey := clock.LocalDateKey(PeriodStart(habit.Frequency, now, loc), loc)

		today, err := completionsBetween(ctx, tx, habit.ID, todayKey, todayKey)
		if err != nil {
			return err
		}
		periodCount, err := countCompletionsBetween(ctx, tx, habit.ID, periodKey, todayKey)
		if err != nil {
			return err
		}
		stock, err := loadStockState(ctx, tx, habit.ID)
		if err != nil {
			return err
		}

		plan, err = PlanCompletion(CompletionInput{
			Habit:       habit,
			Now:         now,
			ClientTime:  in.ClientTime,
			Location:    loc,
			Today:       today,
			PeriodCount: periodCount,
			Stock:       stock,
		})
		if err != nil {
			return err
		}
		plan.Record.ID = uuid.NewString()

		_, err = tx.Exec(ctx, `
			INSERT INTO tycoon.habit_completions
				(id, habit_business_id, user_id, earnings_micros, streak_count, completed_at,
				 local_date, slot, is_goal_completing, attempt_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10)
		`, plan.Record.ID, habit.ID, in.UserID, plan.Record.EarningsMicros, plan.Record.StreakCount,
			plan.Record.CompletedAt.UTC(), plan.Record.LocalDate, plan.Record.Slot, plan.GoalCompleting, uuid.NewString())
		if isUniqueViolation(err) {
			return ErrAlreadyCompleted
		}
		if err != nil {
			return err
		}

		earned := plan.Earnings.TotalMicros
		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.habit_businesses
			SET current_progress = $1,
			    streak = $2,
			    total_completions = total_completions + 1,
			    total_earnings_micros = total_earnings_micros + $3,
			    last_completed_at = $4,
			    updated_at = now()
			WHERE id = $5
		`, plan.NextProgress, plan.NextStreak, earned, plan.LastCompletedAt.UTC(), habit.ID); err != nil {
			return err
		}

		cash, err := creditTx(ctx, tx, in.UserID, earned, earned)
		if err != nil {
			return err
		}

		if !plan.Dividends.Empty() {
			paymentID = uuid.NewString()
			if err := persistDividendPlan(ctx, tx, paymentID, plan.Record.ID, in.UserID, plan.Dividends); err != nil {
				return err
			}
		}

		out = CompleteResult{
			Completion:         plan.Record,
			CurrentProgress:    plan.NextProgress,
			GoalValue:          habit.GoalValue,
			GoalCompleted:      plan.GoalCompleting,
			Streak:             plan.NextStreak,
			Earnings:           plan.Earnings,
			DividendPaymentID:  paymentID,
			DividendPoolMicros: plan.Dividends.TotalMicros(),
			CashMicros:         cash,
		}
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}

	if plan.GoalCompleting {
		if _, err := s.RecomputeStockPrice(ctx, in.HabitID); err != nil {
			s.log.Warn("stock price recompute failed", "habit_id", in.HabitID, "err", err)
		}
	}
	if paymentID != "" {
		if _, err := s.SettleDividendPayment(ctx, paymentID); err != nil {
			s.log.Error("dividend settlement failed, left pending", "payment_id", paymentID, "habit_id", in.HabitID, "err", err)
		}
	}
	s.publish(ctx, events.HabitCompleted, map[string]any{
		"user_id":         in.UserID,
		"habit_id":        in.HabitID,
		"completion_id":   out.Completion.ID,
		"local_date":      out.Completion.LocalDate,
		"goal_completed":  out.GoalCompleted,
		"streak":          out.Streak,
		"earnings_micros": out.Earnings.TotalMicros,
	})
	return out, nil
}

// UndoHabitCompletion removes today's newest completion. Dividends already
// paid out for it are not reclaimed.
func (s *Service) UndoHabitCompletion(ctx context.Context, in UndoHabitInput) (UndoResult, error) {
	var out UndoResult
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	release, err := s.acquireHabit(ctx, in.HabitID)
	if err != nil {
		return out, err
	}
	defer release()

	var plan UndoPlan
	err = s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "undo"); err != nil {
			return err
		}
		loc, err := s.userLocation(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		habit, err := loadHabit(ctx, tx, in.UserID, in.HabitID, true)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		todayKey := clock.LocalDateKey(now, loc)
		periodKey := clock.LocalDateKey(PeriodStart(habit.Frequency, now, loc), loc)

		recent, err := recentCompletions(ctx, tx, habit.ID, todayKey, undoWindow)
		if err != nil {
			return err
		}
		periodCount, err := countCompletionsBetween(ctx, tx, habit.ID, periodKey, todayKey)
		if err != nil {
			return err
		}
		cash, netWorth, err := lockCashTx(ctx, tx, in.UserID)
		if err != nil {
			return err
		}

		plan, err = PlanUndo(UndoInput{
			Habit:          habit,
			Now:            now,
			Location:       loc,
			Recent:         recent,
			PeriodCount:    periodCount,
			CashMicros:     cash,
			NetWorthMicros: netWorth,
		})
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM tycoon.habit_completions WHERE id = $1`, plan.Removed.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.habit_businesses
			SET current_progress = $1,
			    streak = $2,
			    total_completions = $3,
			    total_earnings_micros = $4,
			    last_completed_at = $5,
			    updated_at = now()
			WHERE id = $6
		`, plan.NextProgress, plan.NextStreak, plan.TotalCompletions, plan.TotalEarningsMicros,
			plan.LastCompletedAt, habit.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.profiles
			SET cash_micros = $1, net_worth_micros = $2, updated_at = now()
			WHERE user_id = $3
		`, plan.CashMicros, plan.NetWorthMicros, in.UserID); err != nil {
			return err
		}

		out = UndoResult{
			RemovedCompletionID: plan.Removed.ID,
			CurrentProgress:     plan.NextProgress,
			Streak:              plan.NextStreak,
			RefundedMicros:      cash - plan.CashMicros,
			CashMicros:          plan.CashMicros,
		}
		return nil
	})
	if err != nil {
		return UndoResult{}, err
	}

	if plan.Removed.GoalCompleting {
		if _, err := s.RecomputeStockPrice(ctx, in.HabitID); err != nil {
			s.log.Warn("stock price recompute failed", "habit_id", in.HabitID, "err", err)
		}
	}
	s.publish(ctx, events.HabitUndone, map[string]any{
		"user_id":       in.UserID,
		"habit_id":      in.HabitID,
		"completion_id": out.RemovedCompletionID,
		"streak":        out.Streak,
	})
	return out, nil
}

// CompletionHistory returns a dense per-day view of one habit's ledger.
func (s *Service) CompletionHistory(ctx context.Context, userID, habitID string, days int) (iter.Seq[HistoryDay], error) {
	loc, err := s.userLocation(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	habit, err := loadHabit(ctx, s.db, userID, habitID, false)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	from, to := HistoryRange(days, now, loc)
	records, err := completionsBetween(ctx, s.db, habitID, clock.LocalDateKey(from, loc), clock.LocalDateKey(to, loc))
	if err != nil {
		return nil, err
	}
	return CompletionHistory(records, habit.Streak, days, now, loc), nil
}
