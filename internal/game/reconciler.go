package game

import (
	"context"
	"time"

	"habittycoon/internal/clock"

	"github.com/jackc/pgx/v5"
)

// ResetOutdatedDailyHabits zeroes the progress of daily habits last completed
// on an earlier local day. An empty userID sweeps every user. Streaks are not
// touched. Each reset is guarded on last_completed_at so a completion that
// lands mid-sweep is never wiped.
func (s *Service) ResetOutdatedDailyHabits(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+habitColumns+`, p.timezone
		FROM tycoon.habit_businesses hb
		JOIN tycoon.profiles p ON p.user_id = hb.user_id
		WHERE hb.is_active AND hb.frequency = 'daily' AND hb.current_progress > 0
		  AND ($1 = '' OR hb.user_id::text = $1)
	`, userID)
	if err != nil {
		return nil, err
	}
	type candidate struct {
		habit HabitBusiness
		loc   *time.Location
	}
	var candidates []candidate
	zones := make(map[string]*time.Location)
	for rows.Next() {
		var h HabitBusiness
		var freq, tz string
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.BusinessTypeID, &h.BusinessName, &h.BusinessIcon,
			&h.HabitDescription, &freq, &h.GoalValue, &h.CostMicros,
			&h.EarningsPerCompletionMicros, &h.CurrentProgress, &h.Streak,
			&h.TotalCompletions, &h.TotalEarningsMicros, &h.LastCompletedAt,
			&h.IsActive, &h.CreatedAt, &h.UpdatedAt, &tz,
		); err != nil {
			rows.Close()
			return nil, err
		}
		h.Frequency = Frequency(freq)
		loc, ok := zones[tz]
		if !ok {
			if loc, err = clock.LoadLocation(tz); err != nil {
				loc = s.defaultLoc
			}
			zones[tz] = loc
		}
		candidates = append(candidates, candidate{habit: h, loc: loc})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var reset []string
	for _, c := range candidates {
		if len(PlanDailyReset([]HabitBusiness{c.habit}, now, c.loc)) == 0 {
			continue
		}
		cmd, err := s.db.Exec(ctx, `
			UPDATE tycoon.habit_businesses
			SET current_progress = 0, updated_at = now()
			WHERE id = $1 AND last_completed_at IS NOT DISTINCT FROM $2
		`, c.habit.ID, c.habit.LastCompletedAt)
		if err != nil {
			return reset, err
		}
		if cmd.RowsAffected() == 0 {
			continue
		}
		reset = append(reset, c.habit.ID)
		if _, err := s.RecomputeStockPrice(ctx, c.habit.ID); err != nil {
			s.log.Warn("stock price recompute after reset failed", "habit_id", c.habit.ID, "err", err)
		}
	}
	if len(reset) > 0 {
		s.log.Info("reset outdated daily habits", "count", len(reset), "user_id", userID)
	}
	return reset, nil
}

// CleanupInvalidCompletions deletes records stamped after the end of the
// user's current local day and zeroes progress on the businesses they
// belonged to.
func (s *Service) CleanupInvalidCompletions(ctx context.Context, userID string) (int, error) {
	var deleted int
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		deleted = 0
		loc, err := s.userLocation(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		rows, err := tx.Query(ctx, `
			SELECT `+completionColumns+`
			FROM tycoon.habit_completions
			WHERE user_id = $1 AND completed_at > $2
		`, userID, clock.EndOfDay(now, loc))
		if err != nil {
			return err
		}
		records, err := collectCompletions(rows)
		if err != nil {
			return err
		}
		plan := PlanInvalidCleanup(records, now, loc)
		if len(plan.DeleteIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM tycoon.habit_completions WHERE id = ANY($1::uuid[])
		`, plan.DeleteIDs); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.habit_businesses
			SET current_progress = 0, updated_at = now()
			WHERE id = ANY($1::uuid[])
		`, plan.AffectedHabits); err != nil {
			return err
		}
		deleted = len(plan.DeleteIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Warn("removed future-dated completions", "user_id", userID, "count", deleted)
	}
	return deleted, nil
}

// CleanupDuplicateCompletions keeps one record per local date for a habit and
// sets its progress to what remains for today.
func (s *Service) CleanupDuplicateCompletions(ctx context.Context, userID, habitID string) (DuplicateCleanupPlan, error) {
	var plan DuplicateCleanupPlan
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		loc, err := s.userLocation(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := loadHabit(ctx, tx, userID, habitID, true); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			SELECT `+completionColumns+`
			FROM tycoon.habit_completions
			WHERE habit_business_id = $1
			ORDER BY completed_at, slot
		`, habitID)
		if err != nil {
			return err
		}
		records, err := collectCompletions(rows)
		if err != nil {
			return err
		}
		plan = PlanDuplicateCleanup(records, s.clock.Now(), loc)
		if len(plan.DeleteIDs) > 0 {
			if _, err := tx.Exec(ctx, `
				DELETE FROM tycoon.habit_completions WHERE id = ANY($1::uuid[])
			`, plan.DeleteIDs); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `
			UPDATE tycoon.habit_businesses
			SET current_progress = $1, updated_at = now()
			WHERE id = $2
		`, plan.TodayCount, habitID)
		return err
	})
	return plan, err
}

// ReconcileDashboard runs the dashboard-load repairs: future-dated records
// first, then stale daily progress.
func (s *Service) ReconcileDashboard(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.CleanupInvalidCompletions(ctx, userID); err != nil {
		return nil, err
	}
	return s.ResetOutdatedDailyHabits(ctx, userID)
}

// TodaysActualEarnings sums the ledger of the user's current local day.
func (s *Service) TodaysActualEarnings(ctx context.Context, userID string) (int64, error) {
	loc, err := s.userLocation(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(earnings_micros), 0)
		FROM tycoon.habit_completions
		WHERE user_id = $1 AND local_date = $2::date
	`, userID, clock.LocalDateKey(s.clock.Now(), loc)).Scan(&total)
	return total, err
}

func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	var out Dashboard
	reset, err := s.ReconcileDashboard(ctx, userID)
	if err != nil {
		s.log.Warn("dashboard reconcile failed", "user_id", userID, "err", err)
	}
	out.ResetHabitIDs = reset

	if out.Profile, err = s.Profile(ctx, userID); err != nil {
		return out, err
	}
	if out.Businesses, err = s.ListHabitBusinesses(ctx, userID); err != nil {
		return out, err
	}
	if out.Holdings, err = s.Holdings(ctx, userID); err != nil {
		return out, err
	}
	if out.TodaysEarningsMicros, err = s.TodaysActualEarnings(ctx, userID); err != nil {
		return out, err
	}
	if out.TodaysDividendsMicros, err = s.TodaysStockDividends(ctx, userID); err != nil {
		return out, err
	}
	return out, nil
}
