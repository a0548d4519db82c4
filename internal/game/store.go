package game

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const habitColumns = `
	hb.id::text, hb.user_id::text, hb.business_type_id, hb.business_name, hb.business_icon,
	hb.habit_description, hb.frequency, hb.goal_value, hb.cost_micros,
	hb.earnings_per_completion_micros, hb.current_progress, hb.streak,
	hb.total_completions, hb.total_earnings_micros, hb.last_completed_at,
	hb.is_active, hb.created_at, hb.updated_at`

func scanHabit(row pgx.Row) (HabitBusiness, error) {
	var h HabitBusiness
	var freq string
	err := row.Scan(
		&h.ID, &h.UserID, &h.BusinessTypeID, &h.BusinessName, &h.BusinessIcon,
		&h.HabitDescription, &freq, &h.GoalValue, &h.CostMicros,
		&h.EarningsPerCompletionMicros, &h.CurrentProgress, &h.Streak,
		&h.TotalCompletions, &h.TotalEarningsMicros, &h.LastCompletedAt,
		&h.IsActive, &h.CreatedAt, &h.UpdatedAt,
	)
	h.Frequency = Frequency(freq)
	return h, err
}

func collectHabits(rows pgx.Rows) ([]HabitBusiness, error) {
	defer rows.Close()
	var out []HabitBusiness
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// loadHabit fetches an active business owned by userID. forUpdate locks the row
// for the rest of the transaction.
func loadHabit(ctx context.Context, q dbtx, userID, habitID string, forUpdate bool) (HabitBusiness, error) {
	sql := `SELECT ` + habitColumns + `
		FROM tycoon.habit_businesses hb
		WHERE hb.id = $1 AND hb.user_id = $2 AND hb.is_active`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	h, err := scanHabit(q.QueryRow(ctx, sql, habitID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return h, ErrHabitNotFound
	}
	return h, err
}

const completionColumns = `
	id::text, habit_business_id::text, user_id::text, earnings_micros, streak_count,
	completed_at, to_char(local_date, 'YYYY-MM-DD'), slot, is_goal_completing`

func collectCompletions(rows pgx.Rows) ([]CompletionRecord, error) {
	defer rows.Close()
	var out []CompletionRecord
	for rows.Next() {
		var r CompletionRecord
		if err := rows.Scan(
			&r.ID, &r.HabitBusinessID, &r.UserID, &r.EarningsMicros, &r.StreakCount,
			&r.CompletedAt, &r.LocalDate, &r.Slot, &r.GoalCompleting,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// completionsBetween returns the ledger of one habit for local dates in
// [fromKey, toKey], oldest first.
func completionsBetween(ctx context.Context, q dbtx, habitID, fromKey, toKey string) ([]CompletionRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT `+completionColumns+`
		FROM tycoon.habit_completions
		WHERE habit_business_id = $1 AND local_date BETWEEN $2::date AND $3::date
		ORDER BY local_date, slot
	`, habitID, fromKey, toKey)
	if err != nil {
		return nil, err
	}
	return collectCompletions(rows)
}

// recentCompletions returns the newest records on or before toKey, newest first.
func recentCompletions(ctx context.Context, q dbtx, habitID, toKey string, limit int) ([]CompletionRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT `+completionColumns+`
		FROM tycoon.habit_completions
		WHERE habit_business_id = $1 AND local_date <= $2::date
		ORDER BY local_date DESC, slot DESC
		LIMIT $3
	`, habitID, toKey, limit)
	if err != nil {
		return nil, err
	}
	return collectCompletions(rows)
}

func countCompletionsBetween(ctx context.Context, q dbtx, habitID, fromKey, toKey string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM tycoon.habit_completions
		WHERE habit_business_id = $1 AND local_date BETWEEN $2::date AND $3::date
	`, habitID, fromKey, toKey).Scan(&n)
	return n, err
}

// loadStockState reads the stock of a business with its live external
// holders. A business without a stock yields nil.
func loadStockState(ctx context.Context, q dbtx, habitID string) (*StockState, error) {
	var st StockState
	err := q.QueryRow(ctx, `
		SELECT id::text, business_owner_id::text, total_shares_issued, shares_owned_by_owner
		FROM tycoon.business_stocks
		WHERE habit_business_id = $1 AND is_active
	`, habitID).Scan(&st.StockID, &st.OwnerID, &st.TotalSharesIssued, &st.SharesOwnedByOwner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT holder_id::text, shares_owned
		FROM tycoon.stock_holdings
		WHERE stock_id = $1 AND shares_owned > 0
		ORDER BY holder_id
	`, st.StockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var h HolderShares
		if err := rows.Scan(&h.HolderID, &h.Shares); err != nil {
			return nil, err
		}
		st.Holders = append(st.Holders, h)
	}
	return &st, rows.Err()
}

func loadBusinessType(ctx context.Context, q dbtx, id int64) (BusinessType, error) {
	var bt BusinessType
	err := q.QueryRow(ctx, `
		SELECT id, name, icon, description, base_cost_micros, base_pay_micros
		FROM tycoon.business_types
		WHERE id = $1
	`, id).Scan(&bt.ID, &bt.Name, &bt.Icon, &bt.Description, &bt.BaseCostMicros, &bt.BasePayMicros)
	if errors.Is(err, pgx.ErrNoRows) {
		return bt, ErrBusinessTypeNotFound
	}
	return bt, err
}

// localDayBounds returns the UTC instants bounding the local day of now.
func localDayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	start := now.In(loc)
	y, m, d := start.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return from.UTC(), from.AddDate(0, 0, 1).UTC()
}
