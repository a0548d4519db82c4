package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"
	"testing"
	"time"

	"habittycoon/internal/clock"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type memPayment struct {
	stockID  string
	perShare string
	status   string
	lines    []DividendLine
}

// memState is the slice of the tycoon schema the service tests touch.
type memState struct {
	habit       HabitBusiness
	stock       *StockState
	completions []CompletionRecord
	idemKeys    map[string]string
	cash        map[string]int64
	payments    map[string]*memPayment
	paid        map[string]bool
	earned      map[string]int64
}

func (s memState) clone() memState {
	out := s
	out.completions = append([]CompletionRecord(nil), s.completions...)
	out.idemKeys = maps.Clone(s.idemKeys)
	out.cash = maps.Clone(s.cash)
	out.paid = maps.Clone(s.paid)
	out.earned = maps.Clone(s.earned)
	out.payments = make(map[string]*memPayment, len(s.payments))
	for id, p := range s.payments {
		cp := *p
		cp.lines = append([]DividendLine(nil), p.lines...)
		out.payments[id] = &cp
	}
	return out
}

// memDB answers the statements the service issues from an in-memory state.
// Uncommitted transactions are rolled back to a snapshot.
type memDB struct {
	t        *testing.T
	state    memState
	timezone string

	begins   int
	commits  int
	beginErr func(n int) error
	execErr  func(sql string) error
}

func newMemDB(t *testing.T) *memDB {
	t.Helper()
	return &memDB{
		t:        t,
		timezone: "UTC",
		state: memState{
			idemKeys: map[string]string{},
			cash:     map[string]int64{},
			payments: map[string]*memPayment{},
			paid:     map[string]bool{},
			earned:   map[string]int64{},
		},
	}
}

func newTestService(db DB, now time.Time) *Service {
	s := NewService(db, slog.New(slog.DiscardHandler), WithClock(clock.Fixed(now)))
	s.backoff = time.Millisecond
	return s
}

func (m *memDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	m.begins++
	if m.beginErr != nil {
		if err := m.beginErr(m.begins); err != nil {
			return nil, err
		}
	}
	return &memTx{db: m, snap: m.state.clone()}, nil
}

func (m *memDB) Ping(context.Context) error { return nil }

func (m *memDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.exec(sql, args)
}

func (m *memDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.query(sql, args)
}

func (m *memDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return m.queryRow(sql, args)
}

func (m *memDB) exec(sql string, args []any) (pgconn.CommandTag, error) {
	if m.execErr != nil {
		if err := m.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	st := &m.state
	switch {
	case strings.Contains(sql, "INSERT INTO tycoon.idempotency_keys"):
		key := args[0].(string) + "/" + args[1].(string)
		if _, ok := st.idemKeys[key]; ok {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		st.idemKeys[key] = args[2].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "INSERT INTO tycoon.habit_completions"):
		r := CompletionRecord{
			ID:              args[0].(string),
			HabitBusinessID: args[1].(string),
			UserID:          args[2].(string),
			EarningsMicros:  args[3].(int64),
			StreakCount:     args[4].(int),
			CompletedAt:     args[5].(time.Time),
			LocalDate:       args[6].(string),
			Slot:            args[7].(int),
			GoalCompleting:  args[8].(bool),
		}
		for _, c := range st.completions {
			if c.HabitBusinessID == r.HabitBusinessID && c.LocalDate == r.LocalDate && c.Slot == r.Slot {
				return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
			}
		}
		st.completions = append(st.completions, r)
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "UPDATE tycoon.habit_businesses"):
		h := &st.habit
		h.CurrentProgress = args[0].(int)
		h.Streak = args[1].(int)
		h.TotalCompletions++
		h.TotalEarningsMicros += args[2].(int64)
		last := args[3].(time.Time)
		h.LastCompletedAt = &last
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "INSERT INTO tycoon.dividend_payments"):
		st.payments[args[0].(string)] = &memPayment{stockID: args[2].(string), perShare: args[5].(string), status: "pending"}
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "INSERT INTO tycoon.dividend_payment_lines"):
		p := st.payments[args[0].(string)]
		p.lines = append(p.lines, DividendLine{HolderID: args[1].(string), SharesOwned: args[2].(int64), AmountMicros: args[3].(int64)})
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "INSERT INTO tycoon.dividend_distributions"):
		key := args[1].(string) + "/" + args[2].(string)
		if st.paid[key] {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		st.paid[key] = true
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "UPDATE tycoon.stock_holdings"):
		st.earned[args[1].(string)] += args[0].(int64)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE tycoon.dividend_payments"):
		if p, ok := st.payments[args[0].(string)]; ok && strings.Contains(sql, "status = 'settled'") {
			p.status = "settled"
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE tycoon.business_stocks"):
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	m.t.Errorf("unexpected exec: %s", sql)
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec")
}

func (m *memDB) queryRow(sql string, args []any) pgx.Row {
	st := &m.state
	switch {
	case strings.Contains(sql, "SELECT timezone FROM tycoon.profiles"):
		if _, ok := st.cash[args[0].(string)]; !ok {
			return memRow{err: pgx.ErrNoRows}
		}
		return memRow{vals: []any{m.timezone}}

	case strings.Contains(sql, "update_stock_price_by_streak"):
		return memRow{vals: []any{int64(12 * MicrosPerDollar)}}

	case strings.Contains(sql, "FROM tycoon.habit_businesses hb"):
		h := st.habit
		if h.ID != args[0] || h.UserID != args[1] {
			return memRow{err: pgx.ErrNoRows}
		}
		return memRow{vals: []any{
			h.ID, h.UserID, h.BusinessTypeID, h.BusinessName, h.BusinessIcon,
			h.HabitDescription, string(h.Frequency), h.GoalValue, h.CostMicros,
			h.EarningsPerCompletionMicros, h.CurrentProgress, h.Streak,
			h.TotalCompletions, h.TotalEarningsMicros, h.LastCompletedAt,
			h.IsActive, h.CreatedAt, h.UpdatedAt,
		}}

	case strings.Contains(sql, "SELECT COUNT(1)") && strings.Contains(sql, "tycoon.habit_completions"):
		return memRow{vals: []any{len(m.completionsBetween(args[0].(string), args[1].(string), args[2].(string)))}}

	case strings.Contains(sql, "total_shares_issued, shares_owned_by_owner"):
		if st.stock == nil {
			return memRow{err: pgx.ErrNoRows}
		}
		return memRow{vals: []any{st.stock.StockID, st.stock.OwnerID, st.stock.TotalSharesIssued, st.stock.SharesOwnedByOwner}}

	case strings.Contains(sql, "UPDATE tycoon.profiles"):
		user := args[2].(string)
		cash, ok := st.cash[user]
		if !ok {
			return memRow{err: pgx.ErrNoRows}
		}
		st.cash[user] = max(0, cash+args[0].(int64))
		return memRow{vals: []any{st.cash[user]}}

	case strings.Contains(sql, "dividend_per_share::text, status"):
		p, ok := st.payments[args[0].(string)]
		if !ok {
			return memRow{err: pgx.ErrNoRows}
		}
		return memRow{vals: []any{p.stockID, p.perShare, p.status}}
	}
	m.t.Errorf("unexpected query row: %s", sql)
	return memRow{err: fmt.Errorf("unexpected query row")}
}

func (m *memDB) query(sql string, args []any) (pgx.Rows, error) {
	st := &m.state
	switch {
	case strings.Contains(sql, "FROM tycoon.habit_completions"):
		var data [][]any
		for _, r := range m.completionsBetween(args[0].(string), args[1].(string), args[2].(string)) {
			data = append(data, []any{
				r.ID, r.HabitBusinessID, r.UserID, r.EarningsMicros, r.StreakCount,
				r.CompletedAt, r.LocalDate, r.Slot, r.GoalCompleting,
			})
		}
		return &memRows{data: data}, nil

	case strings.Contains(sql, "FROM tycoon.stock_holdings"):
		var data [][]any
		if st.stock != nil {
			for _, h := range st.stock.Holders {
				data = append(data, []any{h.HolderID, h.Shares})
			}
		}
		return &memRows{data: data}, nil

	case strings.Contains(sql, "FROM tycoon.dividend_payment_lines"):
		var data [][]any
		if p, ok := st.payments[args[0].(string)]; ok {
			for _, l := range p.lines {
				data = append(data, []any{l.HolderID, l.SharesOwned, l.AmountMicros})
			}
		}
		return &memRows{data: data}, nil
	}
	m.t.Errorf("unexpected query: %s", sql)
	return nil, fmt.Errorf("unexpected query")
}

func (m *memDB) completionsBetween(habitID, from, to string) []CompletionRecord {
	var out []CompletionRecord
	for _, r := range m.state.completions {
		if r.HabitBusinessID == habitID && r.LocalDate >= from && r.LocalDate <= to {
			out = append(out, r)
		}
	}
	return out
}

type memTx struct {
	pgx.Tx
	db   *memDB
	snap memState
	done bool
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.commits++
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.state = tx.snap
	return nil
}

func (tx *memTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.db.exec(sql, args)
}

func (tx *memTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.db.query(sql, args)
}

func (tx *memTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return tx.db.queryRow(sql, args)
}

type memRow struct {
	vals []any
	err  error
}

func (r memRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.vals)
}

type memRows struct {
	data [][]any
	pos  int
}

func (r *memRows) Close()                                       {}
func (r *memRows) Err() error                                   { return nil }
func (r *memRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *memRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *memRows) RawValues() [][]byte                          { return nil }
func (r *memRows) Conn() *pgx.Conn                              { return nil }

func (r *memRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *memRows) Scan(dest ...any) error {
	return scanInto(dest, r.data[r.pos-1])
}

func (r *memRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func scanInto(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d targets for %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if vals[i] == nil {
			target.SetZero()
			continue
		}
		v := reflect.ValueOf(vals[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: %T into %s", i, vals[i], target.Type())
		}
		target.Set(v)
	}
	return nil
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

var errPoolDown = errors.New("pool down")
