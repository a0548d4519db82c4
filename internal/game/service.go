package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"habittycoon/internal/clock"
	"habittycoon/internal/events"
	"habittycoon/internal/lock"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

const (
	habitLockTTL = 15 * time.Second

	txMaxAttempts    = 8
	txBackoff        = 75 * time.Millisecond
	txBackoffCeiling = 1200 * time.Millisecond
)

// dbtx is satisfied by both the pool and an open transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the part of a pgx pool the service needs.
type DB interface {
	dbtx
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

type Service struct {
	db         DB
	log        *slog.Logger
	locks      lock.Locker
	events     events.Publisher
	clock      clock.Clock
	defaultLoc *time.Location
	backoff    time.Duration
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locks = l
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDefaultLocation is used for profiles whose stored timezone cannot be loaded.
func WithDefaultLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.defaultLoc = loc
		}
	}
}

func NewService(db DB, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:         db,
		log:        logger,
		locks:      lock.NewLocal(lock.DefaultWait),
		events:     events.Fallback{Log: logger},
		clock:      clock.System{},
		defaultLoc: time.UTC,
		backoff:    txBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// EnsureProfile creates the profile row with the starter cash on first sight
// of a user. Existing profiles are left untouched.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, username, timezone string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNotAuthenticated
	}
	username = strings.TrimSpace(username)
	if !usernameRE.MatchString(username) {
		username = sanitizeUsername(usernameFromEmail(email))
	}
	timezone = strings.TrimSpace(timezone)
	if _, err := clock.LoadLocation(timezone); err != nil || timezone == "" {
		timezone = s.defaultLoc.String()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO tycoon.profiles (user_id, email, username, timezone, cash_micros, net_worth_micros)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, email, username, timezone, StarterCashMicros)
	return err
}

func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	return loadProfile(ctx, s.db, userID)
}

// SetTimezone changes the zone every day boundary of the user is computed in.
func (s *Service) SetTimezone(ctx context.Context, userID, timezone string) error {
	if _, err := clock.LoadLocation(timezone); err != nil {
		return err
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE tycoon.profiles SET timezone = $1, updated_at = now() WHERE user_id = $2
	`, timezone, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func loadProfile(ctx context.Context, q dbtx, userID string) (Profile, error) {
	var p Profile
	err := q.QueryRow(ctx, `
		SELECT user_id::text, email, username, timezone, cash_micros, net_worth_micros
		FROM tycoon.profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Email, &p.Username, &p.Timezone, &p.CashMicros, &p.NetWorthMicros)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrProfileNotFound
	}
	return p, err
}

// userLocation resolves the zone for the user's day boundaries.
func (s *Service) userLocation(ctx context.Context, q dbtx, userID string) (*time.Location, error) {
	var name string
	err := q.QueryRow(ctx, `SELECT timezone FROM tycoon.profiles WHERE user_id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	loc, err := clock.LoadLocation(name)
	if err != nil {
		s.log.Warn("unknown profile timezone, using default", "user_id", userID, "timezone", name, "err", err)
		return s.defaultLoc, nil
	}
	return loc, nil
}

// inSerializableTx runs fn in a serializable transaction and retries it on
// serialization failures with a doubling backoff. fn must not keep state
// from an aborted attempt.
func (s *Service) inSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retryDelay := s.backoff
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == txMaxAttempts-1 {
			break
		}
		s.log.Debug("serialization conflict, retrying", "attempt", attempt+1, "delay", retryDelay)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < txBackoffCeiling {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func (s *Service) acquireHabit(ctx context.Context, habitID string) (func(), error) {
	release, err := s.locks.Acquire(ctx, "habit:"+habitID, habitLockTTL)
	if errors.Is(err, lock.ErrBusy) {
		return nil, ErrHabitBusy
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}

// publish is best effort; a broker outage never fails the operation.
func (s *Service) publish(ctx context.Context, routingKey string, body any) {
	if err := s.events.Publish(ctx, routingKey, body); err != nil {
		s.log.Warn("event publish failed", "routing_key", routingKey, "err", err)
	}
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO tycoon.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

// creditTx moves cash and net worth by the given deltas, never below zero.
func creditTx(ctx context.Context, tx pgx.Tx, userID string, cashDelta, netWorthDelta int64) (int64, error) {
	var cash int64
	err := tx.QueryRow(ctx, `
		UPDATE tycoon.profiles
		SET cash_micros = GREATEST(cash_micros + $1, 0),
		    net_worth_micros = GREATEST(net_worth_micros + $2, 0),
		    updated_at = now()
		WHERE user_id = $3
		RETURNING cash_micros
	`, cashDelta, netWorthDelta, userID).Scan(&cash)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProfileNotFound
	}
	return cash, err
}

func lockCashTx(ctx context.Context, tx pgx.Tx, userID string) (cash, netWorth int64, err error) {
	err = tx.QueryRow(ctx, `
		SELECT cash_micros, net_worth_micros
		FROM tycoon.profiles
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&cash, &netWorth)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrStaleProfile
	}
	return cash, netWorth, err
}

func usernameFromEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune('_')
		}
		if b.Len() >= 24 {
			break
		}
	}
	out := b.String()
	for len(out) < 3 {
		out += "_"
	}
	return out
}
