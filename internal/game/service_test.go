package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

var testNow = time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)

func TestInSerializableTxRetriesSerializationFailures(t *testing.T) {
	db := newMemDB(t)
	s := newTestService(db, testNow)

	calls := 0
	err := s.inSerializableTx(context.Background(), func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return serializationFailure()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 || db.begins != 3 || db.commits != 1 {
		t.Fatalf("calls=%d begins=%d commits=%d", calls, db.begins, db.commits)
	}
}

func TestInSerializableTxGivesUpAfterMaxAttempts(t *testing.T) {
	db := newMemDB(t)
	s := newTestService(db, testNow)

	err := s.inSerializableTx(context.Background(), func(pgx.Tx) error {
		return serializationFailure()
	})
	if !errors.Is(err, ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}
	if db.begins != txMaxAttempts || db.commits != 0 {
		t.Fatalf("begins=%d commits=%d", db.begins, db.commits)
	}
}

func TestInSerializableTxDoesNotRetryOtherErrors(t *testing.T) {
	db := newMemDB(t)
	s := newTestService(db, testNow)

	boom := errors.New("boom")
	err := s.inSerializableTx(context.Background(), func(pgx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if db.begins != 1 {
		t.Fatalf("non-serialization error retried %d times", db.begins)
	}
}

func TestInSerializableTxStopsWhenContextEnds(t *testing.T) {
	db := newMemDB(t)
	s := newTestService(db, testNow)
	s.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	err := s.inSerializableTx(ctx, func(pgx.Tx) error {
		cancel()
		return serializationFailure()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInSerializableTxRollsBackFailedAttempt(t *testing.T) {
	db := newMemDB(t)
	s := newTestService(db, testNow)

	attempt := 0
	err := s.inSerializableTx(context.Background(), func(tx pgx.Tx) error {
		attempt++
		if err := claimIdempotency(context.Background(), tx, "u1", "key-1", "complete"); err != nil {
			return err
		}
		if attempt == 1 {
			return serializationFailure()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second attempt should reclaim the key after rollback, got %v", err)
	}
	if len(db.state.idemKeys) != 1 {
		t.Fatalf("idempotency keys %v", db.state.idemKeys)
	}
}

func TestClaimIdempotency(t *testing.T) {
	db := newMemDB(t)
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := claimIdempotency(ctx, tx, "u1", "  ", "complete"); err == nil {
		t.Fatalf("blank key should be rejected")
	}
	if err := claimIdempotency(ctx, tx, "u1", "key-1", "complete"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := claimIdempotency(ctx, tx, "u1", "key-1", "undo"); !errors.Is(err, ErrDuplicateIdempotency) {
		t.Fatalf("replayed key should be rejected, got %v", err)
	}
	if err := claimIdempotency(ctx, tx, "u2", "key-1", "complete"); err != nil {
		t.Fatalf("keys are scoped per user: %v", err)
	}
}
