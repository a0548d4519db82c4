// Package syncq persists write commands that could not reach the API so the
// CLI can replay them later with their original idempotency keys.
package syncq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Command struct {
	ID             int64          `json:"id"`
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
	Attempts       int            `json:"attempts"`
}

type Queue struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	method          TEXT    NOT NULL,
	path            TEXT    NOT NULL,
	body            TEXT,
	idempotency_key TEXT    NOT NULL UNIQUE,
	queued_at       INTEGER NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0
);`

func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init queue: %w", err)
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Push stores cmd. Pushing the same idempotency key twice keeps the first copy.
func (q *Queue) Push(ctx context.Context, cmd Command) error {
	if cmd.IdempotencyKey == "" {
		return fmt.Errorf("queued command %s %s needs an idempotency key", cmd.Method, cmd.Path)
	}
	var body sql.NullString
	if cmd.Body != nil {
		raw, err := json.Marshal(cmd.Body)
		if err != nil {
			return err
		}
		body = sql.NullString{String: string(raw), Valid: true}
	}
	queuedAt := cmd.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = time.Now()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO commands (method, path, body, idempotency_key, queued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		cmd.Method, cmd.Path, body, cmd.IdempotencyKey, queuedAt.UnixMilli())
	return err
}

// List returns queued commands oldest first.
func (q *Queue) List(ctx context.Context) ([]Command, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, method, path, body, idempotency_key, queued_at, attempts
		FROM commands
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Command{}
	for rows.Next() {
		var (
			c        Command
			body     sql.NullString
			queuedAt int64
		)
		if err := rows.Scan(&c.ID, &c.Method, &c.Path, &body, &c.IdempotencyKey, &queuedAt, &c.Attempts); err != nil {
			return nil, err
		}
		if body.Valid && body.String != "" {
			if err := json.Unmarshal([]byte(body.String), &c.Body); err != nil {
				return nil, fmt.Errorf("decode queued command %d: %w", c.ID, err)
			}
		}
		c.QueuedAt = time.UnixMilli(queuedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queue) Remove(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM commands WHERE id = ?`, id)
	return err
}

func (q *Queue) MarkAttempt(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE commands SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`).Scan(&n)
	return n, err
}
