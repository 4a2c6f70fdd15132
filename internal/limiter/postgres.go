package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Defaults for NewPG callers without tuning.
const (
	DefaultAttemptWindow = 15 * time.Minute
	DefaultMaxFails      = 5
	DefaultBlockFor      = time.Hour
)

// PG is a PostgreSQL-backed Attempts implementation with a sliding window and lockout.
type PG struct {
	pool     pgxQuerier
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter on any pool or connection.
func NewPG(q pgxQuerier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{pool: q, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

// Allow reports whether the action is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, userID int64, action Action) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM attempts WHERE user_id=$1 AND action=$2`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, userID, string(action)).Scan(&blockedUntil)
	switch {
	case err == nil:
		if now := l.now(); blockedUntil.After(now) {
			return false, blockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for (user, action).
func (l *PG) Success(ctx context.Context, userID int64, action Action) error {
	const q = `
INSERT INTO attempts (user_id, action, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',now())
ON CONFLICT (user_id, action)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := l.pool.Exec(ctx, q, userID, string(action))
	return err
}

// Failure records a failed attempt; reaching maxFails within window blocks for blockFor.
func (l *PG) Failure(ctx context.Context, userID int64, action Action) (bool, time.Duration, error) {
	const q = `
INSERT INTO attempts (user_id, action, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',now())
ON CONFLICT (user_id, action) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - attempts.updated_at > $3::interval THEN 1 ELSE attempts.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, userID, string(action), l.window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}
	const upd = `UPDATE attempts SET blocked_until=$3 WHERE user_id=$1 AND action=$2`
	if _, err := l.pool.Exec(ctx, upd, userID, string(action), l.now().Add(l.blockFor)); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
