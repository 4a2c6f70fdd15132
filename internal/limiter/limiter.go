// Package limiter throttles per-user activity: sampling of inline query streams and
// temporary lockouts after repeated failed attempts.
package limiter

import (
	"context"
	"time"
)

// Action names a guarded operation.
type Action string

// ActionInvite is redeeming an operator invite with /start.
const ActionInvite Action = "invite"

// Attempts controls failed attempts and temporary lockouts per user and action.
type Attempts interface {
	// Allow reports whether the action is currently allowed and an optional retry-after.
	Allow(ctx context.Context, userID int64, action Action) (bool, time.Duration, error)
	// Success resets counters after a successful attempt.
	Success(ctx context.Context, userID int64, action Action) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, userID int64, action Action) (bool, time.Duration, error)
}
