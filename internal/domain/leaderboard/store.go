package leaderboard

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable marks backend failures: unreachable, timed out, or
	// short-circuited by a breaker.
	ErrStoreUnavailable = errors.New("leaderboard store unavailable")
	// ErrVersionConflict is returned by CompareAndSwap when the stored
	// snapshot is absent or no longer carries the expected version.
	ErrVersionConflict = errors.New("leaderboard snapshot version conflict")
)

const keyPrefix = "leaderboard_"

// Key is the store key of a contest snapshot.
func Key(contestID string) string {
	return keyPrefix + contestID
}

// SnapshotStore is a TTL-bounded cache of one Leaderboard per contest. It is
// not a system of record.
type SnapshotStore interface {
	// Get returns a copy the caller owns.
	Get(ctx context.Context, contestID string) (Leaderboard, bool, error)
	// Set overwrites unconditionally and returns the stored snapshot with
	// its new Revision.
	Set(ctx context.Context, contestID string, lb Leaderboard, ttl time.Duration) (Leaderboard, error)
	// CompareAndSwap writes next only when the stored snapshot still has
	// next.Generation and next.Revision. The stored copy gets Revision+1.
	CompareAndSwap(ctx context.Context, contestID string, next Leaderboard, ttl time.Duration) (Leaderboard, error)
	Delete(ctx context.Context, contestID string) error
}
