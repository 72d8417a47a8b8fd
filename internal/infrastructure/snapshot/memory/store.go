package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	basecache "github.com/riskibarqy/contest-leaderboard/internal/platform/cache"
)

// SnapshotStore keeps snapshots in process memory. It suits single-replica
// deployments and tests; snapshots are lost on restart.
type SnapshotStore struct {
	cache *basecache.Store
}

var _ leaderboard.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(cache *basecache.Store) *SnapshotStore {
	if cache == nil {
		cache = basecache.NewStore(0)
	}
	return &SnapshotStore{cache: cache}
}

func (s *SnapshotStore) Get(ctx context.Context, contestID string) (leaderboard.Leaderboard, bool, error) {
	if err := ctx.Err(); err != nil {
		return leaderboard.Leaderboard{}, false, fmt.Errorf("%w: %v", leaderboard.ErrStoreUnavailable, err)
	}

	v, ok := s.cache.Get(ctx, leaderboard.Key(contestID))
	if !ok {
		return leaderboard.Leaderboard{}, false, nil
	}
	lb, _ := v.(leaderboard.Leaderboard)
	return lb.Clone(), true, nil
}

func (s *SnapshotStore) Set(ctx context.Context, contestID string, lb leaderboard.Leaderboard, ttl time.Duration) (leaderboard.Leaderboard, error) {
	if err := ctx.Err(); err != nil {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: %v", leaderboard.ErrStoreUnavailable, err)
	}
	if strings.TrimSpace(contestID) == "" {
		return leaderboard.Leaderboard{}, fmt.Errorf("contest id is required")
	}

	stored := lb.Clone()
	s.cache.Update(ctx, leaderboard.Key(contestID), func(current any, ok bool) (any, bool) {
		stored.Revision = 1
		if prev, isLB := current.(leaderboard.Leaderboard); ok && isLB {
			stored.Revision = prev.Revision + 1
		}
		return stored, true
	}, ttl)

	return stored.Clone(), nil
}

func (s *SnapshotStore) CompareAndSwap(ctx context.Context, contestID string, next leaderboard.Leaderboard, ttl time.Duration) (leaderboard.Leaderboard, error) {
	if err := ctx.Err(); err != nil {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: %v", leaderboard.ErrStoreUnavailable, err)
	}

	stored := next.Clone()
	stored.Revision = next.Revision + 1
	swapped := s.cache.Update(ctx, leaderboard.Key(contestID), func(current any, ok bool) (any, bool) {
		prev, isLB := current.(leaderboard.Leaderboard)
		return stored, ok && isLB && prev.Generation == next.Generation && prev.Revision == next.Revision
	}, ttl)
	if !swapped {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: contest=%s revision=%d", leaderboard.ErrVersionConflict, contestID, next.Revision)
	}

	return stored.Clone(), nil
}

func (s *SnapshotStore) Delete(ctx context.Context, contestID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", leaderboard.ErrStoreUnavailable, err)
	}
	s.cache.Delete(ctx, leaderboard.Key(contestID))
	return nil
}
