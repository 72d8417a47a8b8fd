package cache

import (
	"context"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	basecache "github.com/riskibarqy/contest-leaderboard/internal/platform/cache"
)

const rosterKeyPrefix = "roster:contest:"

// RosterRepository memoizes rosters for the store's TTL. Concurrent misses on
// one contest share a single load. Misses are cached too.
type RosterRepository struct {
	next  contest.RosterRepository
	cache *basecache.Store
}

func NewRosterRepository(next contest.RosterRepository, cache *basecache.Store) *RosterRepository {
	return &RosterRepository{next: next, cache: cache}
}

func (r *RosterRepository) GetRoster(ctx context.Context, contestID string) (contest.Roster, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, rosterKeyPrefix+contestID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetRoster(ctx, contestID)
		if err != nil {
			return nil, err
		}
		return cachedRoster{value: item, exists: exists}, nil
	})
	if err != nil {
		return contest.Roster{}, false, err
	}

	cached, _ := v.(cachedRoster)
	return cloneRoster(cached.value), cached.exists, nil
}

// Invalidate drops the cached roster, typically after a contest edit.
func (r *RosterRepository) Invalidate(ctx context.Context, contestID string) {
	r.cache.Delete(ctx, rosterKeyPrefix+contestID)
}

type cachedRoster struct {
	value  contest.Roster
	exists bool
}

func cloneRoster(in contest.Roster) contest.Roster {
	out := in
	out.Participants = append([]contest.Participant(nil), in.Participants...)
	out.Problems = append([]contest.Problem(nil), in.Problems...)
	return out
}
