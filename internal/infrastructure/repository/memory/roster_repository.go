package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
)

// RosterRepository serves rosters from process memory when no database is
// configured.
type RosterRepository struct {
	mu    sync.RWMutex
	items map[string]contest.Roster
}

func NewRosterRepository(rosters []contest.Roster) *RosterRepository {
	items := make(map[string]contest.Roster, len(rosters))
	for _, r := range rosters {
		items[r.ContestID] = cloneRoster(r)
	}

	return &RosterRepository{items: items}
}

func (r *RosterRepository) GetRoster(_ context.Context, contestID string) (contest.Roster, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[strings.TrimSpace(contestID)]
	if !ok {
		return contest.Roster{}, false, nil
	}

	return cloneRoster(item), true, nil
}

// Put replaces the roster of roster.ContestID.
func (r *RosterRepository) Put(_ context.Context, roster contest.Roster) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[roster.ContestID] = cloneRoster(roster)
}

func cloneRoster(r contest.Roster) contest.Roster {
	r.Participants = append([]contest.Participant(nil), r.Participants...)
	r.Problems = append([]contest.Problem(nil), r.Problems...)
	return r
}
