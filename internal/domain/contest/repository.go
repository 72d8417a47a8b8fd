package contest

import "context"

type RosterRepository interface {
	GetRoster(ctx context.Context, contestID string) (Roster, bool, error)
}
