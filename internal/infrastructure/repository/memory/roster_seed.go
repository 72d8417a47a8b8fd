package memory

import "github.com/riskibarqy/contest-leaderboard/internal/domain/contest"

const ContestIDDemo = "demo-weekly-001"

// SeedRosters is the demo roster served when DB_ENABLED is false.
func SeedRosters() []contest.Roster {
	return []contest.Roster{
		{
			ContestID: ContestIDDemo,
			Participants: []contest.Participant{
				{UserID: "u-ada", Username: "ada", Email: "ada@example.com"},
				{UserID: "u-linus", Username: "linus", Email: "linus@example.com"},
				{UserID: "u-grace", Username: "grace", Email: "grace@example.com"},
			},
			Problems: []contest.Problem{
				{ID: "p-two-sum", Key: "A"},
				{ID: "p-interval-merge", Key: "B"},
				{ID: "p-shortest-path", Key: "C"},
			},
		},
	}
}
