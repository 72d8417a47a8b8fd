package redis

import (
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
)

type snapshotDocument struct {
	ContestID  string            `json:"contestId"`
	Generation string            `json:"generation"`
	Revision   int64             `json:"revision"`
	Problems   []problemDocument `json:"problems"`
	Users      []userDocument    `json:"users"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type problemDocument struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type userDocument struct {
	UserID     string                 `json:"userId"`
	Username   string                 `json:"username"`
	Email      string                 `json:"email,omitempty"`
	Rank       int                    `json:"rank"`
	JoinOrder  int                    `json:"joinOrder"`
	TotalScore float64                `json:"totalScore"`
	Problems   []problemScoreDocument `json:"problems"`
}

type problemScoreDocument struct {
	ProblemKey string  `json:"problemKey"`
	ProblemID  string  `json:"problemId"`
	Score      float64 `json:"score"`
}

func toDocument(lb leaderboard.Leaderboard) snapshotDocument {
	doc := snapshotDocument{
		ContestID:  lb.ContestID,
		Generation: lb.Generation,
		Revision:   lb.Revision,
		Problems:   make([]problemDocument, 0, len(lb.Problems)),
		Users:      make([]userDocument, 0, len(lb.Users)),
		UpdatedAt:  lb.UpdatedAt,
	}
	for _, p := range lb.Problems {
		doc.Problems = append(doc.Problems, problemDocument{ID: p.ID, Key: p.Key})
	}
	for _, u := range lb.Users {
		row := userDocument{
			UserID:     u.UserID,
			Username:   u.Username,
			Email:      u.Email,
			Rank:       u.Rank,
			JoinOrder:  u.JoinOrder,
			TotalScore: u.TotalScore,
			Problems:   make([]problemScoreDocument, 0, len(u.Problems)),
		}
		for _, ps := range u.Problems {
			row.Problems = append(row.Problems, problemScoreDocument{
				ProblemKey: ps.ProblemKey,
				ProblemID:  ps.ProblemID,
				Score:      ps.Score,
			})
		}
		doc.Users = append(doc.Users, row)
	}
	return doc
}

func (d snapshotDocument) toDomain() leaderboard.Leaderboard {
	lb := leaderboard.Leaderboard{
		ContestID:  d.ContestID,
		Generation: d.Generation,
		Revision:   d.Revision,
		Problems:   make([]contest.Problem, 0, len(d.Problems)),
		Users:      make([]leaderboard.UserEntry, 0, len(d.Users)),
		UpdatedAt:  d.UpdatedAt,
	}
	for _, p := range d.Problems {
		lb.Problems = append(lb.Problems, contest.Problem{ID: p.ID, Key: p.Key})
	}
	for _, u := range d.Users {
		entry := leaderboard.UserEntry{
			UserID:     u.UserID,
			Username:   u.Username,
			Email:      u.Email,
			Rank:       u.Rank,
			JoinOrder:  u.JoinOrder,
			TotalScore: u.TotalScore,
			Problems:   make([]leaderboard.ProblemScore, 0, len(u.Problems)),
		}
		for _, ps := range u.Problems {
			entry.Problems = append(entry.Problems, leaderboard.ProblemScore{
				ProblemKey: ps.ProblemKey,
				ProblemID:  ps.ProblemID,
				Score:      ps.Score,
			})
		}
		lb.Users = append(lb.Users, entry)
	}
	return lb
}
