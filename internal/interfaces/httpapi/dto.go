package httpapi

import (
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
)

type leaderboardDTO struct {
	ContestID  string              `json:"contest_id"`
	Generation string              `json:"generation"`
	Revision   int64               `json:"revision"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Problems   []problemDTO        `json:"problems"`
	Users      []leaderboardRowDTO `json:"users"`
}

type problemDTO struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type leaderboardRowDTO struct {
	UserID     string            `json:"user_id"`
	Username   string            `json:"username"`
	Email      string            `json:"email,omitempty"`
	Rank       int               `json:"rank"`
	TotalScore float64           `json:"total_score"`
	Problems   []problemScoreDTO `json:"problems"`
}

type problemScoreDTO struct {
	ProblemKey string  `json:"problem_key"`
	ProblemID  string  `json:"problem_id,omitempty"`
	Score      float64 `json:"score"`
}

type streamFrameDTO struct {
	Type string         `json:"type"`
	Data leaderboardDTO `json:"data"`
}

type initLeaderboardRequest struct {
	Participants []participantRequest `json:"participants" validate:"dive"`
	Problems     []problemRequest     `json:"problems" validate:"dive"`
}

type participantRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type problemRequest struct {
	ID  string `json:"id" validate:"required"`
	Key string `json:"key" validate:"max=16"`
}

type updateScoreRequest struct {
	UserID    string   `json:"user_id" validate:"required"`
	ProblemID string   `json:"problem_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required,gte=0"`
}

func (r initLeaderboardRequest) roster() ([]contest.Participant, []contest.Problem) {
	participants := make([]contest.Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		participants = append(participants, contest.Participant{
			UserID:   p.UserID,
			Username: p.Username,
			Email:    p.Email,
		})
	}
	problems := make([]contest.Problem, 0, len(r.Problems))
	for _, p := range r.Problems {
		problems = append(problems, contest.Problem{ID: p.ID, Key: p.Key})
	}
	return participants, problems
}

func toLeaderboardDTO(lb leaderboard.Leaderboard) leaderboardDTO {
	out := leaderboardDTO{
		ContestID:  lb.ContestID,
		Generation: lb.Generation,
		Revision:   lb.Revision,
		UpdatedAt:  lb.UpdatedAt,
		Problems:   make([]problemDTO, 0, len(lb.Problems)),
		Users:      make([]leaderboardRowDTO, 0, len(lb.Users)),
	}
	for _, p := range lb.Problems {
		out.Problems = append(out.Problems, problemDTO{ID: p.ID, Key: p.Key})
	}
	for _, u := range lb.Users {
		row := leaderboardRowDTO{
			UserID:     u.UserID,
			Username:   u.Username,
			Email:      u.Email,
			Rank:       u.Rank,
			TotalScore: u.TotalScore,
			Problems:   make([]problemScoreDTO, 0, len(u.Problems)),
		}
		for _, ps := range u.Problems {
			row.Problems = append(row.Problems, problemScoreDTO{
				ProblemKey: ps.ProblemKey,
				ProblemID:  ps.ProblemID,
				Score:      ps.Score,
			})
		}
		out.Users = append(out.Users, row)
	}
	return out
}
