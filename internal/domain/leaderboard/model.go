package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
)

var (
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrDuplicateProblem     = errors.New("duplicate problem")
	ErrDuplicateProblemKey  = errors.New("duplicate problem key")
)

// ProblemScore is one cell of a user's score breakdown.
type ProblemScore struct {
	ProblemKey string
	ProblemID  string
	Score      float64
}

// UserEntry is one ranked row. TotalScore is derived from Problems and is
// only ever written by Recalculate.
type UserEntry struct {
	UserID     string
	Username   string
	Email      string
	Rank       int
	JoinOrder  int
	TotalScore float64
	Problems   []ProblemScore
}

// Leaderboard is the cached ranking snapshot of one contest.
//
// Generation changes on every init and Revision grows on every store write;
// together they are the optimistic-concurrency version of the snapshot.
type Leaderboard struct {
	ContestID  string
	Generation string
	Revision   int64
	Problems   []contest.Problem
	Users      []UserEntry
	UpdatedAt  time.Time
}

// Seed builds a fresh zero-score leaderboard where every participant carries
// one ProblemScore per problem. Blank problem keys are filled with A, B, ...
// by position.
func Seed(contestID, generation string, participants []contest.Participant, problems []contest.Problem, now time.Time) (Leaderboard, error) {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return Leaderboard{}, fmt.Errorf("contest id is required")
	}

	catalogue, err := normalizeProblems(problems)
	if err != nil {
		return Leaderboard{}, err
	}

	seen := make(map[string]struct{}, len(participants))
	users := make([]UserEntry, 0, len(participants))
	for i, p := range participants {
		userID := strings.TrimSpace(p.UserID)
		if userID == "" {
			return Leaderboard{}, fmt.Errorf("participant user id is required at position %d", i)
		}
		if _, exists := seen[userID]; exists {
			return Leaderboard{}, fmt.Errorf("%w: %s", ErrDuplicateParticipant, userID)
		}
		seen[userID] = struct{}{}

		scores := make([]ProblemScore, 0, len(catalogue))
		for _, problem := range catalogue {
			scores = append(scores, ProblemScore{ProblemKey: problem.Key, ProblemID: problem.ID})
		}
		users = append(users, UserEntry{
			UserID:    userID,
			Username:  p.Username,
			Email:     p.Email,
			JoinOrder: i,
			Problems:  scores,
		})
	}

	lb := Leaderboard{
		ContestID:  contestID,
		Generation: generation,
		Problems:   catalogue,
		Users:      users,
		UpdatedAt:  now.UTC(),
	}
	lb.Recalculate()
	return lb, nil
}

func normalizeProblems(problems []contest.Problem) ([]contest.Problem, error) {
	out := make([]contest.Problem, 0, len(problems))
	ids := make(map[string]struct{}, len(problems))
	keys := make(map[string]struct{}, len(problems))
	for i, p := range problems {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("problem id is required at position %d", i)
		}
		if _, exists := ids[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProblem, id)
		}
		ids[id] = struct{}{}

		key := strings.TrimSpace(p.Key)
		if key == "" {
			key = DefaultProblemKey(i)
		}
		if _, exists := keys[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProblemKey, key)
		}
		keys[key] = struct{}{}

		out = append(out, contest.Problem{ID: id, Key: key})
	}
	return out, nil
}

// DefaultProblemKey returns the spreadsheet-style label for a zero-based
// position: 0 -> A, 25 -> Z, 26 -> AA.
func DefaultProblemKey(position int) string {
	if position < 0 {
		return ""
	}
	var buf []byte
	for n := position + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}

// Recalculate derives every TotalScore, re-sorts Users by total descending
// with JoinOrder as the tie-break, and assigns competition ranks (1, 2, 2, 4).
func (lb *Leaderboard) Recalculate() {
	for i := range lb.Users {
		var total float64
		for _, ps := range lb.Users[i].Problems {
			total += ps.Score
		}
		lb.Users[i].TotalScore = total
	}

	sort.SliceStable(lb.Users, func(i, j int) bool {
		a, b := lb.Users[i], lb.Users[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.JoinOrder < b.JoinOrder
	})

	for i := range lb.Users {
		if i > 0 && lb.Users[i].TotalScore == lb.Users[i-1].TotalScore {
			lb.Users[i].Rank = lb.Users[i-1].Rank
			continue
		}
		lb.Users[i].Rank = i + 1
	}
}

// Clone returns a deep copy so callers can mutate without aliasing a cached
// snapshot.
func (lb Leaderboard) Clone() Leaderboard {
	out := lb
	out.Problems = append([]contest.Problem(nil), lb.Problems...)
	out.Users = make([]UserEntry, len(lb.Users))
	for i, u := range lb.Users {
		u.Problems = append([]ProblemScore(nil), u.Problems...)
		out.Users[i] = u
	}
	return out
}

func (lb Leaderboard) FindUser(userID string) (UserEntry, bool) {
	if idx := lb.userIndex(userID); idx >= 0 {
		return lb.Users[idx], true
	}
	return UserEntry{}, false
}

func (lb Leaderboard) userIndex(userID string) int {
	for i := range lb.Users {
		if lb.Users[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (u UserEntry) problemIndex(problemID string) int {
	for i := range u.Problems {
		if u.Problems[i].ProblemID == problemID {
			return i
		}
	}
	return -1
}

// Score returns the stored score for problemID, if the entry carries it.
func (u UserEntry) Score(problemID string) (float64, bool) {
	if idx := u.problemIndex(problemID); idx >= 0 {
		return u.Problems[idx].Score, true
	}
	return 0, false
}
