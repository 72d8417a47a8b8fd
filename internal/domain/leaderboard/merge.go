package leaderboard

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrUnknownParticipant     = errors.New("user is not a participant of the cached leaderboard")
	ErrUnresolvableProblemKey = errors.New("problem key cannot be resolved from leaderboard")
	ErrInvalidScore           = errors.New("invalid score")
)

// MergeOutcome describes what ApplyScore did to the snapshot.
type MergeOutcome string

const (
	MergeApplied MergeOutcome = "applied"
	MergeIgnored MergeOutcome = "ignored"
	// MergeRepaired means the problem was missing from the user's row and a
	// fresh cell was cloned from a template before the score was applied.
	MergeRepaired MergeOutcome = "repaired"
)

// ApplyScore merges score into the (userID, problemID) cell using
// best-score-wins and re-ranks when anything changed. Lower or equal scores
// leave the snapshot untouched and report MergeIgnored.
//
// On any error lb is left unchanged.
func (lb *Leaderboard) ApplyScore(userID, problemID string, score float64, now time.Time) (MergeOutcome, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return "", fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}

	userIdx := lb.userIndex(userID)
	if userIdx < 0 {
		return "", fmt.Errorf("%w: user=%s", ErrUnknownParticipant, userID)
	}
	entry := &lb.Users[userIdx]

	outcome := MergeApplied
	problemIdx := entry.problemIndex(problemID)
	if problemIdx < 0 {
		key, ok := lb.resolveProblemKey(problemID)
		if !ok {
			return "", fmt.Errorf("%w: contest=%s problem=%s", ErrUnresolvableProblemKey, lb.ContestID, problemID)
		}
		entry.Problems = append(entry.Problems, ProblemScore{ProblemKey: key, ProblemID: problemID})
		problemIdx = len(entry.Problems) - 1
		outcome = MergeRepaired
	}

	cell := &entry.Problems[problemIdx]
	if score <= cell.Score {
		if outcome == MergeRepaired {
			// A zero score on a freshly cloned cell still repairs the row.
			lb.touch(now)
			return outcome, nil
		}
		return MergeIgnored, nil
	}

	cell.Score = score
	lb.touch(now)
	return outcome, nil
}

func (lb *Leaderboard) touch(now time.Time) {
	lb.UpdatedAt = now.UTC()
	lb.Recalculate()
}

// resolveProblemKey looks the key up in the init catalogue first and falls
// back to any other row that already carries the problem.
func (lb *Leaderboard) resolveProblemKey(problemID string) (string, bool) {
	for _, p := range lb.Problems {
		if p.ID == problemID && p.Key != "" {
			return p.Key, true
		}
	}
	for _, u := range lb.Users {
		if idx := u.problemIndex(problemID); idx >= 0 && u.Problems[idx].ProblemKey != "" {
			return u.Problems[idx].ProblemKey, true
		}
	}
	return "", false
}
