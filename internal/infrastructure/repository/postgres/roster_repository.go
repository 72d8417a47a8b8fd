package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	qb "github.com/riskibarqy/contest-leaderboard/internal/platform/querybuilder"
)

type RosterRepository struct {
	db *sqlx.DB
}

func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) GetRoster(ctx context.Context, contestID string) (contest.Roster, bool, error) {
	exists, err := r.contestExists(ctx, contestID)
	if err != nil {
		return contest.Roster{}, false, err
	}
	if !exists {
		return contest.Roster{}, false, nil
	}

	problems, err := r.listProblems(ctx, contestID)
	if err != nil {
		return contest.Roster{}, false, err
	}
	participants, err := r.listParticipants(ctx, contestID)
	if err != nil {
		return contest.Roster{}, false, err
	}

	return rosterFromRows(contestID, problems, participants), true, nil
}

func (r *RosterRepository) contestExists(ctx context.Context, contestID string) (bool, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(
			qb.Eq("public_id", contestID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build get contest query: %w", err)
	}

	var row contestTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get contest: %w", err)
	}
	return true, nil
}

func (r *RosterRepository) listProblems(ctx context.Context, contestID string) ([]contestProblemTableModel, error) {
	query, args, err := qb.Select("problem_public_id", "problem_key", "position").From("contest_problems").
		Where(
			qb.Eq("contest_public_id", contestID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("position", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list contest problems query: %w", err)
	}

	var rows []contestProblemTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list contest problems: %w", err)
	}
	return rows, nil
}

func (r *RosterRepository) listParticipants(ctx context.Context, contestID string) ([]contestParticipantTableModel, error) {
	query, args, err := qb.Select("user_public_id", "username", "email", "joined_at").From("contest_participants").
		Where(
			qb.Eq("contest_public_id", contestID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("joined_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list contest participants query: %w", err)
	}

	var rows []contestParticipantTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list contest participants: %w", err)
	}
	return rows, nil
}

// rosterFromRows keeps query order: problems by position, participants by
// join time. Blank keys are left for leaderboard seeding to fill.
func rosterFromRows(contestID string, problems []contestProblemTableModel, participants []contestParticipantTableModel) contest.Roster {
	out := contest.Roster{
		ContestID:    contestID,
		Participants: make([]contest.Participant, 0, len(participants)),
		Problems:     make([]contest.Problem, 0, len(problems)),
	}
	for _, row := range problems {
		out.Problems = append(out.Problems, contest.Problem{
			ID:  row.ProblemPublicID,
			Key: nullStringValue(row.ProblemKey),
		})
	}
	for _, row := range participants {
		out.Participants = append(out.Participants, contest.Participant{
			UserID:   row.UserPublicID,
			Username: row.Username,
			Email:    nullStringValue(row.Email),
		})
	}
	return out
}
