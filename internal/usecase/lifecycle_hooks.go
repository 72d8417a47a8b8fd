package usecase

import (
	"context"
	"errors"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
)

// LifecycleHooks are the entry points used by the judging pipeline and by
// contest lifecycle management. The leaderboard is a best-effort view, so
// store outages are logged and never fail the triggering event. Invalid
// input and unresolvable problem keys are still returned.
type LifecycleHooks struct {
	leaderboards *LeaderboardService
	logger       *logging.Logger
}

func NewLifecycleHooks(leaderboards *LeaderboardService, logger *logging.Logger) *LifecycleHooks {
	if logger == nil {
		logger = logging.Default()
	}
	return &LifecycleHooks{
		leaderboards: leaderboards,
		logger:       logger,
	}
}

func (h *LifecycleHooks) OnSubmissionScored(ctx context.Context, contestID, userID, problemID string, score float64) error {
	result, err := h.leaderboards.UpdateScore(ctx, contestID, userID, problemID, score)
	if err := h.swallowUnavailable(ctx, "submission scored", contestID, err); err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "submission score merged",
		"contest_id", contestID,
		"user_id", userID,
		"problem_id", problemID,
		"outcome", string(result.Outcome),
	)
	return nil
}

func (h *LifecycleHooks) OnContestActivated(ctx context.Context, contestID string, participants []contest.Participant, problems []contest.Problem) error {
	_, err := h.leaderboards.InitLeaderboard(ctx, contestID, participants, problems)
	return h.swallowUnavailable(ctx, "contest activated", contestID, err)
}

func (h *LifecycleHooks) OnContestTornDown(ctx context.Context, contestID string) error {
	err := h.leaderboards.DeleteLeaderboard(ctx, contestID)
	return h.swallowUnavailable(ctx, "contest torn down", contestID, err)
}

func (h *LifecycleHooks) swallowUnavailable(ctx context.Context, event, contestID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDependencyUnavailable) {
		h.logger.WarnContext(ctx, "leaderboard hook degraded", "event", event, "contest_id", contestID, "error", err)
		return nil
	}
	return err
}
