package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/resilience"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Broadcaster pushes a committed snapshot to live viewers. Failures are
// logged by the service and never affect the store write.
type Broadcaster interface {
	Emit(ctx context.Context, contestID string, lb leaderboard.Leaderboard) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) Emit(_ context.Context, _ string, _ leaderboard.Leaderboard) error {
	return nil
}

func NewNoopBroadcaster() Broadcaster {
	return noopBroadcaster{}
}

// rosterInvalidator is implemented by caching roster repositories; rebuild
// drops the cached roster so it reads the system of record.
type rosterInvalidator interface {
	Invalidate(ctx context.Context, contestID string)
}

type LeaderboardServiceConfig struct {
	TTL          time.Duration
	StoreTimeout time.Duration
	CASRetries   int
}

type UpdateOutcome string

const (
	UpdateApplied            UpdateOutcome = "applied"
	UpdateRepaired           UpdateOutcome = "repaired"
	UpdateIgnored            UpdateOutcome = "ignored"
	UpdateNotInitialized     UpdateOutcome = "not_initialized"
	UpdateUnknownParticipant UpdateOutcome = "unknown_participant"
	UpdateUnresolvable       UpdateOutcome = "unresolvable_problem_key"
	UpdateStoreUnavailable   UpdateOutcome = "store_unavailable"
)

// Changed reports whether the outcome produced a new stored snapshot.
func (o UpdateOutcome) Changed() bool {
	return o == UpdateApplied || o == UpdateRepaired
}

type UpdateResult struct {
	ContestID  string        `json:"contest_id"`
	UserID     string        `json:"user_id"`
	ProblemID  string        `json:"problem_id"`
	Outcome    UpdateOutcome `json:"outcome"`
	Revision   int64         `json:"revision,omitempty"`
	Rank       int           `json:"rank,omitempty"`
	TotalScore float64       `json:"total_score"`
	Attempts   int           `json:"attempts"`
}

type LeaderboardService struct {
	store       leaderboard.SnapshotStore
	broadcaster Broadcaster
	rosterRepo  contest.RosterRepository
	locks       resilience.KeyedMutex
	cfg         LeaderboardServiceConfig
	logger      *logging.Logger
	now         func() time.Time
	generation  func() string
}

func NewLeaderboardService(
	store leaderboard.SnapshotStore,
	broadcaster Broadcaster,
	rosterRepo contest.RosterRepository,
	cfg LeaderboardServiceConfig,
	logger *logging.Logger,
) *LeaderboardService {
	if broadcaster == nil {
		broadcaster = NewNoopBroadcaster()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 6 * time.Hour
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	if cfg.CASRetries < 0 {
		cfg.CASRetries = 0
	}

	return &LeaderboardService{
		store:       store,
		broadcaster: broadcaster,
		rosterRepo:  rosterRepo,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		generation:  uuid.NewString,
	}
}

// InitLeaderboard replaces any prior snapshot with a zero-score one for
// every participant and problem. Calling it twice with the same input gives
// equivalent snapshots.
func (s *LeaderboardService) InitLeaderboard(ctx context.Context, contestID string, participants []contest.Participant, problems []contest.Problem) (leaderboard.Leaderboard, error) {
	contestID = strings.TrimSpace(contestID)
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.InitLeaderboard", attribute.String("contest.id", contestID))
	defer span.End()

	if contestID == "" {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}

	seeded, err := leaderboard.Seed(contestID, s.generation(), participants, problems, s.now())
	if err != nil {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	unlock := s.locks.Lock(contestID)
	defer unlock()

	storeCtx, cancel := s.storeContext(ctx)
	stored, err := s.store.Set(storeCtx, contestID, seeded, s.cfg.TTL)
	cancel()
	if err != nil {
		err = s.storeError("set leaderboard", err)
		recordSpanError(span, err)
		s.logger.ErrorContext(ctx, "init leaderboard failed", "contest_id", contestID, "error", err)
		return leaderboard.Leaderboard{}, err
	}

	s.logger.InfoContext(ctx, "leaderboard initialized",
		"contest_id", contestID,
		"generation", stored.Generation,
		"participants", len(stored.Users),
		"problems", len(stored.Problems),
	)
	s.emit(ctx, stored)
	return stored, nil
}

func (s *LeaderboardService) GetLeaderboard(ctx context.Context, contestID string) (leaderboard.Leaderboard, bool, error) {
	contestID = strings.TrimSpace(contestID)
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.GetLeaderboard", attribute.String("contest.id", contestID))
	defer span.End()

	if contestID == "" {
		return leaderboard.Leaderboard{}, false, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	lb, ok, err := s.store.Get(storeCtx, contestID)
	if err != nil {
		err = s.storeError("get leaderboard", err)
		recordSpanError(span, err)
		return leaderboard.Leaderboard{}, false, err
	}
	return lb, ok, nil
}

// UpdateScore merges one judged score with best-score-wins. Missing or
// expired snapshots and unknown participants are reported through the
// outcome with a nil error. Store failures and exhausted version conflicts
// return ErrDependencyUnavailable.
func (s *LeaderboardService) UpdateScore(ctx context.Context, contestID, userID, problemID string, score float64) (UpdateResult, error) {
	contestID = strings.TrimSpace(contestID)
	userID = strings.TrimSpace(userID)
	problemID = strings.TrimSpace(problemID)

	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.UpdateScore",
		attribute.String("contest.id", contestID),
		attribute.String("user.id", userID),
		attribute.String("problem.id", problemID),
	)
	defer span.End()

	result := UpdateResult{ContestID: contestID, UserID: userID, ProblemID: problemID}
	switch {
	case contestID == "":
		return result, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	case userID == "":
		return result, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case problemID == "":
		return result, fmt.Errorf("%w: problem id is required", ErrInvalidInput)
	case math.IsNaN(score) || math.IsInf(score, 0) || score < 0:
		return result, fmt.Errorf("%w: %w: %v", ErrInvalidInput, leaderboard.ErrInvalidScore, score)
	}

	unlock := s.locks.Lock(contestID)
	defer unlock()

	for attempt := 0; attempt <= s.cfg.CASRetries; attempt++ {
		result.Attempts = attempt + 1

		storeCtx, cancel := s.storeContext(ctx)
		current, ok, err := s.store.Get(storeCtx, contestID)
		cancel()
		if err != nil {
			return s.failUpdate(ctx, span, result, s.storeError("get leaderboard", err))
		}
		if !ok {
			result.Outcome = UpdateNotInitialized
			s.logger.WarnContext(ctx, "score update skipped, leaderboard not initialized",
				"contest_id", contestID, "user_id", userID, "problem_id", problemID)
			return result, nil
		}

		merged, err := current.ApplyScore(userID, problemID, score, s.now())
		switch {
		case errors.Is(err, leaderboard.ErrUnknownParticipant):
			result.Outcome = UpdateUnknownParticipant
			s.logger.InfoContext(ctx, "score update skipped, unknown participant",
				"contest_id", contestID, "user_id", userID, "problem_id", problemID)
			return result, nil
		case errors.Is(err, leaderboard.ErrUnresolvableProblemKey):
			result.Outcome = UpdateUnresolvable
			recordSpanError(span, err)
			s.logger.ErrorContext(ctx, "score update rejected, problem key cannot be resolved",
				"contest_id", contestID, "user_id", userID, "problem_id", problemID, "error", err)
			return result, err
		case err != nil:
			return result, fmt.Errorf("apply score: %w", err)
		}

		if merged == leaderboard.MergeIgnored {
			result.Outcome = UpdateIgnored
			result.Revision = current.Revision
			fillStanding(&result, current)
			return result, nil
		}

		storeCtx, cancel = s.storeContext(ctx)
		written, err := s.store.CompareAndSwap(storeCtx, contestID, current, s.cfg.TTL)
		cancel()
		if errors.Is(err, leaderboard.ErrVersionConflict) {
			s.logger.DebugContext(ctx, "leaderboard version conflict, retrying merge",
				"contest_id", contestID, "attempt", result.Attempts)
			continue
		}
		if err != nil {
			return s.failUpdate(ctx, span, result, s.storeError("write leaderboard", err))
		}

		result.Outcome = UpdateApplied
		if merged == leaderboard.MergeRepaired {
			result.Outcome = UpdateRepaired
			s.logger.WarnContext(ctx, "repaired missing problem cell in leaderboard",
				"contest_id", contestID, "user_id", userID, "problem_id", problemID)
		}
		result.Revision = written.Revision
		fillStanding(&result, written)
		setSpanAttributes(span, attribute.String("leaderboard.outcome", string(result.Outcome)))

		s.emit(ctx, written)
		return result, nil
	}

	err := fmt.Errorf("%w: %w after %d attempts contest=%s", ErrDependencyUnavailable, leaderboard.ErrVersionConflict, result.Attempts, contestID)
	return s.failUpdate(ctx, span, result, err)
}

func (s *LeaderboardService) DeleteLeaderboard(ctx context.Context, contestID string) error {
	contestID = strings.TrimSpace(contestID)
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.DeleteLeaderboard", attribute.String("contest.id", contestID))
	defer span.End()

	if contestID == "" {
		return fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock(contestID)
	defer unlock()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.Delete(storeCtx, contestID); err != nil {
		err = s.storeError("delete leaderboard", err)
		recordSpanError(span, err)
		s.logger.ErrorContext(ctx, "delete leaderboard failed", "contest_id", contestID, "error", err)
		return err
	}

	s.logger.InfoContext(ctx, "leaderboard deleted", "contest_id", contestID)
	return nil
}

// RebuildLeaderboard re-runs init from the authoritative roster, for use
// after TTL expiry or cache loss. Previous scores are not recovered.
func (s *LeaderboardService) RebuildLeaderboard(ctx context.Context, contestID string) (leaderboard.Leaderboard, error) {
	contestID = strings.TrimSpace(contestID)
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.RebuildLeaderboard", attribute.String("contest.id", contestID))
	defer span.End()

	if contestID == "" {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}
	if s.rosterRepo == nil {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: roster source is not configured", ErrDependencyUnavailable)
	}

	if inv, ok := s.rosterRepo.(rosterInvalidator); ok {
		inv.Invalidate(ctx, contestID)
	}
	roster, exists, err := s.rosterRepo.GetRoster(ctx, contestID)
	if err != nil {
		err = fmt.Errorf("%w: get roster: %w", ErrDependencyUnavailable, err)
		recordSpanError(span, err)
		return leaderboard.Leaderboard{}, err
	}
	if !exists {
		return leaderboard.Leaderboard{}, fmt.Errorf("%w: contest=%s", ErrNotFound, contestID)
	}

	return s.InitLeaderboard(ctx, contestID, roster.Participants, roster.Problems)
}

// emit runs under the contest lock, so it shares the store timeout.
func (s *LeaderboardService) emit(ctx context.Context, lb leaderboard.Leaderboard) {
	emitCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.broadcaster.Emit(emitCtx, lb.ContestID, lb); err != nil {
		s.logger.WarnContext(ctx, "leaderboard broadcast failed",
			"contest_id", lb.ContestID, "revision", lb.Revision, "error", err)
	}
}

func (s *LeaderboardService) failUpdate(ctx context.Context, span trace.Span, result UpdateResult, err error) (UpdateResult, error) {
	result.Outcome = UpdateStoreUnavailable
	recordSpanError(span, err)
	s.logger.ErrorContext(ctx, "score update failed",
		"contest_id", result.ContestID,
		"user_id", result.UserID,
		"problem_id", result.ProblemID,
		"attempts", result.Attempts,
		"error", err,
	)
	return result, err
}

func (s *LeaderboardService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *LeaderboardService) storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependencyUnavailable, op, err)
}

func fillStanding(result *UpdateResult, lb leaderboard.Leaderboard) {
	if entry, ok := lb.FindUser(result.UserID); ok {
		result.Rank = entry.Rank
		result.TotalScore = entry.TotalScore
	}
}
