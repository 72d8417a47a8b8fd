package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/contest-leaderboard/internal/infrastructure/snapshot/memory"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []leaderboard.Leaderboard
	err    error
}

func (b *recordingBroadcaster) Emit(_ context.Context, _ string, lb leaderboard.Leaderboard) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, lb)
	return b.err
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *recordingBroadcaster) last() leaderboard.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

func newMemoryService(t *testing.T, broadcaster Broadcaster) *LeaderboardService {
	t.Helper()
	return NewLeaderboardService(memory.NewSnapshotStore(nil), broadcaster, nil, LeaderboardServiceConfig{
		TTL:          time.Minute,
		StoreTimeout: time.Second,
		CASRetries:   3,
	}, logging.NewNop())
}

func participants(ids ...string) []contest.Participant {
	out := make([]contest.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, contest.Participant{UserID: id, Username: "user-" + id})
	}
	return out
}

func problems(ids ...string) []contest.Problem {
	out := make([]contest.Problem, 0, len(ids))
	for _, id := range ids {
		out = append(out, contest.Problem{ID: id})
	}
	return out
}

func ranking(lb leaderboard.Leaderboard) string {
	out := ""
	for i, u := range lb.Users {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s(%g)", u.UserID, u.TotalScore)
	}
	return out
}

func mustUpdate(t *testing.T, svc *LeaderboardService, contestID, userID, problemID string, score float64) UpdateResult {
	t.Helper()
	result, err := svc.UpdateScore(context.Background(), contestID, userID, problemID, score)
	if err != nil {
		t.Fatalf("update %s/%s/%s=%v: %v", contestID, userID, problemID, score, err)
	}
	return result
}

func TestLeaderboardService_ContestScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broadcaster := &recordingBroadcaster{}
	svc := newMemoryService(t, broadcaster)

	if _, err := svc.InitLeaderboard(ctx, "C1", participants("U1", "U2"), problems("P1")); err != nil {
		t.Fatalf("init: %v", err)
	}

	if got := mustUpdate(t, svc, "C1", "U1", "P1", 80); got.Outcome != UpdateApplied || got.Rank != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	lb, _, _ := svc.GetLeaderboard(ctx, "C1")
	if got := ranking(lb); got != "U1(80),U2(0)" {
		t.Fatalf("unexpected ranking: %s", got)
	}

	mustUpdate(t, svc, "C1", "U2", "P1", 90)
	lb, _, _ = svc.GetLeaderboard(ctx, "C1")
	if got := ranking(lb); got != "U2(90),U1(80)" {
		t.Fatalf("unexpected ranking: %s", got)
	}

	emitted := broadcaster.count()
	if got := mustUpdate(t, svc, "C1", "U1", "P1", 70); got.Outcome != UpdateIgnored {
		t.Fatalf("expected lower score to be ignored, got %s", got.Outcome)
	}
	if broadcaster.count() != emitted {
		t.Fatalf("ignored update must not broadcast")
	}
	lb, _, _ = svc.GetLeaderboard(ctx, "C1")
	if got := ranking(lb); got != "U2(90),U1(80)" {
		t.Fatalf("ranking changed after ignored update: %s", got)
	}

	if err := svc.DeleteLeaderboard(ctx, "C1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := mustUpdate(t, svc, "C1", "U1", "P1", 95); got.Outcome != UpdateNotInitialized {
		t.Fatalf("expected not_initialized after delete, got %s", got.Outcome)
	}
	if _, ok, err := svc.GetLeaderboard(ctx, "C1"); err != nil || ok {
		t.Fatalf("expected absent leaderboard, ok=%v err=%v", ok, err)
	}
}

func TestLeaderboardService_BroadcastCarriesCommittedSnapshot(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{}
	svc := newMemoryService(t, broadcaster)
	if _, err := svc.InitLeaderboard(context.Background(), "C1", participants("U1"), problems("P1")); err != nil {
		t.Fatalf("init: %v", err)
	}
	result := mustUpdate(t, svc, "C1", "U1", "P1", 33)

	last := broadcaster.last()
	if last.Revision != result.Revision || last.Users[0].TotalScore != 33 {
		t.Fatalf("broadcast does not match committed write: %+v vs %+v", last, result)
	}
}

func TestLeaderboardService_BroadcastFailureDoesNotUnwindWrite(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{err: errors.New("socket gone")}
	svc := newMemoryService(t, broadcaster)
	if _, err := svc.InitLeaderboard(context.Background(), "C1", participants("U1"), problems("P1")); err != nil {
		t.Fatalf("init: %v", err)
	}

	result := mustUpdate(t, svc, "C1", "U1", "P1", 10)
	if result.Outcome != UpdateApplied {
		t.Fatalf("expected applied despite broadcast failure, got %s", result.Outcome)
	}
	lb, _, _ := svc.GetLeaderboard(context.Background(), "C1")
	if lb.Users[0].TotalScore != 10 {
		t.Fatalf("store write was lost")
	}
}

func TestLeaderboardService_InitIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newMemoryService(t, nil)

	first, err := svc.InitLeaderboard(ctx, "C1", participants("U1", "U2"), problems("P1", "P2"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	mustUpdate(t, svc, "C1", "U2", "P2", 50)

	second, err := svc.InitLeaderboard(ctx, "C1", participants("U1", "U2"), problems("P1", "P2"))
	if err != nil {
		t.Fatalf("re-init: %v", err)
	}
	if second.Generation == first.Generation {
		t.Fatalf("expected a new generation on re-init")
	}
	if ranking(second) != ranking(first) || ranking(second) != "U1(0),U2(0)" {
		t.Fatalf("re-init did not reset scores: %s", ranking(second))
	}
	for _, u := range second.Users {
		for _, ps := range u.Problems {
			if ps.Score != 0 {
				t.Fatalf("expected zero scores after re-init, got %+v", u)
			}
		}
	}
}

func TestLeaderboardService_InitValidation(t *testing.T) {
	t.Parallel()

	svc := newMemoryService(t, nil)
	ctx := context.Background()
	if _, err := svc.InitLeaderboard(ctx, " ", nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank contest, got %v", err)
	}
	_, err := svc.InitLeaderboard(ctx, "C1", participants("U1", "U1"), problems("P1"))
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, leaderboard.ErrDuplicateParticipant) {
		t.Fatalf("expected duplicate participant error, got %v", err)
	}
}

func TestLeaderboardService_UpdateValidation(t *testing.T) {
	t.Parallel()

	svc := newMemoryService(t, nil)
	ctx := context.Background()
	cases := []struct {
		contestID, userID, problemID string
		score                        float64
	}{
		{"", "U1", "P1", 1},
		{"C1", "", "P1", 1},
		{"C1", "U1", "", 1},
		{"C1", "U1", "P1", -5},
	}
	for _, tc := range cases {
		if _, err := svc.UpdateScore(ctx, tc.contestID, tc.userID, tc.problemID, tc.score); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", tc, err)
		}
	}
}

func TestLeaderboardService_UnknownParticipantIsNoop(t *testing.T) {
	t.Parallel()

	svc := newMemoryService(t, nil)
	before, _ := svc.InitLeaderboard(context.Background(), "C1", participants("U1"), problems("P1"))

	result := mustUpdate(t, svc, "C1", "ghost", "P1", 100)
	if result.Outcome != UpdateUnknownParticipant {
		t.Fatalf("expected unknown_participant, got %s", result.Outcome)
	}
	after, _, _ := svc.GetLeaderboard(context.Background(), "C1")
	if after.Revision != before.Revision {
		t.Fatalf("unknown participant must not write")
	}
}

func TestLeaderboardService_UnresolvableProblemKeyIsExplicit(t *testing.T) {
	t.Parallel()

	svc := newMemoryService(t, nil)
	before, _ := svc.InitLeaderboard(context.Background(), "C1", participants("U1"), problems("P1"))

	result, err := svc.UpdateScore(context.Background(), "C1", "U1", "P-new", 10)
	if !errors.Is(err, leaderboard.ErrUnresolvableProblemKey) {
		t.Fatalf("expected ErrUnresolvableProblemKey, got %v", err)
	}
	if result.Outcome != UpdateUnresolvable {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}
	after, _, _ := svc.GetLeaderboard(context.Background(), "C1")
	if after.Revision != before.Revision {
		t.Fatalf("snapshot must be left unchanged")
	}
}

func TestLeaderboardService_ConcurrentDistinctUsersAllReflected(t *testing.T) {
	t.Parallel()

	const n = 64
	ctx := context.Background()
	svc := newMemoryService(t, nil)

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("U%02d", i)
	}
	if _, err := svc.InitLeaderboard(ctx, "C1", participants(ids...), problems("P1")); err != nil {
		t.Fatalf("init: %v", err)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(id string, score float64) {
			defer wg.Done()
			if _, err := svc.UpdateScore(ctx, "C1", id, "P1", score); err != nil {
				t.Errorf("update %s: %v", id, err)
			}
		}(id, float64(i+1))
	}
	wg.Wait()

	lb, _, _ := svc.GetLeaderboard(ctx, "C1")
	for i, id := range ids {
		entry, ok := lb.FindUser(id)
		if !ok || entry.TotalScore != float64(i+1) {
			t.Fatalf("update for %s lost: %+v", id, entry)
		}
	}
	if lb.Users[0].UserID != ids[n-1] {
		t.Fatalf("expected highest score first, got %s", lb.Users[0].UserID)
	}
}

func TestLeaderboardService_ReplicasSharingStoreLoseNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewSnapshotStore(nil)
	cfg := LeaderboardServiceConfig{TTL: time.Minute, StoreTimeout: time.Second, CASRetries: 100}
	replicaA := NewLeaderboardService(store, nil, nil, cfg, logging.NewNop())
	replicaB := NewLeaderboardService(store, nil, nil, cfg, logging.NewNop())

	const n = 40
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("U%02d", i)
	}
	if _, err := replicaA.InitLeaderboard(ctx, "C1", participants(ids...), problems("P1")); err != nil {
		t.Fatalf("init: %v", err)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		svc := replicaA
		if i%2 == 1 {
			svc = replicaB
		}
		wg.Add(1)
		go func(svc *LeaderboardService, id string, score float64) {
			defer wg.Done()
			if _, err := svc.UpdateScore(ctx, "C1", id, "P1", score); err != nil {
				t.Errorf("update %s: %v", id, err)
			}
		}(svc, id, float64(i+1))
	}
	wg.Wait()

	lb, _, _ := replicaB.GetLeaderboard(ctx, "C1")
	for i, id := range ids {
		if entry, _ := lb.FindUser(id); entry.TotalScore != float64(i+1) {
			t.Fatalf("update for %s lost across replicas: %+v", id, entry)
		}
	}
}

func TestLeaderboardService_StoredScoreIsMax(t *testing.T) {
	t.Parallel()

	svc := newMemoryService(t, nil)
	if _, err := svc.InitLeaderboard(context.Background(), "C1", participants("U1"), problems("P1", "P2")); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, s := range []float64{10, 40, 20, 40, 35, 5} {
		mustUpdate(t, svc, "C1", "U1", "P1", s)
	}
	mustUpdate(t, svc, "C1", "U1", "P2", 7)

	lb, _, _ := svc.GetLeaderboard(context.Background(), "C1")
	entry, _ := lb.FindUser("U1")
	if got, _ := entry.Score("P1"); got != 40 {
		t.Fatalf("expected max score 40, got %v", got)
	}
	if entry.TotalScore != 47 {
		t.Fatalf("expected total 47, got %v", entry.TotalScore)
	}
}

type blockingBroadcaster struct {
	hadDeadline bool
}

func (b *blockingBroadcaster) Emit(ctx context.Context, _ string, _ leaderboard.Leaderboard) error {
	_, b.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestLeaderboardService_StalledBroadcastIsBounded(t *testing.T) {
	t.Parallel()

	broadcaster := &blockingBroadcaster{}
	svc := NewLeaderboardService(memory.NewSnapshotStore(nil), broadcaster, nil, LeaderboardServiceConfig{
		StoreTimeout: 20 * time.Millisecond,
	}, logging.NewNop())
	if _, err := svc.InitLeaderboard(context.Background(), "C1", participants("U1"), problems("P1")); err != nil {
		t.Fatalf("init: %v", err)
	}

	start := time.Now()
	result := mustUpdate(t, svc, "C1", "U1", "P1", 40)
	if result.Outcome != UpdateApplied {
		t.Fatalf("a stalled broadcast must not undo the write: %+v", result)
	}
	if !broadcaster.hadDeadline {
		t.Fatalf("expected broadcast context to carry a deadline")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("broadcast was not bounded by the timeout")
	}
}
