package pubsub

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	snapshotredis "github.com/riskibarqy/contest-leaderboard/internal/infrastructure/snapshot/redis"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/contest-leaderboard/internal/realtime"
)

type recordingDeliverer struct {
	mu       sync.Mutex
	contests []string
	got      []leaderboard.Leaderboard
}

func (d *recordingDeliverer) Deliver(contestID string, lb leaderboard.Leaderboard) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contests = append(d.contests, contestID)
	d.got = append(d.got, lb)
	return 1, nil
}

func TestRedisRelay_ForwardDecodesIntoLocalHub(t *testing.T) {
	t.Parallel()

	local := &recordingDeliverer{}
	relay := NewRedisRelay(nil, local, "", logging.NewNop())

	payload, err := snapshotredis.EncodeSnapshot(leaderboard.Leaderboard{
		ContestID:  "C1",
		Generation: "g1",
		Revision:   3,
		Users:      []leaderboard.UserEntry{{UserID: "U1", TotalScore: 80}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	relay.forward(context.Background(), relay.Channel("C1"), string(payload))

	if len(local.got) != 1 || local.contests[0] != "C1" {
		t.Fatalf("expected one delivery to C1, got %v", local.contests)
	}
	if local.got[0].Revision != 3 || local.got[0].Users[0].TotalScore != 80 {
		t.Fatalf("unexpected forwarded snapshot: %+v", local.got[0])
	}
}

func TestRedisRelay_ForwardSkipsBadMessages(t *testing.T) {
	t.Parallel()

	local := &recordingDeliverer{}
	relay := NewRedisRelay(nil, local, "updates:", logging.NewNop())

	relay.forward(context.Background(), "other:C1", `{}`)
	relay.forward(context.Background(), "updates:", `{}`)
	relay.forward(context.Background(), "updates:C1", `not-json`)

	if len(local.got) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(local.got))
	}
}

func TestRedisRelay_Channel(t *testing.T) {
	t.Parallel()

	relay := NewRedisRelay(nil, nil, "", nil)
	if got := relay.Channel("C1"); got != "leaderboard_updates:C1" {
		t.Fatalf("unexpected channel: %s", got)
	}
	if id, ok := relay.contestFromChannel("leaderboard_updates:C9"); !ok || id != "C9" {
		t.Fatalf("unexpected parse: %q %v", id, ok)
	}
}

func TestRedisRelay_PublishFailureIsReturned(t *testing.T) {
	t.Parallel()

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	relay := NewRedisRelay(client, &recordingDeliverer{}, "", logging.NewNop())
	if err := relay.Emit(context.Background(), "C1", leaderboard.Leaderboard{ContestID: "C1"}); err == nil {
		t.Fatalf("expected publish error against unreachable redis")
	}
}

func TestRedisRelay_RunKeepsRetryingWhileRedisIsDown(t *testing.T) {
	t.Parallel()

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	relay := NewRedisRelay(client, &recordingDeliverer{}, "", logging.NewNop())
	relay.retryBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("run returned while redis was down: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func TestRedisRelay_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	hub := realtime.NewHub(4, logging.NewNop())
	prefix := "it-updates-" + uuid.NewString() + ":"
	relay := NewRedisRelay(client, hub, prefix, logging.NewNop())
	sub, _ := hub.Subscribe("C1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := relay.Emit(context.Background(), "C1", leaderboard.Leaderboard{ContestID: "C1", Revision: 9}); err != nil {
			t.Fatalf("emit: %v", err)
		}
		select {
		case got := <-sub.C:
			if got.Revision != 9 {
				t.Fatalf("unexpected relayed snapshot: %+v", got)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatalf("relayed update never arrived")
		}
	}
}
