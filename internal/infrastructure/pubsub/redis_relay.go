package pubsub

import (
	"context"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	snapshotredis "github.com/riskibarqy/contest-leaderboard/internal/infrastructure/snapshot/redis"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/valyala/bytebufferpool"
)

const (
	DefaultChannelPrefix = "leaderboard_updates:"

	defaultRetryBackoff = 2 * time.Second
)

// LocalDeliverer is the in-process fan-out that received updates are
// forwarded into.
type LocalDeliverer interface {
	Deliver(contestID string, lb leaderboard.Leaderboard) (int, error)
}

// RedisRelay publishes every emitted snapshot on a per-contest channel and
// forwards snapshots published by any replica into the local hub. A replica
// in redis mode hears its own publishes, so local delivery happens only
// through Run.
type RedisRelay struct {
	client goredis.UniversalClient
	local  LocalDeliverer
	prefix string
	logger *logging.Logger

	retryBackoff time.Duration
}

func NewRedisRelay(client goredis.UniversalClient, local LocalDeliverer, prefix string, logger *logging.Logger) *RedisRelay {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisRelay{
		client: client,
		local:  local,
		prefix: prefix,
		logger: logger,

		retryBackoff: defaultRetryBackoff,
	}
}

func (r *RedisRelay) Channel(contestID string) string {
	return r.prefix + contestID
}

func (r *RedisRelay) contestFromChannel(channel string) (string, bool) {
	contestID, ok := strings.CutPrefix(channel, r.prefix)
	if !ok || contestID == "" {
		return "", false
	}
	return contestID, true
}

func (r *RedisRelay) Emit(ctx context.Context, contestID string, lb leaderboard.Leaderboard) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := snapshotredis.WriteSnapshot(buf, lb); err != nil {
		return crerr.Wrapf(err, "encode leaderboard update contest=%s", contestID)
	}
	if err := r.client.Publish(ctx, r.Channel(contestID), buf.Bytes()).Err(); err != nil {
		return crerr.Wrapf(err, "publish leaderboard update contest=%s", contestID)
	}
	return nil
}

// Run pattern-subscribes to every contest channel and forwards messages
// until ctx is done. A failed or broken subscription is logged and retried,
// so Redis outages never stop the caller.
func (r *RedisRelay) Run(ctx context.Context) error {
	pattern := r.prefix + "*"
	for {
		err := r.subscribeAndForward(ctx, pattern)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.WarnContext(ctx, "leaderboard relay subscription failed, retrying",
			"pattern", pattern,
			"retry_in", r.retryBackoff,
			"error", err,
		)
		if !sleepCtx(ctx, r.retryBackoff) {
			return nil
		}
	}
}

func (r *RedisRelay) subscribeAndForward(ctx context.Context, pattern string) error {
	sub := r.client.PSubscribe(ctx, pattern)
	defer func() {
		_ = sub.Close()
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return crerr.Wrapf(err, "subscribe pattern=%s", pattern)
	}
	r.logger.InfoContext(ctx, "leaderboard relay subscribed", "pattern", pattern)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return crerr.New("leaderboard relay subscription closed")
			}
			r.forward(ctx, msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, channel, payload string) {
	contestID, ok := r.contestFromChannel(channel)
	if !ok {
		r.logger.WarnContext(ctx, "relay message on unexpected channel", "channel", channel)
		return
	}

	lb, err := snapshotredis.DecodeSnapshot([]byte(payload))
	if err != nil {
		r.logger.WarnContext(ctx, "dropping undecodable relay message", "channel", channel, "error", err)
		return
	}

	if _, err := r.local.Deliver(contestID, lb); err != nil {
		r.logger.WarnContext(ctx, "local delivery of relayed update failed", "contest_id", contestID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
