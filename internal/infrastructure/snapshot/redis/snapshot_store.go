package redis

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/resilience"
)

// errRevisionMismatch is internal to one WATCH attempt; callers only ever
// see leaderboard.ErrVersionConflict.
var errRevisionMismatch = crerr.New("snapshot revision mismatch")

const maxSetAttempts = 3

type SnapshotStoreConfig struct {
	CircuitBreaker resilience.CircuitBreakerConfig
}

// SnapshotStore keeps one JSON document per contest under
// leaderboard_<contestId>, shared by every replica.
type SnapshotStore struct {
	client  goredis.UniversalClient
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

var _ leaderboard.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(client goredis.UniversalClient, cfg SnapshotStoreConfig, logger *logging.Logger) *SnapshotStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &SnapshotStore{
		client:  client,
		breaker: resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker, countsAsBackendFailure),
		logger:  logger,
	}
}

func (s *SnapshotStore) Get(ctx context.Context, contestID string) (leaderboard.Leaderboard, bool, error) {
	key := leaderboard.Key(contestID)

	var raw []byte
	err := s.guard(ctx, "get", func() error {
		var getErr error
		raw, getErr = s.client.Get(ctx, key).Bytes()
		return getErr
	})
	if stderrors.Is(err, goredis.Nil) {
		return leaderboard.Leaderboard{}, false, nil
	}
	if err != nil {
		return leaderboard.Leaderboard{}, false, unavailable(err, "get snapshot key=%s", key)
	}

	lb, err := DecodeSnapshot(raw)
	if err != nil {
		// A document we cannot read is as good as missing; init repairs it.
		s.logger.WarnContext(ctx, "discarding undecodable leaderboard snapshot", "key", key, "error", err)
		return leaderboard.Leaderboard{}, false, nil
	}
	return lb, true, nil
}

func (s *SnapshotStore) Set(ctx context.Context, contestID string, lb leaderboard.Leaderboard, ttl time.Duration) (leaderboard.Leaderboard, error) {
	if strings.TrimSpace(contestID) == "" {
		return leaderboard.Leaderboard{}, crerr.New("contest id is required")
	}
	key := leaderboard.Key(contestID)
	stored := lb.Clone()

	var err error
	for attempt := 0; attempt < maxSetAttempts; attempt++ {
		err = s.setOnce(ctx, key, &stored, ttl)
		// TxFailedErr means another writer touched the key between WATCH and
		// EXEC. Set is an unconditional overwrite, so just go again.
		if !stderrors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return leaderboard.Leaderboard{}, unavailable(err, "set snapshot key=%s", key)
	}
	return stored, nil
}

func (s *SnapshotStore) setOnce(ctx context.Context, key string, stored *leaderboard.Leaderboard, ttl time.Duration) error {
	return s.guard(ctx, "set", func() error {
		return s.client.Watch(ctx, func(tx *goredis.Tx) error {
			stored.Revision = 1
			raw, getErr := tx.Get(ctx, key).Bytes()
			switch {
			case getErr == nil:
				if prev, decodeErr := DecodeSnapshot(raw); decodeErr == nil {
					stored.Revision = prev.Revision + 1
				}
			case !stderrors.Is(getErr, goredis.Nil):
				return getErr
			}

			payload, encodeErr := EncodeSnapshot(*stored)
			if encodeErr != nil {
				return encodeErr
			}
			_, pipeErr := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			return pipeErr
		}, key)
	})
}

func (s *SnapshotStore) CompareAndSwap(ctx context.Context, contestID string, next leaderboard.Leaderboard, ttl time.Duration) (leaderboard.Leaderboard, error) {
	key := leaderboard.Key(contestID)
	stored := next.Clone()
	stored.Revision = next.Revision + 1

	payload, err := EncodeSnapshot(stored)
	if err != nil {
		return leaderboard.Leaderboard{}, crerr.Wrap(err, "encode leaderboard snapshot")
	}

	err = s.guard(ctx, "cas", func() error {
		return s.client.Watch(ctx, func(tx *goredis.Tx) error {
			raw, getErr := tx.Get(ctx, key).Bytes()
			if stderrors.Is(getErr, goredis.Nil) {
				return errRevisionMismatch
			}
			if getErr != nil {
				return getErr
			}
			prev, decodeErr := DecodeSnapshot(raw)
			if decodeErr != nil || prev.Generation != next.Generation || prev.Revision != next.Revision {
				return errRevisionMismatch
			}

			_, pipeErr := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			return pipeErr
		}, key)
	})
	if stderrors.Is(err, errRevisionMismatch) || stderrors.Is(err, goredis.TxFailedErr) {
		return leaderboard.Leaderboard{}, crerr.Wrapf(leaderboard.ErrVersionConflict, "contest=%s revision=%d", contestID, next.Revision)
	}
	if err != nil {
		return leaderboard.Leaderboard{}, unavailable(err, "cas snapshot key=%s", key)
	}
	return stored, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, contestID string) error {
	key := leaderboard.Key(contestID)
	err := s.guard(ctx, "delete", func() error {
		return s.client.Del(ctx, key).Err()
	})
	if err != nil {
		return unavailable(err, "delete snapshot key=%s", key)
	}
	return nil
}

func (s *SnapshotStore) guard(ctx context.Context, op string, fn func() error) error {
	err := s.breaker.Do(fn)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.WarnContext(ctx, "redis circuit breaker rejected snapshot call", "op", op, "state", s.breaker.State())
	}
	return err
}

func countsAsBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	return !stderrors.Is(err, goredis.Nil) &&
		!stderrors.Is(err, goredis.TxFailedErr) &&
		!stderrors.Is(err, errRevisionMismatch)
}

// unavailable marks err as a store outage while keeping the redis cause
// attached for logs.
func unavailable(cause error, format string, args ...any) error {
	return crerr.WithSecondaryError(crerr.Wrapf(leaderboard.ErrStoreUnavailable, format, args...), cause)
}

// EncodeSnapshot is the wire form shared by the store and the update relay.
func EncodeSnapshot(lb leaderboard.Leaderboard) ([]byte, error) {
	return sonic.Marshal(toDocument(lb))
}

// WriteSnapshot encodes lb into w in the same form as EncodeSnapshot.
func WriteSnapshot(w io.Writer, lb leaderboard.Leaderboard) error {
	return sonic.ConfigDefault.NewEncoder(w).Encode(toDocument(lb))
}

func DecodeSnapshot(raw []byte) (leaderboard.Leaderboard, error) {
	var doc snapshotDocument
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return leaderboard.Leaderboard{}, crerr.Wrap(err, "decode leaderboard snapshot")
	}
	return doc.toDomain(), nil
}
