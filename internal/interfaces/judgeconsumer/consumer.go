// Package judgeconsumer feeds judge results from Kafka into the leaderboard
// lifecycle hooks.
package judgeconsumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBatchSize  = 64
	defaultWorkers    = 8
	defaultBatchWait  = 250 * time.Millisecond
	commitTimeout     = 5 * time.Second
	fetchErrorBackoff = time.Second
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ScoreHook receives one scored submission. Errors it returns are logged and
// the message is still committed; a retry would fail the same way.
type ScoreHook interface {
	OnSubmissionScored(ctx context.Context, contestID, userID, problemID string, score float64) error
}

type ConsumerConfig struct {
	Workers   int
	BatchSize int
	// BatchWait bounds how long a partial batch waits for more messages.
	BatchWait time.Duration
}

type Consumer struct {
	reader MessageReader
	hook   ScoreHook
	pool   *ants.Pool
	cfg    ConsumerConfig
	logger *logging.Logger
}

// BatchStats summarizes one processed batch.
type BatchStats struct {
	Fetched   int
	Applied   int
	Skipped   int
	Malformed int
	Failed    int
}

func NewConsumer(reader MessageReader, hook ScoreHook, cfg ConsumerConfig, logger *logging.Logger) (*Consumer, error) {
	if reader == nil || hook == nil {
		return nil, errors.New("judge consumer requires a reader and a score hook")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = defaultBatchWait
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, crerr.Wrap(err, "create judge consumer worker pool")
	}

	return &Consumer{
		reader: reader,
		hook:   hook,
		pool:   pool,
		cfg:    cfg,
		logger: logger.Named("judgeconsumer"),
	}, nil
}

// Run consumes until ctx is done or the reader is closed. Offsets are
// committed once per batch after every message in it was handled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.pool.Release()
	c.logger.InfoContext(ctx, "judge consumer started",
		"workers", c.cfg.Workers,
		"batch_size", c.cfg.BatchSize,
	)

	for {
		batch, err := c.fetchBatch(ctx)
		if len(batch) > 0 {
			stats := c.processBatch(ctx, batch)
			c.commit(ctx, batch)
			c.logger.DebugContext(ctx, "judge batch processed",
				"fetched", stats.Fetched,
				"applied", stats.Applied,
				"skipped", stats.Skipped,
				"malformed", stats.Malformed,
				"failed", stats.Failed,
			)
		}

		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			c.logger.InfoContext(ctx, "judge consumer stopped")
			return nil
		case errors.Is(err, io.EOF):
			c.logger.InfoContext(ctx, "judge consumer reader closed")
			return nil
		default:
			c.logger.WarnContext(ctx, "fetch judge result failed", "error", err)
			if !sleepCtx(ctx, fetchErrorBackoff) {
				return nil
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// fetchBatch blocks for the first message, then gathers more until the
// batch is full or BatchWait passes.
func (c *Consumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]kafka.Message, 0, c.cfg.BatchSize)
	batch = append(batch, first)

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchWait)
	defer cancel()
	for len(batch) < c.cfg.BatchSize {
		msg, err := c.reader.FetchMessage(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

func (c *Consumer) processBatch(ctx context.Context, batch []kafka.Message) BatchStats {
	stats := BatchStats{Fetched: len(batch)}
	var mu sync.Mutex
	record := func(apply func(*BatchStats)) {
		mu.Lock()
		apply(&stats)
		mu.Unlock()
	}

	var workers sync.WaitGroup
	for _, msg := range batch {
		workers.Add(1)
		task := func() {
			defer workers.Done()
			c.handle(ctx, msg, record)
		}
		if err := c.pool.Submit(task); err != nil {
			c.logger.WarnContext(ctx, "worker pool rejected judge result, handling inline", "error", err)
			task()
		}
	}
	workers.Wait()
	return stats
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, record func(func(*BatchStats))) {
	event, err := decodeEvent(msg.Value)
	if err != nil {
		record(func(s *BatchStats) { s.Malformed++ })
		c.logger.WarnContext(ctx, "skipping malformed judge result",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if !event.counts() {
		record(func(s *BatchStats) { s.Skipped++ })
		return
	}

	if err := c.hook.OnSubmissionScored(ctx, event.ContestID, event.UserID, event.ProblemID, event.Score); err != nil {
		record(func(s *BatchStats) { s.Failed++ })
		c.logger.ErrorContext(ctx, "judge result rejected by leaderboard",
			"submission_id", event.SubmissionID,
			"contest_id", event.ContestID,
			"user_id", event.UserID,
			"problem_id", event.ProblemID,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	record(func(s *BatchStats) { s.Applied++ })
}

// commit survives shutdown cancellation so a handled batch is not
// redelivered only because the process is stopping.
func (c *Consumer) commit(ctx context.Context, batch []kafka.Message) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(commitCtx, batch...); err != nil {
		c.logger.WarnContext(ctx, "commit judge results failed",
			"messages", len(batch),
			"last_offset", batch[len(batch)-1].Offset,
			"error", err,
		)
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
