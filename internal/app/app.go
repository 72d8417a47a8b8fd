package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	crerr "github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/contest-leaderboard/internal/config"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/contest"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/contest-leaderboard/internal/infrastructure/pubsub"
	"github.com/riskibarqy/contest-leaderboard/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/contest-leaderboard/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/contest-leaderboard/internal/infrastructure/repository/postgres"
	snapshotmemory "github.com/riskibarqy/contest-leaderboard/internal/infrastructure/snapshot/memory"
	snapshotredis "github.com/riskibarqy/contest-leaderboard/internal/infrastructure/snapshot/redis"
	"github.com/riskibarqy/contest-leaderboard/internal/interfaces/httpapi"
	"github.com/riskibarqy/contest-leaderboard/internal/interfaces/judgeconsumer"
	basecache "github.com/riskibarqy/contest-leaderboard/internal/platform/cache"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/dburl"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/resilience"
	"github.com/riskibarqy/contest-leaderboard/internal/realtime"
	"github.com/riskibarqy/contest-leaderboard/internal/usecase"
	"github.com/segmentio/kafka-go"
	"github.com/sourcegraph/conc/pool"
)

const (
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 3 * time.Second
)

type closer struct {
	name string
	fn   func() error
}

// App owns every long-running part of the API process.
type App struct {
	cfg      config.Config
	logger   *logging.Logger
	server   *http.Server
	hub      *realtime.Hub
	relay    *pubsub.RedisRelay
	consumer *judgeconsumer.Consumer
	closers  []closer
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var redisClient goredis.UniversalClient
	if cfg.SnapshotBackend == config.SnapshotBackendRedis || cfg.BroadcastMode == config.BroadcastModeRedis {
		redisClient = a.openRedis()
	}

	store := a.snapshotStore(redisClient)
	a.hub = realtime.NewHub(cfg.SubscriberBuffer, logger.Named("realtime"))

	var broadcaster usecase.Broadcaster = a.hub
	if cfg.BroadcastMode == config.BroadcastModeRedis {
		a.relay = pubsub.NewRedisRelay(redisClient, a.hub, pubsub.DefaultChannelPrefix, logger.Named("relay"))
		broadcaster = a.relay
	}

	rosters, err := a.rosterRepository()
	if err != nil {
		return nil, err
	}

	leaderboards := usecase.NewLeaderboardService(store, broadcaster, rosters, usecase.LeaderboardServiceConfig{
		TTL:          cfg.LeaderboardTTL,
		StoreTimeout: cfg.StoreTimeout,
		CASRetries:   cfg.CASRetries,
	}, logger.Named("leaderboard"))

	if cfg.KafkaEnabled {
		hooks := usecase.NewLifecycleHooks(leaderboards, logger.Named("hooks"))
		if err := a.buildConsumer(hooks); err != nil {
			return nil, err
		}
	}

	handler := httpapi.NewHandler(leaderboards, a.hub, cfg.CORSAllowedOrigins, logger.Named("httpapi"))
	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ok = true
	return a, nil
}

// Handler exposes the routed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP and, when configured, the Redis relay and the judge
// consumer. It returns after ctx is done and everything has stopped, or
// once any part fails.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(context.Context) error {
		a.logger.Info("http server starting", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return crerr.Wrap(err, "http server")
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return a.shutdown()
	})
	if a.relay != nil {
		p.Go(a.relay.Run)
	}
	if a.consumer != nil {
		p.Go(a.consumer.Run)
	}

	err := p.Wait()
	a.logger.Info("app stopped")
	return err
}

// Close releases clients in reverse order of creation. It is safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close dependency failed", "dependency", c.name, "error", err)
		}
	}
	a.closers = nil
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	// Hijacked WebSocket connections are not tracked by Shutdown; closing the
	// hub ends every stream.
	a.hub.Close()
	if err != nil {
		return crerr.Wrap(err, "graceful shutdown")
	}
	a.logger.Info("http server stopped")
	return nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) openRedis() goredis.UniversalClient {
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{a.cfg.RedisAddr},
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.onClose("redis", client.Close)

	// Redis outages degrade the leaderboard instead of blocking startup.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis ping failed", "addr", a.cfg.RedisAddr, "error", err)
	} else {
		a.logger.Info("redis connected", "addr", a.cfg.RedisAddr)
	}
	return client
}

func (a *App) snapshotStore(client goredis.UniversalClient) leaderboard.SnapshotStore {
	if a.cfg.SnapshotBackend != config.SnapshotBackendRedis {
		return snapshotmemory.NewSnapshotStore(basecache.NewStore(a.cfg.LeaderboardTTL))
	}
	return snapshotredis.NewSnapshotStore(client, snapshotredis.SnapshotStoreConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          a.cfg.RedisCircuitEnabled,
			FailureThreshold: a.cfg.RedisCircuitFailureCount,
			OpenTimeout:      a.cfg.RedisCircuitOpenTimeout,
			HalfOpenMaxReq:   a.cfg.RedisCircuitHalfOpenMaxReq,
		},
	}, a.logger.Named("snapshot"))
}

func (a *App) rosterRepository() (contest.RosterRepository, error) {
	if !a.cfg.DBEnabled {
		a.logger.Info("roster source is the built-in demo seed")
		return memory.NewRosterRepository(memory.SeedRosters()), nil
	}

	db, err := postgres.Open(dburl.Normalize(a.cfg.DBURL, a.cfg.DBDisablePreparedBinary), dburl.Name(a.cfg.DBURL))
	if err != nil {
		return nil, crerr.Wrapf(err, "open database %s", dburl.Name(a.cfg.DBURL))
	}
	a.onClose("postgres", db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		a.logger.Warn("database ping failed", "database", dburl.Name(a.cfg.DBURL), "error", err)
	}

	return cache.NewRosterRepository(postgres.NewRosterRepository(db), basecache.NewStore(a.cfg.RosterCacheTTL)), nil
}

func (a *App) buildConsumer(hooks *usecase.LifecycleHooks) error {
	consumerLogger := a.logger.Named("kafka")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: a.cfg.KafkaBrokers,
		Topic:   a.cfg.JudgeResultTopic,
		GroupID: a.cfg.KafkaGroupID,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			consumerLogger.Warn(fmt.Sprintf(msg, args...))
		}),
	})

	consumer, err := judgeconsumer.NewConsumer(reader, hooks, judgeconsumer.ConsumerConfig{
		Workers:   a.cfg.KafkaWorkers,
		BatchSize: a.cfg.KafkaBatchSize,
	}, a.logger)
	if err != nil {
		_ = reader.Close()
		return err
	}
	a.consumer = consumer
	a.onClose("kafka", consumer.Close)
	return nil
}
