package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
)

const (
	SnapshotBackendMemory = "memory"
	SnapshotBackendRedis  = "redis"

	BroadcastModeLocal = "local"
	BroadcastModeRedis = "redis"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	CORSAllowedOrigins []string
	InternalJobToken   string

	SnapshotBackend string
	LeaderboardTTL  time.Duration
	StoreTimeout    time.Duration
	CASRetries      int

	RedisAddr                  string
	RedisPassword              string
	RedisDB                    int
	RedisCircuitEnabled        bool
	RedisCircuitFailureCount   int
	RedisCircuitOpenTimeout    time.Duration
	RedisCircuitHalfOpenMaxReq int

	BroadcastMode    string
	SubscriberBuffer int

	KafkaEnabled     bool
	KafkaBrokers     []string
	JudgeResultTopic string
	KafkaGroupID     string
	KafkaWorkers     int
	KafkaBatchSize   int

	DBEnabled               bool
	DBURL                   string
	DBDisablePreparedBinary bool
	RosterCacheTTL          time.Duration

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	PprofEnabled bool
	PprofAddr    string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        strings.TrimSpace(getEnv("APP_SERVICE_NAME", "contest-leaderboard-api")),
		ServiceVersion:     strings.TrimSpace(getEnv("APP_SERVICE_VERSION", "dev")),
		HTTPAddr:           strings.TrimSpace(getEnv("APP_HTTP_ADDR", ":8080")),
		LogLevel:           logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		InternalJobToken:   strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		RedisAddr:          strings.TrimSpace(getEnv("REDIS_ADDR", "")),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "")),
		JudgeResultTopic:   strings.TrimSpace(getEnv("JUDGE_RESULT_TOPIC", "judge-results")),
		KafkaGroupID:       strings.TrimSpace(getEnv("KAFKA_GROUP_ID", "contest-leaderboard")),
		DBURL:              strings.TrimSpace(getEnv("DB_URL", "")),
		UptraceDSN:         strings.TrimSpace(getEnv("UPTRACE_DSN", "")),
		PprofAddr:          strings.TrimSpace(getEnv("PPROF_ADDR", ":6060")),

		PyroscopeServerAddress:     strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", "")),
		PyroscopeAppName:           strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", "contest-leaderboard-api")),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""),
	}
	if cfg.HTTPAddr == "" {
		return Config{}, fmt.Errorf("APP_HTTP_ADDR cannot be empty")
	}
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}

	p := &parser{}
	cfg.ReadTimeout = p.positiveDuration("APP_READ_TIMEOUT", "10s")
	// Zero disables the write deadline so WebSocket streams stay open.
	cfg.WriteTimeout = p.duration("APP_WRITE_TIMEOUT", "15s")

	cfg.SnapshotBackend = p.oneOf("SNAPSHOT_BACKEND", SnapshotBackendMemory, SnapshotBackendMemory, SnapshotBackendRedis)
	cfg.LeaderboardTTL = p.positiveDuration("LEADERBOARD_TTL", "6h")
	cfg.StoreTimeout = p.positiveDuration("STORE_TIMEOUT", "2s")
	cfg.CASRetries = p.intAtLeast("LEADERBOARD_CAS_RETRIES", 5, 0)

	cfg.RedisDB = p.intAtLeast("REDIS_DB", 0, 0)
	cfg.RedisCircuitEnabled = p.boolean("REDIS_CIRCUIT_ENABLED", "true")
	cfg.RedisCircuitFailureCount = p.intAtLeast("REDIS_CIRCUIT_FAILURE_COUNT", 5, 1)
	cfg.RedisCircuitOpenTimeout = p.positiveDuration("REDIS_CIRCUIT_OPEN_TIMEOUT", "10s")
	cfg.RedisCircuitHalfOpenMaxReq = p.intAtLeast("REDIS_CIRCUIT_HALF_OPEN_MAX_REQ", 2, 1)

	cfg.BroadcastMode = p.oneOf("BROADCAST_MODE", BroadcastModeLocal, BroadcastModeLocal, BroadcastModeRedis)
	cfg.SubscriberBuffer = p.intAtLeast("SUBSCRIBER_BUFFER", 4, 1)

	cfg.KafkaEnabled = p.boolean("KAFKA_ENABLED", "false")
	cfg.KafkaWorkers = p.intAtLeast("KAFKA_WORKERS", 8, 1)
	cfg.KafkaBatchSize = p.intAtLeast("KAFKA_BATCH_SIZE", 64, 1)

	cfg.DBEnabled = p.boolean("DB_ENABLED", "false")
	cfg.DBDisablePreparedBinary = p.boolean("DB_DISABLE_PREPARED_BINARY_RESULT", "false")
	cfg.RosterCacheTTL = p.positiveDuration("ROSTER_CACHE_TTL", "30s")

	cfg.UptraceEnabled = p.boolean("UPTRACE_ENABLED", "false")
	cfg.PyroscopeEnabled = p.boolean("PYROSCOPE_ENABLED", "false")
	cfg.PyroscopeUploadRate = p.positiveDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	cfg.PprofEnabled = p.boolean("PPROF_ENABLED", "false")

	if p.err != nil {
		return Config{}, p.err
	}

	switch {
	case cfg.SnapshotBackend == SnapshotBackendRedis && cfg.RedisAddr == "":
		return Config{}, fmt.Errorf("REDIS_ADDR is required when SNAPSHOT_BACKEND=redis")
	case cfg.BroadcastMode == BroadcastModeRedis && cfg.RedisAddr == "":
		return Config{}, fmt.Errorf("REDIS_ADDR is required when BROADCAST_MODE=redis")
	case cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0:
		return Config{}, fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	case cfg.KafkaEnabled && cfg.JudgeResultTopic == "":
		return Config{}, fmt.Errorf("JUDGE_RESULT_TOPIC is required when KAFKA_ENABLED=true")
	case cfg.DBEnabled && cfg.DBURL == "":
		return Config{}, fmt.Errorf("DB_URL is required when DB_ENABLED=true")
	case cfg.UptraceEnabled && cfg.UptraceDSN == "":
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	case cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "":
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	case cfg.PprofEnabled && cfg.PprofAddr == "":
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	case appEnv == EnvProd && cfg.InternalJobToken == "":
		return Config{}, fmt.Errorf("INTERNAL_JOB_TOKEN is required when APP_ENV=prod")
	}

	return cfg, nil
}

// parser keeps the first parse error so Load can read every key in one pass.
type parser struct {
	err error
}

func (p *parser) fail(key string, format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%s %s", key, fmt.Sprintf(format, args...))
	}
}

func (p *parser) boolean(key, fallback string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(key, "parse: %v", err)
	}
	return v
}

func (p *parser) duration(key, fallback string) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(key, "parse: %v", err)
		return 0
	}
	if v < 0 {
		p.fail(key, "must be >= 0")
	}
	return v
}

func (p *parser) positiveDuration(key, fallback string) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		p.fail(key, "parse: %v", err)
		return 0
	}
	if v <= 0 {
		p.fail(key, "must be > 0")
	}
	return v
}

func (p *parser) intAtLeast(key string, fallback, min int) int {
	v, err := getEnvAsInt(key, fallback)
	if err != nil {
		p.fail(key, "parse: %v", err)
		return 0
	}
	if v < min {
		p.fail(key, "must be >= %d", min)
	}
	return v
}

func (p *parser) oneOf(key, fallback string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(getEnv(key, fallback)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.fail(key, "invalid value %q: valid values are %s", v, strings.Join(allowed, ", "))
	return ""
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
