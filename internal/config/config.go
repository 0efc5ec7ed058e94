package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
	Chat         ChatConfig
	Bot          BotConfig
	Telemetry    TelemetryConfig
	Maintenance  MaintenanceConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	LogQueries     bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// KafkaConfig configures the event sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ChatConfig tunes the chat orchestrator.
type ChatConfig struct {
	GetOrCreateAttempts int
	MaxMessageLength    int
	IdleArchiveAfter    time.Duration
}

// BotConfig tunes the FAQ bot.
type BotConfig struct {
	MaxResults      int
	CorpusCacheTTL  time.Duration
	FallbackButtons int
}

// TelemetryConfig configures OTLP tracing export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// MaintenanceConfig schedules background maintenance jobs.
type MaintenanceConfig struct {
	FAQSyncSchedule     string
	SessionArchiveSpec  string
	SessionArchiveBatch int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	idleArchive, err := getEnvAsDuration("CHAT_IDLE_ARCHIVE_AFTER", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_IDLE_ARCHIVE_AFTER: %w", err)
	}
	cacheTTL, err := getEnvAsDuration("BOT_CORPUS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid BOT_CORPUS_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "fixit-helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			LogQueries:     getEnvAsBool("POSTGRES_LOG_QUERIES", false),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("APP_NAME", "fixit-helpdesk"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@fixit.local"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: ParseList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "helpdesk.events"),
		},
		Chat: ChatConfig{
			GetOrCreateAttempts: getEnvAsInt("CHAT_GET_OR_CREATE_ATTEMPTS", 3),
			MaxMessageLength:    getEnvAsInt("CHAT_MAX_MESSAGE_LENGTH", 4000),
			IdleArchiveAfter:    idleArchive,
		},
		Bot: BotConfig{
			MaxResults:      getEnvAsInt("BOT_MAX_RESULTS", 3),
			CorpusCacheTTL:  cacheTTL,
			FallbackButtons: getEnvAsInt("BOT_FALLBACK_BUTTONS", 4),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		Maintenance: MaintenanceConfig{
			FAQSyncSchedule:     getEnv("MAINTENANCE_FAQ_SYNC_SCHEDULE", "@daily"),
			SessionArchiveSpec:  getEnv("MAINTENANCE_SESSION_ARCHIVE_SCHEDULE", "@hourly"),
			SessionArchiveBatch: getEnvAsInt("MAINTENANCE_SESSION_ARCHIVE_BATCH", 200),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ParseList splits a comma separated value, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	return time.ParseDuration(val)
}
