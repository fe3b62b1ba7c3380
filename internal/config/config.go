package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisPresenceKey string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN         string
	RunMigrations bool
	MigrationPath string

	SessionSecret string
	SessionTTL    time.Duration

	LoginDelay    time.Duration
	SearchDelay   time.Duration
	IncomingDelay time.Duration

	MapAPIKey string
	MapZoom   int

	LogLevel string
}

// DevSessionSecret is used when SESSION_SECRET is unset. Fine for the mock, logged as a warning.
const DevSessionSecret = "cario-dev-secret"

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		RedisPresenceKey: "drivers_online",
		KafkaTopic:       "ride-events",
		MigrationPath:    "migrations/001_create_bookings.sql",
		SessionSecret:    DevSessionSecret,
		SessionTTL:       12 * time.Hour,
		LoginDelay:       time.Second,
		SearchDelay:      3 * time.Second,
		IncomingDelay:    2 * time.Second,
		MapZoom:          14,
		LogLevel:         "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisPresenceKey, "REDIS_PRESENCE_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")
	setStringFromEnv(&cfg.MigrationPath, "MIGRATION_PATH")

	setStringFromEnv(&cfg.SessionSecret, "SESSION_SECRET")
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)

	setDurationFromEnv(&cfg.LoginDelay, "LOGIN_DELAY", &errs)
	setDurationFromEnv(&cfg.SearchDelay, "SEARCH_DELAY", &errs)
	setDurationFromEnv(&cfg.IncomingDelay, "INCOMING_DELAY", &errs)

	cfg.MapAPIKey = strings.TrimSpace(os.Getenv("MAP_API_KEY"))
	setIntFromEnv(&cfg.MapZoom, "MAP_ZOOM", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.MapZoom < 1 || cfg.MapZoom > 21 {
		errs = append(errs, fmt.Errorf("MAP_ZOOM must be between 1 and 21"))
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be > 0"))
	}
	for key, d := range map[string]time.Duration{"LOGIN_DELAY": cfg.LoginDelay, "SEARCH_DELAY": cfg.SearchDelay, "INCOMING_DELAY": cfg.IncomingDelay} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0", key))
		}
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig configures the status-board consumer.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	StatusTTL     time.Duration
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "ride-events",
		KafkaGroup:   "cario-status-board",
		RedisAddr:    "localhost:6379",
		StatusTTL:    24 * time.Hour,
		LogLevel:     "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.StatusTTL, "STATUS_TTL", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must name at least one broker"))
	}
	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
