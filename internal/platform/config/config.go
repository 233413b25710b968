package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable name.
const Prefix = "CRBOARD_"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
)

// Server captures process level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	Environment     string        `env:"ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// ConflictRetries is how many times a mutation is re-run after losing a
	// compare-and-swap race before the conflict is returned to the client.
	ConflictRetries int `env:"CONFLICT_RETRIES" envDefault:"3"`
	// WriteSecret, when set, signs the bearer tokens every mutating request
	// must present. crctl token mints them.
	WriteSecret string `env:"WRITE_SECRET"`

	Store    StoreConfig    `envPrefix:"STORE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	SQLite   SQLiteConfig   `envPrefix:"SQLITE_"`
	Badger   BadgerConfig   `envPrefix:"BADGER_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
}

// StoreConfig selects and guards the document backend.
type StoreConfig struct {
	Backend  string        `env:"BACKEND" envDefault:"memory"`
	SeedFile string        `env:"SEED_FILE"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`

	BreakerFailures  int           `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerSuccesses int           `env:"BREAKER_SUCCESSES" envDefault:"1"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"10s"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	URL          string        `env:"URL"`
	Key          string        `env:"KEY" envDefault:"crboard:registry"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// PostgresConfig configures the PostgreSQL pool.
type PostgresConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// SQLiteConfig configures the SQLite file.
type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"crboard.db"`
}

// BadgerConfig configures the embedded Badger database.
type BadgerConfig struct {
	Path       string `env:"PATH" envDefault:"data/badger"`
	InMemory   bool   `env:"IN_MEMORY"`
	SyncWrites bool   `env:"SYNC_WRITES" envDefault:"true"`
}

// KafkaConfig configures the change event feed. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string `env:"BROKERS" envSeparator:","`
	Topic       string   `env:"TOPIC" envDefault:"crboard.changes"`
	CreateTopic bool     `env:"CREATE_TOPIC" envDefault:"true"`
	Partitions  int32    `env:"PARTITIONS" envDefault:"1"`
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg, err := ParseEnv()
	if err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// ParseEnv reads defaults and environment variables without validating, for
// callers that overlay further sources first.
func ParseEnv() (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field requirements that tags cannot express.
func (s Server) Validate() error {
	if s.ConflictRetries < 0 {
		return fmt.Errorf("conflict retries must be >= 0, got %d", s.ConflictRetries)
	}
	switch s.Store.Backend {
	case BackendMemory, BackendBadger:
	case BackendRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("%sREDIS_URL is required for the redis backend", Prefix)
		}
	case BackendPostgres:
		if s.Postgres.URL == "" {
			return fmt.Errorf("%sPOSTGRES_URL is required for the postgres backend", Prefix)
		}
	case BackendSQLite:
		if s.SQLite.Path == "" {
			return fmt.Errorf("%sSQLITE_PATH is required for the sqlite backend", Prefix)
		}
	default:
		return fmt.Errorf("unknown store backend %q", s.Store.Backend)
	}
	return nil
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}
