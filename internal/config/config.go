package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort        string        `env:"GRPC_PORT" envDefault:"50056"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// DBDriver is "sqlite" or "postgres".
	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"checkout.db"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"ecommerce"`

	// CartStore is "sql" or "mongo".
	CartStore   string `env:"CART_STORE" envDefault:"sql"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName string `env:"MONGO_DB_NAME" envDefault:"checkoutdb"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	// LockBackend is "memory" or "redis".
	LockBackend string        `env:"LOCK_BACKEND" envDefault:"memory"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"10s"`

	KafkaBrokers []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"order-placed"`
	KafkaGroupID string        `env:"KAFKA_GROUP_ID" envDefault:"checkout-inventory"`
	OutboxTick   time.Duration `env:"OUTBOX_TICK" envDefault:"1s"`
	// OutboxRetention is how long processed outbox rows are kept.
	OutboxRetention time.Duration `env:"OUTBOX_RETENTION" envDefault:"24h"`

	InventoryDefaultStock int32 `env:"INVENTORY_DEFAULT_STOCK" envDefault:"100"`

	JWTSecret  string `env:"JWT_SECRET" envDefault:"dev-jwt-secret"`
	CSRFSecret string `env:"CSRF_SECRET" envDefault:"dev-csrf-secret"`
	Currency   string `env:"CURRENCY" envDefault:"USD"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.CartStore {
	case "sql", "mongo":
	default:
		return fmt.Errorf("unsupported CART_STORE %q", c.CartStore)
	}
	switch c.LockBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("LOCK_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND %q", c.LockBackend)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
