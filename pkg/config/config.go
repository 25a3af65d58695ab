package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	pkgredis "github.com/SigNoz/storefront-go-app/pkg/redis"
)

// Store drivers
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Lock backends
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds application configuration from environment variables
type Config struct {
	// Application
	AppPort string `envconfig:"APP_PORT" default:"8080"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`

	// Storage
	StoreDriver string `envconfig:"STORE_DRIVER" default:"mysql"`
	SchemaFile  string `envconfig:"SCHEMA_FILE" default:"schema.sql"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"3306"`
	DBUser      string `envconfig:"DB_USER" default:"root"`
	DBPassword  string `envconfig:"DB_PASSWORD" default:"password"`
	DBName      string `envconfig:"DB_NAME" default:"storefront"`

	// Per-key locking around cart and favorite mutations
	LockBackend string        `envconfig:"LOCK_BACKEND" default:"local"`
	LockWait    time.Duration `envconfig:"LOCK_WAIT" default:"5s"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	Redis       pkgredis.Config

	// Auth
	JWTSecret string `envconfig:"JWT_SECRET" default:"change-me"`

	// Catalog
	ProductCacheTTL   time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"0"`

	// OpenTelemetry
	OTELExporterOTLPEndpoint  string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	OTELExporterOTLPProtocol  string `envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"http/protobuf"`
	OTELExporterOTLPHeaders   string `envconfig:"OTEL_EXPORTER_OTLP_HEADERS"` // For SigNoz Cloud: signoz-ingestion-key=<key>
	OTELExporterOTLPInsecure  bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	OTELServiceName           string `envconfig:"OTEL_SERVICE_NAME" default:"storefront-go-app"`
	OTELServiceVersion        string `envconfig:"OTEL_SERVICE_VERSION" default:"1.0.0"`
	OTELDeploymentEnvironment string `envconfig:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`
	OTELResourceAttributes    string `envconfig:"OTEL_RESOURCE_ATTRIBUTES"`
}

// LoadConfig loads configuration from .env file and environment variables with defaults
func LoadConfig() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("error loading .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMySQL, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.Redis.URL == "" {
			return errors.New("REDIS_URL is required when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	if c.LockWait <= 0 {
		return errors.New("LOCK_WAIT must be positive")
	}
	return nil
}

// IsDevelopment reports whether error details may be exposed to clients
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetDSN returns the MySQL DSN string.
// clientFoundRows makes RowsAffected count matched rows, which the conditional
// updates in the repository rely on.
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4&clientFoundRows=true"
}

// GetAppPortInt returns the application port as an integer
func (c *Config) GetAppPortInt() int {
	port, err := strconv.Atoi(c.AppPort)
	if err != nil {
		return 8080
	}
	return port
}
