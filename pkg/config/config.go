package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Tax      TaxConfig
	Ledger   LedgerConfig
	Provider ProviderConfig
	Square   SquareConfig
	Sync     SyncConfig
	Display  DisplayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"POSCORE_APP_PORT" default:"7311"`
	LogLevel     string `envconfig:"POSCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POSCORE_LOG_WARN_STACK" default:"false"`
	TerminalID   string `envconfig:"POSCORE_TERMINAL_ID" required:"true"`
	Currency     string `envconfig:"POSCORE_CURRENCY" default:"USD"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POSCORE_SERVICE_KIND" default:"terminal"`
}

type DBConfig struct {
	Driver string `envconfig:"POSCORE_DB_DRIVER" default:"sqlite"`
	// DSN is the sqlite file path under the default driver, a full
	// connection string under postgres.
	DSN string `envconfig:"POSCORE_DB_DSN" default:"poscore.db"`

	MaxOpenConns    int           `envconfig:"POSCORE_DB_MAX_OPEN_CONNS" default:"1"`
	MaxIdleConns    int           `envconfig:"POSCORE_DB_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"POSCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POSCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"POSCORE_DB_AUTO_MIGRATE" default:"true"`
}

func (db DBConfig) validate() error {
	switch db.Driver {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported db driver %q", db.Driver)
	}
	if db.DSN == "" {
		return fmt.Errorf("db dsn is required")
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"POSCORE_REDIS_URL"`
	Address      string        `envconfig:"POSCORE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"POSCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSCORE_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"POSCORE_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"POSCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type AuthConfig struct {
	DeviceTokenSecret string        `envconfig:"POSCORE_DEVICE_TOKEN_SECRET" required:"true"`
	Issuer            string        `envconfig:"POSCORE_DEVICE_TOKEN_ISSUER" default:"poscore"`
	TokenTTL          time.Duration `envconfig:"POSCORE_DEVICE_TOKEN_TTL" default:"12h"`
}

// TaxConfig is the terminal-wide tax rule applied by the pricing engine.
type TaxConfig struct {
	Enabled bool   `envconfig:"POSCORE_TAX_ENABLED" default:"false"`
	RateBps int    `envconfig:"POSCORE_TAX_RATE_BPS" default:"0"`
	Label   string `envconfig:"POSCORE_TAX_LABEL" default:"Tax"`
}

type LedgerConfig struct {
	BaseURL       string        `envconfig:"POSCORE_LEDGER_BASE_URL" required:"true"`
	APIKey        string        `envconfig:"POSCORE_LEDGER_API_KEY"`
	Timeout       time.Duration `envconfig:"POSCORE_LEDGER_TIMEOUT" default:"10s"`
	ProbeInterval time.Duration `envconfig:"POSCORE_LEDGER_PROBE_INTERVAL" default:"15s"`
}

type ProviderConfig struct {
	BaseURL     string        `envconfig:"POSCORE_PROVIDER_BASE_URL"`
	APIKey      string        `envconfig:"POSCORE_PROVIDER_API_KEY"`
	Timeout     time.Duration `envconfig:"POSCORE_PROVIDER_TIMEOUT" default:"10s"`
	FeePercent  string        `envconfig:"POSCORE_PROVIDER_FEE_PERCENT" default:"0"`
	PollEvery   time.Duration `envconfig:"POSCORE_PROVIDER_POLL_EVERY" default:"3s"`
	PollTimeout time.Duration `envconfig:"POSCORE_PROVIDER_POLL_TIMEOUT" default:"2m"`
	SuccessURL  string        `envconfig:"POSCORE_PROVIDER_SUCCESS_URL" default:"poscore://payment/return"`
	CancelURL   string        `envconfig:"POSCORE_PROVIDER_CANCEL_URL" default:"poscore://payment/cancel"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"POSCORE_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"POSCORE_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"POSCORE_SQUARE_LOCATION_ID"`
	DeviceID    string `envconfig:"POSCORE_SQUARE_DEVICE_ID"`
}

// Environment returns the normalized Square environment.
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SyncConfig struct {
	DrainBatchSize  int           `envconfig:"POSCORE_SYNC_DRAIN_BATCH_SIZE" default:"25"`
	DrainInterval   time.Duration `envconfig:"POSCORE_SYNC_DRAIN_INTERVAL" default:"30s"`
	RequestRetries  uint64        `envconfig:"POSCORE_SYNC_REQUEST_RETRIES" default:"3"`
	CatalogPageSize int           `envconfig:"POSCORE_SYNC_CATALOG_PAGE_SIZE" default:"200"`
}

type DisplayConfig struct {
	Enabled bool   `envconfig:"POSCORE_DISPLAY_ENABLED" default:"false"`
	Channel string `envconfig:"POSCORE_DISPLAY_CHANNEL" default:"poscore:display"`
}
