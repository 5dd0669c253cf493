package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Wallet       WalletConfig
}

// Load reads the environment, derives the database DSN and rejects settings
// the wallet engine cannot run with.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	return multierr.Combine(c.JWT.validate(), c.Wallet.validate())
}

type AppConfig struct {
	Env          string   `envconfig:"LICENSEHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"LICENSEHUB_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"LICENSEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"LICENSEHUB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"LICENSEHUB_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"LICENSEHUB_SERVICE_KIND" default:"api"`
}

// DBConfig accepts either a DSN or the discrete LICENSEHUB_DB_* parts.
type DBConfig struct {
	DSN    string `envconfig:"LICENSEHUB_DB_DSN"`
	Driver string `envconfig:"LICENSEHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LICENSEHUB_DB_HOST"`
	Port     int    `envconfig:"LICENSEHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"LICENSEHUB_DB_USER"`
	Password string `envconfig:"LICENSEHUB_DB_PASSWORD"`
	Name     string `envconfig:"LICENSEHUB_DB_NAME"`
	SSLMode  string `envconfig:"LICENSEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LICENSEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LICENSEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LICENSEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LICENSEHUB_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LICENSEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LICENSEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"LICENSEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"LICENSEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LICENSEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LICENSEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LICENSEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LICENSEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LICENSEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"LICENSEHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LICENSEHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LICENSEHUB_JWT_EXPIRATION_MINUTES" required:"true"`
}

func (j JWTConfig) validate() error {
	var errs error
	if strings.TrimSpace(j.Secret) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be blank", EnvJWTSecret))
	}
	if j.ExpirationMinutes <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvJWTExpMin))
	}
	return errs
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LICENSEHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LICENSEHUB_AUTO_MIGRATE" default:"false"`
}

// WalletConfig tunes the ledger engine and its background reconciliation.
type WalletConfig struct {
	LockTimeout        time.Duration `envconfig:"LICENSEHUB_WALLET_LOCK_TIMEOUT" default:"5s"`
	CacheTTL           time.Duration `envconfig:"LICENSEHUB_WALLET_CACHE_TTL" default:"15m"`
	PaymentRateWindow  time.Duration `envconfig:"LICENSEHUB_WALLET_PAYMENT_RATE_WINDOW" default:"1m"`
	PaymentRateLimit   int           `envconfig:"LICENSEHUB_WALLET_PAYMENT_RATE_LIMIT" default:"30"`
	ReconcileInterval  time.Duration `envconfig:"LICENSEHUB_WALLET_RECONCILE_INTERVAL" default:"1h"`
	ReconcileBatchSize int           `envconfig:"LICENSEHUB_WALLET_RECONCILE_BATCH_SIZE" default:"200"`
}

const maxReconcileBatch = 1000

func (w WalletConfig) validate() error {
	var errs error
	if w.LockTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvWalletLockTimeout))
	}
	if w.CacheTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvWalletCacheTTL))
	}
	if w.PaymentRateLimit < 0 || w.PaymentRateWindow < 0 {
		errs = multierr.Append(errs, errors.New("payment rate limit settings must not be negative"))
	}
	if w.ReconcileInterval < time.Minute {
		errs = multierr.Append(errs, fmt.Errorf("%s must be at least 1m", EnvWalletReconcileEach))
	}
	if w.ReconcileBatchSize < 1 || w.ReconcileBatchSize > maxReconcileBatch {
		errs = multierr.Append(errs, fmt.Errorf("reconcile batch size must be between 1 and %d", maxReconcileBatch))
	}
	return errs
}

// ensureDSN fills DSN from the discrete parts when it is not set directly.
func (db *DBConfig) ensureDSN(useSQLite bool) error {
	switch {
	case db.DSN != "":
		return nil
	case useSQLite:
		db.DSN = defaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
