package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Client owns the GORM pool shared by the ledger repository and migrations.
type Client struct {
	conn        *gorm.DB
	lockTimeout time.Duration
}

// Pinger is what readiness checks need from a datastore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option tunes a Client after the pool is open.
type Option func(*Client)

// WithLockTimeout bounds how long a transaction may wait on a row or advisory
// lock before Postgres aborts it with lock_not_available. Zero waits forever.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Client) { c.lockTimeout = d }
}

// New opens the ledger database. SQLite serves single-node local runs.
func New(ctx context.Context, cfg config.DBConfig, flags config.FeatureFlagsConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	conn, err := gorm.Open(dialectorFor(cfg, flags), &gorm.Config{
		Logger:                 newGormLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName(cfg, flags), err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	client := &Client{conn: conn}
	for _, opt := range opts {
		opt(client)
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"driver":         conn.Dialector.Name(),
			"max_open_conns": cfg.MaxOpenConns,
			"lock_timeout":   client.lockTimeout.String(),
		})
		logg.Info(ctx, "db.connected")
	}
	return client, nil
}

func driverName(cfg config.DBConfig, flags config.FeatureFlagsConfig) string {
	if flags.UseSQLite || cfg.Driver == DriverSQLite {
		return DriverSQLite
	}
	return DriverPostgres
}

func dialectorFor(cfg config.DBConfig, flags config.FeatureFlagsConfig) gorm.Dialector {
	if driverName(cfg, flags) == DriverSQLite {
		return sqlite.Open(cfg.DSN)
	}
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Dialect() string {
	return c.conn.Dialector.Name()
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one transaction. fn's error or panic rolls it back; on
// Postgres the configured lock timeout applies to every lock fn takes.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.lockTimeout > 0 && c.Dialect() == DriverPostgres {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", c.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(tx)
	})
}
