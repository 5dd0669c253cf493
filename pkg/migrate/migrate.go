package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where the migrate CLI writes and validates on-disk files.
const DefaultDir = "pkg/migrate/migrations"

// Wallet migrations use Postgres enums, partial indexes and triggers; sqlite
// deployments create the schema through gorm AutoMigrate instead.
const dialect = "postgres"

//go:embed migrations/*.sql
var embedded embed.FS

const embeddedDir = "migrations"

// Run executes a goose command. An empty dir runs the migrations compiled
// into the binary.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	dir, restore, err := source(dir)
	if err != nil {
		return err
	}
	defer restore()

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// ParseVersion accepts goose timestamps of the form YYYYMMDDHHMMSS.
func ParseVersion(raw string) (int64, error) {
	if len(raw) != 14 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v, nil
}

// MigrateToVersion moves the schema up or down until it sits at target.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, target int64) error {
	dir, restore, err := source(dir)
	if err != nil {
		return err
	}
	defer restore()

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		err = goose.UpToContext(ctx, db, dir, target)
	case current > target:
		err = goose.DownToContext(ctx, db, dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// source selects the on-disk dir or the embedded set and returns a func that
// resets goose's base filesystem.
func source(dir string) (string, func(), error) {
	if err := goose.SetDialect(dialect); err != nil {
		return "", nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if dir != "" {
		goose.SetBaseFS(nil)
		return dir, func() {}, nil
	}
	goose.SetBaseFS(embedded)
	return embeddedDir, func() { goose.SetBaseFS(nil) }, nil
}
