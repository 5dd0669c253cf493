package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/licensehub-wallet/internal/bootstrap"
	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/db"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	"github.com/angelmondragon/licensehub-wallet/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory; empty uses the set compiled into the binary")
	flag.StringVar(&opts.name, "name", "", "migration name, for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS, for -cmd=version")
	flag.Parse()

	cfg, logg, err := bootstrap.LoadConfig("migrate")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	out, err := run(ctx, cfg, logg, opts)
	if err != nil {
		logg.Error(ctx, "migrate.failed", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
	if out != "" {
		fmt.Println(out)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (string, error) {
	// create and validate work on files only
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return "", errors.New("-name is required")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return "", err
		}
		return "created " + path, nil
	case "validate":
		if opts.dir == "" {
			return "migrations ok", migrate.ValidateEmbedded()
		}
		return "migrations ok", migrate.ValidateDir(opts.dir)
	}

	client, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return "", err
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return "", err
	}
	return "", apply(ctx, sqlDB, opts)
}

func apply(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		target, err := migrate.ParseVersion(opts.version)
		if err != nil {
			return err
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, target)
	default:
		return fmt.Errorf("unknown command %q", opts.cmd)
	}
}
