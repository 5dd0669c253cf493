package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/db"
	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

// MaybeRunDev brings the ledger schema up to date on boot, but only for dev
// environments that opt in with the auto-migrate flag. SQLite has no goose
// dialect here, so it gets the GORM model schema instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "dialect", client.Dialect())

	if client.Dialect() == db.DriverSQLite {
		logg.Info(ctx, "migrate.automigrate_models")
		return client.DB().WithContext(ctx).AutoMigrate(&models.WalletTransaction{})
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	logg.Info(ctx, "migrate.embedded_up")
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
