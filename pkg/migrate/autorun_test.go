package migrate

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/db"
	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

func sqliteClient(t *testing.T) *db.Client {
	t.Helper()
	cfg := config.DBConfig{DSN: "file:autorun_" + uuid.NewString() + "?mode=memory&cache=shared", Driver: db.DriverSQLite}
	client, err := db.New(context.Background(), cfg, config.FeatureFlagsConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMaybeRunDevMigratesSQLiteInDev(t *testing.T) {
	client := sqliteClient(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
	}

	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.New(logger.Options{Output: io.Discard}), client))
	assert.True(t, client.DB().Migrator().HasTable(&models.WalletTransaction{}))
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cases := map[string]*config.Config{
		"prod":     {App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}},
		"flag off": {App: config.AppConfig{Env: config.AppEnvDev}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			client := sqliteClient(t)
			require.NoError(t, MaybeRunDev(context.Background(), cfg, nil, client))
			assert.False(t, client.DB().Migrator().HasTable(&models.WalletTransaction{}))
		})
	}
}
