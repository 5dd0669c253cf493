package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensehub-wallet/pkg/config"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvAppEnv, config.AppEnvDev)
	t.Setenv(config.EnvPort, "8081")
	t.Setenv(config.EnvDBDSN, "file:bootstrap?mode=memory&cache=shared")
	t.Setenv(config.EnvUseSQLite, "true")
	t.Setenv(config.EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(config.EnvJWTSecret, "secret")
	t.Setenv(config.EnvJWTIssuer, "licensehub-identity")
	t.Setenv(config.EnvJWTExpMin, "15")
	t.Setenv(config.EnvLogLevel, "debug")
}

func TestLoadConfigTagsServiceKind(t *testing.T) {
	setEnv(t)

	cfg, logg, err := LoadConfig("cron-worker")
	require.NoError(t, err)
	require.NotNil(t, logg)
	assert.Equal(t, "cron-worker", cfg.Service.Kind)
	assert.True(t, cfg.FeatureFlags.UseSQLite)
}

func TestLoadConfigReturnsLoggerOnFailure(t *testing.T) {
	setEnv(t)
	t.Setenv(config.EnvJWTSecret, "")

	cfg, logg, err := LoadConfig("api")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.NotNil(t, logg)
}

func TestCloseOnPartialStack(t *testing.T) {
	assert.NoError(t, (&Stack{}).Close())
}
