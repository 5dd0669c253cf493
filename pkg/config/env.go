package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "LICENSEHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "LICENSEHUB_APP_ENV"
	EnvPort      = "LICENSEHUB_APP_PORT"
	EnvLogLevel  = "LICENSEHUB_LOG_LEVEL"
	EnvDBDSN     = "LICENSEHUB_DB_DSN"
	EnvDBHost    = "LICENSEHUB_DB_HOST"
	EnvDBUser    = "LICENSEHUB_DB_USER"
	EnvDBName    = "LICENSEHUB_DB_NAME"
	EnvRedisURL  = "LICENSEHUB_REDIS_URL"
	EnvJWTSecret = "LICENSEHUB_JWT_SECRET"
	EnvJWTIssuer = "LICENSEHUB_JWT_ISSUER"
	EnvJWTExpMin = "LICENSEHUB_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite = "LICENSEHUB_USE_SQLITE"

	EnvWalletLockTimeout   = "LICENSEHUB_WALLET_LOCK_TIMEOUT"
	EnvWalletCacheTTL      = "LICENSEHUB_WALLET_CACHE_TTL"
	EnvWalletReconcileEach = "LICENSEHUB_WALLET_RECONCILE_INTERVAL"
	EnvWalletReconcileSize = "LICENSEHUB_WALLET_RECONCILE_BATCH_SIZE"
)

const defaultSQLiteDSN = "file:licensehub.db?cache=shared&_busy_timeout=5000"
