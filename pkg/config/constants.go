package config

const (
	EnvPrefix = "RECEIVING"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv   = "RECEIVING_APP_ENV"
	EnvPort     = "RECEIVING_APP_PORT"
	EnvLogLevel = "RECEIVING_LOG_LEVEL"

	EnvDBDSN    = "RECEIVING_DB_DSN"
	EnvDBDriver = "RECEIVING_DB_DRIVER"
	EnvDBHost   = "RECEIVING_DB_HOST"
	EnvDBPort   = "RECEIVING_DB_PORT"
	EnvDBUser   = "RECEIVING_DB_USER"
	EnvDBName   = "RECEIVING_DB_NAME"

	EnvRedisURL = "RECEIVING_REDIS_URL"

	EnvTodaySessionName     = "RECEIVING_TODAY_SESSION_NAME"
	EnvMaxSessionNameLength = "RECEIVING_MAX_SESSION_NAME_LENGTH"
	EnvIdempotencyTTL       = "RECEIVING_IDEMPOTENCY_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
