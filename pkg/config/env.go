package config

const (
	EnvPrefix = "LASTCALL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "LASTCALL_APP_ENV"
	EnvPort       = "LASTCALL_APP_PORT"
	EnvDBDSN      = "LASTCALL_DB_DSN"
	EnvDBHost     = "LASTCALL_DB_HOST"
	EnvDBUser     = "LASTCALL_DB_USER"
	EnvDBName     = "LASTCALL_DB_NAME"
	EnvDBPassword = "LASTCALL_DB_PASSWORD"
	EnvUseSQLite  = "LASTCALL_USE_SQLITE"
	EnvRedisURL   = "LASTCALL_REDIS_URL"
	EnvJWTSecret  = "LASTCALL_JWT_SECRET"
	EnvJWTIssuer  = "LASTCALL_JWT_ISSUER"
	EnvJWTExpMins = "LASTCALL_JWT_EXPIRATION_MINUTES"

	EnvCartQuietPeriod   = "LASTCALL_CART_SYNC_QUIET_PERIOD"
	EnvSobrietyPoll      = "LASTCALL_SOBRIETY_POLL_INTERVAL"
	EnvCORSOrigins       = "LASTCALL_CORS_ALLOWED_ORIGINS"
	EnvPubSubDomainTopic = "LASTCALL_PUBSUB_DOMAIN_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
