package config

const (
	EnvPrefix = "HAUSLIST"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv  = "HAUSLIST_APP_ENV"
	EnvAppPort = "HAUSLIST_APP_PORT"

	EnvDBDSN  = "HAUSLIST_DB_DSN"
	EnvDBHost = "HAUSLIST_DB_HOST"
	EnvDBUser = "HAUSLIST_DB_USER"
	EnvDBName = "HAUSLIST_DB_NAME"

	EnvRedisURL = "HAUSLIST_REDIS_URL"

	EnvJWTSecret            = "HAUSLIST_JWT_SECRET"
	EnvJWTIssuer            = "HAUSLIST_JWT_ISSUER"
	EnvJWTExpirationMinutes = "HAUSLIST_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
