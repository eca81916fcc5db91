package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv        = "STOREFRONT_APP_ENV"
	EnvPort          = "STOREFRONT_APP_PORT"
	EnvLogLevel      = "STOREFRONT_LOG_LEVEL"
	EnvPublicBaseURL = "STOREFRONT_PUBLIC_BASE_URL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBPort   = "STOREFRONT_DB_PORT"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBPass   = "STOREFRONT_DB_PASSWORD"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvSessionTTL = "STOREFRONT_SESSION_TTL"

	EnvOTPTTL         = "STOREFRONT_OTP_TTL"
	EnvOTPMaxAttempts = "STOREFRONT_OTP_MAX_ATTEMPTS"

	EnvSMSProviders = "STOREFRONT_SMS_PROVIDERS"
	EnvSMSDebug     = "STOREFRONT_SMS_DEBUG"

	EnvPaymentsCallbackBaseURL = "STOREFRONT_PAYMENTS_CALLBACK_BASE_URL"

	EnvSendgridAPIKey = "STOREFRONT_SENDGRID_API_KEY"
	EnvSendgridFrom   = "STOREFRONT_SENDGRID_FROM_EMAIL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
