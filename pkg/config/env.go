package config

// EnvPrefix is passed to envconfig; every field declares its full name explicitly.
const EnvPrefix = "SHOPCHAT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SHOPCHAT_APP_ENV"
	EnvPort     = "SHOPCHAT_APP_PORT"
	EnvLogLevel = "SHOPCHAT_LOG_LEVEL"

	EnvDBDSN  = "SHOPCHAT_DB_DSN"
	EnvDBHost = "SHOPCHAT_DB_HOST"
	EnvDBUser = "SHOPCHAT_DB_USER"
	EnvDBName = "SHOPCHAT_DB_NAME"

	EnvUseSQLite = "SHOPCHAT_USE_SQLITE"
	EnvRedisURL  = "SHOPCHAT_REDIS_URL"

	EnvModelAPIKey      = "SHOPCHAT_MODEL_API_KEY"
	EnvAssistantRounds  = "SHOPCHAT_ASSISTANT_MAX_ROUNDS"
	EnvGatewayBaseURL   = "SHOPCHAT_GATEWAY_BASE_URL"
	EnvGatewaySecret    = "SHOPCHAT_GATEWAY_WEBHOOK_SECRET"
	EnvMessagingToken   = "SHOPCHAT_MESSAGING_ACCESS_TOKEN"
	EnvCronToken        = "SHOPCHAT_CRON_TOKEN"
	EnvExpiryThreshold  = "SHOPCHAT_ORDER_EXPIRY_THRESHOLD"
	EnvRetryMaxAttempts = "SHOPCHAT_RETRY_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
