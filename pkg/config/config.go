package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Assistant    AssistantConfig
	Gateway      GatewayConfig
	Messaging    MessagingConfig
	Cron         CronConfig
	Retry        RetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPCHAT_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPCHAT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPCHAT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SHOPCHAT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SHOPCHAT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPCHAT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"SHOPCHAT_DB_DSN"`

	LegacyHost     string `envconfig:"SHOPCHAT_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPCHAT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPCHAT_DB_USER"`
	LegacyPassword string `envconfig:"SHOPCHAT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPCHAT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPCHAT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SHOPCHAT_SQLITE_PATH" default:"shopchat.db"`

	MaxOpenConns    int           `envconfig:"SHOPCHAT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPCHAT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPCHAT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPCHAT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	QueryTimeout    time.Duration `envconfig:"SHOPCHAT_DB_QUERY_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPCHAT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPCHAT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPCHAT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPCHAT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPCHAT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPCHAT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPCHAT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPCHAT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPCHAT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPCHAT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPCHAT_AUTO_MIGRATE" default:"false"`
}

// AssistantConfig tunes the model/tool loop that answers inbound chat messages.
type AssistantConfig struct {
	BaseURL         string        `envconfig:"SHOPCHAT_MODEL_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey          string        `envconfig:"SHOPCHAT_MODEL_API_KEY"`
	Model           string        `envconfig:"SHOPCHAT_MODEL_NAME" default:"gpt-4o-mini"`
	RequestTimeout  time.Duration `envconfig:"SHOPCHAT_MODEL_REQUEST_TIMEOUT" default:"30s"`
	MaxRounds       int           `envconfig:"SHOPCHAT_ASSISTANT_MAX_ROUNDS" default:"5"`
	MessageTimeout  time.Duration `envconfig:"SHOPCHAT_ASSISTANT_MESSAGE_TIMEOUT" default:"90s"`
	ToolParallelism int           `envconfig:"SHOPCHAT_ASSISTANT_TOOL_PARALLELISM" default:"4"`
	HistorySize     int           `envconfig:"SHOPCHAT_ASSISTANT_HISTORY_SIZE" default:"20"`
	PauseDuration   time.Duration `envconfig:"SHOPCHAT_ASSISTANT_PAUSE_DURATION" default:"30m"`
	RateLimit       int           `envconfig:"SHOPCHAT_ASSISTANT_RATE_LIMIT" default:"20"`
	RateWindow      time.Duration `envconfig:"SHOPCHAT_ASSISTANT_RATE_WINDOW" default:"1m"`
	PlaceholderURL  string        `envconfig:"SHOPCHAT_PLACEHOLDER_IMAGE_URL" default:"https://cdn.shopchat.app/static/placeholder.png"`
}

// GatewayConfig carries the payment gateway credentials and webhook secret.
type GatewayConfig struct {
	BaseURL        string        `envconfig:"SHOPCHAT_GATEWAY_BASE_URL"`
	Token          string        `envconfig:"SHOPCHAT_GATEWAY_TOKEN"`
	WebhookSecret  string        `envconfig:"SHOPCHAT_GATEWAY_WEBHOOK_SECRET"`
	CallbackURL    string        `envconfig:"SHOPCHAT_GATEWAY_CALLBACK_URL"`
	InvoiceTTL     time.Duration `envconfig:"SHOPCHAT_GATEWAY_INVOICE_TTL" default:"30m"`
	RequestTimeout time.Duration `envconfig:"SHOPCHAT_GATEWAY_REQUEST_TIMEOUT" default:"10s"`
	GuardTTL       time.Duration `envconfig:"SHOPCHAT_GATEWAY_GUARD_TTL" default:"2m"`
}

type MessagingConfig struct {
	BaseURL        string        `envconfig:"SHOPCHAT_MESSAGING_BASE_URL" default:"https://graph.facebook.com/v19.0"`
	AccessToken    string        `envconfig:"SHOPCHAT_MESSAGING_ACCESS_TOKEN"`
	RequestTimeout time.Duration `envconfig:"SHOPCHAT_MESSAGING_REQUEST_TIMEOUT" default:"10s"`
}

// CronConfig configures the order expiry sweeper and its trigger surface.
type CronConfig struct {
	Token           string        `envconfig:"SHOPCHAT_CRON_TOKEN"`
	Interval        time.Duration `envconfig:"SHOPCHAT_CRON_INTERVAL" default:"5m"`
	JobTimeout      time.Duration `envconfig:"SHOPCHAT_CRON_JOB_TIMEOUT" default:"2m"`
	ExpiryThreshold time.Duration `envconfig:"SHOPCHAT_ORDER_EXPIRY_THRESHOLD" default:"30m"`
	BatchSize       int           `envconfig:"SHOPCHAT_ORDER_EXPIRY_BATCH_SIZE" default:"200"`
}

type RetryConfig struct {
	MaxAttempts  int           `envconfig:"SHOPCHAT_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `envconfig:"SHOPCHAT_RETRY_INITIAL_DELAY" default:"200ms"`
	Multiplier   float64       `envconfig:"SHOPCHAT_RETRY_MULTIPLIER" default:"2"`
	MaxDelay     time.Duration `envconfig:"SHOPCHAT_RETRY_MAX_DELAY" default:"5s"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
