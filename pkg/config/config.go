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
	JWT          JWTConfig
	Session      SessionConfig
	OTP          OTPConfig
	Password     PasswordConfig
	SMS          SMSConfig
	Payments     PaymentsConfig
	Sendgrid     SendgridConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port          string   `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel      string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack  bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat     string   `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	PublicBaseURL string   `envconfig:"STOREFRONT_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	CORSOrigins   []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn; zero disables.
	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// UsesSQLite reports whether the sqlite driver was selected (local development only).
func (db DBConfig) UsesSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"10080"`
}

// AccessTTL returns the access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// SessionConfig configures anonymous shopper sessions.
type SessionConfig struct {
	TTL        time.Duration `envconfig:"STOREFRONT_SESSION_TTL" default:"336h"`
	CookieName string        `envconfig:"STOREFRONT_SESSION_COOKIE" default:"sf_session"`
	HeaderName string        `envconfig:"STOREFRONT_SESSION_HEADER" default:"X-Session-Token"`
	Secure     bool          `envconfig:"STOREFRONT_SESSION_COOKIE_SECURE" default:"true"`
}

type OTPConfig struct {
	Length          int           `envconfig:"STOREFRONT_OTP_LENGTH" default:"6"`
	TTL             time.Duration `envconfig:"STOREFRONT_OTP_TTL" default:"5m"`
	MaxAttempts     int           `envconfig:"STOREFRONT_OTP_MAX_ATTEMPTS" default:"3"`
	RateLimit       int           `envconfig:"STOREFRONT_OTP_RATE_LIMIT" default:"3"`
	RateLimitWindow time.Duration `envconfig:"STOREFRONT_OTP_RATE_LIMIT_WINDOW" default:"10m"`
	IPLimit         int           `envconfig:"STOREFRONT_OTP_IP_LIMIT" default:"20"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

type SMSConfig struct {
	DefaultProviders []string      `envconfig:"STOREFRONT_SMS_PROVIDERS" default:"kavenegar,ghasedak"`
	Timeout          time.Duration `envconfig:"STOREFRONT_SMS_TIMEOUT" default:"10s"`
	Debug            bool          `envconfig:"STOREFRONT_SMS_DEBUG" default:"false"`

	KavenegarAPIKey  string `envconfig:"STOREFRONT_KAVENEGAR_API_KEY"`
	KavenegarSender  string `envconfig:"STOREFRONT_KAVENEGAR_SENDER"`
	KavenegarBaseURL string `envconfig:"STOREFRONT_KAVENEGAR_BASE_URL" default:"https://api.kavenegar.com/v1"`

	GhasedakAPIKey     string `envconfig:"STOREFRONT_GHASEDAK_API_KEY"`
	GhasedakLineNumber string `envconfig:"STOREFRONT_GHASEDAK_LINE_NUMBER"`
	GhasedakBaseURL    string `envconfig:"STOREFRONT_GHASEDAK_BASE_URL" default:"https://api.ghasedak.me/v2"`
}

type PaymentsConfig struct {
	Timeout         time.Duration `envconfig:"STOREFRONT_PAYMENTS_TIMEOUT" default:"30s"`
	CallbackBaseURL string        `envconfig:"STOREFRONT_PAYMENTS_CALLBACK_BASE_URL"`
	Expiry          time.Duration `envconfig:"STOREFRONT_PAYMENTS_EXPIRY" default:"15m"`
}

// CallbackBase returns the base URL gateways redirect back to.
func (p PaymentsConfig) CallbackBase(app AppConfig) string {
	base := strings.TrimSpace(p.CallbackBaseURL)
	if base == "" {
		base = strings.TrimSpace(app.PublicBaseURL)
	}
	return strings.TrimRight(base, "/")
}

type SendgridConfig struct {
	APIKey      string `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"STOREFRONT_SENDGRID_FROM_NAME" default:"فروشگاه"`
}

// Enabled reports whether e-mail delivery is configured.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"5m"`
	PaymentExpiryBatch int           `envconfig:"STOREFRONT_CRON_PAYMENT_EXPIRY_BATCH" default:"100"`
	OTPRetention       time.Duration `envconfig:"STOREFRONT_CRON_OTP_RETENTION" default:"168h"`
	JobTimeout         time.Duration `envconfig:"STOREFRONT_CRON_JOB_TIMEOUT" default:"2m"`
	MetricsAddr        string        `envconfig:"STOREFRONT_CRON_METRICS_ADDR"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
