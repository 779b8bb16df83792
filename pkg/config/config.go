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
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"HAUSLIST_APP_ENV" required:"true"`
	Port         string `envconfig:"HAUSLIST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HAUSLIST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HAUSLIST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HAUSLIST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HAUSLIST_DB_DSN"`
	Driver string `envconfig:"HAUSLIST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HAUSLIST_DB_HOST"`
	LegacyPort     int    `envconfig:"HAUSLIST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HAUSLIST_DB_USER"`
	LegacyPassword string `envconfig:"HAUSLIST_DB_PASSWORD"`
	LegacyName     string `envconfig:"HAUSLIST_DB_NAME"`
	LegacySSLMode  string `envconfig:"HAUSLIST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HAUSLIST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HAUSLIST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HAUSLIST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HAUSLIST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HAUSLIST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HAUSLIST_REDIS_ADDR"`
	Password     string        `envconfig:"HAUSLIST_REDIS_PASSWORD"`
	DB           int           `envconfig:"HAUSLIST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HAUSLIST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HAUSLIST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HAUSLIST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HAUSLIST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HAUSLIST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HAUSLIST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HAUSLIST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HAUSLIST_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HAUSLIST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HAUSLIST_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey            string        `envconfig:"HAUSLIST_STRIPE_API_KEY"`
	Secret            string        `envconfig:"HAUSLIST_STRIPE_SECRET"`
	Env               string        `envconfig:"HAUSLIST_STRIPE_ENV" default:"test"`
	PrimaryPriceID    string        `envconfig:"HAUSLIST_STRIPE_PRIMARY_PRICE_ID"`
	AdditionalPriceID string        `envconfig:"HAUSLIST_STRIPE_ADDITIONAL_PRICE_ID"`
	TrialDays         int           `envconfig:"HAUSLIST_STRIPE_TRIAL_DAYS" default:"60"`
	RedirectBaseURL   string        `envconfig:"HAUSLIST_STRIPE_REDIRECT_BASE_URL"`
	RequestTimeout    time.Duration `envconfig:"HAUSLIST_STRIPE_REQUEST_TIMEOUT" default:"15s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type BillingConfig struct {
	LedgerRetention   time.Duration `envconfig:"HAUSLIST_BILLING_LEDGER_RETENTION" default:"720h"`
	SweepLimit        int           `envconfig:"HAUSLIST_BILLING_SWEEP_LIMIT" default:"200"`
	SweepLookback     time.Duration `envconfig:"HAUSLIST_BILLING_SWEEP_LOOKBACK" default:"24h"`
	TrialNotifyWindow time.Duration `envconfig:"HAUSLIST_BILLING_TRIAL_NOTIFY_WINDOW" default:"72h"`
}

type RateLimitConfig struct {
	BillingWindow time.Duration `envconfig:"HAUSLIST_RATE_LIMIT_BILLING_WINDOW" default:"1m"`
	BillingLimit  int64         `envconfig:"HAUSLIST_RATE_LIMIT_BILLING_LIMIT" default:"30"`
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
