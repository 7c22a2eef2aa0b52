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
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"SKILLROADS_APP_ENV" required:"true"`
	Port         string `envconfig:"SKILLROADS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SKILLROADS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SKILLROADS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SKILLROADS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SKILLROADS_DB_DSN"`
	Driver string `envconfig:"SKILLROADS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SKILLROADS_DB_HOST"`
	LegacyPort     int    `envconfig:"SKILLROADS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SKILLROADS_DB_USER"`
	LegacyPassword string `envconfig:"SKILLROADS_DB_PASSWORD"`
	LegacyName     string `envconfig:"SKILLROADS_DB_NAME"`
	LegacySSLMode  string `envconfig:"SKILLROADS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SKILLROADS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SKILLROADS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SKILLROADS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SKILLROADS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SKILLROADS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SKILLROADS_REDIS_ADDR"`
	Password     string        `envconfig:"SKILLROADS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SKILLROADS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SKILLROADS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SKILLROADS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SKILLROADS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SKILLROADS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SKILLROADS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SKILLROADS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SKILLROADS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SKILLROADS_JWT_EXPIRATION_MINUTES" required:"true"`
}

// GatewayConfig points at the external payment gateway.
type GatewayConfig struct {
	BaseURL   string        `envconfig:"SKILLROADS_GATEWAY_BASE_URL" required:"true"`
	APIKey    string        `envconfig:"SKILLROADS_GATEWAY_API_KEY"`
	APISecret string        `envconfig:"SKILLROADS_GATEWAY_API_SECRET"`
	Timeout   time.Duration `envconfig:"SKILLROADS_GATEWAY_TIMEOUT" default:"10s"`
}

// CheckoutConfig tunes transaction reconciliation policy.
type CheckoutConfig struct {
	Currency         string        `envconfig:"SKILLROADS_CHECKOUT_CURRENCY" default:"INR"`
	PendingThreshold time.Duration `envconfig:"SKILLROADS_CHECKOUT_PENDING_THRESHOLD" default:"24h"`
	WebhookGuardTTL  time.Duration `envconfig:"SKILLROADS_CHECKOUT_WEBHOOK_GUARD_TTL" default:"72h"`
}

type RateLimitConfig struct {
	CheckoutWindow    time.Duration `envconfig:"SKILLROADS_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutUserLimit int           `envconfig:"SKILLROADS_RATE_LIMIT_CHECKOUT_USER_LIMIT" default:"10"`
	CheckoutIPLimit   int           `envconfig:"SKILLROADS_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SKILLROADS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SKILLROADS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SKILLROADS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"SKILLROADS_PUBSUB_EVENTS_TOPIC" default:"sr-domain-events"`
	EventsSubscription string `envconfig:"SKILLROADS_PUBSUB_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SKILLROADS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SKILLROADS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SKILLROADS_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
