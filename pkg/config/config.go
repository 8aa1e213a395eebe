package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "MOVIERES"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MOVIERES_DB_DSN"
	EnvDBHost = "MOVIERES_DB_HOST"
	EnvDBUser = "MOVIERES_DB_USER"
	EnvDBName = "MOVIERES_DB_NAME"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Saga         SagaConfig
	Reconciler   ReconcilerConfig
	Cache        CacheConfig
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
	Env          string `envconfig:"MOVIERES_APP_ENV" required:"true"`
	Port         string `envconfig:"MOVIERES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MOVIERES_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MOVIERES_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"MOVIERES_DB_DSN"`

	Host     string `envconfig:"MOVIERES_DB_HOST"`
	Port     int    `envconfig:"MOVIERES_DB_PORT" default:"5432"`
	User     string `envconfig:"MOVIERES_DB_USER"`
	Password string `envconfig:"MOVIERES_DB_PASSWORD"`
	Name     string `envconfig:"MOVIERES_DB_NAME"`
	SSLMode  string `envconfig:"MOVIERES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MOVIERES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MOVIERES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MOVIERES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MOVIERES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MOVIERES_REDIS_URL"`
	Address      string        `envconfig:"MOVIERES_REDIS_ADDR"`
	Password     string        `envconfig:"MOVIERES_REDIS_PASSWORD"`
	DB           int           `envconfig:"MOVIERES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MOVIERES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MOVIERES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MOVIERES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MOVIERES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MOVIERES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MOVIERES_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MOVIERES_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MOVIERES_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SagaConfig bounds the coordinator's compensating-release retries.
type SagaConfig struct {
	ReleaseMaxAttempts  int           `envconfig:"MOVIERES_SAGA_RELEASE_MAX_ATTEMPTS" default:"5"`
	ReleaseBaseBackoff  time.Duration `envconfig:"MOVIERES_SAGA_RELEASE_BASE_BACKOFF" default:"100ms"`
	RecoveryTimeout     time.Duration `envconfig:"MOVIERES_SAGA_RECOVERY_TIMEOUT" default:"2m"`
	IdempotencyRecordTTL time.Duration `envconfig:"MOVIERES_SAGA_IDEMPOTENCY_TTL" default:"168h"`
}

type ReconcilerConfig struct {
	Interval time.Duration `envconfig:"MOVIERES_RECONCILER_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"MOVIERES_RECONCILER_LOCK_TTL" default:"5m"`
}

// CacheConfig controls the Redis-backed showtime browse cache. Pricing reads
// inside the coordinator never use it.
type CacheConfig struct {
	ShowtimeBrowseTTL time.Duration `envconfig:"MOVIERES_CACHE_SHOWTIME_BROWSE_TTL" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MOVIERES_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
