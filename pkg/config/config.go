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
	DB           DBConfig
	Redis        RedisConfig
	Jobs         JobsConfig
	Idempotency  IdempotencyConfig
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
	if err := cfg.Jobs.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Idempotency.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PAYMENTS_APP_ENV" required:"true"`
	Port         string   `envconfig:"PAYMENTS_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"PAYMENTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PAYMENTS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PAYMENTS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAYMENTS_DB_DSN"`
	Driver string `envconfig:"PAYMENTS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PAYMENTS_DB_HOST"`
	Port     int    `envconfig:"PAYMENTS_DB_PORT" default:"5432"`
	User     string `envconfig:"PAYMENTS_DB_USER"`
	Password string `envconfig:"PAYMENTS_DB_PASSWORD"`
	Name     string `envconfig:"PAYMENTS_DB_NAME"`
	SSLMode  string `envconfig:"PAYMENTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYMENTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYMENTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYMENTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYMENTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either PAYMENTS_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYMENTS_REDIS_URL"`
	Address      string        `envconfig:"PAYMENTS_REDIS_ADDR"`
	Password     string        `envconfig:"PAYMENTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYMENTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYMENTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYMENTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYMENTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYMENTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYMENTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint is configured at all. The service
// falls back to in-process stores otherwise.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// JobsConfig tunes the simulated verification stages.
type JobsConfig struct {
	StartJitterMax   time.Duration `envconfig:"PAYMENTS_JOBS_START_JITTER_MAX" default:"250ms"`
	StageMinDuration time.Duration `envconfig:"PAYMENTS_JOBS_STAGE_MIN_DURATION" default:"500ms"`
	StageMaxDuration time.Duration `envconfig:"PAYMENTS_JOBS_STAGE_MAX_DURATION" default:"3s"`
	FailureRate      float64       `envconfig:"PAYMENTS_JOBS_FAILURE_RATE" default:"0.1"`
	RetryAfter       time.Duration `envconfig:"PAYMENTS_JOBS_RETRY_AFTER" default:"2s"`
}

func (j JobsConfig) validate() error {
	if j.StageMinDuration <= 0 || j.StageMaxDuration < j.StageMinDuration {
		return fmt.Errorf("invalid stage duration window [%s, %s]", j.StageMinDuration, j.StageMaxDuration)
	}
	if j.FailureRate < 0 || j.FailureRate > 1 {
		return fmt.Errorf("failure rate %f must be within [0, 1]", j.FailureRate)
	}
	return nil
}

// IdempotencyConfig tunes the idempotency cache.
type IdempotencyConfig struct {
	TTL           time.Duration `envconfig:"PAYMENTS_IDEMPOTENCY_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"PAYMENTS_IDEMPOTENCY_SWEEP_INTERVAL" default:"1h"`
	JobRetention  time.Duration `envconfig:"PAYMENTS_JOBS_RETENTION" default:"720h"`
}

func (i IdempotencyConfig) validate() error {
	if i.TTL <= 0 {
		return fmt.Errorf("idempotency TTL must be positive, got %s", i.TTL)
	}
	if i.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", i.SweepInterval)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PAYMENTS_AUTO_MIGRATE" default:"false"`
}
