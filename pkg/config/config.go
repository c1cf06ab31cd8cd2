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
	FeatureFlags FeatureFlagsConfig
	Receiving    ReceivingConfig
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
	if err := cfg.Receiving.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RECEIVING_APP_ENV" required:"true"`
	Port         string `envconfig:"RECEIVING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RECEIVING_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"RECEIVING_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"RECEIVING_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RECEIVING_DB_DSN"`
	Driver string `envconfig:"RECEIVING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RECEIVING_DB_HOST"`
	LegacyPort     int    `envconfig:"RECEIVING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RECEIVING_DB_USER"`
	LegacyPassword string `envconfig:"RECEIVING_DB_PASSWORD"`
	LegacyName     string `envconfig:"RECEIVING_DB_NAME"`
	LegacySSLMode  string `envconfig:"RECEIVING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECEIVING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECEIVING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECEIVING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECEIVING_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"RECEIVING_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"RECEIVING_REDIS_URL"`
	Address      string        `envconfig:"RECEIVING_REDIS_ADDR"`
	Password     string        `envconfig:"RECEIVING_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECEIVING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECEIVING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECEIVING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECEIVING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECEIVING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECEIVING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate        bool `envconfig:"RECEIVING_AUTO_MIGRATE" default:"false"`
	RequireIdempotency bool `envconfig:"RECEIVING_REQUIRE_IDEMPOTENCY" default:"true"`
}

type ReceivingConfig struct {
	TodaySessionName     string        `envconfig:"RECEIVING_TODAY_SESSION_NAME" default:"Today"`
	MaxSessionNameLength int           `envconfig:"RECEIVING_MAX_SESSION_NAME_LENGTH" default:"64"`
	IdempotencyTTL       time.Duration `envconfig:"RECEIVING_IDEMPOTENCY_TTL" default:"24h"`
	LockTTL              time.Duration `envconfig:"RECEIVING_LOCK_TTL" default:"30s"`
}

func (r ReceivingConfig) validate() error {
	if strings.TrimSpace(r.TodaySessionName) == "" {
		return fmt.Errorf("%s must not be blank", EnvTodaySessionName)
	}
	if r.MaxSessionNameLength <= 0 {
		return fmt.Errorf("%s must be positive", EnvMaxSessionNameLength)
	}
	return nil
}

type OutboxConfig struct {
	Enabled        bool          `envconfig:"RECEIVING_OUTBOX_ENABLED" default:"true"`
	BatchSize      int           `envconfig:"RECEIVING_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"RECEIVING_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"RECEIVING_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"RECEIVING_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	Stream         string        `envconfig:"RECEIVING_OUTBOX_STREAM" default:"receiving.events"`
	StreamMaxLen   int64         `envconfig:"RECEIVING_OUTBOX_STREAM_MAXLEN" default:"100000"`
	MetricsPort    string        `envconfig:"RECEIVING_OUTBOX_METRICS_PORT" default:"9102"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
