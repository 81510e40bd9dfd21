package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "TIENDLY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TIENDLY_DB_DSN"
	EnvDBHost = "TIENDLY_DB_HOST"
	EnvDBUser = "TIENDLY_DB_USER"
	EnvDBName = "TIENDLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Mailer       MailerConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
	FeatureFlags FeatureFlagsConfig
}

// Load builds the process-wide configuration exactly once at startup; business
// logic receives it by reference and never reads the environment directly.
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
	Env          string   `envconfig:"TIENDLY_APP_ENV" required:"true"`
	Port         string   `envconfig:"TIENDLY_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TIENDLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TIENDLY_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TIENDLY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TIENDLY_DB_DSN"`
	Driver string `envconfig:"TIENDLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIENDLY_DB_HOST"`
	LegacyPort     int    `envconfig:"TIENDLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIENDLY_DB_USER"`
	LegacyPassword string `envconfig:"TIENDLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIENDLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIENDLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIENDLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIENDLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIENDLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIENDLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIENDLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TIENDLY_REDIS_ADDR"`
	Password     string        `envconfig:"TIENDLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIENDLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIENDLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIENDLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIENDLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIENDLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIENDLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TIENDLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TIENDLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TIENDLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TIENDLY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TIENDLY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TIENDLY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TIENDLY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TIENDLY_ARGON_KEY_LEN" default:"32"`
}

type MailerConfig struct {
	BaseURL   string        `envconfig:"TIENDLY_MAILER_BASE_URL"`
	APIKey    string        `envconfig:"TIENDLY_MAILER_API_KEY"`
	FromEmail string        `envconfig:"TIENDLY_MAILER_FROM_EMAIL" default:"orders@tiendly.mx"`
	Timeout   time.Duration `envconfig:"TIENDLY_MAILER_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TIENDLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TIENDLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TIENDLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TIENDLY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TIENDLY_AUTO_MIGRATE" default:"false"`
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
