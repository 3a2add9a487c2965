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
	GCP          GCPConfig
	PubSub       PubSubConfig
	Webhook      WebhookConfig
	Recoco       RecocoConfig
	Grist        GristConfig
	LesCommuns   LesCommunsConfig
	Relay        RelayConfig
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
	Env          string `envconfig:"RELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"RELAY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RELAY_DB_DSN"`
	Driver string `envconfig:"RELAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RELAY_DB_HOST"`
	LegacyPort     int    `envconfig:"RELAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RELAY_DB_USER"`
	LegacyPassword string `envconfig:"RELAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"RELAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"RELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RELAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RELAY_REDIS_ADDR"`
	Password     string        `envconfig:"RELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"RELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RELAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RELAY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RELAY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"RELAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RELAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"RELAY_PUBSUB_EVENTS_TOPIC" required:"true"`
	EventsSubscription string `envconfig:"RELAY_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
}

type WebhookConfig struct {
	Secret         string        `envconfig:"RELAY_WEBHOOK_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"RELAY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type RecocoConfig struct {
	Username string        `envconfig:"RELAY_RECOCO_API_USERNAME" required:"true"`
	Password string        `envconfig:"RELAY_RECOCO_API_PASSWORD" required:"true"`
	Timeout  time.Duration `envconfig:"RELAY_RECOCO_API_TIMEOUT" default:"60s"`
}

type GristConfig struct {
	RecordBatchSize      int           `envconfig:"RELAY_GRIST_RECORD_BATCH_SIZE" default:"100"`
	ColumnHeaderMaxChars int           `envconfig:"RELAY_GRIST_COLUMN_HEADER_MAX_CHARS" default:"64"`
	RequestTimeout       time.Duration `envconfig:"RELAY_GRIST_REQUEST_TIMEOUT" default:"30s"`
}

type LesCommunsConfig struct {
	APIURL           string        `envconfig:"RELAY_LESCOMMUNS_API_URL"`
	Username         string        `envconfig:"RELAY_LESCOMMUNS_API_USERNAME"`
	Password         string        `envconfig:"RELAY_LESCOMMUNS_API_PASSWORD"`
	APIKey           string        `envconfig:"RELAY_LESCOMMUNS_API_KEY"`
	ResourceTag      string        `envconfig:"RELAY_LESCOMMUNS_RESOURCE_TAG" default:"lescommuns"`
	SelectionEnabled bool          `envconfig:"RELAY_LESCOMMUNS_PROJECT_SELECTION_ENABLED" default:"false"`
	ServicesAttempts int           `envconfig:"RELAY_LESCOMMUNS_SERVICES_ATTEMPTS" default:"5"`
	ServicesBackoff  time.Duration `envconfig:"RELAY_LESCOMMUNS_SERVICES_BACKOFF" default:"2s"`
}

type RelayConfig struct {
	BatchSize      int `envconfig:"RELAY_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RELAY_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RELAY_PUBLISH_MAX_ATTEMPTS" default:"10"`
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
