package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	OTP           OTPConfig
	AuthRateLimit AuthRateLimitConfig
	APIRateLimit  APIRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Mail          MailConfig
	Cart          CartConfig
	Sobriety      SobrietyConfig
	Loyalty       LoyaltyConfig
	Cron          CronConfig
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
	Env            string   `envconfig:"LASTCALL_APP_ENV" required:"true"`
	Port           string   `envconfig:"LASTCALL_APP_PORT" required:"true"`
	PublicBaseURL  string   `envconfig:"LASTCALL_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	AllowedOrigins []string `envconfig:"LASTCALL_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	LogLevel       string   `envconfig:"LASTCALL_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"LASTCALL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string `envconfig:"LASTCALL_SERVICE_KIND" default:"api"`
	MetricsPort string `envconfig:"LASTCALL_METRICS_PORT" default:"9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"LASTCALL_DB_DSN"`
	Driver string `envconfig:"LASTCALL_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LASTCALL_DB_HOST"`
	Port     int    `envconfig:"LASTCALL_DB_PORT" default:"5432"`
	User     string `envconfig:"LASTCALL_DB_USER"`
	Password string `envconfig:"LASTCALL_DB_PASSWORD"`
	Name     string `envconfig:"LASTCALL_DB_NAME"`
	SSLMode  string `envconfig:"LASTCALL_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"LASTCALL_SQLITE_PATH" default:"lastcall.db"`

	MaxOpenConns    int           `envconfig:"LASTCALL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LASTCALL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LASTCALL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LASTCALL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LASTCALL_REDIS_URL" required:"true"`
	Password     string        `envconfig:"LASTCALL_REDIS_PASSWORD"`
	DB           int           `envconfig:"LASTCALL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LASTCALL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LASTCALL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LASTCALL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LASTCALL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LASTCALL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LASTCALL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LASTCALL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LASTCALL_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"LASTCALL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// OTPConfig controls one-time passcode issuance and the argon2id parameters
// used to hash codes at rest.
type OTPConfig struct {
	CodeLength       int           `envconfig:"LASTCALL_OTP_CODE_LENGTH" default:"6"`
	TTL              time.Duration `envconfig:"LASTCALL_OTP_TTL" default:"10m"`
	MaxAttempts      int           `envconfig:"LASTCALL_OTP_MAX_ATTEMPTS" default:"5"`
	Retention        time.Duration `envconfig:"LASTCALL_OTP_RETENTION" default:"24h"`
	ArgonMemoryKB    int           `envconfig:"LASTCALL_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int           `envconfig:"LASTCALL_ARGON_TIME" default:"2"`
	ArgonParallelism int           `envconfig:"LASTCALL_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int           `envconfig:"LASTCALL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int           `envconfig:"LASTCALL_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	SendWindow       time.Duration `envconfig:"LASTCALL_AUTH_RATE_LIMIT_SEND_WINDOW" default:"10m"`
	SendEmailLimit   int           `envconfig:"LASTCALL_AUTH_RATE_LIMIT_SEND_EMAIL_LIMIT" default:"3"`
	SendIPLimit      int           `envconfig:"LASTCALL_AUTH_RATE_LIMIT_SEND_IP_LIMIT" default:"20"`
	VerifyWindow     time.Duration `envconfig:"LASTCALL_AUTH_RATE_LIMIT_VERIFY_WINDOW" default:"10m"`
	VerifyEmailLimit int           `envconfig:"LASTCALL_AUTH_RATE_LIMIT_VERIFY_EMAIL_LIMIT" default:"10"`
	VerifyIPLimit    int           `envconfig:"LASTCALL_AUTH_RATE_LIMIT_VERIFY_IP_LIMIT" default:"30"`
}

// APIRateLimitConfig configures the in-process per-IP token bucket applied to
// the whole API surface.
type APIRateLimitConfig struct {
	RequestsPerMinute int `envconfig:"LASTCALL_API_RATE_LIMIT_RPM" default:"300"`
	Burst             int `envconfig:"LASTCALL_API_RATE_LIMIT_BURST" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LASTCALL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LASTCALL_AUTO_MIGRATE" default:"false"`
	LogMailer   bool `envconfig:"LASTCALL_FEATURE_LOG_MAILER" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"LASTCALL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LASTCALL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LASTCALL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LASTCALL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"LASTCALL_PUBSUB_DOMAIN_TOPIC" default:"lc-domain-events"`
	NotificationSubscription string `envconfig:"LASTCALL_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"lc-notifications"`
	LoyaltySubscription      string `envconfig:"LASTCALL_PUBSUB_LOYALTY_SUBSCRIPTION" default:"lc-loyalty"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"LASTCALL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"LASTCALL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"LASTCALL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"LASTCALL_OUTBOX_RETENTION" default:"168h"`
}

// MailConfig targets the SendGrid v3 HTTP API.
type MailConfig struct {
	APIKey      string        `envconfig:"LASTCALL_SENDGRID_API_KEY"`
	BaseURL     string        `envconfig:"LASTCALL_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string        `envconfig:"LASTCALL_MAIL_FROM_EMAIL" default:"orders@lastcall.app"`
	FromName    string        `envconfig:"LASTCALL_MAIL_FROM_NAME" default:"LastCall"`
	Timeout     time.Duration `envconfig:"LASTCALL_MAIL_TIMEOUT" default:"10s"`
}

// CartConfig holds the cart persistence and abandoned-cart lifecycle knobs.
type CartConfig struct {
	StoreTTL        time.Duration `envconfig:"LASTCALL_CART_STORE_TTL" default:"168h"`
	SyncQuietPeriod time.Duration `envconfig:"LASTCALL_CART_SYNC_QUIET_PERIOD" default:"1s"`
	FirstReminder   time.Duration `envconfig:"LASTCALL_CART_FIRST_REMINDER_AFTER" default:"5m"`
	SecondReminder  time.Duration `envconfig:"LASTCALL_CART_SECOND_REMINDER_AFTER" default:"10m"`
	Retention       time.Duration `envconfig:"LASTCALL_CART_RETENTION" default:"24h"`
	ReminderBatch   int           `envconfig:"LASTCALL_CART_REMINDER_BATCH" default:"100"`
}

type SobrietyConfig struct {
	PollInterval     time.Duration `envconfig:"LASTCALL_SOBRIETY_POLL_INTERVAL" default:"30s"`
	IdleSessionAfter time.Duration `envconfig:"LASTCALL_SOBRIETY_IDLE_AFTER" default:"1h"`
	MaxSession       time.Duration `envconfig:"LASTCALL_SOBRIETY_MAX_SESSION" default:"12h"`
}

type LoyaltyConfig struct {
	PointsPerDollar int `envconfig:"LASTCALL_LOYALTY_POINTS_PER_DOLLAR" default:"10"`
	CheckInPoints   int `envconfig:"LASTCALL_LOYALTY_CHECK_IN_POINTS" default:"25"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"LASTCALL_CRON_INTERVAL" default:"1m"`
	LockTTL    time.Duration `envconfig:"LASTCALL_CRON_LOCK_TTL" default:"5m"`
	JobTimeout time.Duration `envconfig:"LASTCALL_CRON_JOB_TIMEOUT" default:"2m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
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
