package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"luckygrid"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"luckygrid"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"luckygrid"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"20"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Auth. Tokens are issued by the external auth provider and signed with
	// its shared HS256 secret.
	JWTSecret   string   `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAudience string   `env:"JWT_AUDIENCE" envDefault:"authenticated"`
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	// Server
	Port        int      `env:"PORT" envDefault:"3100"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"luckygrid.events"`

	// Outbox
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Mail
	SMTPHost          string   `env:"SMTP_HOST"`
	SMTPPort          int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser          string   `env:"SMTP_USER"`
	SMTPPass          string   `env:"SMTP_PASS"`
	SMTPFrom          string   `env:"SMTP_FROM" envDefault:"Lucky Grid <no-reply@luckygrid.local>"`
	AdminNotifyEmails []string `env:"ADMIN_NOTIFY_EMAILS" envSeparator:","`
	NotifyQueueSize   int      `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`

	// Games
	PrizeConfigPath   string        `env:"PRIZE_CONFIG_PATH"`
	PickRatePerSecond float64       `env:"PICK_RATE_PER_SECOND" envDefault:"5"`
	PickRateBurst     int           `env:"PICK_RATE_BURST" envDefault:"10"`
	StoreRetries      int           `env:"STORE_RETRY_ATTEMPTS" envDefault:"3"`
	StoreRetryDelay   time.Duration `env:"STORE_RETRY_BASE_DELAY" envDefault:"50ms"`

	// Digest
	DigestCron     string `env:"DIGEST_CRON" envDefault:"0 21 * * *"`
	DigestTimezone string `env:"DIGEST_TIMEZONE" envDefault:"UTC"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`

	// External services
	RandomOrgAPIKey   string `env:"RANDOM_ORG_API_KEY"`
	PaystackSecretKey string `env:"PAYSTACK_SECRET_KEY"`
}

// LoadConfig loads an optional .env file, then parses environment variables
// into a Config struct. Variables already set in the environment win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.PickRatePerSecond <= 0 || c.PickRateBurst <= 0 {
		return fmt.Errorf("PICK_RATE_PER_SECOND and PICK_RATE_BURST must be positive")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if len(c.AdminEmails) == 0 {
		return fmt.Errorf("ADMIN_EMAILS is empty; no account could administer games")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// RetryPolicy returns the store read retry policy.
func (c *Config) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	if c.StoreRetries > 0 {
		p.Attempts = c.StoreRetries
	}
	if c.StoreRetryDelay > 0 {
		p.BaseDelay = c.StoreRetryDelay
	}
	return p
}

// SMTPAddr returns host:port, or "" when mail is not configured.
func (c *Config) SMTPAddr() string {
	if strings.TrimSpace(c.SMTPHost) == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}
