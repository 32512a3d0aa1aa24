package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3100, cfg.Port)
	assert.Equal(t, "authenticated", cfg.JWTAudience)
	assert.Equal(t, "0 21 * * *", cfg.DigestCron)
	assert.Equal(t, "luckygrid.events", cfg.KafkaTopic)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 50*time.Millisecond, cfg.StoreRetryDelay)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_EMAILS", "ops@example.com,boss@example.com")
	t.Setenv("STORE_RETRY_BASE_DELAY", "10ms")
	t.Setenv("PICK_RATE_BURST", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"ops@example.com", "boss@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryPolicy().BaseDelay)
	assert.Equal(t, 3, cfg.PickRateBurst)
}

func TestConfigValidate(t *testing.T) {
	strong := "0123456789abcdef0123456789abcdef"
	base := func() Config {
		return Config{
			JWTSecret:         strong,
			AdminEmails:       []string{"ops@example.com"},
			PickRatePerSecond: 5,
			PickRateBurst:     10,
			NotifyQueueSize:   16,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"insecure default secret", func(c *Config) { c.JWTSecret = insecureJWTSecret }, "insecure default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"no admins", func(c *Config) { c.AdminEmails = nil }, "ADMIN_EMAILS"},
		{"insecure allowed", func(c *Config) {
			c.JWTSecret = insecureJWTSecret
			c.AdminEmails = nil
			c.AllowInsecureDefaults = true
		}, ""},
		{"zero rate", func(c *Config) { c.PickRatePerSecond = 0; c.AllowInsecureDefaults = true }, "PICK_RATE"},
		{"zero queue", func(c *Config) { c.NotifyQueueSize = 0 }, "NOTIFY_QUEUE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{PGUser: "u", PGPassword: "p", PGHost: "db", PGPort: 5432, PGDatabase: "grid"}
	assert.Equal(t, "postgres://u:p@db:5432/grid?sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://elsewhere/x"
	assert.Equal(t, "postgres://elsewhere/x", cfg.DSN())
}

func TestConfigSMTPAddr(t *testing.T) {
	cfg := Config{SMTPPort: 587}
	assert.Empty(t, cfg.SMTPAddr())
	cfg.SMTPHost = "smtp.example.com"
	assert.Equal(t, "smtp.example.com:587", cfg.SMTPAddr())
}
