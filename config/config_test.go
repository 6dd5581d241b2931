package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-expense-tracker/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", testSecret)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.GetDatabaseDriver())
	assert.Equal(t, 72*time.Hour, cfg.GetActivationTokenTTL())
	assert.Equal(t, 24*time.Hour, cfg.GetSessionExpiration())
	assert.Equal(t, 6, cfg.GetPasswordMinLength())
	assert.Equal(t, 10, cfg.GetBcryptCost())
	assert.Equal(t, "/login", cfg.GetRejectedRouteDefault())
	assert.Equal(t, "/expenses", cfg.GetLoginRedirectDefault())
	assert.Equal(t, "log", cfg.MailDriver)
	assert.True(t, cfg.CSRFEnabled)
	assert.False(t, cfg.GetCookieSecure())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", testSecret)
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("APP_BASE_URL", "https://money.example.com/")
	t.Setenv("ACTIVATION_TOKEN_TTL", "30m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("CSRF_ENABLED", "false")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://money.example.com", cfg.GetBaseURL())
	assert.Equal(t, 30*time.Minute, cfg.GetActivationTokenTTL())
	assert.Equal(t, 4, cfg.GetBcryptCost())
	assert.False(t, cfg.CSRFEnabled)
}

func TestLoadRequiresSecretKey(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", "too-short")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_SECRET_KEY")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	content := "APP_SECRET_KEY=" + testSecret + "\nAPP_ADDR=:7070\nMAIL_DRIVER=smtp\nSMTP_HOST=mail.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "smtp", cfg.MailDriver)
	assert.Equal(t, "mail.example.com", cfg.GetSMTPHost())
	assert.Equal(t, 587, cfg.GetSMTPPort())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Addr:              ":8080",
			SecretKey:         testSecret,
			BcryptCost:        10,
			PasswordMinLength: 6,
			MailDriver:        "log",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"bcrypt cost", func(c *config.Config) { c.BcryptCost = 40 }, "BCRYPT_COST"},
		{"negative ttl", func(c *config.Config) { c.ActivationTokenTTL = -time.Second }, "ACTIVATION_TOKEN_TTL"},
		{"smtp without host", func(c *config.Config) { c.MailDriver = "smtp" }, "SMTP_HOST"},
		{"unknown mail driver", func(c *config.Config) { c.MailDriver = "pigeon" }, "MAIL_DRIVER"},
		{"insecure production", func(c *config.Config) { c.Env = "production" }, "COOKIE_SECURE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
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
