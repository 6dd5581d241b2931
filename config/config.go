// Package config loads the application settings from defaults, an optional
// config or .env file and the environment, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

// MinSecretKeyLength mirrors the signing key requirement of activation tokens
const MinSecretKeyLength = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	Addr      string `mapstructure:"APP_ADDR"`
	BaseURL   string `mapstructure:"APP_BASE_URL"`
	AppName   string `mapstructure:"APP_NAME"`
	SecretKey string `mapstructure:"APP_SECRET_KEY"`
	Issuer    string `mapstructure:"APP_ISSUER"`
	Env       string `mapstructure:"APP_ENV"`
	Debug     bool   `mapstructure:"DEBUG"`

	// ViewsDir serves templates from disk instead of the embedded copy
	ViewsDir string `mapstructure:"VIEWS_DIR"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN"`
	DatabaseDebug  bool   `mapstructure:"DATABASE_DEBUG"`

	SessionCookieName string        `mapstructure:"SESSION_COOKIE_NAME"`
	SessionExpiration time.Duration `mapstructure:"SESSION_EXPIRATION"`
	CookieSecure      bool          `mapstructure:"COOKIE_SECURE"`
	CSRFEnabled       bool          `mapstructure:"CSRF_ENABLED"`

	// ActivationTokenTTL is the activation window, zero disables expiry
	ActivationTokenTTL time.Duration `mapstructure:"ACTIVATION_TOKEN_TTL"`
	PasswordMinLength  int           `mapstructure:"PASSWORD_MIN_LENGTH"`
	BcryptCost         int           `mapstructure:"BCRYPT_COST"`

	RejectedRouteKey  string        `mapstructure:"REJECTED_ROUTE_KEY"`
	LoginPath         string        `mapstructure:"LOGIN_PATH"`
	LoginRedirectPath string        `mapstructure:"LOGIN_REDIRECT_PATH"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// MailDriver is "log" or "smtp"
	MailDriver   string        `mapstructure:"MAIL_DRIVER"`
	MailFrom     string        `mapstructure:"MAIL_FROM"`
	SMTPHost     string        `mapstructure:"SMTP_HOST"`
	SMTPPort     int           `mapstructure:"SMTP_PORT"`
	SMTPUsername string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string        `mapstructure:"SMTP_PASSWORD"`
	SMTPTLS      string        `mapstructure:"SMTP_TLS"`
	SMTPTimeout  time.Duration `mapstructure:"SMTP_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("APP_BASE_URL", "")
	v.SetDefault("APP_NAME", "ExpenseTracker")
	v.SetDefault("APP_SECRET_KEY", "")
	v.SetDefault("APP_ISSUER", "expense-tracker")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DEBUG", false)
	v.SetDefault("VIEWS_DIR", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "pretty")

	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:expensetracker.db?cache=shared")
	v.SetDefault("DATABASE_DEBUG", false)

	v.SetDefault("SESSION_COOKIE_NAME", "session_id")
	v.SetDefault("SESSION_EXPIRATION", "24h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CSRF_ENABLED", true)

	v.SetDefault("ACTIVATION_TOKEN_TTL", "72h")
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("REJECTED_ROUTE_KEY", "login_redirect")
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("LOGIN_REDIRECT_PATH", "/expenses")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("MAIL_DRIVER", "log")
	v.SetDefault("MAIL_FROM", "ExpenseTracker <noreply@expensetracker.local>")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_TLS", "opportunistic")
	v.SetDefault("SMTP_TIMEOUT", "15s")
}

// Load builds and validates Config. When file is empty a .env in the
// working directory is read if present; environment variables always win.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "config: failed to read "+file)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig() // a missing .env is fine
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "config: failed to decode")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required values and ranges
func (c *Config) Validate() error {
	if len(c.SecretKey) < MinSecretKeyLength {
		return configError(fmt.Sprintf("APP_SECRET_KEY must be set to at least %d characters", MinSecretKeyLength))
	}

	if c.Addr == "" {
		return configError("APP_ADDR must be set")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return configError("BCRYPT_COST must be between 4 and 31")
	}

	if c.PasswordMinLength < 1 {
		return configError("PASSWORD_MIN_LENGTH must be positive")
	}

	if c.ActivationTokenTTL < 0 {
		return configError("ACTIVATION_TOKEN_TTL can not be negative")
	}

	switch strings.ToLower(c.MailDriver) {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			return configError("SMTP_HOST must be set when MAIL_DRIVER=smtp")
		}
	default:
		return configError(fmt.Sprintf("unknown MAIL_DRIVER %q", c.MailDriver))
	}

	if !c.CookieSecure && strings.EqualFold(c.Env, "production") {
		return configError("COOKIE_SECURE must be true when APP_ENV=production")
	}

	return nil
}

func configError(msg string) error {
	return goerrors.New("config: "+msg, goerrors.CategoryBadInput).
		WithTextCode("INVALID_CONFIG")
}

func (c *Config) GetSecretKey() string { return c.SecretKey }
func (c *Config) GetBaseURL() string { return strings.TrimRight(c.BaseURL, "/") }
func (c *Config) GetIssuer() string { return c.Issuer }
func (c *Config) GetActivationTokenTTL() time.Duration { return c.ActivationTokenTTL }
func (c *Config) GetPasswordMinLength() int { return c.PasswordMinLength }
func (c *Config) GetBcryptCost() int { return c.BcryptCost }
func (c *Config) GetRejectedRouteKey() string { return c.RejectedRouteKey }
func (c *Config) GetRejectedRouteDefault() string { return c.LoginPath }
func (c *Config) GetLoginRedirectDefault() string { return c.LoginRedirectPath }
func (c *Config) GetCookieSecure() bool { return c.CookieSecure }
func (c *Config) GetSessionExpiration() time.Duration { return c.SessionExpiration }
func (c *Config) GetSessionCookieName() string { return c.SessionCookieName }
func (c *Config) GetDatabaseDriver() string { return c.DatabaseDriver }
func (c *Config) GetDatabaseDSN() string { return c.DatabaseDSN }
func (c *Config) GetDatabaseDebug() bool { return c.DatabaseDebug }
func (c *Config) GetMailFrom() string { return c.MailFrom }
func (c *Config) GetSMTPHost() string { return c.SMTPHost }
func (c *Config) GetSMTPPort() int { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }
func (c *Config) GetSMTPTLS() string { return c.SMTPTLS }
func (c *Config) GetSMTPTimeout() time.Duration { return c.SMTPTimeout }
