package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Email      EmailConfig      `yaml:"email"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	JWT        JWTConfig        `yaml:"jwt"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Promo      PromoConfig      `yaml:"promo"`
	Membership MembershipConfig `yaml:"membership"`
	Admin      AdminConfig      `yaml:"admin"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// EmailConfig contains SendGrid settings
type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	SupportEmail   string `yaml:"support_email"`
}

// WhatsAppConfig contains Twilio WhatsApp settings
type WhatsAppConfig struct {
	AccountSID    string `yaml:"account_sid"`
	AuthToken     string `yaml:"auth_token"`
	FromNumber    string `yaml:"from_number"`
	SupportNumber string `yaml:"support_number"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	AccessTokenExpiry  int    `yaml:"access_token_expiry_minutes"`
	RefreshTokenExpiry int    `yaml:"refresh_token_expiry_minutes"`
}

// PricingConfig contains the BTC/USD reference price settings
type PricingConfig struct {
	// FallbackPriceUSD is used whenever no live feed is configured or the
	// feed cannot be reached.
	FallbackPriceUSD float64 `yaml:"bitcoin_price_usd"`
	FeedURL          string  `yaml:"feed_url"`
	CacheSeconds     int     `yaml:"cache_seconds"`
}

// PromoConfig contains the first-deposit promo allowlist settings
type PromoConfig struct {
	Codes     []string `yaml:"codes"`
	CodesFile string   `yaml:"codes_file"`
}

// MembershipConfig contains membership grant settings
type MembershipConfig struct {
	// ValidityDays is the single canonical membership window.
	ValidityDays        int     `yaml:"validity_days"`
	DepositThresholdUSD float64 `yaml:"deposit_threshold_usd"`
}

// AdminConfig contains the one-time admin bootstrap seed. After the seed has
// promoted the user, the role column is the only authorization source.
type AdminConfig struct {
	BootstrapEmail string `yaml:"bootstrap_email"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	MembershipExpiryNotices string `yaml:"membership_expiry_notices"`
	LoanDueNotices          string `yaml:"loan_due_notices"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Email / WhatsApp
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("SUPPORT_EMAIL"); val != "" {
		c.Email.SupportEmail = val
	}
	if val := os.Getenv("TWILIO_ACCOUNT_SID"); val != "" {
		c.WhatsApp.AccountSID = val
	}
	if val := os.Getenv("TWILIO_AUTH_TOKEN"); val != "" {
		c.WhatsApp.AuthToken = val
	}
	if val := os.Getenv("TWILIO_WHATSAPP_NUMBER"); val != "" {
		c.WhatsApp.FromNumber = val
	}
	if val := os.Getenv("TWILIO_SUPPORT_NUMBER"); val != "" {
		c.WhatsApp.SupportNumber = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Pricing
	if val := os.Getenv("BITCOIN_PRICE"); val != "" {
		fmt.Sscanf(val, "%f", &c.Pricing.FallbackPriceUSD)
	}

	// Promo codes, comma separated
	if val := os.Getenv("PROMO_CODES"); val != "" {
		c.Promo.Codes = splitCSV(val)
	}

	// Admin bootstrap seed
	if val := os.Getenv("ADMIN_EMAIL"); val != "" {
		c.Admin.BootstrapEmail = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}
	if c.JWT.RefreshTokenExpiry == 0 {
		c.JWT.RefreshTokenExpiry = 60 * 24 * 7
	}

	// Pricing defaults
	if c.Pricing.FallbackPriceUSD <= 0 {
		c.Pricing.FallbackPriceUSD = 42000
	}
	if c.Pricing.CacheSeconds <= 0 {
		c.Pricing.CacheSeconds = 300
	}

	// Membership defaults
	if c.Membership.ValidityDays <= 0 {
		c.Membership.ValidityDays = 365
	}
	if c.Membership.DepositThresholdUSD <= 0 {
		c.Membership.DepositThresholdUSD = 1000
	}

	// Promo defaults
	if c.Promo.CodesFile == "" {
		c.Promo.CodesFile = "data/promos.json"
	}

	// Scheduler defaults
	if c.Scheduler.MembershipExpiryNotices == "" {
		c.Scheduler.MembershipExpiryNotices = "0 0 8 * * *" // 8 AM UTC
	}
	if c.Scheduler.LoanDueNotices == "" {
		c.Scheduler.LoanDueNotices = "0 30 8 * * *" // 8:30 AM UTC
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
