package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Fees     FeeConfig
	Mongo    MongoConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Path     string // sqlite file, ":memory:" allowed
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret          string
	WebhookSecret      string
	DealExpiryInterval time.Duration
}

// FeeConfig holds the platform fee schedule
type FeeConfig struct {
	PlatformRate      decimal.Decimal
	WithdrawalRate    decimal.Decimal
	WithdrawalMinFee  decimal.Decimal
	MinTransferAmount decimal.Decimal
}

// MongoConfig points the activity log at MongoDB. Empty URI keeps it in SQL.
type MongoConfig struct {
	URI      string
	Database string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "escrow_market"),
			Path:     getEnv("DB_PATH", "escrow.db"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		App: AppConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "escrow_market"),
		},
	}

	var err error
	if config.App.DealExpiryInterval, err = time.ParseDuration(getEnv("DEAL_EXPIRY_INTERVAL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid DEAL_EXPIRY_INTERVAL: %w", err)
	}
	if config.App.DealExpiryInterval <= 0 {
		return nil, fmt.Errorf("DEAL_EXPIRY_INTERVAL must be positive")
	}

	fees := []struct {
		key, fallback string
		dst           *decimal.Decimal
	}{
		{"PLATFORM_FEE_RATE", "0.02", &config.Fees.PlatformRate},
		{"WITHDRAWAL_FEE_RATE", "0.01", &config.Fees.WithdrawalRate},
		{"WITHDRAWAL_MIN_FEE", "50", &config.Fees.WithdrawalMinFee},
		{"MIN_TRANSFER_AMOUNT", "100", &config.Fees.MinTransferAmount},
	}
	for _, f := range fees {
		v, err := decimal.NewFromString(getEnv(f.key, f.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		if v.IsNegative() {
			return nil, fmt.Errorf("%s must not be negative", f.key)
		}
		*f.dst = v
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.App.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Database.Driver)
	}

	return config, nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
