// Package config loads the kAIzen server configuration from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Stripe     StripeConfig
	Email      EmailConfig
	Auth       AuthConfig
	Jobs       JobsConfig
	RateLimit  RateLimitConfig
	Alerts     AlertsConfig
	Logging    LoggingConfig
	Features   Features
}

type ServerConfig struct {
	Host    string
	Port    string
	BaseURL string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig is optional; an empty Addr disables every Redis-backed component.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	ContentTTL time.Duration
	EventTTL   time.Duration
}

// ClickHouseConfig is optional; an empty Addr keeps analytics in Postgres.
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

type StripeConfig struct {
	WebhookSecret string
	PaymentLink   string
}

type EmailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	SiteURL        string
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	ResetTTL     time.Duration
	CookieName   string
	SecureCookie bool
}

type JobsConfig struct {
	ServiceToken    string
	WelcomeBatch    int
	WelcomeInterval time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// AlertsConfig is optional; an empty SlackWebhookURL disables billing alerts.
type AlertsConfig struct {
	SlackWebhookURL string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("HOST", "0.0.0.0"),
			Port:    getEnv("PORT", "8080"),
			BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			ContentTTL: getEnvAsDuration("REDIS_CONTENT_TTL", 60*time.Second),
			EventTTL:   getEnvAsDuration("REDIS_EVENT_TTL", 72*time.Hour),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("CLICKHOUSE_ADDR", ""),
			Database: getEnv("CLICKHOUSE_DB", "kaizen"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Stripe: StripeConfig{
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PaymentLink:   getEnv("STRIPE_PAYMENT_LINK", ""),
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromName:       getEnv("EMAIL_FROM_NAME", "kAIzen Systems"),
			FromAddress:    getEnv("EMAIL_FROM_ADDRESS", "newsletter@kaizen.systems"),
			SiteURL:        strings.TrimRight(getEnv("SITE_URL", "https://mnehmos.github.io/kAIzen"), "/"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			TokenTTL:     getEnvAsDuration("AUTH_TOKEN_TTL", 7*24*time.Hour),
			ResetTTL:     getEnvAsDuration("AUTH_RESET_TTL", time.Hour),
			CookieName:   getEnv("AUTH_COOKIE_NAME", "kaizen_session"),
			SecureCookie: getEnvAsBool("AUTH_SECURE_COOKIE", false),
		},
		Jobs: JobsConfig{
			ServiceToken:    getEnv("JOBS_SERVICE_TOKEN", ""),
			WelcomeBatch:    getEnvAsInt("JOBS_WELCOME_BATCH", 10),
			WelcomeInterval: getEnvAsDuration("JOBS_WELCOME_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 1),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
		Alerts: AlertsConfig{
			SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Features: LoadFeatures(),
	}

	return cfg, nil
}

// Validate reports required settings that are missing for the enabled features.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Features.AuthEnabled && c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Features.BillingEnabled && c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
