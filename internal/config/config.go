// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Runtime
	Environment string
	LogLevel    string

	// Remote API (client side)
	APIBaseURL     string
	RequestTimeout time.Duration
	WatchInterval  time.Duration

	// Session storage
	RedisURL       string
	SessionTTL     time.Duration
	SessionProfile string

	// Session passed through the environment when Redis is not used
	Token        string
	RefreshToken string
	UserID       int64

	// Circuit breaker around the remote API
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold float64
	BreakerMinRequests      uint32

	// Reference match store (server side)
	Port               string
	OpsPort            string
	DatabaseURL        string
	JWTSecret          string
	BCryptCost         int
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	StrictPayloads     bool
	PageSize           int
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", "https://turumiapi.onrender.com"), "/"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", "10s"),
		WatchInterval:  getEnvDuration("WATCH_INTERVAL", "15s"),

		RedisURL:       getEnv("REDIS_URL", ""),
		SessionTTL:     getEnvDuration("SESSION_TTL", "720h"),
		SessionProfile: getEnv("TURUMI_PROFILE", "default"),

		Token:        getEnv("TURUMI_TOKEN", ""),
		RefreshToken: getEnv("TURUMI_REFRESH_TOKEN", ""),
		UserID:       int64(getEnvInt("TURUMI_USER_ID", 0)),

		BreakerMaxRequests:      uint32(getEnvInt("BREAKER_MAX_REQUESTS", 5)),
		BreakerInterval:         getEnvDuration("BREAKER_INTERVAL", "30s"),
		BreakerTimeout:          getEnvDuration("BREAKER_TIMEOUT", "60s"),
		BreakerFailureThreshold: getEnvFloat("BREAKER_FAILURE_THRESHOLD", 0.8),
		BreakerMinRequests:      uint32(getEnvInt("BREAKER_MIN_REQUESTS", 5)),

		Port:               getEnv("PORT", "8080"),
		OpsPort:            getEnv("OPS_PORT", "9090"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", "your-super-secret-key-change-this-in-production"),
		BCryptCost:         getEnvInt("BCRYPT_COST", 10),
		AccessTokenExpiry:  getEnvDuration("ACCESS_TOKEN_EXPIRY", "1h"),
		RefreshTokenExpiry: getEnvDuration("REFRESH_TOKEN_EXPIRY", "720h"), // 30 days
		StrictPayloads:     getEnvBool("STRICT_PAYLOADS", false),
		PageSize:           getEnvInt("PAGE_SIZE", 0),
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.APIBaseURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.WatchInterval < time.Second {
		return fmt.Errorf("watch interval must be at least 1s")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if c.BreakerFailureThreshold <= 0 || c.BreakerFailureThreshold > 1 {
		return fmt.Errorf("breaker failure threshold must be in (0, 1]")
	}

	if c.JWTSecret == "your-super-secret-key-change-this-in-production" && c.IsProduction() {
		return fmt.Errorf("JWT secret must be changed for production")
	}

	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	if c.UserID < 0 {
		return fmt.Errorf("user id cannot be negative")
	}

	if c.PageSize < 0 {
		return fmt.Errorf("page size cannot be negative")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
