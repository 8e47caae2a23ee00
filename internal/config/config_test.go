package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("REQUEST_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "https://turumiapi.onrender.com", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "development", cfg.Environment)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8080/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("STRICT_PAYLOADS", "true")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "0.5")

	cfg := Load()

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.StrictPayloads)
	assert.InDelta(t, 0.5, cfg.BreakerFailureThreshold, 1e-9)
}

func TestInvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("WATCH_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 15*time.Second, cfg.WatchInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad base url", mutate: func(c *Config) { c.APIBaseURL = "not a url" }},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }},
		{name: "tiny watch interval", mutate: func(c *Config) { c.WatchInterval = time.Millisecond }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "verbose" }},
		{name: "breaker threshold", mutate: func(c *Config) { c.BreakerFailureThreshold = 1.5 }},
		{name: "default secret in production", mutate: func(c *Config) { c.Environment = "production" }},
		{name: "bcrypt cost", mutate: func(c *Config) { c.BCryptCost = 2 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
