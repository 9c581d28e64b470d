package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Database (optional; empty disables job history persistence)
	DatabaseURL string

	// Server
	ServerPort string

	// Backend transformation service
	BackendEndpoint string
	BackendToken    string

	// Upload encryption
	KMSKeyARN string

	// Polling policy
	PollInterval time.Duration
	PollBudget   time.Duration

	// Packaging
	MaxPayloadBytes int64

	// Scratch area for build output, snapshots and downloads
	ScratchRoot string
}

// Load loads configuration from the environment, reading a .env file first
// when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		BackendEndpoint: getEnv("TRANSFORM_BACKEND_ENDPOINT", "http://localhost:9090"),
		BackendToken:    os.Getenv("TRANSFORM_BACKEND_TOKEN"),
		KMSKeyARN:       os.Getenv("TRANSFORM_KMS_KEY_ARN"),
		PollInterval:    getEnvDuration("TRANSFORM_POLL_INTERVAL", 5*time.Second),
		PollBudget:      getEnvDuration("TRANSFORM_POLL_BUDGET", 24*time.Hour),
		MaxPayloadBytes: getEnvInt64("TRANSFORM_MAX_PAYLOAD_BYTES", 2*1024*1024*1024),
		ScratchRoot:     getEnv("TRANSFORM_SCRATCH_ROOT", os.TempDir()),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
