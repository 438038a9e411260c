package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the dispatch service
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// WebSocket keepalive tuning for the state ingress and observers
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Wait-state re-evaluation interval for queued callers
	TickInterval time.Duration

	// Realtime directory database; empty disables the realtime layer
	PostgresDSN string

	// Dynamic member persistence; empty disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Queue log persistence
	DynamoEndpoint  string
	DynamoRegion    string
	QueueLogTable   string
	DynamoLocalMode bool

	// JWKS endpoint for API auth; empty disables auth entirely
	JWKSURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DynamoEndpoint: getEnv("DYNAMO_ENDPOINT", ""),
		DynamoRegion:   getEnv("DYNAMO_REGION", "eu-central-1"),
		QueueLogTable:  getEnv("QUEUE_LOG_TABLE", "acd_queue_log"),

		JWKSURL: getEnv("JWKS_URL", ""),
	}
	config.DynamoLocalMode = config.DynamoEndpoint != ""

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	config.RedisDB = redisDB

	tickMs, err := strconv.Atoi(getEnv("TICK_INTERVAL_MS", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL_MS: %w", err)
	}
	if tickMs <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL_MS must be positive")
	}
	config.TickInterval = time.Duration(tickMs) * time.Millisecond

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 4096

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
