package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./congregate.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	TokenSecret  string // Required in prod: HMAC key for verification and reset links

	RedisAddr     string // Optional: redis address; empty falls back to the in-process cache
	RedisPassword string // Optional: redis auth
	RedisDB       int    // Optional: redis database index

	AppleClientID string // Optional: Sign in with Apple audience; Apple login disabled when empty

	LoginMaxAttempts int64         // Failed logins tolerated per email/IP window (default: 5)
	LoginWindow      time.Duration // Login rate limit window (default: 60s)
	KnownDeviceTTL   time.Duration // How long a device stays recognized (default: 90 days)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "congregate.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		TokenSecret:  os.Getenv("AUTH_TOKEN_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		AppleClientID: os.Getenv("APPLE_CLIENT_ID"),

		LoginMaxAttempts: int64(getEnvIntOrDefault("LOGIN_MAX_ATTEMPTS", 5)),
		LoginWindow:      getEnvDurationOrDefault("LOGIN_WINDOW", time.Minute),
		KnownDeviceTTL:   getEnvDurationOrDefault("KNOWN_DEVICE_TTL", 90*24*time.Hour),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
