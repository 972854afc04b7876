package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	KeyResolutionCurrent = "current"
	KeyResolutionKID     = "kid"

	minPBKDF2Iterations = 100_000
	minPasswordLength   = 8
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	LogLevel                slog.Level

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	CORSOrigins  []string
	RateLimitRPM int
	RedisURL     string

	PBKDF2Iterations  int
	HashConcurrency   int
	PasswordMinLength int
	TokenTTL          time.Duration
	KeyResolution     string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:                getLevel("LOG_LEVEL", slog.LevelInfo),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		RedisURL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		PBKDF2Iterations:        getInt("PBKDF2_ITERATIONS", minPBKDF2Iterations),
		HashConcurrency:         getInt("HASH_CONCURRENCY", runtime.GOMAXPROCS(0)),
		PasswordMinLength:       getInt("PASSWORD_MIN_LENGTH", minPasswordLength),
		TokenTTL:                getDuration("TOKEN_TTL", time.Hour),
		KeyResolution:           strings.ToLower(getEnv("TOKEN_KEY_RESOLUTION", KeyResolutionCurrent)),
		AdminUsername:           getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:              getEnv("ADMIN_EMAIL", "admin@localhost"),
		AdminPassword:           os.Getenv("ADMIN_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.PBKDF2Iterations < minPBKDF2Iterations {
		return fmt.Errorf("PBKDF2_ITERATIONS must be at least %d", minPBKDF2Iterations)
	}

	if c.HashConcurrency <= 0 {
		return fmt.Errorf("HASH_CONCURRENCY must be positive")
	}

	if c.PasswordMinLength < minPasswordLength {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be at least %d", minPasswordLength)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}

	if c.KeyResolution != KeyResolutionCurrent && c.KeyResolution != KeyResolutionKID {
		return fmt.Errorf("TOKEN_KEY_RESOLUTION must be %q or %q", KeyResolutionCurrent, KeyResolutionKID)
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
