package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultDSN         = "data/farm.db?_pragma=foreign_keys(1)"
	defaultCORSOrigins = "http://localhost:3000"
)

type Config struct {
	HTTPPort       string
	DBDriver       string
	DatabaseDSN    string
	JWTSecret      string
	TokenTTL       time.Duration
	CORSOrigins    string
	LogLevel       string
	LogFormat      string // json | console
	SeedSampleData bool

	// Warnings collected while loading; logged by the caller once a logger exists.
	Warnings []string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DBDriver:       getEnv("DB_DRIVER", DriverSQLite),
		DatabaseDSN:    getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		SeedSampleData: getBool("SEED_SAMPLE_DATA", true),
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil || ttl <= 0 {
		cfg.Warnings = append(cfg.Warnings, "TOKEN_TTL is not a valid positive duration, using 24h")
		ttl = 24 * time.Hour
	}
	cfg.TokenTTL = ttl

	if cfg.DBDriver != DriverSQLite && cfg.DBDriver != DriverPostgres {
		cfg.Warnings = append(cfg.Warnings, "DB_DRIVER must be sqlite or postgres, falling back to sqlite")
		cfg.DBDriver = DriverSQLite
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		cfg.Warnings = append(cfg.Warnings, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain in production")
	}

	return cfg
}

// ValidateServer checks the settings only the HTTP server depends on.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
