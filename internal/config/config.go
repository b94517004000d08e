package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"taxaudit/internal/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultEnvFile is loaded before reading the environment, if present.
const DefaultEnvFile = "configs/.env"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Redis    RedisConfig
	Log      LogConfig
	Audit    AuditConfig
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite";
// SQLitePath is only read by the sqlite driver.
type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
}

type ServerConfig struct {
	Port            string
	GinMode         string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// AdminConfig bootstraps the first admin account when the users table has none.
type AdminConfig struct {
	Email    string
	Password string
}

// RedisConfig enables the redis event publisher when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// AuditConfig tunes the withholding engine.
type AuditConfig struct {
	Workers   int
	Tolerance decimal.Decimal
	// RateTableFile seeds the rate table when the database has none. Empty
	// means the built-in reference table.
	RateTableFile string
}

// Load reads envFile (missing files are ignored) and then the environment.
// Defaults are for local development only.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
	}

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	workers, err := getEnvInt("AUDIT_WORKERS", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	tolerance, err := getEnvDecimal("AUDIT_TOLERANCE", decimal.RequireFromString("0.01"))
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	tokenTTL, err := getEnvDuration("JWT_TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "taxaudit.db"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       dbPort,
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			Name:       getEnv("DB_NAME", "postgres"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			GinMode:         getEnv("GIN_MODE", "debug"),
			CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
			ShutdownTimeout: shutdownTimeout,
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			TokenTTL: tokenTTL,
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Audit: AuditConfig{
			Workers:       workers,
			Tolerance:     tolerance,
			RateTableFile: getEnv("RATE_TABLE_FILE", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		if c.Server.GinMode == "release" {
			return errors.New("JWT_SECRET is required in release mode")
		}
		log.Warn().Msg("JWT_SECRET not set, using development secret")
		c.JWT.Secret = "default_super_secret_key"
	}
	if c.JWT.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TOKEN_TTL must be positive, got %s", c.JWT.TokenTTL)
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Audit.Workers < 0 {
		return fmt.Errorf("AUDIT_WORKERS must be >= 0, got %d", c.Audit.Workers)
	}
	if c.Audit.Tolerance.IsNegative() {
		return fmt.Errorf("AUDIT_TOLERANCE must be >= 0, got %s", c.Audit.Tolerance)
	}
	return nil
}

// DSN returns the PostgreSQL connection URL.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s=%q as decimal: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

// GetLoggerConfig converts the log settings for logger.Setup.
func (c *Config) GetLoggerConfig() logger.LogConfig {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	lc.Output = c.Log.Output
	return lc
}
