package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// MinSecretKeyLength is the shortest accepted HMAC signing secret
	MinSecretKeyLength = 32

	// AlgorithmHS256 is the only supported signing algorithm
	AlgorithmHS256 = "HS256"
)

// Config represents the complete application configuration
type Config struct {
	ProjectName   string
	Version       string
	APIPrefix     string
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// AuthConfig holds token signing and password hashing settings
type AuthConfig struct {
	SecretKey           string
	Audience            string
	Issuer              string
	Algorithm           string
	TokenPrefix         string
	AccessTokenLifetime time.Duration
	Leeway              time.Duration

	HashTime            uint32
	HashMemoryKiB       uint32
	HashThreads         uint8
	MaxConcurrentHashes int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console; empty picks by environment
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env otherwise)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	hashTime, timeErr := getEnvAsUint("PASSWORD_HASH_TIME", 3, math.MaxUint32)
	hashMemory, memoryErr := getEnvAsUint("PASSWORD_HASH_MEMORY_KIB", 64*1024, math.MaxUint32)
	hashThreads, threadsErr := getEnvAsUint("PASSWORD_HASH_THREADS", 4, math.MaxUint8)
	if err := errors.Join(timeErr, memoryErr, threadsErr); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		ProjectName: getEnv("PROJECT_NAME", "CryptoHelms"),
		Version:     getEnv("VERSION", "1.0.0"),
		APIPrefix:   getEnv("API_PREFIX", "/api"),
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:     getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			SecretKey:           os.Getenv("SECRET_KEY"),
			Audience:            getEnv("JWT_AUDIENCE", "cryptohelms:auth"),
			Issuer:              getEnv("JWT_ISSUER", "cryptohelms.io"),
			Algorithm:           getEnv("JWT_ALGORITHM", AlgorithmHS256),
			TokenPrefix:         getEnv("JWT_TOKEN_PREFIX", "Bearer"),
			AccessTokenLifetime: time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 7*24*60)) * time.Minute,
			Leeway:              getEnvAsDuration("JWT_LEEWAY", 0),
			HashTime:            uint32(hashTime),
			HashMemoryKiB:       uint32(hashMemory),
			HashThreads:         uint8(hashThreads),
			MaxConcurrentHashes: getEnvAsInt("AUTH_MAX_CONCURRENT_HASHES", runtime.NumCPU()),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", ""),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if err := c.Auth.Validate(); err != nil {
		return err
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks the token and hashing settings
func (a *AuthConfig) Validate() error {
	if a.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if len(a.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes", MinSecretKeyLength)
	}
	if a.Algorithm != AlgorithmHS256 {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q: only %s is supported", a.Algorithm, AlgorithmHS256)
	}
	if a.Audience == "" {
		return fmt.Errorf("JWT_AUDIENCE is required")
	}
	if a.Issuer == "" {
		return fmt.Errorf("JWT_ISSUER is required")
	}
	if a.TokenPrefix == "" || strings.ContainsAny(a.TokenPrefix, " \t") {
		return fmt.Errorf("JWT_TOKEN_PREFIX must be a single word")
	}
	if a.AccessTokenLifetime <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if a.Leeway < 0 {
		return fmt.Errorf("JWT_LEEWAY must not be negative")
	}
	if a.HashTime == 0 || a.HashThreads == 0 || a.HashMemoryKiB < 8*uint32(a.HashThreads) {
		return fmt.Errorf("password hashing parameters are invalid: time=%d memory=%dKiB threads=%d",
			a.HashTime, a.HashMemoryKiB, a.HashThreads)
	}
	if a.MaxConcurrentHashes < 1 {
		return fmt.Errorf("AUTH_MAX_CONCURRENT_HASHES must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig reads DATABASE_URL, then DB_*, then the POSTGRES_* names
// the docker-compose setup exports.
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}

	cfg.Host = getEnv("DB_HOST", getEnv("POSTGRES_SERVER", "db"))
	cfg.Port = getEnvAsInt("DB_PORT", getEnvAsInt("POSTGRES_PORT", 5432))
	cfg.User = getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres"))
	cfg.Password = getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres"))
	cfg.Database = getEnv("DB_NAME", getEnv("POSTGRES_DB", "postgres"))
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsUint parses key as an unsigned integer no larger than max.
// Unlike the other helpers it reports bad values instead of falling back.
func getEnvAsUint(key string, defaultValue, max uint64) (uint64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil || value > max {
		return 0, fmt.Errorf("%s must be an integer between 0 and %d, got %q", key, max, valueStr)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
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
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
