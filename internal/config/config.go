// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
	RequestTimeout time.Duration
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type     string // "postgres" or "memory"
	URI      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LogConfig selects the log handler and level.
type LogConfig struct {
	Level  slog.Level
	Format string // "text" or "json"
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Log            *LogConfig
	AllowedOrigins []string
	JWTSecret      string
	Debug          bool
}

const (
	DatabasePostgres = "postgres"
	DatabaseMemory   = "memory"
)

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
		RequestTimeout: 10 * time.Second,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:    DatabasePostgres,
		Port:    5432,
		SSLMode: "require",
	}
}

// envLocations are tried in order; the first .env found wins.
var envLocations = []string{
	".env",
	"../../.env", // project root when running from cmd/engine
}

// LoadConfig loads .env (when present) and then reads the environment.
func LoadConfig() (*Config, error) {
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a variable lookup, applying
// defaults for anything unset.
func FromEnv(getenv func(string) string) (*Config, error) {
	serverConfig := DefaultConfig()

	if portStr := getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		serverConfig.Port = port
	}

	if host := getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	if timeout := getenv("REQUEST_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", timeout, err)
		}
		serverConfig.RequestTimeout = d
	}

	dbConfig, err := databaseFromEnv(getenv)
	if err != nil {
		return nil, err
	}

	logConfig := &LogConfig{Level: slog.LevelInfo, Format: "text"}
	if level := getenv("LOG_LEVEL"); level != "" {
		if err := logConfig.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
	}
	if format := getenv("LOG_FORMAT"); format != "" {
		if format != "text" && format != "json" {
			return nil, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", format)
		}
		logConfig.Format = format
	}

	config := &Config{
		Server:         serverConfig,
		Database:       dbConfig,
		Log:            logConfig,
		AllowedOrigins: []string{"*"},
		JWTSecret:      getenv("JWT_SECRET"),
	}

	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}

	if getenv("DEBUG") == "true" {
		config.Debug = true
		config.Log.Level = slog.LevelDebug
	}

	return config, nil
}

func databaseFromEnv(getenv func(string) string) (*DatabaseConfig, error) {
	dbConfig := DefaultDatabaseConfig()
	if dbType := getenv("DB_TYPE"); dbType != "" {
		dbConfig.Type = dbType
	}

	switch dbConfig.Type {
	case DatabaseMemory:
		return dbConfig, nil

	case DatabasePostgres:
		// Prioritize DATABASE_URL if provided
		if uri := getenv("DATABASE_URL"); uri != "" {
			dbConfig.URI = uri
			dbConfig.SSLMode = getSSLModeFromURI(uri)
			return dbConfig, nil
		}

		dbConfig.Host = getEnvOrDefault(getenv, "DB_HOST", "localhost")
		if portStr := getenv("DB_PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid DB_PORT %q: %w", portStr, err)
			}
			dbConfig.Port = port
		}

		dbConfig.User = getenv("DB_USER")
		if dbConfig.User == "" {
			return nil, fmt.Errorf("DB_USER environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}

		dbConfig.Password = getenv("DB_PASSWORD")
		if dbConfig.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}

		dbConfig.Name = getEnvOrDefault(getenv, "DB_NAME", "postgres")
		dbConfig.SSLMode = getEnvOrDefault(getenv, "DB_SSL_MODE", "require")

		dbConfig.URI = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			dbConfig.User,
			dbConfig.Password,
			dbConfig.Host,
			dbConfig.Port,
			dbConfig.Name,
			dbConfig.SSLMode,
		)
		return dbConfig, nil

	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q: want postgres or memory", dbConfig.Type)
	}
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to extract sslmode from a DSN, defaults to "require"
func getSSLModeFromURI(uri string) string {
	parts := strings.SplitN(uri, "?", 2)
	if len(parts) == 2 {
		for _, param := range strings.Split(parts[1], "&") {
			kv := strings.SplitN(param, "=", 2)
			if len(kv) == 2 && kv[0] == "sslmode" {
				return kv[1]
			}
		}
	}
	return "require"
}
