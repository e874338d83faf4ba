package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kubeconsole/kubeconsole/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Authentication configuration
	Auth AuthConfig

	// Storage configuration
	Storage StorageConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// CORS allowed origins, comma separated. Empty disables CORS.
	AllowedOrigins []string
}

// AuthConfig holds session issuance configuration
type AuthConfig struct {
	// SessionSecret signs session tokens. Required.
	SessionSecret string
}

// StorageConfig holds store backend configuration
type StorageConfig struct {
	// Type selects the account store backend: "memory" or "postgres"
	Type string

	// SettingsFile points at a YAML console settings file. Required for
	// the memory backend, which has no settings table.
	SettingsFile string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// Redis config, used for distributed rate limiting. Optional.
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// AuditLogPath enables the file audit trail when set. With the
	// postgres backend events also land in the audit_events table.
	AuditLogPath string

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Host:            getEnv("KUBECONSOLE_HOST", "0.0.0.0"),
		Port:            getEnv("KUBECONSOLE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("KUBECONSOLE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("KUBECONSOLE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("KUBECONSOLE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("KUBECONSOLE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("KUBECONSOLE_HEALTH_PORT", "9090"),
	}

	if origins := getEnv("KUBECONSOLE_ALLOWED_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return cfg
}

// loadAuthConfig loads authentication configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SessionSecret: getEnv("KUBECONSOLE_SESSION_SECRET", ""),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Type:                getEnv("KUBECONSOLE_STORAGE_TYPE", "memory"),
		SettingsFile:        getEnv("KUBECONSOLE_SETTINGS_FILE", ""),
		PostgresURL:         getEnv("KUBECONSOLE_POSTGRES_URL", ""),
		PostgresReplicaURLs: getEnv("KUBECONSOLE_POSTGRES_REPLICA_URLS", ""),
		PostgresMaxConns:    getEnvInt("KUBECONSOLE_POSTGRES_MAX_CONNS", 20),
		PostgresMinConns:    getEnvInt("KUBECONSOLE_POSTGRES_MIN_CONNS", 2),
		PostgresTimeout:     getEnvDuration("KUBECONSOLE_POSTGRES_TIMEOUT", 5*time.Second),
		RedisURL:            getEnv("KUBECONSOLE_REDIS_URL", ""),
		RedisPassword:       getEnv("KUBECONSOLE_REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("KUBECONSOLE_REDIS_DB", 0),
		RedisPoolSize:       getEnvInt("KUBECONSOLE_REDIS_POOL_SIZE", 10),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("KUBECONSOLE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("KUBECONSOLE_METRICS_ENABLED", true),
		AuditLogPath:       getEnv("KUBECONSOLE_AUDIT_LOG", ""),
		OTelEnabled:        getEnvBool("KUBECONSOLE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("KUBECONSOLE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("KUBECONSOLE_OTEL_SERVICE_NAME", "kubeconsole"),
		OTelServiceVersion: getEnv("KUBECONSOLE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("KUBECONSOLE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Session tokens are worthless without a stable signing secret
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ReplicaURLs splits the comma separated replica URL list.
func (c *StorageConfig) ReplicaURLs() []string {
	if c.PostgresReplicaURLs == "" {
		return nil
	}
	var urls []string
	for _, url := range strings.Split(c.PostgresReplicaURLs, ",") {
		if url = strings.TrimSpace(url); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
