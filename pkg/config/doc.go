// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	KUBECONSOLE_HOST="0.0.0.0"
//	KUBECONSOLE_PORT="8080"
//	KUBECONSOLE_HEALTH_PORT="9090"
//	KUBECONSOLE_READ_TIMEOUT="15s"
//	KUBECONSOLE_WRITE_TIMEOUT="15s"
//	KUBECONSOLE_ALLOWED_ORIGINS="https://console.example.com"
//
// Authentication settings:
//
//	KUBECONSOLE_SESSION_SECRET="..."  # required, signs session tokens
//
// Storage settings:
//
//	KUBECONSOLE_STORAGE_TYPE="postgres"  # memory, postgres
//	KUBECONSOLE_POSTGRES_URL="postgres://localhost/kubeconsole"
//	KUBECONSOLE_POSTGRES_REPLICA_URLS="postgres://replica1/kubeconsole"
//	KUBECONSOLE_POSTGRES_MAX_CONNS="20"
//	KUBECONSOLE_REDIS_URL="redis://localhost:6379"
//	KUBECONSOLE_REDIS_POOL_SIZE="10"
//
// Observability settings:
//
//	KUBECONSOLE_LOG_LEVEL="info"  # debug, info, warn, error
//	KUBECONSOLE_METRICS_ENABLED="true"
//	KUBECONSOLE_AUDIT_LOG="/var/log/kubeconsole/audit.log"
//	KUBECONSOLE_OTEL_ENABLED="true"
//	KUBECONSOLE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
