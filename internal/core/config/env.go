package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PYSCOPE_[SECTION]_[KEY] (e.g., PYSCOPE_STORAGE_BACKEND).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.StateDir, "PYSCOPE_PATHS_STATE_DIR")
	setEnvString(&cfg.Paths.DatabaseDir, "PYSCOPE_PATHS_DATABASE_DIR")

	// Analysis
	setEnvString(&cfg.Analysis.Engine, "PYSCOPE_ANALYSIS_ENGINE")
	setEnvInt(&cfg.Analysis.TabWidth, "PYSCOPE_ANALYSIS_TAB_WIDTH")
	setEnvInt64(&cfg.Analysis.MaxFileBytes, "PYSCOPE_ANALYSIS_MAX_FILE_BYTES")
	setEnvList(&cfg.Analysis.Extensions, "PYSCOPE_ANALYSIS_EXTENSIONS")

	// Storage
	setEnvString(&cfg.Storage.Backend, "PYSCOPE_STORAGE_BACKEND")
	setEnvString(&cfg.Storage.Disk.Root, "PYSCOPE_STORAGE_DISK_ROOT")
	setEnvString(&cfg.Storage.SQLite.Path, "PYSCOPE_STORAGE_SQLITE_PATH")
	setEnvDuration(&cfg.Storage.SQLite.BusyTimeout, "PYSCOPE_STORAGE_SQLITE_BUSY_TIMEOUT")
	setEnvString(&cfg.Storage.S3.Endpoint, "PYSCOPE_STORAGE_S3_ENDPOINT")
	setEnvString(&cfg.Storage.S3.Bucket, "PYSCOPE_STORAGE_S3_BUCKET")
	setEnvString(&cfg.Storage.S3.Region, "PYSCOPE_STORAGE_S3_REGION")
	setEnvSecret(&cfg.Storage.S3.AccessKey, "PYSCOPE_STORAGE_S3_ACCESS_KEY")
	setEnvSecret(&cfg.Storage.S3.SecretKey, "PYSCOPE_STORAGE_S3_SECRET_KEY")
	setEnvBool(&cfg.Storage.S3.UseSSL, "PYSCOPE_STORAGE_S3_USE_SSL")

	// Identity
	setEnvString(&cfg.Identity.Backend, "PYSCOPE_IDENTITY_BACKEND")
	setEnvString(&cfg.Identity.Path, "PYSCOPE_IDENTITY_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "PYSCOPE_WATCH_DEBOUNCE")

	// MCP
	setEnvString(&cfg.MCP.ServerName, "PYSCOPE_MCP_SERVER_NAME")
	setEnvInt(&cfg.MCP.MaxResponseItems, "PYSCOPE_MCP_MAX_RESPONSE_ITEMS")
	setEnvSecret(&cfg.MCP.Credential, "PYSCOPE_MCP_CREDENTIAL")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "PYSCOPE_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "PYSCOPE_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "PYSCOPE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "PYSCOPE_OBSERVABILITY_ENABLE_TRACING")

	// Limits
	setEnvFloat64(&cfg.Limits.RequestsPerSecond, "PYSCOPE_LIMITS_REQUESTS_PER_SECOND")
	setEnvInt(&cfg.Limits.Burst, "PYSCOPE_LIMITS_BURST")
	setEnvDuration(&cfg.Limits.TTL, "PYSCOPE_LIMITS_TTL")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

// setEnvSecret is setEnvString without echoing the value.
func setEnvSecret(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=<redacted>", key)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvInt64(target *int64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
