package config

import (
	"fmt"
	"strings"
	"time"

	"pyscope/internal/core/errors"
)

// Validate runs every section check and returns the first failure as a
// VALIDATION_ERROR.
func Validate(cfg *Config) error {
	checks := []func(*Config) error{
		validateVersion,
		validateAnalysis,
		validateStorage,
		validateIdentity,
		validateWatch,
		validateMCP,
		validateObservability,
		validateLimits,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return errors.Wrap(err, errors.CodeValidationError, "invalid config")
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateAnalysis(cfg *Config) error {
	switch cfg.Analysis.Engine {
	case "native", "treesitter":
	default:
		return fmt.Errorf("analysis.engine must be one of: native, treesitter")
	}
	if cfg.Analysis.TabWidth < 1 || cfg.Analysis.TabWidth > 16 {
		return fmt.Errorf("analysis.tab_width must be between 1 and 16")
	}
	if cfg.Analysis.MaxFileBytes < 1 {
		return fmt.Errorf("analysis.max_file_bytes must be positive")
	}
	if len(cfg.Analysis.Extensions) == 0 {
		return fmt.Errorf("analysis.extensions must not be empty")
	}
	for _, ext := range cfg.Analysis.Extensions {
		if strings.ContainsAny(ext, "/\\ \t") || ext == "." {
			return fmt.Errorf("analysis.extensions contains invalid entry %q", ext)
		}
	}
	return nil
}

func validateStorage(cfg *Config) error {
	switch cfg.Storage.Backend {
	case BackendDisk:
		if strings.TrimSpace(cfg.Storage.Disk.Root) == "" {
			return fmt.Errorf("storage.disk.root must not be empty")
		}
	case BackendSQLite:
		if strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
			return fmt.Errorf("storage.sqlite.path must not be empty")
		}
		if cfg.Storage.SQLite.BusyTimeout > time.Minute {
			return fmt.Errorf("storage.sqlite.busy_timeout must be at most 1m")
		}
	case BackendS3:
		if cfg.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3.endpoint must not be empty when storage.backend=s3")
		}
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket must not be empty when storage.backend=s3")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: disk, sqlite, s3")
	}
	return nil
}

func validateIdentity(cfg *Config) error {
	switch cfg.Identity.Backend {
	case BackendSQLite:
		if strings.TrimSpace(cfg.Identity.Path) == "" {
			return fmt.Errorf("identity.path must not be empty when identity.backend=sqlite")
		}
	case BackendStatic:
		if len(cfg.Identity.Tokens) == 0 {
			return fmt.Errorf("identity.tokens must not be empty when identity.backend=static")
		}
		for token, owner := range cfg.Identity.Tokens {
			if strings.TrimSpace(token) == "" || strings.TrimSpace(owner) == "" {
				return fmt.Errorf("identity.tokens entries must have a non-empty token and owner")
			}
		}
	default:
		return fmt.Errorf("identity.backend must be one of: sqlite, static")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 || cfg.Watch.Debounce > time.Minute {
		return fmt.Errorf("watch.debounce must be between 0 and 1m")
	}
	return nil
}

func validateMCP(cfg *Config) error {
	if cfg.MCP.ServerName == "" {
		return fmt.Errorf("mcp.server_name must not be empty")
	}
	if strings.ContainsAny(cfg.MCP.ServerName, " \t\n") {
		return fmt.Errorf("mcp.server_name must not contain whitespace")
	}
	if cfg.MCP.MaxResponseItems < 1 || cfg.MCP.MaxResponseItems > 5000 {
		return fmt.Errorf("mcp.max_response_items must be between 1 and 5000")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Enabled && strings.TrimSpace(cfg.Observability.Address) == "" {
		return fmt.Errorf("observability.address must not be empty when observability is enabled")
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint must not be empty when tracing is enabled")
	}
	return nil
}

func validateLimits(cfg *Config) error {
	if cfg.Limits.RequestsPerSecond < 0 {
		return fmt.Errorf("limits.requests_per_second must not be negative")
	}
	if cfg.Limits.Burst < 1 {
		return fmt.Errorf("limits.burst must be >= 1")
	}
	if cfg.Limits.TTL < time.Second {
		return fmt.Errorf("limits.ttl must be at least 1s")
	}
	return nil
}
