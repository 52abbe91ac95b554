package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pyscope/internal/core/errors"
	"pyscope/internal/shared/version"
)

const (
	DefaultPath = "./pyscope.toml"
	ExamplePath = "./pyscope.example.toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}
	if err := finalize(&cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return &cfg, nil
}

// LoadDefault tries DefaultPath, then ExamplePath, then built-in defaults.
// It returns the path that was used, or "" for built-in defaults.
func LoadDefault() (*Config, string, error) {
	for _, path := range []string{DefaultPath, ExamplePath} {
		cfg, err := Load(path)
		if err == nil {
			return cfg, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, path, err
		}
	}
	cfg, err := Default()
	return cfg, "", err
}

// Default returns the built-in configuration with env overrides applied.
func Default() (*Config, error) {
	var cfg Config
	if err := finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finalize(cfg *Config) error {
	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	normalize(cfg)
	return Validate(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = "data/state"
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = "data/database"
	}

	if strings.TrimSpace(cfg.Analysis.Engine) == "" {
		cfg.Analysis.Engine = "native"
	}
	if cfg.Analysis.TabWidth == 0 {
		cfg.Analysis.TabWidth = 8
	}
	if cfg.Analysis.MaxFileBytes == 0 {
		cfg.Analysis.MaxFileBytes = 4 << 20
	}
	if len(cfg.Analysis.Extensions) == 0 {
		cfg.Analysis.Extensions = []string{".py"}
	}

	if strings.TrimSpace(cfg.Storage.Backend) == "" {
		cfg.Storage.Backend = BackendDisk
	}
	if strings.TrimSpace(cfg.Storage.Disk.Root) == "" {
		cfg.Storage.Disk.Root = "uploads"
	}
	if strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		cfg.Storage.SQLite.Path = "files.db"
	}
	if cfg.Storage.SQLite.BusyTimeout <= 0 {
		cfg.Storage.SQLite.BusyTimeout = 5 * time.Second
	}
	if strings.TrimSpace(cfg.Storage.S3.Region) == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}

	if strings.TrimSpace(cfg.Identity.Backend) == "" {
		cfg.Identity.Backend = BackendSQLite
	}
	if strings.TrimSpace(cfg.Identity.Path) == "" {
		cfg.Identity.Path = "identity.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "__pycache__", ".venv", "node_modules"}
	}

	if strings.TrimSpace(cfg.MCP.ServerName) == "" {
		cfg.MCP.ServerName = "pyscope"
	}
	if strings.TrimSpace(cfg.MCP.ServerVersion) == "" {
		cfg.MCP.ServerVersion = version.Version
	}
	if cfg.MCP.MaxResponseItems == 0 {
		cfg.MCP.MaxResponseItems = 500
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "pyscope"
	}

	if cfg.Limits.RequestsPerSecond == 0 {
		cfg.Limits.RequestsPerSecond = 20
	}
	if cfg.Limits.Burst == 0 {
		cfg.Limits.Burst = 40
	}
	if cfg.Limits.TTL == 0 {
		cfg.Limits.TTL = 10 * time.Minute
	}
}

func normalize(cfg *Config) {
	cfg.Analysis.Engine = strings.ToLower(strings.TrimSpace(cfg.Analysis.Engine))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Identity.Backend = strings.ToLower(strings.TrimSpace(cfg.Identity.Backend))
	cfg.Storage.S3.Endpoint = strings.TrimSpace(cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.Bucket = strings.TrimSpace(cfg.Storage.S3.Bucket)
	cfg.MCP.ServerName = strings.TrimSpace(cfg.MCP.ServerName)
	cfg.MCP.ServerVersion = strings.TrimSpace(cfg.MCP.ServerVersion)

	exts := make([]string, 0, len(cfg.Analysis.Extensions))
	for _, ext := range cfg.Analysis.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.Analysis.Extensions = exts
}
