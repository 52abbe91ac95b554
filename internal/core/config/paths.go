package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds absolute locations derived from Paths and the
// backend settings.
type ResolvedPaths struct {
	StateDir     string
	DatabaseDir  string
	UploadRoot   string
	FilesDBPath  string
	IdentityPath string
}

func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	stateDir := ResolveRelative(cwd, cfg.Paths.StateDir)
	databaseDir := ResolveRelative(cwd, cfg.Paths.DatabaseDir)

	return ResolvedPaths{
		StateDir:     stateDir,
		DatabaseDir:  databaseDir,
		UploadRoot:   ResolveRelative(stateDir, cfg.Storage.Disk.Root),
		FilesDBPath:  ResolveRelative(databaseDir, cfg.Storage.SQLite.Path),
		IdentityPath: ResolveRelative(databaseDir, cfg.Identity.Path),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
