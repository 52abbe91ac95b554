package identity

import (
	"fmt"

	"pyscope/internal/core/config"
)

// Open builds the provider named by cfg.Identity.Backend.
func Open(cfg *config.Config, paths config.ResolvedPaths) (Provider, error) {
	switch cfg.Identity.Backend {
	case config.BackendSQLite:
		return OpenSQLite(paths.IdentityPath, cfg.Storage.SQLite.BusyTimeout)
	case config.BackendStatic:
		return NewStaticProvider(cfg.Identity.Tokens), nil
	default:
		return nil, fmt.Errorf("unknown identity backend %q", cfg.Identity.Backend)
	}
}
