package filestore

import (
	"fmt"

	"github.com/spf13/afero"

	"pyscope/internal/core/config"
)

// PolicyFromConfig derives key rules from the analysis section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Extensions: append([]string(nil), cfg.Analysis.Extensions...),
		MaxBytes:   cfg.Analysis.MaxFileBytes,
	}
}

// Open builds the backend named by cfg.Storage.Backend.
func Open(cfg *config.Config, paths config.ResolvedPaths) (Store, error) {
	policy := PolicyFromConfig(cfg)
	switch cfg.Storage.Backend {
	case config.BackendDisk:
		return NewDiskStore(afero.NewOsFs(), paths.UploadRoot, policy), nil
	case config.BackendSQLite:
		return OpenSQLite(paths.FilesDBPath, cfg.Storage.SQLite.BusyTimeout, policy)
	case config.BackendS3:
		return NewS3Store(cfg.Storage.S3, policy)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
