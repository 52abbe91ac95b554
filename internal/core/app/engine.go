package app

import (
	"strings"

	"pyscope/internal/core/config"
	"pyscope/internal/core/errors"
	"pyscope/internal/data/filestore"
	"pyscope/internal/engine/analyzer"
	"pyscope/internal/engine/treesitter"
)

// EngineNames lists the selectable extraction engines.
func EngineNames() []string {
	return []string{analyzer.NativeEngine, treesitter.EngineName}
}

// NewEngine returns the engine registered under name.
func NewEngine(name string, opts analyzer.Options) (analyzer.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", analyzer.NativeEngine:
		return analyzer.NewNative(opts), nil
	case treesitter.EngineName:
		return treesitter.New(opts), nil
	default:
		return nil, errors.Newf(errors.CodeNotSupported, "unknown engine %q (want one of: %s)", name, strings.Join(EngineNames(), ", "))
	}
}

// ValidFilename applies the configured upload rules without opening a store.
func ValidFilename(cfg *config.Config, filename string) bool {
	return filestore.PolicyFromConfig(cfg).ValidFilename(filename)
}
