package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pyscope/internal/core/config"
	"pyscope/internal/data/filestore"
	"pyscope/internal/data/identity"
	"pyscope/internal/engine/analyzer"
	"pyscope/internal/shared/observability"
	"pyscope/internal/shared/util"
)

// App owns the long-lived collaborators opened from a Config.
type App struct {
	Config   *config.Config
	Paths    config.ResolvedPaths
	Store    filestore.Store
	Identity identity.Provider
	Limiter  *util.LimiterRegistry
	Service  *Service
	started  time.Time
}

// New opens the configured store and identity backends and wires a Service.
func New(cfg *config.Config, cwd string) (*App, error) {
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(cfg.Analysis.Engine, EngineOptions(cfg))
	if err != nil {
		return nil, err
	}

	store, err := filestore.Open(cfg, paths)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	ident, err := identity.Open(cfg, paths)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open %s identity provider: %w", cfg.Identity.Backend, err)
	}

	limiter := util.NewLimiterRegistry(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst, cfg.Limits.TTL)
	svc, err := NewService(Dependencies{
		Identity: ident,
		Store:    store,
		Engine:   engine,
		Policy:   filestore.PolicyFromConfig(cfg),
		Limiter:  limiter,
	})
	if err != nil {
		limiter.Close()
		_ = ident.Close()
		_ = store.Close()
		return nil, err
	}

	slog.Debug("app initialized",
		"engine", engine.Name(),
		"storage", store.Backend(),
		"identity", cfg.Identity.Backend)

	return &App{
		Config:   cfg,
		Paths:    paths,
		Store:    store,
		Identity: ident,
		Limiter:  limiter,
		Service:  svc,
		started:  time.Now(),
	}, nil
}

// EngineOptions maps the analysis section onto engine options.
func EngineOptions(cfg *config.Config) analyzer.Options {
	return analyzer.Options{
		TabWidth: cfg.Analysis.TabWidth,
		MaxBytes: cfg.Analysis.MaxFileBytes,
	}
}

// Health reports component status for the observability server.
func (a *App) Health(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: map[string]string{},
	}
	if a.Store == nil {
		status.Status = "degraded"
		status.Components["store"] = "missing"
	} else if _, err := a.Store.List(ctx, "healthcheck"); err != nil {
		status.Status = "degraded"
		status.Components["store"] = err.Error()
	} else {
		status.Components["store"] = "ok (" + a.Store.Backend() + ")"
	}
	if a.Identity == nil {
		status.Status = "degraded"
		status.Components["identity"] = "missing"
	} else {
		status.Components["identity"] = "ok (" + a.Config.Identity.Backend + ")"
	}
	if a.Service != nil {
		status.Components["engine"] = a.Service.Engine()
	}
	status.Components["uptime"] = time.Since(a.started).Round(time.Second).String()
	return status
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	var firstErr error
	if a.Identity != nil {
		if err := a.Identity.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
