package main

import (
	"context"
	"fmt"
	"io"

	"placecraft/internal/config"
	"placecraft/internal/container"
	"placecraft/internal/ingest"
	"placecraft/internal/logger"
	"placecraft/internal/profile"
	"placecraft/internal/store"
	"placecraft/internal/store/postgres"
	"placecraft/internal/store/sqlite"
)

// project is everything a command needs after reading the config.
type project struct {
	cfg      *config.ProjectConfig
	catalog  *config.Catalog
	registry *container.Registry
}

func loadProject() (*project, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	catalog, err := config.LoadCatalog(cfg.CatalogPath())
	if err != nil {
		return nil, err
	}
	registry, err := catalog.Registry()
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, catalog: catalog, registry: registry}, nil
}

// loadProfile builds the profile from content. Per-file errors are printed to
// w and do not abort.
func (p *project) loadProfile(w io.Writer) *profile.Profile {
	prof, errs := ingest.Load(p.cfg, p.catalog)
	for _, err := range errs {
		fmt.Fprintf(w, "warning: %v\n", err)
	}
	return prof
}

// loadSession builds the profile and applies the persisted state.
func (p *project) loadSession(ctx context.Context, w io.Writer, db store.Store) (*profile.Profile, error) {
	prof := p.loadProfile(w)
	if err := store.Hydrate(ctx, db, prof); err != nil {
		return nil, err
	}
	prof.Load()
	return prof, nil
}

func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := cfg.Database.DSN
	var (
		db  store.Store
		err error
	)
	switch {
	case sqlite.IsDSN(dsn):
		db, err = sqlite.New(ctx, dsn)
	case postgres.IsDSN(dsn):
		db, err = postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn: %s", dsn)
	}
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
