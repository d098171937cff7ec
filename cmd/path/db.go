package main

import (
	"context"
	"fmt"
	"log/slog"

	"toolpath/internal/config"
	"toolpath/internal/document"
	"toolpath/internal/store"
	"toolpath/internal/store/graph"
	"toolpath/internal/store/postgres"
	"toolpath/internal/store/sqlite"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	dsn := cfg.Store.DSN
	if dsn == "" {
		dsn = config.DefaultStoreDSN
	}
	driver, err := config.StoreDriver(dsn)
	if err != nil {
		return nil, err
	}
	slog.Debug("opening archive", "driver", driver)

	var db store.Store
	switch driver {
	case "sqlite":
		db, err = sqlite.New(ctx, dsn)
	case "postgres":
		db, err = postgres.New(ctx, dsn)
	case "neo4j":
		db, err = graph.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, err
	}

	cached, err := store.NewCached(db, cfg.Store.CacheSize)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	return cached, nil
}

// actorDirectory loads the trusted actor directory named in the config, if any.
func actorDirectory(cfg *config.Config) (map[string]document.ActorDefinition, error) {
	if cfg.Actors == "" {
		return nil, nil
	}
	dir, err := config.LoadDirectory(cfg.Actors)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded actor directory", "path", cfg.Actors, "actors", len(dir.Actors))
	return dir.Definitions(), nil
}
