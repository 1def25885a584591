package store

import (
	"context"
	"fmt"

	"github.com/datatops/datatops/internal/config"
)

// New constructs the configured storage backend. Called once at startup;
// for Postgres this connects the pool and applies migrations.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.DataDir)
	case config.BackendDynamo:
		return NewDynamoStore(ctx, cfg.Dynamo)
	case config.BackendPostgres:
		pool, err := Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(cfg.Database.URL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be one of file, dynamo, postgres", cfg.Backend)
	}
}
