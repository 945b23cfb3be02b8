package store

import (
	"context"
	"fmt"

	"github.com/rickgao/socksession/internal/config"
	"github.com/rickgao/socksession/internal/database"
)

// Open creates the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemory(), nil

	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.Namespace)

	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg, err := NewPostgres(ctx, pool, cfg.Namespace)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pg.ownsPool = true
		return pg, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
