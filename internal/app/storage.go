package app

import (
	"context"
	"fmt"

	"stockledger/internal/config"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/internal/infrastructure/storage/postgres"
)

// Storage is an opened storage driver.
type Storage struct {
	Repos Repositories

	// Pool is nil on the memory driver.
	Pool *postgres.Pool
}

// OpenStorage opens the driver selected by the configuration.
func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return &Storage{Repos: MemoryRepositories(memory.New(), cfg.IdempotencyTTL)}, nil
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		poolCfg.MaxConns = cfg.DBMaxConns
		poolCfg.MinConns = cfg.DBMinConns

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())
		repos, err := PostgresRepositories(pool, txm, cfg.IdempotencyTTL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Storage{Repos: repos, Pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Close releases the connection pool.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
