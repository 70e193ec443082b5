package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/emission-engine/internal/config"
	"github.com/rickgao/emission-engine/internal/database"
	"github.com/rickgao/emission-engine/internal/ledger"
	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/price"
	"github.com/rickgao/emission-engine/internal/procedure"
	"github.com/rickgao/emission-engine/internal/settings"
)

// ledgerStore is everything the engine reads and writes.
type ledgerStore interface {
	price.Store
	price.TargetSource
	mining.Store
	mining.ReferralSource
	settings.Source
}

type store struct {
	ledger     ledgerStore
	procedures *procedure.Invoker // nil for the memory driver
	health     *database.Pool     // nil for the memory driver
	close      func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory ledger, state is lost on exit")
		return &store{
			ledger: ledger.NewMemory(cfg.Mining.TotalSupply),
			close:  func() {},
		}, nil
	}

	pg := cfg.Database.Postgres
	logger.Info("connecting to database",
		"host", pg.Host,
		"port", pg.Port,
		"database", pg.Name,
	)

	pool, err := database.Open(ctx, pg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connected")

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool.SQL(), cfg.Mining.TotalSupply); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema migrated")
	}

	return &store{
		ledger:     ledger.NewPG(pool.PG, logger),
		procedures: procedure.NewInvoker(pool.PG, logger),
		health:     pool,
		close:      pool.Close,
	}, nil
}
