package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/rickgao/emission-engine/internal/config"
)

// Pool holds the ledger connection pool and its database/sql view.
type Pool struct {
	PG *pgxpool.Pool

	db *sql.DB
}

// Open connects to the ledger database.
func Open(ctx context.Context, cfg config.DBConfig) (*Pool, error) {
	pg, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Pool{
		PG: pg,
		db: stdlib.OpenDBFromPool(pg),
	}, nil
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// SQL returns a database/sql handle sharing the pool's connections.
func (p *Pool) SQL() *sql.DB {
	return p.db
}

// Ping verifies the connection is healthy.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.PG.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the pool.
func (p *Pool) Close() {
	if p.db != nil {
		p.db.Close()
	}
	if p.PG != nil {
		p.PG.Close()
	}
}
