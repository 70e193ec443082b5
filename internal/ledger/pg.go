package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

// tickLockKey is the advisory lock serializing tick generation.
const tickLockKey int64 = 0x7072696365 // "price"

const maxTxAttempts = 5

// DB is the part of *pgxpool.Pool the ledger uses.
type DB interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PG is the PostgreSQL ledger.
type PG struct {
	pool   DB
	logger *slog.Logger
}

// NewPG creates a ledger over pool.
func NewPG(pool DB, logger *slog.Logger) *PG {
	if logger == nil {
		logger = slog.Default()
	}
	return &PG{
		pool:   pool,
		logger: logger,
	}
}

// inTx runs fn in a read-committed transaction, retrying serialization
// failures and deadlocks with backoff.
func (s *PG) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	delay := 25 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil || !isRetryableTxError(err) || attempt == maxTxAttempts {
			return err
		}

		s.logger.Debug("retrying transaction", "attempt", attempt, "error", err)
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

func (s *PG) runTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// -----------------------------------------------------------------------------
// Price
// -----------------------------------------------------------------------------

const tickColumns = `id, price, high, low, average, reference_date, created_at`

type pgTickTx struct {
	tx pgx.Tx
}

// WithinTick implements price.Store. The advisory lock is held until the
// transaction ends.
func (s *PG) WithinTick(ctx context.Context, fn func(price.TickTx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, tickLockKey); err != nil {
			return fmt.Errorf("acquire tick lock: %w", err)
		}
		return fn(&pgTickTx{tx: tx})
	})
}

func (t *pgTickTx) LatestTick(ctx context.Context) (model.PriceTick, error) {
	return latestTick(ctx, t.tx)
}

func (t *pgTickTx) Rollover(ctx context.Context, r model.Rollover) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO daily_price_targets (reference_date, opening_price, target_price, closing_price)
		VALUES ($1, $2, $2, $2)
		ON CONFLICT (reference_date) DO UPDATE
		SET closing_price = EXCLUDED.closing_price, updated_at = now()
	`, r.ClosedDate, r.ClosingPrice)
	if err != nil {
		return fmt.Errorf("close %s: %w", dateKey(r.ClosedDate), err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO daily_price_targets (reference_date, opening_price, target_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (reference_date) DO UPDATE
		SET opening_price = EXCLUDED.opening_price,
		    target_price = EXCLUDED.target_price,
		    closing_price = NULL,
		    updated_at = now()
	`, r.Next.ReferenceDate, r.Next.OpeningPrice, r.Next.TargetPrice)
	if err != nil {
		return fmt.Errorf("open %s: %w", dateKey(r.Next.ReferenceDate), err)
	}
	return nil
}

func (t *pgTickTx) InsertTick(ctx context.Context, tick model.PriceTick) (model.PriceTick, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO price_ticks (price, high, low, average, reference_date, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (SELECT 1 FROM price_ticks WHERE created_at >= $6)
		RETURNING id
	`, tick.Price, tick.High, tick.Low, tick.Average, tick.ReferenceDate, tick.Timestamp).Scan(&tick.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PriceTick{}, model.ErrStaleTick
	}
	if err != nil {
		return model.PriceTick{}, err
	}
	return tick, nil
}

// LatestTick implements price.Store.
func (s *PG) LatestTick(ctx context.Context) (model.PriceTick, error) {
	return latestTick(ctx, s.pool)
}

// RecentTicks implements price.Store.
func (s *PG) RecentTicks(ctx context.Context, limit int) ([]model.PriceTick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tickColumns+`
		FROM price_ticks
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent ticks: %w", err)
	}
	return collectTicks(rows)
}

// TicksForDay returns the ticks of trading day ref in chronological order.
func (s *PG) TicksForDay(ctx context.Context, ref time.Time) ([]model.PriceTick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tickColumns+`
		FROM price_ticks
		WHERE reference_date = $1
		ORDER BY created_at, id
	`, ref)
	if err != nil {
		return nil, fmt.Errorf("query ticks for %s: %w", dateKey(ref), err)
	}
	return collectTicks(rows)
}

// DailyTarget implements price.TargetSource.
func (s *PG) DailyTarget(ctx context.Context, ref time.Time) (model.DailyPriceTarget, error) {
	var (
		t       model.DailyPriceTarget
		closing decimal.NullDecimal
	)
	err := s.pool.QueryRow(ctx, `
		SELECT reference_date, opening_price, target_price, closing_price
		FROM daily_price_targets
		WHERE reference_date = $1
	`, ref).Scan(&t.ReferenceDate, &t.OpeningPrice, &t.TargetPrice, &closing)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DailyPriceTarget{}, model.ErrNotFound
	}
	if err != nil {
		return model.DailyPriceTarget{}, fmt.Errorf("query daily target: %w", err)
	}

	if closing.Valid {
		t.ClosingPrice = &closing.Decimal
	}
	return t, nil
}

func latestTick(ctx context.Context, q querier) (model.PriceTick, error) {
	var t model.PriceTick
	err := q.QueryRow(ctx, `
		SELECT `+tickColumns+`
		FROM price_ticks
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&t.ID, &t.Price, &t.High, &t.Low, &t.Average, &t.ReferenceDate, &t.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PriceTick{}, model.ErrNotFound
	}
	if err != nil {
		return model.PriceTick{}, fmt.Errorf("query latest tick: %w", err)
	}
	t.Timestamp = t.Timestamp.UTC()
	return t, nil
}

func collectTicks(rows pgx.Rows) ([]model.PriceTick, error) {
	ticks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PriceTick, error) {
		var t model.PriceTick
		err := row.Scan(&t.ID, &t.Price, &t.High, &t.Low, &t.Average, &t.ReferenceDate, &t.Timestamp)
		t.Timestamp = t.Timestamp.UTC()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ticks: %w", err)
	}
	return ticks, nil
}
