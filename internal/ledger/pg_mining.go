package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
)

// newProfileEligibleAt is the eligibility instant of implicitly created profiles.
var newProfileEligibleAt = time.Unix(0, 0).UTC()

type pgClaimTx struct {
	tx     pgx.Tx
	userID string
}

// WithinClaim implements mining.Store. Claims by the same user serialize on
// the user's profile row lock.
func (s *PG) WithinClaim(ctx context.Context, userID string, fn func(mining.ClaimTx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgClaimTx{tx: tx, userID: userID})
	})
}

func (c *pgClaimTx) Profile(ctx context.Context) (model.MiningProfile, error) {
	if _, err := c.tx.Exec(ctx, `
		INSERT INTO mining_profiles (user_id, next_eligible_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, c.userID, newProfileEligibleAt); err != nil {
		return model.MiningProfile{}, fmt.Errorf("ensure profile: %w", err)
	}

	p := model.MiningProfile{UserID: c.userID}
	err := c.tx.QueryRow(ctx, `
		SELECT last_claim_at, next_eligible_at
		FROM mining_profiles
		WHERE user_id = $1
		FOR UPDATE
	`, c.userID).Scan(&p.LastClaimAt, &p.NextEligibleAt)
	if err != nil {
		return model.MiningProfile{}, fmt.Errorf("lock profile: %w", err)
	}
	return normalizeProfile(p), nil
}

// ReserveSupply grants LEAST(amount, remaining) in one statement. The WHERE
// clause makes an exhausted supply update no row.
func (c *pgClaimTx) ReserveSupply(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var granted, remaining decimal.Decimal
	err := c.tx.QueryRow(ctx, `
		WITH reservation AS (
			SELECT LEAST($1::numeric, total_supply - mined_supply) AS amount
			FROM global_supply
			WHERE id = 1
			FOR UPDATE
		)
		UPDATE global_supply g
		SET mined_supply = g.mined_supply + r.amount, updated_at = now()
		FROM reservation r
		WHERE g.id = 1 AND g.total_supply > g.mined_supply
		RETURNING r.amount, g.total_supply - g.mined_supply
	`, amount).Scan(&granted, &remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, decimal.Zero, model.ErrSupplyExhausted
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return granted, remaining, nil
}

func (c *pgClaimTx) UpdateProfile(ctx context.Context, p model.MiningProfile) error {
	_, err := c.tx.Exec(ctx, `
		UPDATE mining_profiles
		SET last_claim_at = $2, next_eligible_at = $3, updated_at = now()
		WHERE user_id = $1
	`, c.userID, p.LastClaimAt, p.NextEligibleAt)
	return err
}

func (c *pgClaimTx) InsertCoin(ctx context.Context, coin model.IssuedCoin) error {
	_, err := c.tx.Exec(ctx, `
		INSERT INTO issued_coins (id, user_id, amount, claim_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, coin.ID, coin.UserID, coin.Amount, coin.ClaimType, coin.Status, coin.CreatedAt)
	return err
}

func (c *pgClaimTx) InsertTransaction(ctx context.Context, t model.Transaction) error {
	_, err := c.tx.Exec(ctx, `
		INSERT INTO transactions (
			id, user_id, kind, amount, requested, coin_id,
			referral_count, boost_percentage, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.UserID, t.Kind, t.Amount, t.Requested, t.CoinID,
		t.ReferralCount, t.BoostPercentage, t.Description, t.CreatedAt)
	return err
}

func (c *pgClaimTx) Balance(ctx context.Context) (decimal.Decimal, error) {
	return balance(ctx, c.tx, c.userID)
}

// Profile implements mining.Store.
func (s *PG) Profile(ctx context.Context, userID string) (model.MiningProfile, error) {
	p := model.MiningProfile{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT last_claim_at, next_eligible_at
		FROM mining_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.LastClaimAt, &p.NextEligibleAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MiningProfile{}, model.ErrNotFound
	}
	if err != nil {
		return model.MiningProfile{}, fmt.Errorf("query profile: %w", err)
	}
	return normalizeProfile(p), nil
}

// Supply implements mining.Store.
func (s *PG) Supply(ctx context.Context) (model.GlobalSupply, error) {
	var g model.GlobalSupply
	err := s.pool.QueryRow(ctx, `
		SELECT total_supply, mined_supply FROM global_supply WHERE id = 1
	`).Scan(&g.TotalSupply, &g.MinedSupply)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GlobalSupply{}, model.ErrNotFound
	}
	if err != nil {
		return model.GlobalSupply{}, fmt.Errorf("query supply: %w", err)
	}
	return g, nil
}

// Balance returns userID's available coin total.
func (s *PG) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return balance(ctx, s.pool, userID)
}

// ReferralCount implements mining.ReferralSource.
func (s *PG) ReferralCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM referrals WHERE referrer_id = $1 AND status = 'confirmed'
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

// Settings returns the runtime setting overrides.
func (s *PG) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM engine_settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func balance(ctx context.Context, q querier, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM issued_coins
		WHERE user_id = $1 AND status = $2
	`, userID, model.CoinStatusAvailable).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum balance: %w", err)
	}
	return total, nil
}

func normalizeProfile(p model.MiningProfile) model.MiningProfile {
	p.NextEligibleAt = p.NextEligibleAt.UTC()
	if p.LastClaimAt != nil {
		t := p.LastClaimAt.UTC()
		p.LastClaimAt = &t
	}
	return p
}
