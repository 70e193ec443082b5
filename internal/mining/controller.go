package mining

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/referral"
)

// ClaimTx is the atomic unit a claim is processed in. All writes commit
// together or not at all.
type ClaimTx interface {
	// Profile returns the claimant's profile, locked for the rest of the unit.
	// A missing profile is created eligible immediately.
	Profile(ctx context.Context) (model.MiningProfile, error)

	// ReserveSupply moves up to amount from remaining to mined supply and
	// returns the granted amount and what remains afterwards. Returns
	// model.ErrSupplyExhausted if nothing remains.
	ReserveSupply(ctx context.Context, amount decimal.Decimal) (granted, remaining decimal.Decimal, err error)

	UpdateProfile(ctx context.Context, p model.MiningProfile) error
	InsertCoin(ctx context.Context, c model.IssuedCoin) error
	InsertTransaction(ctx context.Context, t model.Transaction) error

	// Balance returns the claimant's available coin total.
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// Store persists mining state.
type Store interface {
	// WithinClaim runs fn in an atomic unit scoped to userID. Concurrent units
	// for the same user are serialized.
	WithinClaim(ctx context.Context, userID string, fn func(ClaimTx) error) error

	// Profile returns a user's profile or model.ErrNotFound.
	Profile(ctx context.Context, userID string) (model.MiningProfile, error)

	// Supply returns the global supply counters.
	Supply(ctx context.Context) (model.GlobalSupply, error)
}

// ConfigSource provides the claim schedule.
type ConfigSource interface {
	MiningConfig(ctx context.Context) (model.MiningConfig, error)
}

// ReferralSource counts a user's confirmed referrals.
type ReferralSource interface {
	ReferralCount(ctx context.Context, userID string) (int, error)
}

// CommissionNotifier receives the commission basis of every successful claim.
// Notify must not block.
type CommissionNotifier interface {
	Notify(c model.Commission)
}

// Claim outcomes reported to observers.
const (
	OutcomeGranted         = "granted"
	OutcomePartial         = "partial"
	OutcomeNotYetEligible  = "not_yet_eligible"
	OutcomeSupplyExhausted = "supply_exhausted"
	OutcomeError           = "error"
)

// Observer is notified of every claim attempt by an authenticated user.
type Observer interface {
	ObserveClaim(outcome string, granted, remaining decimal.Decimal)
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	CoinID         uuid.UUID
	Amount         decimal.Decimal // Granted
	Requested      decimal.Decimal // Boosted rate
	Partial        bool            // Amount < Requested
	Remaining      decimal.Decimal // Global supply left after the claim
	NextEligibleAt time.Time
	Balance        decimal.Decimal
	Config         model.MiningConfig
	Rate           model.BoostedRate
}

// StatusResult is a read-only eligibility snapshot.
type StatusResult struct {
	CanMine        bool
	TimeRemaining  time.Duration
	LastClaimAt    *time.Time
	NextEligibleAt time.Time
	Config         model.MiningConfig
	Rate           model.BoostedRate
}

// DefaultConfig is used when the ConfigSource is unavailable.
func DefaultConfig() model.MiningConfig {
	return model.MiningConfig{
		BaseReward: decimal.RequireFromString("0.15"),
		Interval:   5 * time.Hour,
	}
}

// Controller processes mining claims.
type Controller struct {
	store     Store
	config    ConfigSource
	referrals ReferralSource
	notifier  CommissionNotifier
	observer  Observer
	calc      referral.Calculator
	defaults  model.MiningConfig
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithNotifier sets the commission notifier.
func WithNotifier(n CommissionNotifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithObserver sets the claim observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithCalculator replaces the default referral calculator.
func WithCalculator(calc referral.Calculator) Option {
	return func(c *Controller) {
		c.calc = calc
	}
}

// WithDefaults sets the fallback configuration.
func WithDefaults(cfg model.MiningConfig) Option {
	return func(c *Controller) {
		c.defaults = cfg
	}
}

// WithTimeout bounds each collaborator read.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// NewController creates a new Controller. config and referrals may be nil.
func NewController(store Store, config ConfigSource, referrals ReferralSource, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		store:     store,
		config:    config,
		referrals: referrals,
		calc:      referral.NewCalculator(),
		defaults:  DefaultConfig(),
		timeout:   2 * time.Second,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Claim grants userID one interval's reward.
func (c *Controller) Claim(ctx context.Context, userID string) (ClaimResult, error) {
	if userID == "" {
		return ClaimResult{}, ErrNotAuthenticated
	}

	cfg := c.miningConfig(ctx)
	rate, err := c.boostedRate(ctx, userID, cfg)
	if err != nil {
		c.observe(OutcomeError, decimal.Zero, decimal.Zero)
		return ClaimResult{}, err
	}

	now := c.now().UTC()
	res := ClaimResult{
		Requested: rate.FinalRate,
		Config:    cfg,
		Rate:      rate,
	}

	err = c.store.WithinClaim(ctx, userID, func(tx ClaimTx) error {
		profile, err := tx.Profile(ctx)
		if err != nil {
			return fmt.Errorf("read mining profile: %w", err)
		}
		if !profile.Eligible(now) {
			return &NotYetEligibleError{NextEligibleAt: profile.NextEligibleAt}
		}

		granted, remaining, err := tx.ReserveSupply(ctx, rate.FinalRate)
		if err != nil {
			return fmt.Errorf("reserve supply: %w", err)
		}

		next := now.Add(cfg.Interval)
		claimedAt := now
		profile.LastClaimAt = &claimedAt
		profile.NextEligibleAt = next
		if err := tx.UpdateProfile(ctx, profile); err != nil {
			return fmt.Errorf("update mining profile: %w", err)
		}

		coin := model.IssuedCoin{
			ID:        uuid.New(),
			UserID:    userID,
			Amount:    granted,
			ClaimType: model.ClaimTypeMining,
			Status:    model.CoinStatusAvailable,
			CreatedAt: now,
		}
		if err := tx.InsertCoin(ctx, coin); err != nil {
			return fmt.Errorf("insert coin: %w", err)
		}

		if err := tx.InsertTransaction(ctx, model.Transaction{
			ID:              uuid.New(),
			UserID:          userID,
			Kind:            model.TransactionKindClaim,
			Amount:          granted,
			Requested:       rate.FinalRate,
			CoinID:          coin.ID,
			ReferralCount:   rate.ReferralCount,
			BoostPercentage: rate.BoostPercentage,
			Description:     describe(granted, rate),
			CreatedAt:       now,
		}); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		balance, err := tx.Balance(ctx)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		res.CoinID = coin.ID
		res.Amount = granted
		res.Partial = granted.LessThan(rate.FinalRate)
		res.Remaining = remaining
		res.NextEligibleAt = next
		res.Balance = balance
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotYetEligible):
			c.observe(OutcomeNotYetEligible, decimal.Zero, decimal.Zero)
		case errors.Is(err, model.ErrSupplyExhausted):
			c.logger.Info("claim rejected, supply exhausted", "user_id", userID)
			c.observe(OutcomeSupplyExhausted, decimal.Zero, decimal.Zero)
		default:
			c.logger.Error("claim failed", "user_id", userID, "error", err)
			c.observe(OutcomeError, decimal.Zero, decimal.Zero)
		}
		return ClaimResult{}, err
	}

	if c.notifier != nil {
		c.notifier.Notify(model.Commission{
			UserID:      userID,
			CoinID:      res.CoinID,
			BaseAmount:  res.Requested,
			RequestedAt: now,
		})
	}

	outcome := OutcomeGranted
	if res.Partial {
		outcome = OutcomePartial
		c.logger.Warn("partial claim, supply nearly exhausted",
			"user_id", userID,
			"requested", res.Requested.String(),
			"granted", res.Amount.String(),
		)
	}
	c.observe(outcome, res.Amount, res.Remaining)

	c.logger.Info("claim granted",
		"user_id", userID,
		"granted", res.Amount.String(),
		"referral_count", rate.ReferralCount,
		"next_eligible_at", res.NextEligibleAt,
	)
	return res, nil
}

// Status reports userID's eligibility without mutating anything.
func (c *Controller) Status(ctx context.Context, userID string) (StatusResult, error) {
	if userID == "" {
		return StatusResult{}, ErrNotAuthenticated
	}

	cfg := c.miningConfig(ctx)
	rate, err := c.boostedRate(ctx, userID, cfg)
	if err != nil {
		c.logger.Warn("referral count unavailable for status", "user_id", userID, "error", err)
		rate, _ = c.calc.Rate(cfg.BaseReward, 0)
	}

	now := c.now().UTC()
	st := StatusResult{
		CanMine:        true,
		NextEligibleAt: now,
		Config:         cfg,
		Rate:           rate,
	}

	profile, err := c.store.Profile(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return st, nil
	case err != nil:
		return StatusResult{}, fmt.Errorf("read mining profile: %w", err)
	}

	st.LastClaimAt = profile.LastClaimAt
	st.NextEligibleAt = profile.NextEligibleAt
	st.CanMine = profile.Eligible(now)
	if !st.CanMine {
		st.TimeRemaining = profile.NextEligibleAt.Sub(now)
	}
	return st, nil
}

// Supply returns the global supply counters.
func (c *Controller) Supply(ctx context.Context) (model.GlobalSupply, error) {
	return c.store.Supply(ctx)
}

// miningConfig reads the schedule, falling back to defaults.
func (c *Controller) miningConfig(ctx context.Context) model.MiningConfig {
	if c.config == nil {
		return c.defaults
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg, err := c.config.MiningConfig(cctx)
	if err == nil && (!cfg.BaseReward.IsPositive() || cfg.Interval <= 0) {
		err = fmt.Errorf("invalid mining config: reward %s, interval %s", cfg.BaseReward, cfg.Interval)
	}
	if err != nil {
		c.logger.Warn("mining config unavailable, using defaults", "error", err)
		return c.defaults
	}
	return cfg
}

func (c *Controller) boostedRate(ctx context.Context, userID string, cfg model.MiningConfig) (model.BoostedRate, error) {
	count := 0
	if c.referrals != nil {
		rctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		n, err := c.referrals.ReferralCount(rctx, userID)
		if err != nil {
			return model.BoostedRate{}, fmt.Errorf("read referral count: %w", err)
		}
		count = n
	}

	rate, err := c.calc.Rate(cfg.BaseReward, count)
	if err != nil {
		return model.BoostedRate{}, fmt.Errorf("compute boosted rate: %w", err)
	}
	return rate, nil
}

func (c *Controller) observe(outcome string, granted, remaining decimal.Decimal) {
	if c.observer != nil {
		c.observer.ObserveClaim(outcome, granted, remaining)
	}
}

func describe(granted decimal.Decimal, rate model.BoostedRate) string {
	if rate.ReferralCount == 0 {
		return fmt.Sprintf("Mining claim of %s", granted.String())
	}
	return fmt.Sprintf("Mining claim of %s (%d referrals, +%s%% boost)",
		granted.String(), rate.ReferralCount, rate.BoostPercentage.Mul(decimal.NewFromInt(100)).String())
}
