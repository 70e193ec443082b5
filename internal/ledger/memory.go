package ledger

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

// Memory is an in-process ledger. The zero value is not usable; use NewMemory.
type Memory struct {
	tickMu  sync.Mutex // serializes WithinTick
	claimMu sync.Mutex // serializes WithinClaim

	mu        sync.Mutex
	ticks     []model.PriceTick
	targets   map[string]model.DailyPriceTarget
	supply    model.GlobalSupply
	profiles  map[string]model.MiningProfile
	coins     []model.IssuedCoin
	txs       []model.Transaction
	referrals map[string]int
	config    *model.MiningConfig
	settings  map[string]string
}

// NewMemory creates an empty ledger with the given total supply.
func NewMemory(totalSupply decimal.Decimal) *Memory {
	return &Memory{
		targets:   make(map[string]model.DailyPriceTarget),
		supply:    model.GlobalSupply{TotalSupply: totalSupply, MinedSupply: decimal.Zero},
		profiles:  make(map[string]model.MiningProfile),
		referrals: make(map[string]int),
		settings:  make(map[string]string),
	}
}

// -----------------------------------------------------------------------------
// Price
// -----------------------------------------------------------------------------

type memTickTx struct {
	m         *Memory
	ticks     []model.PriceTick
	rollovers []model.Rollover
}

// WithinTick implements price.Store.
func (m *Memory) WithinTick(ctx context.Context, fn func(price.TickTx) error) error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	tx := &memTickTx{m: m}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range tx.rollovers {
		m.applyRollover(r)
	}
	m.ticks = append(m.ticks, tx.ticks...)
	return nil
}

func (tx *memTickTx) LatestTick(ctx context.Context) (model.PriceTick, error) {
	if n := len(tx.ticks); n > 0 {
		return tx.ticks[n-1], nil
	}
	return tx.m.LatestTick(ctx)
}

func (tx *memTickTx) Rollover(ctx context.Context, r model.Rollover) error {
	tx.rollovers = append(tx.rollovers, r)
	return nil
}

func (tx *memTickTx) InsertTick(ctx context.Context, tick model.PriceTick) (model.PriceTick, error) {
	if last, err := tx.LatestTick(ctx); err == nil && !tick.Timestamp.After(last.Timestamp) {
		return model.PriceTick{}, model.ErrStaleTick
	}
	tx.m.mu.Lock()
	tick.ID = int64(len(tx.m.ticks) + len(tx.ticks) + 1)
	tx.m.mu.Unlock()
	tx.ticks = append(tx.ticks, tick)
	return tick, nil
}

func (m *Memory) latest() (model.PriceTick, error) {
	if len(m.ticks) == 0 {
		return model.PriceTick{}, model.ErrNotFound
	}
	return m.ticks[len(m.ticks)-1], nil
}

func (m *Memory) applyRollover(r model.Rollover) {
	closing := r.ClosingPrice
	closed, ok := m.targets[dateKey(r.ClosedDate)]
	if !ok {
		closed = model.DailyPriceTarget{
			ReferenceDate: r.ClosedDate,
			OpeningPrice:  closing,
			TargetPrice:   closing,
		}
	}
	closed.ClosingPrice = &closing
	m.targets[dateKey(r.ClosedDate)] = closed

	next := r.Next
	next.ClosingPrice = nil
	m.targets[dateKey(next.ReferenceDate)] = next
}

// LatestTick implements price.Store.
func (m *Memory) LatestTick(ctx context.Context) (model.PriceTick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest()
}

// RecentTicks implements price.Store.
func (m *Memory) RecentTicks(ctx context.Context, limit int) ([]model.PriceTick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.PriceTick, 0, min(limit, len(m.ticks)))
	for i := len(m.ticks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.ticks[i])
	}
	return out, nil
}

// TicksForDay returns the ticks of trading day ref in chronological order.
func (m *Memory) TicksForDay(ctx context.Context, ref time.Time) ([]model.PriceTick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dateKey(ref)
	var out []model.PriceTick
	for _, t := range m.ticks {
		if dateKey(t.ReferenceDate) == key {
			out = append(out, t)
		}
	}
	return out, nil
}

// DailyTarget implements price.TargetSource.
func (m *Memory) DailyTarget(ctx context.Context, ref time.Time) (model.DailyPriceTarget, error) {
	m.mu.Lock()
	t, ok := m.targets[dateKey(ref)]
	m.mu.Unlock()

	if !ok {
		return model.DailyPriceTarget{}, model.ErrNotFound
	}
	return t, nil
}

// SetTarget stores a daily target.
func (m *Memory) SetTarget(t model.DailyPriceTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[dateKey(t.ReferenceDate)] = t
}

// -----------------------------------------------------------------------------
// Mining
// -----------------------------------------------------------------------------

type memClaimTx struct {
	m       *Memory
	userID  string
	profile *model.MiningProfile
	total   decimal.Decimal
	mined   decimal.Decimal
	coins   []model.IssuedCoin
	txs     []model.Transaction
}

// WithinClaim implements mining.Store. Claims are serialized store-wide.
func (m *Memory) WithinClaim(ctx context.Context, userID string, fn func(mining.ClaimTx) error) error {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()

	m.mu.Lock()
	tx := &memClaimTx{m: m, userID: userID, total: m.supply.TotalSupply, mined: m.supply.MinedSupply}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.profile != nil {
		m.profiles[userID] = *tx.profile
	}
	m.supply.MinedSupply = tx.mined
	m.coins = append(m.coins, tx.coins...)
	m.txs = append(m.txs, tx.txs...)
	return nil
}

func (tx *memClaimTx) Profile(ctx context.Context) (model.MiningProfile, error) {
	if tx.profile != nil {
		return *tx.profile, nil
	}
	tx.m.mu.Lock()
	p, ok := tx.m.profiles[tx.userID]
	tx.m.mu.Unlock()
	if !ok {
		p = model.MiningProfile{UserID: tx.userID, NextEligibleAt: time.Unix(0, 0).UTC()}
	}
	tx.profile = &p
	return p, nil
}

func (tx *memClaimTx) ReserveSupply(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	remaining := tx.total.Sub(tx.mined)
	if !remaining.IsPositive() {
		return decimal.Zero, decimal.Zero, model.ErrSupplyExhausted
	}

	granted := decimal.Min(amount, remaining)
	tx.mined = tx.mined.Add(granted)
	return granted, remaining.Sub(granted), nil
}

func (tx *memClaimTx) UpdateProfile(ctx context.Context, p model.MiningProfile) error {
	p.UserID = tx.userID
	tx.profile = &p
	return nil
}

func (tx *memClaimTx) InsertCoin(ctx context.Context, c model.IssuedCoin) error {
	tx.coins = append(tx.coins, c)
	return nil
}

func (tx *memClaimTx) InsertTransaction(ctx context.Context, t model.Transaction) error {
	tx.txs = append(tx.txs, t)
	return nil
}

func (tx *memClaimTx) Balance(ctx context.Context) (decimal.Decimal, error) {
	tx.m.mu.Lock()
	total := tx.m.balance(tx.userID)
	tx.m.mu.Unlock()
	for _, c := range tx.coins {
		if c.Status == model.CoinStatusAvailable {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}

func (m *Memory) balance(userID string) decimal.Decimal {
	total := decimal.Zero
	for _, c := range m.coins {
		if c.UserID == userID && c.Status == model.CoinStatusAvailable {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// Profile implements mining.Store.
func (m *Memory) Profile(ctx context.Context, userID string) (model.MiningProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return model.MiningProfile{}, model.ErrNotFound
	}
	return p, nil
}

// Supply implements mining.Store.
func (m *Memory) Supply(ctx context.Context) (model.GlobalSupply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply, nil
}

// SetProfile stores a mining profile.
func (m *Memory) SetProfile(p model.MiningProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

// Coins returns the coins issued to userID.
func (m *Memory) Coins(userID string) []model.IssuedCoin {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.IssuedCoin
	for _, c := range m.coins {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// Transactions returns the audit records of userID.
func (m *Memory) Transactions(userID string) []model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Transaction
	for _, t := range m.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// ReferralCount implements mining.ReferralSource.
func (m *Memory) ReferralCount(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.referrals[userID], nil
}

// SetReferralCount sets userID's confirmed referral count.
func (m *Memory) SetReferralCount(userID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals[userID] = n
}

// MiningConfig implements mining.ConfigSource. Returns model.ErrNotFound
// until SetMiningConfig is called.
func (m *Memory) MiningConfig(ctx context.Context) (model.MiningConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return model.MiningConfig{}, model.ErrNotFound
	}
	return *m.config, nil
}

// SetMiningConfig sets the claim schedule.
func (m *Memory) SetMiningConfig(cfg model.MiningConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
}

// Settings returns the runtime setting overrides.
func (m *Memory) Settings(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.settings), nil
}

// SetSetting stores a runtime setting override.
func (m *Memory) SetSetting(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
}
