package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Precision of persisted quantities.
const (
	PricePlaces  int32 = 8
	AmountPlaces int32 = 8
)

// Claim and coin vocabulary stored alongside issued value.
const (
	ClaimTypeMining      = "mining"
	CoinStatusAvailable  = "available"
	TransactionKindClaim = "mining_claim"
)

// -----------------------------------------------------------------------------
// Price Types
// -----------------------------------------------------------------------------

// PriceTick is one simulated market sample. Ticks are append-only.
type PriceTick struct {
	ID            int64           // Store-assigned sequence (0 until persisted)
	Price         decimal.Decimal // Simulated price
	High          decimal.Decimal // Synthetic high, >= Price
	Low           decimal.Decimal // Synthetic low, <= Price
	Average       decimal.Decimal // Midpoint of High and Low
	ReferenceDate time.Time       // Trading day (UTC midnight)
	Timestamp     time.Time       // Creation instant, strictly increasing
}

// DailyPriceTarget is the drift schedule of one trading day.
type DailyPriceTarget struct {
	ReferenceDate time.Time        // Trading day (UTC midnight)
	OpeningPrice  decimal.Decimal  // Price at the start of the trading day
	TargetPrice   decimal.Decimal  // OpeningPrice + daily increment
	ClosingPrice  *decimal.Decimal // Set when the day is closed out
	Progress      float64          // Fraction 0..1 of the day elapsed
}

// Rollover describes a trading-day transition requested by the price engine.
type Rollover struct {
	ClosedDate   time.Time        // Trading day being closed
	ClosingPrice decimal.Decimal  // Last tick price of ClosedDate
	Next         DailyPriceTarget // Target record of the new trading day
}

// -----------------------------------------------------------------------------
// Mining Types
// -----------------------------------------------------------------------------

// GlobalSupply is the singleton emission counter.
type GlobalSupply struct {
	TotalSupply decimal.Decimal // Fixed cap
	MinedSupply decimal.Decimal // Cumulative issued
}

// Remaining returns TotalSupply - MinedSupply.
func (s GlobalSupply) Remaining() decimal.Decimal {
	return s.TotalSupply.Sub(s.MinedSupply)
}

// MiningProfile holds a user's claim eligibility.
type MiningProfile struct {
	UserID         string
	LastClaimAt    *time.Time // nil until the first claim
	NextEligibleAt time.Time
}

// Eligible reports whether a claim is allowed at now.
func (p MiningProfile) Eligible(now time.Time) bool {
	return !now.Before(p.NextEligibleAt)
}

// IssuedCoin records value granted by a successful claim.
type IssuedCoin struct {
	ID        uuid.UUID
	UserID    string
	Amount    decimal.Decimal // Granted amount, may be below the requested rate
	ClaimType string          // "mining"
	Status    string          // "available"
	CreatedAt time.Time
}

// Transaction is the audit record appended for every claim.
type Transaction struct {
	ID              uuid.UUID
	UserID          string
	Kind            string
	Amount          decimal.Decimal // Granted
	Requested       decimal.Decimal // Boosted rate before the supply cap
	CoinID          uuid.UUID
	ReferralCount   int
	BoostPercentage decimal.Decimal // e.g. 0.30 for three referrals
	Description     string
	CreatedAt       time.Time
}

// MiningConfig is the tunable claim schedule.
type MiningConfig struct {
	BaseReward decimal.Decimal
	Interval   time.Duration
}

// BoostedRate is a user's effective reward after referral boosts. Not persisted.
type BoostedRate struct {
	BaseRate        decimal.Decimal
	ReferralCount   int
	BoostPercentage decimal.Decimal
	FinalRate       decimal.Decimal
}

// Commission is the basis handed to the referral-commission routine.
type Commission struct {
	UserID      string
	CoinID      uuid.UUID
	BaseAmount  decimal.Decimal // Requested amount, before the supply cap
	RequestedAt time.Time
}
