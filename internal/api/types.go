package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeNotAuthenticated = "not_authenticated"
	CodeNotYetEligible   = "not_yet_eligible"
	CodeSupplyExhausted  = "supply_exhausted"
	CodeBadRequest       = "bad_request"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeProcedureFailed  = "procedure_failed"
	CodeInternal         = "internal"
)

// TickResponse from GET /api/price/tick
type TickResponse struct {
	Price         decimal.Decimal `json:"price"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Average       decimal.Decimal `json:"average"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	OpeningPrice  decimal.Decimal `json:"openingPrice"`
	TargetPrice   decimal.Decimal `json:"targetPrice"`
	ExpectedPrice decimal.Decimal `json:"expectedPrice"`
	ProgressRatio float64         `json:"progressRatio"`
	Timestamp     time.Time       `json:"timestamp"`
	ReferenceDate string          `json:"referenceDate"` // YYYY-MM-DD
}

// NewTickResponse converts an engine result.
func NewTickResponse(r price.Result) TickResponse {
	return TickResponse{
		Price:         r.Tick.Price,
		High:          r.Tick.High,
		Low:           r.Tick.Low,
		Average:       r.Tick.Average,
		ChangePercent: r.ChangePercent,
		OpeningPrice:  r.OpeningPrice,
		TargetPrice:   r.TargetPrice,
		ExpectedPrice: r.ExpectedPrice,
		ProgressRatio: r.ProgressRatio,
		Timestamp:     r.Tick.Timestamp,
		ReferenceDate: r.Tick.ReferenceDate.Format(time.DateOnly),
	}
}

// PriceTick is a stored tick.
type PriceTick struct {
	ID            int64           `json:"id"`
	Price         decimal.Decimal `json:"price"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Average       decimal.Decimal `json:"average"`
	Timestamp     time.Time       `json:"timestamp"`
	ReferenceDate string          `json:"referenceDate"`
}

// NewPriceTick converts a stored tick.
func NewPriceTick(t model.PriceTick) PriceTick {
	return PriceTick{
		ID:            t.ID,
		Price:         t.Price,
		High:          t.High,
		Low:           t.Low,
		Average:       t.Average,
		Timestamp:     t.Timestamp,
		ReferenceDate: t.ReferenceDate.Format(time.DateOnly),
	}
}

// HistoryResponse from GET /api/price/history
type HistoryResponse struct {
	Ticks []PriceTick `json:"ticks"`
}

// MiningConfig is the claim schedule.
type MiningConfig struct {
	BaseReward decimal.Decimal `json:"baseReward"`
	IntervalMs int64           `json:"intervalMs"`
}

// BoostedRate is the referral-boosted reward breakdown.
type BoostedRate struct {
	BaseRate        decimal.Decimal `json:"baseRate"`
	ReferralCount   int             `json:"referralCount"`
	BoostPercentage decimal.Decimal `json:"boostPercentage"`
	FinalRate       decimal.Decimal `json:"finalRate"`
}

func newMiningConfig(c model.MiningConfig) MiningConfig {
	return MiningConfig{BaseReward: c.BaseReward, IntervalMs: c.Interval.Milliseconds()}
}

func newBoostedRate(r model.BoostedRate) BoostedRate {
	return BoostedRate{
		BaseRate:        r.BaseRate,
		ReferralCount:   r.ReferralCount,
		BoostPercentage: r.BoostPercentage,
		FinalRate:       r.FinalRate,
	}
}

// ClaimResponse from POST /api/mining/claim
type ClaimResponse struct {
	Amount       decimal.Decimal `json:"amount"`
	Requested    decimal.Decimal `json:"requested"`
	Partial      bool            `json:"partial"`
	CoinID       string          `json:"coinId"`
	NextMine     time.Time       `json:"nextMine"`
	Balance      decimal.Decimal `json:"balance"`
	MiningConfig MiningConfig    `json:"miningConfig"`
	BoostedRate  BoostedRate     `json:"boostedRate"`
}

// NewClaimResponse converts a claim result.
func NewClaimResponse(r mining.ClaimResult) ClaimResponse {
	return ClaimResponse{
		Amount:       r.Amount,
		Requested:    r.Requested,
		Partial:      r.Partial,
		CoinID:       r.CoinID.String(),
		NextMine:     r.NextEligibleAt,
		Balance:      r.Balance,
		MiningConfig: newMiningConfig(r.Config),
		BoostedRate:  newBoostedRate(r.Rate),
	}
}

// StatusResponse from GET /api/mining/status
type StatusResponse struct {
	CanMine       bool         `json:"canMine"`
	TimeRemaining int64        `json:"timeRemaining"` // Milliseconds
	LastMine      *time.Time   `json:"lastMine"`
	NextMine      time.Time    `json:"nextMine"`
	MiningConfig  MiningConfig `json:"miningConfig"`
	BoostedRate   BoostedRate  `json:"boostedRate"`
}

// NewStatusResponse converts a status snapshot.
func NewStatusResponse(s mining.StatusResult) StatusResponse {
	return StatusResponse{
		CanMine:       s.CanMine,
		TimeRemaining: s.TimeRemaining.Milliseconds(),
		LastMine:      s.LastClaimAt,
		NextMine:      s.NextEligibleAt,
		MiningConfig:  newMiningConfig(s.Config),
		BoostedRate:   newBoostedRate(s.Rate),
	}
}

// SupplyResponse from GET /api/mining/supply
type SupplyResponse struct {
	TotalSupply     decimal.Decimal `json:"totalSupply"`
	MinedSupply     decimal.Decimal `json:"minedSupply"`
	RemainingSupply decimal.Decimal `json:"remainingSupply"`
}

// NewSupplyResponse converts the supply counters.
func NewSupplyResponse(s model.GlobalSupply) SupplyResponse {
	return SupplyResponse{
		TotalSupply:     s.TotalSupply,
		MinedSupply:     s.MinedSupply,
		RemainingSupply: s.Remaining(),
	}
}

// TradeActionResponse from POST /api/trades/{tradeID}/{action}
type TradeActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure. NextMine is set for not_yet_eligible.
type ErrorBody struct {
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	NextMine *time.Time       `json:"nextMine,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"` // Zero for supply_exhausted
}

// HealthResponse from GET /health
type HealthResponse struct {
	Status string `json:"status"`
}
