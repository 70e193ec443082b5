package price

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the engine's tunable parameters.
type Config struct {
	BasePrice      decimal.Decimal
	VolatilityBand decimal.Decimal
	DailyIncrement decimal.Decimal
	DriftStrength  decimal.Decimal
	MinPrice       decimal.Decimal
	ResetHour      int // UTC hour the trading day starts

	// CollaboratorTimeout bounds each target source read.
	CollaboratorTimeout time.Duration
}

// DefaultConfig returns the standard engine parameters.
func DefaultConfig() Config {
	return Config{
		BasePrice:           decimal.NewFromInt(13),
		VolatilityBand:      decimal.RequireFromString("0.08"),
		DailyIncrement:      decimal.NewFromInt(1),
		DriftStrength:       decimal.RequireFromString("0.08"),
		MinPrice:            decimal.RequireFromString("0.01"),
		ResetHour:           15,
		CollaboratorTimeout: 2 * time.Second,
	}
}
