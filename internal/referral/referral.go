// Package referral computes referral-boosted mining rates.
//
// finalRate = baseRate × (1 + perReferral × referralCount)
//
// The boost is uncapped unless a Calculator is given a non-zero Cap.
package referral

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
)

// DefaultPerReferral is the boost granted per confirmed referral (+10%).
var DefaultPerReferral = decimal.NewFromFloat(0.10)

// ErrInvalidReferralCount is returned for negative referral counts.
var ErrInvalidReferralCount = errors.New("invalid referral count")

// Boost applies the referral multiplier to base. count must be non-negative.
func Boost(base decimal.Decimal, count int, perReferral decimal.Decimal) (model.BoostedRate, error) {
	if count < 0 {
		return model.BoostedRate{}, fmt.Errorf("%w: %d", ErrInvalidReferralCount, count)
	}

	boost := perReferral.Mul(decimal.NewFromInt(int64(count)))
	return model.BoostedRate{
		BaseRate:        base,
		ReferralCount:   count,
		BoostPercentage: boost,
		FinalRate:       base.Mul(decimal.NewFromInt(1).Add(boost)).Round(model.AmountPlaces),
	}, nil
}

// Calculator holds the tunable boost parameters.
type Calculator struct {
	PerReferral decimal.Decimal

	// Cap limits BoostPercentage when positive. Zero leaves the boost unbounded.
	Cap decimal.Decimal
}

// NewCalculator returns a Calculator with the default +10% per referral, uncapped.
func NewCalculator() Calculator {
	return Calculator{PerReferral: DefaultPerReferral}
}

// Rate returns the boosted rate for base and count.
func (c Calculator) Rate(base decimal.Decimal, count int) (model.BoostedRate, error) {
	rate, err := Boost(base, count, c.PerReferral)
	if err != nil {
		return rate, err
	}

	if c.Cap.IsPositive() && rate.BoostPercentage.GreaterThan(c.Cap) {
		rate.BoostPercentage = c.Cap
		rate.FinalRate = base.Mul(decimal.NewFromInt(1).Add(c.Cap)).Round(model.AmountPlaces)
	}
	return rate, nil
}
