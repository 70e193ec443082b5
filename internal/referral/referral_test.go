package referral

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBoost(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		count     int
		wantBoost string
		wantFinal string
	}{
		{"no referrals", "0.15", 0, "0", "0.15"},
		{"one referral", "0.15", 1, "0.1", "0.165"},
		{"ten referrals doubles the rate", "0.15", 10, "1", "0.3"},
		{"uncapped growth", "0.15", 100, "10", "1.65"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := Boost(decimal.RequireFromString(tt.base), tt.count, DefaultPerReferral)
			if err != nil {
				t.Fatalf("Boost() error = %v", err)
			}
			if !rate.BoostPercentage.Equal(decimal.RequireFromString(tt.wantBoost)) {
				t.Errorf("BoostPercentage = %s, want %s", rate.BoostPercentage, tt.wantBoost)
			}
			if !rate.FinalRate.Equal(decimal.RequireFromString(tt.wantFinal)) {
				t.Errorf("FinalRate = %s, want %s", rate.FinalRate, tt.wantFinal)
			}
			if rate.ReferralCount != tt.count {
				t.Errorf("ReferralCount = %d, want %d", rate.ReferralCount, tt.count)
			}
			if !rate.BaseRate.Equal(decimal.RequireFromString(tt.base)) {
				t.Errorf("BaseRate = %s, want %s", rate.BaseRate, tt.base)
			}
		})
	}
}

func TestBoost_NegativeCount(t *testing.T) {
	_, err := Boost(decimal.RequireFromString("0.15"), -1, DefaultPerReferral)
	if !errors.Is(err, ErrInvalidReferralCount) {
		t.Fatalf("Boost(-1) error = %v, want ErrInvalidReferralCount", err)
	}
}

func TestCalculator_Rate(t *testing.T) {
	base := decimal.RequireFromString("0.15")

	t.Run("default calculator is uncapped", func(t *testing.T) {
		rate, err := NewCalculator().Rate(base, 50)
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		if !rate.FinalRate.Equal(decimal.RequireFromString("0.9")) {
			t.Errorf("FinalRate = %s, want 0.9", rate.FinalRate)
		}
	})

	t.Run("cap limits boost", func(t *testing.T) {
		c := Calculator{PerReferral: DefaultPerReferral, Cap: decimal.NewFromInt(1)}
		rate, err := c.Rate(base, 50)
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		if !rate.BoostPercentage.Equal(decimal.NewFromInt(1)) {
			t.Errorf("BoostPercentage = %s, want 1", rate.BoostPercentage)
		}
		if !rate.FinalRate.Equal(decimal.RequireFromString("0.3")) {
			t.Errorf("FinalRate = %s, want 0.3", rate.FinalRate)
		}
		if rate.ReferralCount != 50 {
			t.Errorf("ReferralCount = %d, want 50", rate.ReferralCount)
		}
	})

	t.Run("zero per-referral disables boosts", func(t *testing.T) {
		c := Calculator{}
		rate, err := c.Rate(base, 7)
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		if !rate.FinalRate.Equal(base) {
			t.Errorf("FinalRate = %s, want %s", rate.FinalRate, base)
		}
	})

	t.Run("negative count rejected", func(t *testing.T) {
		if _, err := NewCalculator().Rate(base, -3); !errors.Is(err, ErrInvalidReferralCount) {
			t.Errorf("Rate(-3) error = %v, want ErrInvalidReferralCount", err)
		}
	})
}
