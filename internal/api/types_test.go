package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewTickResponse(t *testing.T) {
	ts := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
	resp := NewTickResponse(price.Result{
		Tick: model.PriceTick{
			Price:         d("13.224"),
			High:          d("13.5"),
			Low:           d("13.1"),
			Average:       d("13.3"),
			ReferenceDate: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			Timestamp:     ts,
		},
		OpeningPrice:  d("13"),
		TargetPrice:   d("14"),
		ExpectedPrice: d("13.5"),
		ChangePercent: d("1.72"),
		ProgressRatio: 0.5,
	})

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{
		`"price":"13.224"`,
		`"changePercent":"1.72"`,
		`"expectedPrice":"13.5"`,
		`"progressRatio":0.5`,
		`"timestamp":"2024-03-10T03:00:00Z"`,
		`"referenceDate":"2024-03-09"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("tick JSON missing %s: %s", want, data)
		}
	}
}

func TestNewClaimResponse(t *testing.T) {
	coin := uuid.New()
	next := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	resp := NewClaimResponse(mining.ClaimResult{
		CoinID:         coin,
		Amount:         d("0.2"),
		Requested:      d("0.3"),
		Partial:        true,
		NextEligibleAt: next,
		Balance:        d("1.2"),
		Config:         model.MiningConfig{BaseReward: d("0.15"), Interval: 5 * time.Hour},
		Rate:           model.BoostedRate{BaseRate: d("0.15"), ReferralCount: 10, BoostPercentage: d("1"), FinalRate: d("0.3")},
	})

	if resp.CoinID != coin.String() {
		t.Errorf("CoinID = %q, want %q", resp.CoinID, coin)
	}
	if resp.MiningConfig.IntervalMs != (5 * time.Hour).Milliseconds() {
		t.Errorf("IntervalMs = %d", resp.MiningConfig.IntervalMs)
	}
	if resp.BoostedRate.ReferralCount != 10 || !resp.BoostedRate.FinalRate.Equal(d("0.3")) {
		t.Errorf("BoostedRate = %+v", resp.BoostedRate)
	}
	if !resp.Partial || !resp.NextMine.Equal(next) {
		t.Errorf("Partial/NextMine = %v/%v", resp.Partial, resp.NextMine)
	}
}

func TestNewStatusResponse(t *testing.T) {
	resp := NewStatusResponse(mining.StatusResult{
		CanMine:       false,
		TimeRemaining: 90 * time.Second,
	})
	if resp.TimeRemaining != 90000 {
		t.Errorf("TimeRemaining = %d, want 90000", resp.TimeRemaining)
	}

	data, _ := json.Marshal(resp)
	if !strings.Contains(string(data), `"lastMine":null`) {
		t.Errorf("status JSON should carry null lastMine: %s", data)
	}
}

func TestNewSupplyResponse(t *testing.T) {
	resp := NewSupplyResponse(model.GlobalSupply{TotalSupply: d("1000000"), MinedSupply: d("0.45")})
	if !resp.RemainingSupply.Equal(d("999999.55")) {
		t.Errorf("RemainingSupply = %s, want 999999.55", resp.RemainingSupply)
	}
}
