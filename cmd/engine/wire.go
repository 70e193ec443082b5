package main

import (
	"github.com/rickgao/emission-engine/internal/config"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
	"github.com/rickgao/emission-engine/internal/referral"
)

func priceConfig(c config.PriceConfig) price.Config {
	cfg := price.Config{
		BasePrice:           c.BasePrice,
		VolatilityBand:      c.VolatilityBand,
		DailyIncrement:      c.DailyIncrement,
		DriftStrength:       c.DriftStrength,
		MinPrice:            c.MinPrice,
		ResetHour:           price.DefaultConfig().ResetHour,
		CollaboratorTimeout: c.CollaboratorTimeout,
	}
	if c.ResetHour != nil {
		cfg.ResetHour = *c.ResetHour
	}
	return cfg
}

func miningConfig(c config.MiningConfig) model.MiningConfig {
	return model.MiningConfig{
		BaseReward: c.BaseReward,
		Interval:   c.Interval,
	}
}

func calculator(c config.MiningConfig) referral.Calculator {
	return referral.Calculator{
		PerReferral: c.ReferralBoost,
		Cap:         c.ReferralBoostCap,
	}
}
