package settings

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

type setter func(s *Snapshot, value string) error

var setters = map[string]setter{
	"price.base_price": func(s *Snapshot, v string) error {
		return setDecimal(&s.Price.BasePrice, v, positive)
	},
	"price.volatility_band": func(s *Snapshot, v string) error {
		return setDecimal(&s.Price.VolatilityBand, v, fraction)
	},
	"price.daily_increment": func(s *Snapshot, v string) error {
		return setDecimal(&s.Price.DailyIncrement, v, nonNegative)
	},
	"price.drift_strength": func(s *Snapshot, v string) error {
		return setDecimal(&s.Price.DriftStrength, v, unit)
	},
	"price.min_price": func(s *Snapshot, v string) error {
		return setDecimal(&s.Price.MinPrice, v, positive)
	},
	"price.reset_hour": func(s *Snapshot, v string) error {
		h, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if h < 0 || h > 23 {
			return fmt.Errorf("hour %d out of range", h)
		}
		s.Price.ResetHour = h
		return nil
	},
	"mining.base_reward": func(s *Snapshot, v string) error {
		return setDecimal(&s.Mining.BaseReward, v, positive)
	},
	"mining.interval": func(s *Snapshot, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		if d <= 0 {
			return errors.New("must be positive")
		}
		s.Mining.Interval = d
		return nil
	},
}

func setDecimal(dst *decimal.Decimal, v string, check func(decimal.Decimal) error) error {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return err
	}
	if err := check(d); err != nil {
		return err
	}
	*dst = d
	return nil
}

func positive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return errors.New("must be positive")
	}
	return nil
}

func nonNegative(d decimal.Decimal) error {
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

// fraction accepts (0, 1).
func fraction(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThanOrEqual(one) {
		return errors.New("must be between 0 and 1 exclusive")
	}
	return nil
}

// unit accepts [0, 1].
func unit(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(one) {
		return errors.New("must be between 0 and 1")
	}
	return nil
}
