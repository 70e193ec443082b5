package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}

	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.MaxHistory < 1 {
		return errors.New("server.max_history must be >= 1")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return errors.New("server.rate_limit.requests_per_second must be >= 0")
	}

	if c.Auth.Secret == "" && c.Auth.PublicKeyPath == "" {
		return errors.New("auth.secret or auth.public_key_path is required")
	}

	if err := c.Price.validate(); err != nil {
		return err
	}
	if err := c.Mining.validate(); err != nil {
		return err
	}

	if c.Commission.Enabled {
		if c.Commission.Workers < 1 {
			return errors.New("commission.workers must be >= 1")
		}
		if c.Commission.QueueSize < 1 {
			return errors.New("commission.queue_size must be >= 1")
		}
	}

	if c.Feed.SendBuffer < 1 {
		return errors.New("feed.send_buffer must be >= 1")
	}

	if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level %q is invalid", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// ValidateTrigger checks the settings used by the tick scheduler.
func (c *Config) ValidateTrigger() error {
	if c.Trigger.URL == "" {
		return errors.New("trigger.url is required")
	}
	if c.Trigger.Schedule == "" {
		return errors.New("trigger.schedule is required")
	}
	if c.Trigger.MaxRetries < 0 {
		return errors.New("trigger.max_retries must be >= 0")
	}
	return nil
}

// ValidateArchive checks the settings used by the tick archiver.
func (c *Config) ValidateArchive() error {
	if c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required")
	}
	switch c.Archive.Compression {
	case "snappy", "gzip", "zstd", "none":
	default:
		return fmt.Errorf("archive.compression %q is not supported", c.Archive.Compression)
	}
	return nil
}

func (p *PriceConfig) validate() error {
	if !p.BasePrice.IsPositive() {
		return errors.New("price.base_price must be > 0")
	}
	if !p.MinPrice.IsPositive() {
		return errors.New("price.min_price must be > 0")
	}
	if p.VolatilityBand.IsNegative() || p.VolatilityBand.GreaterThanOrEqual(one) {
		return fmt.Errorf("price.volatility_band must be in [0, 1), got %s", p.VolatilityBand)
	}
	if p.DriftStrength.IsNegative() || p.DriftStrength.GreaterThan(one) {
		return fmt.Errorf("price.drift_strength must be in [0, 1], got %s", p.DriftStrength)
	}
	if p.DailyIncrement.IsNegative() {
		return errors.New("price.daily_increment must be >= 0")
	}
	if p.ResetHour == nil || *p.ResetHour < 0 || *p.ResetHour > 23 {
		return errors.New("price.reset_hour must be between 0 and 23")
	}
	return nil
}

func (m *MiningConfig) validate() error {
	if !m.BaseReward.IsPositive() {
		return errors.New("mining.base_reward must be > 0")
	}
	if m.Interval <= 0 {
		return errors.New("mining.interval must be > 0")
	}
	if !m.TotalSupply.IsPositive() {
		return errors.New("mining.total_supply must be > 0")
	}
	if m.ReferralBoost.IsNegative() {
		return errors.New("mining.referral_boost must be >= 0")
	}
	if m.ReferralBoostCap.IsNegative() {
		return errors.New("mining.referral_boost_cap must be >= 0")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
