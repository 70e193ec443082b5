package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default values for optional configuration fields.
const (
	DefaultDriver              = "postgres"
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultDBApplicationName   = "emission-engine"
	DefaultDBConnectTimeout    = 10 * time.Second
	DefaultServerPort          = 8080
	DefaultReadTimeout         = 10 * time.Second
	DefaultWriteTimeout        = 15 * time.Second
	DefaultShutdownTimeout     = 10 * time.Second
	DefaultMaxHistory          = 1000
	DefaultRateLimitRPS        = 20
	DefaultRateLimitBurst      = 40
	DefaultTokenTTL            = 24 * time.Hour
	DefaultIssuer              = "emission-engine"
	DefaultResetHour           = 15
	DefaultCollaboratorTimeout = 2 * time.Second
	DefaultMiningInterval      = 5 * time.Hour
	DefaultReferralCacheTTL    = 30 * time.Second
	DefaultReferralCacheSize   = 4096
	DefaultSettingsRefresh     = 30 * time.Second
	DefaultCommissionWorkers   = 4
	DefaultCommissionQueueSize = 1024
	DefaultCommissionTimeout   = 5 * time.Second
	DefaultFeedPingInterval    = 30 * time.Second
	DefaultFeedWriteTimeout    = 10 * time.Second
	DefaultFeedSendBuffer      = 16
	DefaultArchivePrefix       = "ticks"
	DefaultArchiveRegion       = "us-east-1"
	DefaultArchiveCompression  = "snappy"
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxBackups       = 5
	DefaultLogMaxAgeDays       = 28
	DefaultTriggerURL          = "http://localhost:8080"
	DefaultTriggerSchedule     = "@every 3s"
	DefaultTriggerTimeout      = 5 * time.Second
	DefaultTriggerMaxRetries   = 2
)

// Default numeric knobs.
var (
	DefaultBasePrice      = decimal.NewFromInt(13)
	DefaultVolatilityBand = decimal.RequireFromString("0.08")
	DefaultDailyIncrement = decimal.NewFromInt(1)
	DefaultDriftStrength  = decimal.RequireFromString("0.08")
	DefaultMinPrice       = decimal.RequireFromString("0.01")
	DefaultBaseReward     = decimal.RequireFromString("0.15")
	DefaultTotalSupply    = decimal.NewFromInt(1_000_000)
	DefaultReferralBoost  = decimal.RequireFromString("0.10")
)

// ApplyDefaults fills unset fields with default values.
func (c *Config) ApplyDefaults() {
	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	applyDBDefaults(&c.Database.Postgres)

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.MaxHistory == 0 {
		c.Server.MaxHistory = DefaultMaxHistory
	}
	if c.Server.RateLimit.RequestsPerSecond == 0 {
		c.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = DefaultRateLimitBurst
	}

	// Auth defaults
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = DefaultIssuer
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	// Price defaults
	setDecimal(&c.Price.BasePrice, DefaultBasePrice)
	setDecimal(&c.Price.VolatilityBand, DefaultVolatilityBand)
	setDecimal(&c.Price.DailyIncrement, DefaultDailyIncrement)
	setDecimal(&c.Price.DriftStrength, DefaultDriftStrength)
	setDecimal(&c.Price.MinPrice, DefaultMinPrice)
	if c.Price.ResetHour == nil {
		h := DefaultResetHour
		c.Price.ResetHour = &h
	}
	if c.Price.CollaboratorTimeout == 0 {
		c.Price.CollaboratorTimeout = DefaultCollaboratorTimeout
	}

	// Mining defaults
	setDecimal(&c.Mining.BaseReward, DefaultBaseReward)
	setDecimal(&c.Mining.TotalSupply, DefaultTotalSupply)
	setDecimal(&c.Mining.ReferralBoost, DefaultReferralBoost)
	if c.Mining.Interval == 0 {
		c.Mining.Interval = DefaultMiningInterval
	}
	if c.Mining.ReferralCacheTTL == 0 {
		c.Mining.ReferralCacheTTL = DefaultReferralCacheTTL
	}
	if c.Mining.ReferralCacheSize == 0 {
		c.Mining.ReferralCacheSize = DefaultReferralCacheSize
	}
	if c.Mining.Timeout == 0 {
		c.Mining.Timeout = DefaultCollaboratorTimeout
	}

	// Settings defaults
	if c.Settings.RefreshInterval == 0 {
		c.Settings.RefreshInterval = DefaultSettingsRefresh
	}

	// Commission defaults
	if c.Commission.Workers == 0 {
		c.Commission.Workers = DefaultCommissionWorkers
	}
	if c.Commission.QueueSize == 0 {
		c.Commission.QueueSize = DefaultCommissionQueueSize
	}
	if c.Commission.Timeout == 0 {
		c.Commission.Timeout = DefaultCommissionTimeout
	}

	// Feed defaults
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultFeedPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}
	if c.Feed.SendBuffer == 0 {
		c.Feed.SendBuffer = DefaultFeedSendBuffer
	}

	// Archive defaults
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}
	if c.Archive.Region == "" {
		c.Archive.Region = DefaultArchiveRegion
	}
	if c.Archive.Compression == "" {
		c.Archive.Compression = DefaultArchiveCompression
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Trigger defaults
	if c.Trigger.URL == "" {
		c.Trigger.URL = DefaultTriggerURL
	}
	if c.Trigger.Schedule == "" {
		c.Trigger.Schedule = DefaultTriggerSchedule
	}
	if c.Trigger.Timeout == 0 {
		c.Trigger.Timeout = DefaultTriggerTimeout
	}
	if c.Trigger.MaxRetries == 0 {
		c.Trigger.MaxRetries = DefaultTriggerMaxRetries
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
	if db.ApplicationName == "" {
		db.ApplicationName = DefaultDBApplicationName
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = DefaultDBConnectTimeout
	}
}

func setDecimal(d *decimal.Decimal, def decimal.Decimal) {
	if d.IsZero() {
		*d = def
	}
}
