package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration shared by the engine binaries.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Price      PriceConfig      `yaml:"price"`
	Mining     MiningConfig     `yaml:"mining"`
	Settings   SettingsConfig   `yaml:"settings"`
	Commission CommissionConfig `yaml:"commission"`
	Feed       FeedConfig       `yaml:"feed"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Trigger    TriggerConfig    `yaml:"trigger"`
}

// InstanceConfig identifies this deployment.
type InstanceConfig struct {
	ID          string `yaml:"id"`
	Environment string `yaml:"environment"`
}

// DatabaseConfig selects and configures the ledger store.
type DatabaseConfig struct {
	Driver   string   `yaml:"driver"` // "postgres" or "memory"
	Postgres DBConfig `yaml:"postgres"`
	Migrate  bool     `yaml:"migrate"` // Apply embedded schema on startup
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	ApplicationName string        `yaml:"application_name"` // Shown in pg_stat_activity
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxHistory      int             `yaml:"max_history"` // Upper bound for /api/price/history
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// AuthConfig holds session token settings. Either Secret (HS256) or
// PublicKeyPath (RS256) must be set.
type AuthConfig struct {
	Secret         string        `yaml:"secret"`
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"` // Token issuing only
	Issuer         string        `yaml:"issuer"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// PriceConfig holds price engine parameters.
type PriceConfig struct {
	BasePrice           decimal.Decimal `yaml:"base_price"`
	VolatilityBand      decimal.Decimal `yaml:"volatility_band"`
	DailyIncrement      decimal.Decimal `yaml:"daily_increment"`
	DriftStrength       decimal.Decimal `yaml:"drift_strength"`
	MinPrice            decimal.Decimal `yaml:"min_price"`
	ResetHour           *int            `yaml:"reset_hour"` // UTC; nil means default
	CollaboratorTimeout time.Duration   `yaml:"collaborator_timeout"`
}

// MiningConfig holds mining controller parameters.
type MiningConfig struct {
	BaseReward        decimal.Decimal `yaml:"base_reward"`
	Interval          time.Duration   `yaml:"interval"`
	TotalSupply       decimal.Decimal `yaml:"total_supply"`
	ReferralBoost     decimal.Decimal `yaml:"referral_boost"`     // Per referral
	ReferralBoostCap  decimal.Decimal `yaml:"referral_boost_cap"` // 0 = uncapped
	ReferralCacheTTL  time.Duration   `yaml:"referral_cache_ttl"`
	ReferralCacheSize int             `yaml:"referral_cache_size"`
	Timeout           time.Duration   `yaml:"timeout"`
}

// SettingsConfig holds runtime override refresh settings.
type SettingsConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// CommissionConfig holds referral commission dispatcher settings.
type CommissionConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// FeedConfig holds live WebSocket feed settings.
type FeedConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SendBuffer   int           `yaml:"send_buffer"`
}

// ArchiveConfig holds S3 tick archive settings.
type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // Custom S3-compatible endpoint
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	Compression     string `yaml:"compression"` // snappy, gzip, zstd, none
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TriggerConfig holds external tick scheduler settings.
type TriggerConfig struct {
	URL        string        `yaml:"url"`      // Engine base URL
	Schedule   string        `yaml:"schedule"` // cron spec, e.g. "@every 3s"
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}
