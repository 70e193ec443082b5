package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-engine
  environment: staging
database:
  driver: postgres
  postgres:
    host: localhost
    port: 5432
    name: test_db
    user: testuser
    password: testpass
price:
  base_price: 20.5
  volatility_band: 0.05
  reset_hour: 0
mining:
  base_reward: "0.25"
  interval: 2h
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-engine" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-engine")
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
	if !cfg.Price.BasePrice.Equal(decimal.RequireFromString("20.5")) {
		t.Errorf("Price.BasePrice = %s, want 20.5", cfg.Price.BasePrice)
	}
	if cfg.Price.ResetHour == nil || *cfg.Price.ResetHour != 0 {
		t.Errorf("Price.ResetHour = %v, want 0", cfg.Price.ResetHour)
	}
	if !cfg.Mining.BaseReward.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("Mining.BaseReward = %s, want 0.25", cfg.Mining.BaseReward)
	}
	if cfg.Mining.Interval != 2*time.Hour {
		t.Errorf("Mining.Interval = %v, want 2h", cfg.Mining.Interval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-engine
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_PRESET_SECRET", "from-process")
	os.Unsetenv("TEST_DOTENV_SECRET")
	t.Cleanup(func() { os.Unsetenv("TEST_DOTENV_SECRET") })

	env := "TEST_DOTENV_SECRET=from-dotenv\nTEST_PRESET_SECRET=overridden\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	yaml := `
instance:
  id: ${TEST_PRESET_SECRET}
auth:
  secret: ${TEST_DOTENV_SECRET}
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Secret != "from-dotenv" {
		t.Errorf("Auth.Secret = %q, want %q", cfg.Auth.Secret, "from-dotenv")
	}
	if cfg.Instance.ID != "from-process" {
		t.Errorf("Instance.ID = %q, want process env to win", cfg.Instance.ID)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-engine
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Database.Driver != DefaultDriver {
		t.Errorf("Database.Driver = %q, want default %q", cfg.Database.Driver, DefaultDriver)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Database.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("Database.Postgres.MaxConns = %d, want default %d", cfg.Database.Postgres.MaxConns, DefaultMaxConns)
	}
	if cfg.Database.Postgres.ApplicationName != DefaultDBApplicationName {
		t.Errorf("Database.Postgres.ApplicationName = %q, want default %q", cfg.Database.Postgres.ApplicationName, DefaultDBApplicationName)
	}
	if cfg.Database.Postgres.ConnectTimeout != DefaultDBConnectTimeout {
		t.Errorf("Database.Postgres.ConnectTimeout = %v, want default %v", cfg.Database.Postgres.ConnectTimeout, DefaultDBConnectTimeout)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}

	decimals := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"Price.BasePrice", cfg.Price.BasePrice, "13"},
		{"Price.VolatilityBand", cfg.Price.VolatilityBand, "0.08"},
		{"Price.DailyIncrement", cfg.Price.DailyIncrement, "1"},
		{"Price.DriftStrength", cfg.Price.DriftStrength, "0.08"},
		{"Price.MinPrice", cfg.Price.MinPrice, "0.01"},
		{"Mining.BaseReward", cfg.Mining.BaseReward, "0.15"},
		{"Mining.TotalSupply", cfg.Mining.TotalSupply, "1000000"},
		{"Mining.ReferralBoost", cfg.Mining.ReferralBoost, "0.1"},
		{"Mining.ReferralBoostCap", cfg.Mining.ReferralBoostCap, "0"},
	}
	for _, d := range decimals {
		if !d.got.Equal(decimal.RequireFromString(d.want)) {
			t.Errorf("%s = %s, want default %s", d.name, d.got, d.want)
		}
	}

	if cfg.Price.ResetHour == nil || *cfg.Price.ResetHour != DefaultResetHour {
		t.Errorf("Price.ResetHour = %v, want default %d", cfg.Price.ResetHour, DefaultResetHour)
	}
	if cfg.Mining.Interval != DefaultMiningInterval {
		t.Errorf("Mining.Interval = %v, want default %v", cfg.Mining.Interval, DefaultMiningInterval)
	}
	if cfg.Trigger.Schedule != DefaultTriggerSchedule {
		t.Errorf("Trigger.Schedule = %q, want default %q", cfg.Trigger.Schedule, DefaultTriggerSchedule)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Instance: InstanceConfig{ID: "test"},
			Database: DatabaseConfig{
				Postgres: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass"},
			},
			Auth: AuthConfig{Secret: "s3cret"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "missing postgres password",
			mutate:  func(c *Config) { c.Database.Postgres.Password = "" },
			wantErr: "database.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.Postgres.MaxConns = 5
				c.Database.Postgres.MinConns = 10
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "memory driver skips postgres",
			mutate: func(c *Config) {
				c.Database.Driver = "memory"
				c.Database.Postgres = DBConfig{}
			},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "sqlite" },
			wantErr: `database.driver must be postgres or memory, got "sqlite"`,
		},
		{
			name:    "missing auth key",
			mutate:  func(c *Config) { c.Auth.Secret = "" },
			wantErr: "auth.secret or auth.public_key_path is required",
		},
		{
			name: "reset hour out of range",
			mutate: func(c *Config) {
				h := 24
				c.Price.ResetHour = &h
			},
			wantErr: "price.reset_hour must be between 0 and 23",
		},
		{
			name:    "volatility band too wide",
			mutate:  func(c *Config) { c.Price.VolatilityBand = decimal.NewFromInt(1) },
			wantErr: "price.volatility_band must be in [0, 1), got 1",
		},
		{
			name:    "negative referral cap",
			mutate:  func(c *Config) { c.Mining.ReferralBoostCap = decimal.NewFromInt(-1) },
			wantErr: "mining.referral_boost_cap must be >= 0",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: `logging.level "verbose" is invalid`,
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateArchive(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if err := cfg.ValidateArchive(); err == nil || err.Error() != "archive.bucket is required" {
		t.Errorf("ValidateArchive() error = %v, want bucket required", err)
	}

	cfg.Archive.Bucket = "ticks"
	if err := cfg.ValidateArchive(); err != nil {
		t.Errorf("ValidateArchive() unexpected error: %v", err)
	}

	cfg.Archive.Compression = "brotli"
	if err := cfg.ValidateArchive(); err == nil {
		t.Error("ValidateArchive() expected error for brotli")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
