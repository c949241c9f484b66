// Package config defines the top-level configuration for the MystriX trading
// console and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MYSTRIX_* environment variables.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Venue    VenueConfig    `toml:"venue"`
	Paper    PaperConfig    `toml:"paper"`
	Scan     ScanConfig     `toml:"scan"`
	Router   RouterConfig   `toml:"router"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BackendConfig holds the MystriX backend API endpoint parameters.
type BackendConfig struct {
	BaseURL       string   `toml:"base_url"`
	Timeout       duration `toml:"timeout"`
	ScanTimeout   duration `toml:"scan_timeout"`
	DemoTimeout   duration `toml:"demo_timeout"`
	FetchInterval duration `toml:"fetch_interval"`
	Cooldown      duration `toml:"cooldown"`
}

// VenueConfig holds exchange credentials and live-trading switches.
type VenueConfig struct {
	ApiKey               string `toml:"api_key"`
	ApiSecret            string `toml:"api_secret"`
	EncryptedCredsPath   string `toml:"encrypted_creds_path"`
	CredsPassword        string `toml:"creds_password"`
	AllowLiveClose       bool   `toml:"allow_live_close"`
	AllowLiveTradingStop bool   `toml:"allow_live_trading_stop"`
}

// PaperConfig holds the paper-trading simulator parameters.
type PaperConfig struct {
	Enabled     bool    `toml:"enabled"`
	InitBalance float64 `toml:"init_balance"`
}

// ScanConfig holds scanner polling parameters.
type ScanConfig struct {
	Interval         duration `toml:"interval"`
	PriceInterval    duration `toml:"price_interval"`
	BalanceInterval  duration `toml:"balance_interval"`
	UniverseInterval duration `toml:"universe_interval"`
	MaxAssets        int      `toml:"max_assets"`
	Threshold        float64  `toml:"threshold"`
	MaxEvents        int      `toml:"max_events"`
	Symbols          []string `toml:"symbols"`
}

// RouterConfig holds auto-trade routing parameters.
type RouterConfig struct {
	Enabled      bool     `toml:"enabled"`
	MaxEquityPct float64  `toml:"max_equity_pct"`
	Leverage     float64  `toml:"leverage"`
	MaxAge       duration `toml:"max_age"`
}

// PostgresConfig holds PostgreSQL connection parameters for the journal.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for journal archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:       "https://api.wolfmystrix.in",
			Timeout:       duration{10 * time.Second},
			ScanTimeout:   duration{20 * time.Second},
			DemoTimeout:   duration{8 * time.Second},
			FetchInterval: duration{4 * time.Second},
			Cooldown:      duration{60 * time.Second},
		},
		Paper: PaperConfig{
			Enabled:     true,
			InitBalance: 10_000,
		},
		Scan: ScanConfig{
			Interval:         duration{5 * time.Second},
			PriceInterval:    duration{15 * time.Second},
			BalanceInterval:  duration{15 * time.Second},
			UniverseInterval: duration{300 * time.Second},
			MaxAssets:        20,
			Threshold:        0.65,
			MaxEvents:        3,
			Symbols:          []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
		},
		Router: RouterConfig{
			Enabled:      false,
			MaxEquityPct: 0.02,
			Leverage:     1,
			MaxAge:       duration{30 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "mystrix",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mystrix-journal",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8090,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"order_routed", "position_closed", "stops_updated", "error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"trade":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, trade, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Backend
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend: base_url must not be empty")
	}
	if c.Backend.Timeout.Duration <= 0 {
		errs = append(errs, "backend: timeout must be > 0")
	}
	if c.Backend.ScanTimeout.Duration <= 0 {
		errs = append(errs, "backend: scan_timeout must be > 0")
	}

	// Venue — credentials are only required when live trading is actually on.
	needsVenue := !c.Paper.Enabled && (strings.ToLower(c.Mode) == "trade" || strings.ToLower(c.Mode) == "full")
	if needsVenue {
		if c.Venue.ApiKey == "" && c.Venue.EncryptedCredsPath == "" {
			errs = append(errs, "venue: either api_key or encrypted_creds_path must be set for live "+c.Mode+" mode")
		}
		if c.Venue.EncryptedCredsPath != "" && c.Venue.CredsPassword == "" {
			errs = append(errs, "venue: creds_password is required when encrypted_creds_path is set")
		}
	}

	// Paper
	if c.Paper.Enabled && c.Paper.InitBalance <= 0 {
		errs = append(errs, "paper: init_balance must be > 0 when paper trading is enabled")
	}

	// Scan
	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}
	if c.Scan.PriceInterval.Duration <= 0 {
		errs = append(errs, "scan: price_interval must be > 0")
	}
	if c.Scan.MaxAssets < 1 {
		errs = append(errs, "scan: max_assets must be >= 1")
	}
	if c.Scan.Threshold < 0 || c.Scan.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("scan: threshold must be within [0, 1], got %g", c.Scan.Threshold))
	}
	if c.Scan.MaxEvents < 1 {
		errs = append(errs, "scan: max_events must be >= 1")
	}

	// Router
	if c.Router.Enabled {
		if c.Router.MaxEquityPct <= 0 {
			errs = append(errs, "router: max_equity_pct must be > 0 when routing is enabled")
		}
		if c.Router.MaxAge.Duration <= 0 {
			errs = append(errs, "router: max_age must be > 0 when routing is enabled")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only checked for modes that archive.
	if strings.ToLower(c.Mode) == "archive" || strings.ToLower(c.Mode) == "full" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
