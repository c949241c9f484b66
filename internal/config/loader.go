package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MYSTRIX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MYSTRIX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Backend ──
	setStr(&cfg.Backend.BaseURL, "MYSTRIX_BACKEND_BASE_URL")
	setDuration(&cfg.Backend.Timeout, "MYSTRIX_BACKEND_TIMEOUT")
	setDuration(&cfg.Backend.ScanTimeout, "MYSTRIX_BACKEND_SCAN_TIMEOUT")
	setDuration(&cfg.Backend.DemoTimeout, "MYSTRIX_BACKEND_DEMO_TIMEOUT")
	setDuration(&cfg.Backend.FetchInterval, "MYSTRIX_BACKEND_FETCH_INTERVAL")
	setDuration(&cfg.Backend.Cooldown, "MYSTRIX_BACKEND_COOLDOWN")

	// ── Venue ──
	setStr(&cfg.Venue.ApiKey, "MYSTRIX_VENUE_API_KEY")
	setStr(&cfg.Venue.ApiSecret, "MYSTRIX_VENUE_API_SECRET")
	setStr(&cfg.Venue.EncryptedCredsPath, "MYSTRIX_VENUE_ENCRYPTED_CREDS_PATH")
	setStr(&cfg.Venue.CredsPassword, "MYSTRIX_VENUE_CREDS_PASSWORD")
	setBool(&cfg.Venue.AllowLiveClose, "MYSTRIX_VENUE_ALLOW_LIVE_CLOSE")
	setBool(&cfg.Venue.AllowLiveTradingStop, "MYSTRIX_VENUE_ALLOW_LIVE_TRADING_STOP")

	// ── Paper ──
	setBool(&cfg.Paper.Enabled, "MYSTRIX_PAPER_ENABLED")
	setFloat64(&cfg.Paper.InitBalance, "MYSTRIX_PAPER_INIT_BALANCE")

	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "MYSTRIX_SCAN_INTERVAL")
	setDuration(&cfg.Scan.PriceInterval, "MYSTRIX_SCAN_PRICE_INTERVAL")
	setDuration(&cfg.Scan.BalanceInterval, "MYSTRIX_SCAN_BALANCE_INTERVAL")
	setDuration(&cfg.Scan.UniverseInterval, "MYSTRIX_SCAN_UNIVERSE_INTERVAL")
	setInt(&cfg.Scan.MaxAssets, "MYSTRIX_SCAN_MAX_ASSETS")
	setFloat64(&cfg.Scan.Threshold, "MYSTRIX_SCAN_THRESHOLD")
	setInt(&cfg.Scan.MaxEvents, "MYSTRIX_SCAN_MAX_EVENTS")
	setStringSlice(&cfg.Scan.Symbols, "MYSTRIX_SCAN_SYMBOLS")

	// ── Router ──
	setBool(&cfg.Router.Enabled, "MYSTRIX_ROUTER_ENABLED")
	setFloat64(&cfg.Router.MaxEquityPct, "MYSTRIX_ROUTER_MAX_EQUITY_PCT")
	setFloat64(&cfg.Router.Leverage, "MYSTRIX_ROUTER_LEVERAGE")
	setDuration(&cfg.Router.MaxAge, "MYSTRIX_ROUTER_MAX_AGE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MYSTRIX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MYSTRIX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MYSTRIX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MYSTRIX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MYSTRIX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MYSTRIX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MYSTRIX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MYSTRIX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MYSTRIX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MYSTRIX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MYSTRIX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MYSTRIX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MYSTRIX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MYSTRIX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MYSTRIX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MYSTRIX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MYSTRIX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MYSTRIX_S3_REGION")
	setStr(&cfg.S3.Bucket, "MYSTRIX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MYSTRIX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MYSTRIX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MYSTRIX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MYSTRIX_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "MYSTRIX_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MYSTRIX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MYSTRIX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MYSTRIX_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MYSTRIX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MYSTRIX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MYSTRIX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MYSTRIX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MYSTRIX_MODE")
	setStr(&cfg.LogLevel, "MYSTRIX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
