package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/wolfmystrix/mystrix-console/internal/blob/s3"
	"github.com/wolfmystrix/mystrix-console/internal/cache/redis"
	"github.com/wolfmystrix/mystrix-console/internal/config"
	"github.com/wolfmystrix/mystrix-console/internal/crypto"
	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
	"github.com/wolfmystrix/mystrix-console/internal/notify"
	"github.com/wolfmystrix/mystrix-console/internal/platform/mystrix"
	"github.com/wolfmystrix/mystrix-console/internal/pnl"
	"github.com/wolfmystrix/mystrix-console/internal/store/postgres"
)

// priceCacheTTL expires quotes for symbols that stop being refreshed after
// their position leaves the ledger.
const priceCacheTTL = 5 * time.Minute

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Journal domain.TradeJournal
	Signals domain.SignalLog
	Audit   domain.AuditStore

	// Caches
	PriceCache domain.PriceCache
	Overrides  domain.OverrideStore
	Series     domain.SeriesStore
	SignalBus  domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Backend
	Backend *mystrix.Client

	// Notifications
	Notifier *notify.Notifier

	// Runtime state
	Ledger   *ledger.Ledger
	Recorder *pnl.Recorder
}

// needsPostgres returns true for modes that journal to the database.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "archive", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that export archives to object storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that journal) ---
	var (
		tradeStore  *postgres.TradeStore
		signalStore *postgres.SignalStore
	)
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		tradeStore = postgres.NewTradeStore(pool)
		signalStore = postgres.NewSignalStore(pool)
		deps.Journal = tradeStore
		deps.Signals = signalStore
		deps.Audit = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient, priceCacheTTL)
	deps.Overrides = redis.NewOverrideCache(redisClient)
	deps.Series = redis.NewSeriesCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if tradeStore != nil && signalStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, tradeStore, signalStore, deps.Audit)
		}
	}

	// --- Backend client ---
	backend := mystrix.New(cfg.Backend.BaseURL, cfg.Backend.Timeout.Duration).
		WithScanParams(cfg.Scan.Threshold, cfg.Scan.MaxEvents)
	if cfg.Venue.ApiKey != "" || cfg.Venue.EncryptedCredsPath != "" {
		creds, err := crypto.LoadCredentials(crypto.CredsConfig{
			ApiKey:             cfg.Venue.ApiKey,
			ApiSecret:          cfg.Venue.ApiSecret,
			EncryptedCredsPath: cfg.Venue.EncryptedCredsPath,
			Password:           cfg.Venue.CredsPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: venue credentials: %w", err)
		}
		backend = backend.WithCredentials(creds)
	}
	deps.Backend = backend

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Runtime state ---
	deps.Ledger = ledger.New(logger)
	if overrides, err := deps.Overrides.ListOverrides(ctx); err != nil {
		logger.WarnContext(ctx, "wire: restore stop overrides failed",
			slog.String("error", err.Error()),
		)
	} else if len(overrides) > 0 {
		deps.Ledger.RestoreOverrides(overrides)
	}

	deps.Recorder = pnl.New(deps.Series, logger)
	for _, series := range []string{"paper", "live"} {
		if err := deps.Recorder.Restore(ctx, series); err != nil {
			logger.WarnContext(ctx, "wire: restore pnl series failed",
				slog.String("mode", series),
				slog.String("error", err.Error()),
			)
		}
	}

	return deps, cleanup, nil
}
