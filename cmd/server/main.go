package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/kjannette/cryptodash/internal/api"
	"github.com/kjannette/cryptodash/internal/cache"
	"github.com/kjannette/cryptodash/internal/config"
	"github.com/kjannette/cryptodash/internal/currency"
	"github.com/kjannette/cryptodash/internal/db"
	"github.com/kjannette/cryptodash/internal/external"
	"github.com/kjannette/cryptodash/internal/httputil"
	"github.com/kjannette/cryptodash/internal/logging"
	"github.com/kjannette/cryptodash/internal/market"
	"github.com/kjannette/cryptodash/internal/notifications"
	"github.com/kjannette/cryptodash/internal/portfolio"
	"github.com/kjannette/cryptodash/internal/risk"
	"github.com/kjannette/cryptodash/internal/scheduler"
	"github.com/kjannette/cryptodash/internal/session"
	"github.com/kjannette/cryptodash/internal/storage"
)

const banner = `
╔══════════════════════════════════════╗
║          CryptoDash v0.3             ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		os.Exit(1)
	}

	cfg.Print()
	logger := logging.NewLogger(cfg.LogLevel)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]func(context.Context) error)

	// Query cache
	var store cache.Store
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, falling back to memory cache", "addr", cfg.RedisAddr, "err", err)
			store = cache.NewMemoryStore(0)
		} else {
			checks["redis"] = rs.Health
			store = rs
		}
	} else {
		store = cache.NewMemoryStore(0)
	}
	defer store.Close()

	// Market data
	client := market.NewClient(market.Options{
		Primary: external.NewCoinMarketCapClient(external.CoinMarketCapOptions{
			APIKey:  cfg.CMCAPIKey,
			BaseURL: cfg.CMCBaseURL,
			Timeout: cfg.HTTPTimeout,
		}),
		Fallback: external.NewCoinGeckoClient(external.CoinGeckoOptions{
			BaseURL: cfg.CoinGeckoBaseURL,
			Timeout: cfg.HTTPTimeout,
			SeriesRetry: httputil.RetryConfig{
				MaxAttempts: cfg.SeriesRetryAttempts,
				BaseDelay:   cfg.SeriesRetryBase,
				MaxDelay:    10 * time.Second,
			},
		}),
		Synthetic: external.NewSyntheticSeries(external.SyntheticOptions{
			Points:     cfg.SyntheticPoints,
			Volatility: cfg.SyntheticVolatility,
			Production: cfg.Production(),
		}),
		Loader: cache.NewLoader(store, logger),
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})

	// Persisted state
	kv, tradeLog, closeDB, err := openStorage(ctx, cfg, logger, checks)
	if err != nil {
		logger.Error("storage unavailable", "err", err)
		os.Exit(1)
	}
	defer closeDB()

	if stats, err := tradeLog.Stats(ctx); err == nil {
		logger.Info("trade journal loaded", "trades", stats.TotalTrades, "buys", stats.BuyCount, "sells", stats.SellCount)
	}

	// Session
	sessions := session.NewStore(kv,
		session.WithProvider(session.MockGoogle{}),
		session.WithProvider(session.MockGitHub{}),
		session.WithLogger(logger),
	)
	if sess, err := sessions.Restore(ctx); err != nil {
		logger.Warn("session restore failed", "err", err)
	} else if sess != nil {
		logger.Info("session restored", "user", sess.User.ID)
	}

	// Wallet
	notify := notifications.NewSender(cfg.WebhookURL, cfg.AppName, logger)
	defer notify.Flush()

	guard := risk.NewGuardian(risk.Limits{
		MaxTradeUSD:      cfg.MaxTradeUSD,
		MaxDailyTrades:   cfg.MaxDailyTrades,
		LossAlertPercent: cfg.PortfolioAlertPercent,
		GainAlertPercent: cfg.PortfolioAlertPercent,
	}, nil)
	wallet := portfolio.NewWallet(cfg.WalletInitialUSD,
		portfolio.WithRisk(guard),
		portfolio.WithNotifier(notify),
		portfolio.WithJournal(tradeLog),
		portfolio.WithLogger(logger),
	)
	guard.SetCounter(wallet)

	// Live updates
	board := scheduler.NewBoard()
	poller := scheduler.NewPoller(logger, scheduler.DashboardJobs(client, board,
		func() []string { return watchList(cfg.WatchAssets, wallet) },
		wallet,
		scheduler.Intervals{
			Prices:   cfg.PricePollInterval,
			Global:   cfg.GlobalPollInterval,
			Trending: cfg.TrendingPollInterval,
		},
	)...)
	poller.Start()

	// API server
	srv := api.NewServer(api.Deps{
		Market:    client,
		Wallet:    wallet,
		Sessions:  sessions,
		History:   tradeLog,
		Converter: currency.NewConverter(currency.Rates{INRPerUSD: cfg.INRPerUSD, USDPerBTC: cfg.USDPerBTC}),
		Board:     board,
		Checks:    checks,
		Logger:    logger,
	}, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server error", "err", err)
			stop()
		}
	}()

	logger.Info("all services started", "env", cfg.AppEnv)
	notify.Send(fmt.Sprintf("%s started (%s)", cfg.AppName, cfg.AppEnv))

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	poller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API shutdown error", "err", err)
	}
	logger.Info("shutdown complete")
}

// openStorage picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger, checks map[string]func(context.Context) error) (storage.KV, storage.TradeLog, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := db.TestConnection(pool, logger); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		checks["database"] = pool.Ping
		return storage.NewPostgresKV(pool), storage.NewPostgresTradeLog(pool), pool.Close, nil
	}

	sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sqlite: %w", err)
	}
	logger.Info("using sqlite", "path", cfg.SQLitePath)
	checks["database"] = sqlDB.PingContext
	return storage.NewSQLiteKV(sqlDB), storage.NewSQLiteTradeLog(sqlDB), func() { sqlDB.Close() }, nil
}

// watchList is the configured assets plus anything currently held.
func watchList(watch []string, wallet *portfolio.Wallet) []string {
	ids := slices.Clone(watch)
	for _, l := range wallet.Holdings() {
		if !slices.Contains(ids, l.AssetID) {
			ids = append(ids, l.AssetID)
		}
	}
	return ids
}
