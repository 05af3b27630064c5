package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	// Runtime
	AppEnv   string
	AppName  string
	LogLevel string

	// Secrets (from .env)
	CMCAPIKey       string
	APIKey          string
	WebhookURL      string
	CORSAllowOrigin string

	// Providers
	CMCBaseURL       string
	CoinGeckoBaseURL string
	HTTPTimeout      time.Duration

	// Price series retry
	SeriesRetryAttempts int
	SeriesRetryBase     time.Duration

	// Synthetic series
	SyntheticPoints     int
	SyntheticVolatility float64

	// Currency
	INRPerUSD float64
	USDPerBTC float64

	// Polling
	PricePollInterval    time.Duration
	GlobalPollInterval   time.Duration
	TrendingPollInterval time.Duration
	WatchAssets          []string

	// Cache
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Local persisted state
	SQLitePath  string
	DatabaseURL string

	// API
	APIPort int

	// Simulated wallet
	WalletInitialUSD      float64
	MaxTradeUSD           float64
	MaxDailyTrades        int
	PortfolioAlertPercent float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   strings.ToLower(envStr("APP_ENV", "development")),
		AppName:  envStr("APP_NAME", "CryptoDash"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		CMCAPIKey:       envStr("CMC_API_KEY", ""),
		APIKey:          envStr("API_KEY", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		CMCBaseURL:       envStr("CMC_BASE_URL", "https://pro-api.coinmarketcap.com"),
		CoinGeckoBaseURL: envStr("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		HTTPTimeout:      envSeconds("HTTP_TIMEOUT_SECONDS", 10),

		SeriesRetryAttempts: envInt("SERIES_RETRY_ATTEMPTS", 3),
		SeriesRetryBase:     time.Duration(envInt("SERIES_RETRY_BASE_MS", 1000)) * time.Millisecond,

		SyntheticPoints:     envInt("SYNTHETIC_POINTS", 0),
		SyntheticVolatility: envFloat("SYNTHETIC_VOLATILITY", 0.02),

		INRPerUSD: envFloat("INR_PER_USD", 83.5),
		USDPerBTC: envFloat("USD_PER_BTC", 60000),

		PricePollInterval:    envSeconds("PRICE_POLL_SECONDS", 30),
		GlobalPollInterval:   envSeconds("GLOBAL_POLL_SECONDS", 60),
		TrendingPollInterval: time.Duration(envInt("TRENDING_POLL_MINUTES", 5)) * time.Minute,
		WatchAssets:          envList("WATCH_ASSETS", []string{"bitcoin", "ethereum"}),

		CacheTTL:      envSeconds("CACHE_TTL_SECONDS", 60),
		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		SQLitePath:  envStr("SQLITE_PATH", "cryptodash.db"),
		DatabaseURL: envStr("DATABASE_URL", ""),

		APIPort: envInt("API_PORT", 3001),

		WalletInitialUSD:      envFloat("WALLET_INITIAL_USD", 1000),
		MaxTradeUSD:           envFloat("MAX_TRADE_USD", 0),
		MaxDailyTrades:        envInt("MAX_DAILY_TRADES", 0),
		PortfolioAlertPercent: envFloat("PORTFOLIO_ALERT_PERCENT", 0),
	}

	return cfg, nil
}

func (c *Config) Production() bool {
	return c.AppEnv == EnvProduction
}

func (c *Config) Validate() []error {
	var errs []error

	if c.SeriesRetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("SERIES_RETRY_ATTEMPTS must be positive"))
	}
	if c.INRPerUSD <= 0 || c.USDPerBTC <= 0 {
		errs = append(errs, fmt.Errorf("INR_PER_USD and USD_PER_BTC must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive"))
	}
	if c.WalletInitialUSD < 0 {
		errs = append(errs, fmt.Errorf("WALLET_INITIAL_USD cannot be negative"))
	}
	if c.SyntheticVolatility < 0 {
		errs = append(errs, fmt.Errorf("SYNTHETIC_VOLATILITY cannot be negative"))
	}

	return errs
}

// Warnings lists settings that are legal but probably not what an operator
// wants. They are printed, never fatal.
func (c *Config) Warnings() []string {
	var warns []string
	if c.CMCAPIKey == "" {
		warns = append(warns, "CMC_API_KEY not set, CoinGecko will serve every request")
	}
	if c.APIKey == "" {
		warns = append(warns, "API_KEY not set, REST API has no authentication")
	}
	if c.Production() && c.RedisAddr == "" {
		warns = append(warns, "REDIS_ADDR not set in production, query cache is per-process")
	}
	return warns
}

func (c *Config) Print() {
	fmt.Printf("=== %s Configuration ===\n", c.AppName)
	fmt.Printf("Environment: %s\n", c.AppEnv)
	if c.Production() {
		fmt.Println("  Synthetic price series: disabled")
	} else {
		fmt.Println("  Synthetic price series: enabled as last fallback")
	}
	fmt.Println("--------------------------------------")
	fmt.Printf("Primary provider:   CoinMarketCap (%s)\n", boolLabel(c.CMCAPIKey != "", "configured", "not set"))
	fmt.Printf("Secondary provider: CoinGecko (%s)\n", c.CoinGeckoBaseURL)
	fmt.Printf("HTTP timeout: %s\n", c.HTTPTimeout)
	fmt.Printf("Series retry: %d attempts from %s\n", c.SeriesRetryAttempts, c.SeriesRetryBase)
	fmt.Println("--------------------------------------")
	fmt.Printf("Polling: price %s | global %s | trending %s\n",
		c.PricePollInterval, c.GlobalPollInterval, c.TrendingPollInterval)
	fmt.Printf("Watched assets: %s\n", strings.Join(c.WatchAssets, ", "))
	fmt.Printf("Query cache: %s (ttl %s)\n", boolLabel(c.RedisAddr != "", "redis "+c.RedisAddr, "memory"), c.CacheTTL)
	fmt.Printf("Session store: %s\n", boolLabel(c.DatabaseURL != "", "postgres", "sqlite "+c.SQLitePath))
	fmt.Println("--------------------------------------")
	fmt.Printf("Rates: 1 USD = %.2f INR | 1 BTC = %.0f USD\n", c.INRPerUSD, c.USDPerBTC)
	fmt.Printf("Wallet: $%.2f initial cash\n", c.WalletInitialUSD)
	fmt.Println("======================================")
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
