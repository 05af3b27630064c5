package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "HTTP_TIMEOUT_SECONDS", "SERIES_RETRY_ATTEMPTS", "SERIES_RETRY_BASE_MS",
		"INR_PER_USD", "USD_PER_BTC", "WATCH_ASSETS", "WALLET_INITIAL_USD", "PRICE_POLL_SECONDS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Production() {
		t.Fatal("default environment should not be production")
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("HTTPTimeout: got %s", cfg.HTTPTimeout)
	}
	if cfg.SeriesRetryAttempts != 3 || cfg.SeriesRetryBase != time.Second {
		t.Fatalf("series retry: %d / %s", cfg.SeriesRetryAttempts, cfg.SeriesRetryBase)
	}
	if cfg.INRPerUSD != 83.5 || cfg.USDPerBTC != 60000 {
		t.Fatalf("rates: %v / %v", cfg.INRPerUSD, cfg.USDPerBTC)
	}
	if cfg.PricePollInterval != 30*time.Second {
		t.Fatalf("price poll: %s", cfg.PricePollInterval)
	}
	if len(cfg.WatchAssets) != 2 || cfg.WatchAssets[0] != "bitcoin" {
		t.Fatalf("watch assets: %v", cfg.WatchAssets)
	}
	if cfg.WalletInitialUSD != 1000 {
		t.Fatalf("wallet: %v", cfg.WalletInitialUSD)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("defaults should validate, got %v", errs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("WATCH_ASSETS", " solana , ,cardano")
	t.Setenv("SERIES_RETRY_BASE_MS", "250")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "not-a-number")

	cfg, _ := Load()
	if !cfg.Production() {
		t.Fatal("APP_ENV=Production should be production")
	}
	if len(cfg.WatchAssets) != 2 || cfg.WatchAssets[1] != "cardano" {
		t.Fatalf("watch assets: %v", cfg.WatchAssets)
	}
	if cfg.SeriesRetryBase != 250*time.Millisecond {
		t.Fatalf("retry base: %s", cfg.SeriesRetryBase)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("unparseable value should fall back, got %s", cfg.HTTPTimeout)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{SeriesRetryAttempts: 0, INRPerUSD: 0, USDPerBTC: 1, HTTPTimeout: 0, WalletInitialUSD: -1}
	errs := cfg.Validate()
	if len(errs) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(errs), errs)
	}
	for _, e := range errs {
		t.Logf("validation: %v", e)
	}
}
