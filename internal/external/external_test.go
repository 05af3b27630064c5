package external_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/kjannette/cryptodash/internal/external"
	"github.com/kjannette/cryptodash/internal/httputil"
	"github.com/kjannette/cryptodash/internal/models"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func fastRetry() httputil.RetryConfig {
	return httputil.RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
}

func TestCoinGecko_ListAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("order") != "market_cap_desc" || q.Get("page") != "2" || q.Get("per_page") != "50" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"img","current_price":64000.5,
			"market_cap":1.2e12,"market_cap_rank":1,"total_volume":3e10,"price_change_percentage_24h":-1.5,
			"circulating_supply":19e6,"total_supply":21e6,"max_supply":21e6}]`))
	}))
	defer srv.Close()

	cg := external.NewCoinGeckoClient(external.CoinGeckoOptions{BaseURL: srv.URL})
	assets, err := cg.ListAssets(context.Background(), 2, 50)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
	a := assets[0]
	if a.ID != "bitcoin" || a.Symbol != "BTC" || a.MarketCapRank != 1 || a.PriceChangePercent24h != -1.5 {
		t.Fatalf("mapping: %+v", a)
	}
	if a.MaxSupply == nil || *a.MaxSupply != 21e6 {
		t.Fatalf("max supply: %v", a.MaxSupply)
	}
}

func TestCoinGecko_PriceSeriesRetriesWithFreshCacheBuster(t *testing.T) {
	var attempts atomic.Int32
	busters := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		busters <- r.URL.Query().Get("_cb")
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"prices":[[1700000000000,100.5],[1700003600000,101.25]]}`))
	}))
	defer srv.Close()

	cg := external.NewCoinGeckoClient(external.CoinGeckoOptions{BaseURL: srv.URL, SeriesRetry: fastRetry()})
	series, err := cg.PriceSeries(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("PriceSeries: %v", err)
	}
	if len(series.Points) != 2 || series.Points[1].Price != 101.25 || series.Points[0].Timestamp != 1700000000000 {
		t.Fatalf("series: %+v", series)
	}
	if series.Synthetic || series.Source != external.CoinGeckoName {
		t.Fatalf("source: %+v", series)
	}

	close(busters)
	seen := map[string]bool{}
	for cb := range busters {
		if cb == "" {
			t.Fatal("attempt without _cb")
		}
		seen[cb] = true
	}
	t.Logf("attempts=%d distinct cache busters=%d", attempts.Load(), len(seen))
}

func TestCoinGecko_EmptySeriesIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[]}`))
	}))
	defer srv.Close()

	cg := external.NewCoinGeckoClient(external.CoinGeckoOptions{BaseURL: srv.URL, SeriesRetry: fastRetry()})
	_, err := cg.PriceSeries(context.Background(), "bitcoin", 1)
	if !errors.Is(err, external.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestCoinGecko_TrendingUsesNativeScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"coins":[
			{"item":{"id":"pepe","name":"Pepe","symbol":"pepe","market_cap_rank":30,"large":"p.png","score":0,
				"data":{"price_change_percentage_24h":{"usd":12.5}}}},
			{"item":{"id":"sui","name":"Sui","symbol":"sui","market_cap_rank":20,"large":"s.png","score":1}}]}`))
	}))
	defer srv.Close()

	cg := external.NewCoinGeckoClient(external.CoinGeckoOptions{BaseURL: srv.URL})
	coins, err := cg.Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if len(coins) != 2 || coins[0].Rank != 1 || coins[1].Rank != 2 {
		t.Fatalf("ranks: %+v", coins)
	}
	if coins[0].ScoreSource != models.ScoreNative || coins[0].PriceChangePercent24h != 12.5 || coins[0].Symbol != "PEPE" {
		t.Fatalf("mapping: %+v", coins[0])
	}
}

func TestCoinGecko_LatestPriceRejectsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cg := external.NewCoinGeckoClient(external.CoinGeckoOptions{BaseURL: srv.URL})
	if _, err := cg.LatestPrice(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing price")
	}
}

func newCMCServer(t *testing.T, handler http.HandlerFunc) *external.CoinMarketCapClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CMC_PRO_API_KEY") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return external.NewCoinMarketCapClient(external.CoinMarketCapOptions{APIKey: "test-key", BaseURL: srv.URL})
}

func TestCMC_ListAssetsFieldMapping(t *testing.T) {
	cmc := newCMCServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/v1/cryptocurrency/listings/latest" || q.Get("start") != "101" || q.Get("limit") != "100" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"status":{"error_code":0},"data":[{"id":1027,"name":"Ethereum","symbol":"ETH","slug":"ethereum",
			"cmc_rank":2,"circulating_supply":120e6,"total_supply":120e6,"max_supply":null,
			"quote":{"USD":{"price":3100,"volume_24h":1.5e10,"percent_change_24h":2.25,"market_cap":3.7e11}}}]}`))
	})

	assets, err := cmc.ListAssets(context.Background(), 2, 100)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	a := assets[0]
	if a.ID != "ethereum" || a.MarketCapRank != 2 || a.CurrentPrice != 3100 || a.TotalVolume != 1.5e10 || a.PriceChangePercent24h != 2.25 {
		t.Fatalf("mapping: %+v", a)
	}
	if a.Image != "https://s2.coinmarketcap.com/static/img/coins/64x64/1027.png" {
		t.Fatalf("image: %s", a.Image)
	}
	if a.MaxSupply != nil {
		t.Fatalf("null max supply should stay nil: %v", *a.MaxSupply)
	}
}

func TestCMC_GlobalSnapshot(t *testing.T) {
	cmc := newCMCServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"total_cryptocurrencies":9000,"active_exchanges":700,"btc_dominance":52.1,"eth_dominance":17.3,
			"quote":{"USD":{"total_market_cap":2.4e12,"total_volume_24h":9e10,"total_market_cap_yesterday_percentage_change":-0.8}}}}`))
	})

	g, err := cmc.GlobalSnapshot(context.Background())
	if err != nil {
		t.Fatalf("GlobalSnapshot: %v", err)
	}
	if g.ActiveCryptocurrencies != 9000 || g.Markets != 700 || g.MarketCapPercentage["btc"] != 52.1 || g.MarketCapChangePercent24h != -0.8 {
		t.Fatalf("mapping: %+v", g)
	}
}

func TestCMC_AssetDetailResolvesSlugOnce(t *testing.T) {
	var lookups atomic.Int32
	cmc := newCMCServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/cryptocurrency/info":
			lookups.Add(1)
			if r.URL.Query().Get("slug") != "bitcoin" {
				t.Errorf("slug: %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"data":{"1":{"id":1,"name":"Bitcoin","symbol":"BTC","slug":"bitcoin","description":"Digital gold",
				"logo":"logo.png","urls":{"website":["https://bitcoin.org"],"explorer":["https://blockchain.info"]}}}}`))
		case "/v1/cryptocurrency/quotes/latest":
			if r.URL.Query().Get("id") != "1" {
				t.Errorf("quote id: %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"data":{"1":{"id":1,"name":"Bitcoin","symbol":"BTC","slug":"bitcoin","cmc_rank":1,
				"quote":{"USD":{"price":65000,"percent_change_24h":1}}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	d, err := cmc.AssetDetail(ctx, "bitcoin")
	if err != nil {
		t.Fatalf("AssetDetail: %v", err)
	}
	if d.ID != "bitcoin" || d.CurrentPrice != 65000 || d.Description != "Digital gold" || d.Homepage != "https://bitcoin.org" {
		t.Fatalf("detail: %+v", d)
	}

	price, err := cmc.LatestPrice(ctx, "bitcoin")
	if err != nil || price != 65000 {
		t.Fatalf("LatestPrice: %v %v", price, err)
	}
	if lookups.Load() != 1 {
		t.Fatalf("slug should be resolved once, got %d lookups", lookups.Load())
	}
}

func TestCMC_LookupFailureIsLookupError(t *testing.T) {
	cmc := newCMCServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":{"error_code":400,"error_message":"Invalid value for \"slug\""}}`))
	})

	_, err := cmc.AssetDetail(context.Background(), "not-a-coin")
	var le *external.LookupError
	if !errors.As(err, &le) || le.Slug != "not-a-coin" {
		t.Fatalf("expected LookupError, got %v", err)
	}
	var pe *external.ProviderError
	if !errors.As(err, &pe) || pe.Provider != external.CoinMarketCapName {
		t.Fatalf("expected ProviderError wrapper, got %v", err)
	}
	t.Logf("lookup failure: %v", err)
}

func TestCMC_TrendingScoreIsAbsChange(t *testing.T) {
	cmc := newCMCServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sort") != "percent_change_24h" || q.Get("sort_dir") != "desc" || q.Get("limit") != "10" {
			t.Errorf("query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data":[{"id":5,"slug":"a","symbol":"A","quote":{"USD":{"percent_change_24h":40}}},
			{"id":6,"slug":"b","symbol":"B","quote":{"USD":{"percent_change_24h":-55}}}]}`))
	})

	coins, err := cmc.Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if coins[1].Score != 55 || coins[1].ScoreSource != models.ScoreAbsChange24h || coins[1].Rank != 2 {
		t.Fatalf("trending: %+v", coins[1])
	}
}

func TestCMC_UnconfiguredAndUnsupported(t *testing.T) {
	cmc := external.NewCoinMarketCapClient(external.CoinMarketCapOptions{})
	if cmc.Configured() {
		t.Fatal("no key should mean unconfigured")
	}
	if _, err := cmc.ListAssets(context.Background(), 1, 10); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := cmc.PriceSeries(context.Background(), "bitcoin", 7); !errors.Is(err, external.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestSynthetic_SeriesShape(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	gen := external.NewSyntheticSeries(external.SyntheticOptions{Points: 50, Seed: 42, Now: func() time.Time { return now }})

	s, err := gen.PriceSeries(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("PriceSeries: %v", err)
	}
	if len(s.Points) != 50 || !s.Synthetic {
		t.Fatalf("expected 50 synthetic points, got %d (synthetic=%v)", len(s.Points), s.Synthetic)
	}
	if !s.Ascending() {
		t.Fatal("timestamps must strictly ascend")
	}
	if s.Points[len(s.Points)-1].Timestamp >= now.UnixMilli() {
		t.Fatal("points must lie before now")
	}
	for _, p := range s.Points {
		if p.Price < 100 {
			t.Fatalf("price below floor: %v", p.Price)
		}
	}
	first, last := s.Points[0].Timestamp, s.Points[49].Timestamp
	if span := time.Duration(last-first) * time.Millisecond; span < 6*24*time.Hour {
		t.Fatalf("series should span about 7 days, spans %s", span)
	}
}

func TestSynthetic_DefaultPointsAndProduction(t *testing.T) {
	gen := external.NewSyntheticSeries(external.SyntheticOptions{})
	s, err := gen.PriceSeries(context.Background(), "eth", 30)
	if err != nil || len(s.Points) != 30*24 {
		t.Fatalf("default points: %v %v", len(s.Points), err)
	}

	prod := external.NewSyntheticSeries(external.SyntheticOptions{Production: true})
	if _, err := prod.PriceSeries(context.Background(), "eth", 7); !errors.Is(err, external.ErrSyntheticDisabled) {
		t.Fatalf("production must refuse, got %v", err)
	}
}

func TestCoinGeckoLiveBitcoinPrice(t *testing.T) {
	if os.Getenv("LIVE_API_TESTS") == "" {
		t.Skip("LIVE_API_TESTS not set, skipping")
	}
	cg := external.NewCoinGeckoClient(external.CoinGeckoOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	price, err := cg.LatestPrice(ctx, "bitcoin")
	if err != nil {
		t.Fatalf("LatestPrice: %v", err)
	}
	if price <= 0 {
		t.Fatalf("expected positive price, got %f", price)
	}
	t.Logf("BTC price: $%.2f", price)
}

func TestCMCLiveListings(t *testing.T) {
	key := os.Getenv("CMC_API_KEY")
	if key == "" || os.Getenv("LIVE_API_TESTS") == "" {
		t.Skip("CMC_API_KEY or LIVE_API_TESTS not set, skipping")
	}
	cmc := external.NewCoinMarketCapClient(external.CoinMarketCapOptions{APIKey: key})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	assets, err := cmc.ListAssets(ctx, 1, 5)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	for _, a := range assets {
		if !strings.Contains(a.Image, "coinmarketcap") {
			t.Fatalf("image: %s", a.Image)
		}
		t.Logf("#%d %s %s $%.2f", a.MarketCapRank, a.Symbol, a.ID, a.CurrentPrice)
	}
}
