package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/cryptodash/internal/httputil"
	"github.com/kjannette/cryptodash/internal/models"
)

const (
	CoinGeckoName       = "coingecko"
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
)

type CoinGeckoOptions struct {
	BaseURL     string
	Timeout     time.Duration
	SeriesRetry httputil.RetryConfig
}

// CoinGeckoClient talks to the public CoinGecko v3 API. No key is needed.
type CoinGeckoClient struct {
	baseURL     string
	httpClient  *http.Client
	seriesRetry httputil.RetryConfig
}

func NewCoinGeckoClient(opts CoinGeckoOptions) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCoinGeckoURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SeriesRetry.MaxAttempts <= 0 {
		opts.SeriesRetry = httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    10 * time.Second,
		}
	}
	return &CoinGeckoClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		seriesRetry: opts.SeriesRetry,
	}
}

func (c *CoinGeckoClient) Name() string { return CoinGeckoName }

func (c *CoinGeckoClient) get(ctx context.Context, op, path string, q func() url.Values, retry httputil.RetryConfig, out any) error {
	err := getJSON(ctx, c.httpClient, retry, func() (*http.Request, error) {
		u := c.baseURL + path
		if q != nil {
			u += "?" + q().Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
	if err != nil {
		return &ProviderError{Provider: CoinGeckoName, Op: op, Err: err}
	}
	return nil
}

func static(v url.Values) func() url.Values {
	return func() url.Values { return v }
}

type cgMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             float64  `json:"current_price"`
	MarketCap                float64  `json:"market_cap"`
	MarketCapRank            int      `json:"market_cap_rank"`
	TotalVolume              float64  `json:"total_volume"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
	CirculatingSupply        float64  `json:"circulating_supply"`
	TotalSupply              float64  `json:"total_supply"`
	MaxSupply                *float64 `json:"max_supply"`
}

func (m cgMarket) asset() models.Asset {
	return models.Asset{
		ID:                    m.ID,
		Symbol:                strings.ToUpper(m.Symbol),
		Name:                  m.Name,
		Image:                 m.Image,
		CurrentPrice:          m.CurrentPrice,
		PriceChangePercent24h: m.PriceChangePercentage24h,
		MarketCap:             m.MarketCap,
		TotalVolume:           m.TotalVolume,
		CirculatingSupply:     m.CirculatingSupply,
		TotalSupply:           m.TotalSupply,
		MaxSupply:             m.MaxSupply,
		MarketCapRank:         m.MarketCapRank,
	}
}

func (c *CoinGeckoClient) ListAssets(ctx context.Context, page, perPage int) ([]models.Asset, error) {
	var rows []cgMarket
	err := c.get(ctx, "listAssets", "/coins/markets", static(url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(perPage)},
		"page":        {strconv.Itoa(page)},
		"sparkline":   {"false"},
		"locale":      {"en"},
	}), httputil.NoRetry, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]models.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.asset()
	}
	return out, nil
}

func (c *CoinGeckoClient) GlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error) {
	var body struct {
		Data struct {
			ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
			Markets                         int                `json:"markets"`
			TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
			TotalVolume                     map[string]float64 `json:"total_volume"`
			MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
			MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
		} `json:"data"`
	}
	if err := c.get(ctx, "globalSnapshot", "/global", nil, httputil.NoRetry, &body); err != nil {
		return nil, err
	}
	d := body.Data
	if d.ActiveCryptocurrencies == 0 && len(d.TotalMarketCap) == 0 {
		return nil, &ProviderError{Provider: CoinGeckoName, Op: "globalSnapshot", Err: ErrEmptyResult}
	}
	return &models.GlobalSnapshot{
		ActiveCryptocurrencies:    d.ActiveCryptocurrencies,
		Markets:                   d.Markets,
		TotalMarketCapUSD:         d.TotalMarketCap["usd"],
		TotalVolumeUSD:            d.TotalVolume["usd"],
		MarketCapChangePercent24h: d.MarketCapChangePercentage24hUSD,
		MarketCapPercentage:       d.MarketCapPercentage,
		Source:                    CoinGeckoName,
	}, nil
}

func (c *CoinGeckoClient) AssetDetail(ctx context.Context, id string) (*models.AssetDetail, error) {
	var body struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Image  struct {
			Large string `json:"large"`
		} `json:"image"`
		Description struct {
			En string `json:"en"`
		} `json:"description"`
		Links struct {
			Homepage       []string `json:"homepage"`
			BlockchainSite []string `json:"blockchain_site"`
		} `json:"links"`
		MarketCapRank int `json:"market_cap_rank"`
		MarketData    struct {
			CurrentPrice             map[string]float64 `json:"current_price"`
			MarketCap                map[string]float64 `json:"market_cap"`
			TotalVolume              map[string]float64 `json:"total_volume"`
			High24h                  map[string]float64 `json:"high_24h"`
			Low24h                   map[string]float64 `json:"low_24h"`
			ATH                      map[string]float64 `json:"ath"`
			ATL                      map[string]float64 `json:"atl"`
			PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
			CirculatingSupply        float64            `json:"circulating_supply"`
			TotalSupply              float64            `json:"total_supply"`
			MaxSupply                *float64           `json:"max_supply"`
		} `json:"market_data"`
	}
	err := c.get(ctx, "assetDetail", "/coins/"+url.PathEscape(id), static(url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"true"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}), httputil.NoRetry, &body)
	if err != nil {
		return nil, err
	}
	if body.ID == "" {
		return nil, &ProviderError{Provider: CoinGeckoName, Op: "assetDetail", Err: ErrEmptyResult}
	}

	md := body.MarketData
	return &models.AssetDetail{
		Asset: models.Asset{
			ID:                    body.ID,
			Symbol:                strings.ToUpper(body.Symbol),
			Name:                  body.Name,
			Image:                 body.Image.Large,
			CurrentPrice:          md.CurrentPrice["usd"],
			PriceChangePercent24h: md.PriceChangePercentage24h,
			MarketCap:             md.MarketCap["usd"],
			TotalVolume:           md.TotalVolume["usd"],
			CirculatingSupply:     md.CirculatingSupply,
			TotalSupply:           md.TotalSupply,
			MaxSupply:             md.MaxSupply,
			MarketCapRank:         body.MarketCapRank,
		},
		Description: body.Description.En,
		Homepage:    first(body.Links.Homepage),
		Explorer:    first(body.Links.BlockchainSite),
		High24h:     md.High24h["usd"],
		Low24h:      md.Low24h["usd"],
		ATH:         md.ATH["usd"],
		ATL:         md.ATL["usd"],
		Source:      CoinGeckoName,
	}, nil
}

// PriceSeries fetches the market chart with the series retry policy. Every
// attempt carries a fresh cache buster.
func (c *CoinGeckoClient) PriceSeries(ctx context.Context, id string, days int) (*models.PriceSeries, error) {
	var body struct {
		Prices [][2]float64 `json:"prices"`
	}
	err := c.get(ctx, "priceSeries", "/coins/"+url.PathEscape(id)+"/market_chart", func() url.Values {
		return httputil.CacheBust(url.Values{
			"vs_currency": {"usd"},
			"days":        {strconv.Itoa(days)},
		})
	}, c.seriesRetry, &body)
	if err != nil {
		return nil, err
	}
	if len(body.Prices) == 0 {
		return nil, &ProviderError{Provider: CoinGeckoName, Op: "priceSeries", Err: ErrEmptyResult}
	}

	points := make([]models.PricePoint, len(body.Prices))
	for i, p := range body.Prices {
		points[i] = models.PricePoint{Timestamp: int64(p[0]), Price: p[1]}
	}
	return &models.PriceSeries{AssetID: id, Days: days, Points: points, Source: CoinGeckoName}, nil
}

func (c *CoinGeckoClient) LatestPrice(ctx context.Context, id string) (float64, error) {
	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	err := c.get(ctx, "latestPrice", "/simple/price", static(url.Values{
		"ids":           {id},
		"vs_currencies": {"usd"},
	}), httputil.NoRetry, &body)
	if err != nil {
		return 0, err
	}

	entry, ok := body[id]
	if !ok || entry.USD <= 0 {
		return 0, &ProviderError{Provider: CoinGeckoName, Op: "latestPrice", Err: fmt.Errorf("invalid price for %s: %w", id, ErrEmptyResult)}
	}
	return entry.USD, nil
}

// Trending returns /search/trending in provider order with CoinGecko's own
// score. Rank is the 1-based position.
func (c *CoinGeckoClient) Trending(ctx context.Context) ([]models.TrendingCoin, error) {
	var body struct {
		Coins []struct {
			Item struct {
				ID            string  `json:"id"`
				Name          string  `json:"name"`
				Symbol        string  `json:"symbol"`
				MarketCapRank int     `json:"market_cap_rank"`
				Large         string  `json:"large"`
				Score         float64 `json:"score"`
				Data          struct {
					PriceChangePercentage24h map[string]float64 `json:"price_change_percentage_24h"`
				} `json:"data"`
			} `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "trending", "/search/trending", nil, httputil.NoRetry, &body); err != nil {
		return nil, err
	}

	out := make([]models.TrendingCoin, len(body.Coins))
	for i, coin := range body.Coins {
		it := coin.Item
		out[i] = models.TrendingCoin{
			ID:                    it.ID,
			Symbol:                strings.ToUpper(it.Symbol),
			Name:                  it.Name,
			Image:                 it.Large,
			MarketCapRank:         it.MarketCapRank,
			Rank:                  i + 1,
			Score:                 it.Score,
			ScoreSource:           models.ScoreNative,
			PriceChangePercent24h: it.Data.PriceChangePercentage24h["usd"],
			Source:                CoinGeckoName,
		}
	}
	return out, nil
}

func first(ss []string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
