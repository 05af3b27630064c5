package external

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjannette/cryptodash/internal/httputil"
	"github.com/kjannette/cryptodash/internal/models"
)

const (
	CoinMarketCapName = "coinmarketcap"
	DefaultCMCURL     = "https://pro-api.coinmarketcap.com"
	cmcImageURL       = "https://s2.coinmarketcap.com/static/img/coins/64x64/%d.png"
)

type CoinMarketCapOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// CoinMarketCapClient talks to the CoinMarketCap Pro API. Assets are
// addressed by slug everywhere else in the app; numeric ids are resolved
// through /cryptocurrency/info and remembered for the life of the client.
type CoinMarketCapClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	slugs map[string]cmcInfo
}

func NewCoinMarketCapClient(opts CoinMarketCapOptions) *CoinMarketCapClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCMCURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &CoinMarketCapClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		slugs:      make(map[string]cmcInfo),
	}
}

func (c *CoinMarketCapClient) Name() string { return CoinMarketCapName }

func (c *CoinMarketCapClient) Configured() bool { return c.apiKey != "" }

type cmcStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (c *CoinMarketCapClient) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.apiKey == "" {
		return &ProviderError{Provider: CoinMarketCapName, Op: op, Err: fmt.Errorf("CMC API key not configured")}
	}
	err := getJSON(ctx, c.httpClient, httputil.NoRetry, func() (*http.Request, error) {
		u := c.baseURL + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
	if err != nil {
		return &ProviderError{Provider: CoinMarketCapName, Op: op, Err: err}
	}
	return nil
}

type cmcQuote struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCap        float64 `json:"market_cap"`
}

type cmcListing struct {
	ID                int                 `json:"id"`
	Name              string              `json:"name"`
	Symbol            string              `json:"symbol"`
	Slug              string              `json:"slug"`
	CMCRank           int                 `json:"cmc_rank"`
	CirculatingSupply float64             `json:"circulating_supply"`
	TotalSupply       float64             `json:"total_supply"`
	MaxSupply         *float64            `json:"max_supply"`
	Quote             map[string]cmcQuote `json:"quote"`
}

func (l cmcListing) asset() models.Asset {
	id := l.Slug
	if id == "" {
		id = strconv.Itoa(l.ID)
	}
	q := l.Quote["USD"]
	return models.Asset{
		ID:                    id,
		Symbol:                l.Symbol,
		Name:                  l.Name,
		Image:                 fmt.Sprintf(cmcImageURL, l.ID),
		CurrentPrice:          q.Price,
		PriceChangePercent24h: q.PercentChange24h,
		MarketCap:             q.MarketCap,
		TotalVolume:           q.Volume24h,
		CirculatingSupply:     l.CirculatingSupply,
		TotalSupply:           l.TotalSupply,
		MaxSupply:             l.MaxSupply,
		MarketCapRank:         l.CMCRank,
	}
}

func (c *CoinMarketCapClient) listings(ctx context.Context, op string, q url.Values) ([]cmcListing, error) {
	var body struct {
		Status cmcStatus    `json:"status"`
		Data   []cmcListing `json:"data"`
	}
	if err := c.get(ctx, op, "/v1/cryptocurrency/listings/latest", q, &body); err != nil {
		return nil, err
	}
	if body.Status.ErrorCode != 0 {
		return nil, &ProviderError{Provider: CoinMarketCapName, Op: op, Err: fmt.Errorf("status %d: %s", body.Status.ErrorCode, body.Status.ErrorMessage)}
	}
	return body.Data, nil
}

func (c *CoinMarketCapClient) ListAssets(ctx context.Context, page, perPage int) ([]models.Asset, error) {
	rows, err := c.listings(ctx, "listAssets", url.Values{
		"start":   {strconv.Itoa((page-1)*perPage + 1)},
		"limit":   {strconv.Itoa(perPage)},
		"convert": {"USD"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.asset()
	}
	return out, nil
}

func (c *CoinMarketCapClient) GlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error) {
	var body struct {
		Status cmcStatus `json:"status"`
		Data   *struct {
			TotalCryptocurrencies int     `json:"total_cryptocurrencies"`
			ActiveExchanges       int     `json:"active_exchanges"`
			BTCDominance          float64 `json:"btc_dominance"`
			ETHDominance          float64 `json:"eth_dominance"`
			Quote                 map[string]struct {
				TotalMarketCap                          float64 `json:"total_market_cap"`
				TotalVolume24h                          float64 `json:"total_volume_24h"`
				TotalMarketCapYesterdayPercentageChange float64 `json:"total_market_cap_yesterday_percentage_change"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := c.get(ctx, "globalSnapshot", "/v1/global-metrics/quotes/latest", nil, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, &ProviderError{Provider: CoinMarketCapName, Op: "globalSnapshot", Err: ErrEmptyResult}
	}

	d := body.Data
	q := d.Quote["USD"]
	return &models.GlobalSnapshot{
		ActiveCryptocurrencies:    d.TotalCryptocurrencies,
		Markets:                   d.ActiveExchanges,
		TotalMarketCapUSD:         q.TotalMarketCap,
		TotalVolumeUSD:            q.TotalVolume24h,
		MarketCapChangePercent24h: q.TotalMarketCapYesterdayPercentageChange,
		MarketCapPercentage: map[string]float64{
			"btc": d.BTCDominance,
			"eth": d.ETHDominance,
		},
		Source: CoinMarketCapName,
	}, nil
}

type cmcInfo struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	URLs        struct {
		Website  []string `json:"website"`
		Explorer []string `json:"explorer"`
	} `json:"urls"`
}

// resolve maps a slug to its CMC info record, including the numeric id.
func (c *CoinMarketCapClient) resolve(ctx context.Context, op, slug string) (cmcInfo, error) {
	c.mu.RLock()
	info, ok := c.slugs[slug]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	var body struct {
		Data map[string]cmcInfo `json:"data"`
	}
	if err := c.get(ctx, op, "/v1/cryptocurrency/info", url.Values{"slug": {slug}}, &body); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return cmcInfo{}, &ProviderError{Provider: CoinMarketCapName, Op: op, Err: &LookupError{Slug: slug, Err: err}}
	}
	for _, v := range body.Data {
		if v.ID > 0 {
			info = v
			ok = true
			break
		}
	}
	if !ok {
		return cmcInfo{}, &ProviderError{Provider: CoinMarketCapName, Op: op, Err: &LookupError{Slug: slug, Err: ErrEmptyResult}}
	}

	c.mu.Lock()
	c.slugs[slug] = info
	c.mu.Unlock()
	return info, nil
}

func (c *CoinMarketCapClient) quote(ctx context.Context, op string, id int) (cmcListing, error) {
	var body struct {
		Status cmcStatus             `json:"status"`
		Data   map[string]cmcListing `json:"data"`
	}
	err := c.get(ctx, op, "/v1/cryptocurrency/quotes/latest", url.Values{
		"id":      {strconv.Itoa(id)},
		"convert": {"USD"},
	}, &body)
	if err != nil {
		return cmcListing{}, err
	}
	row, ok := body.Data[strconv.Itoa(id)]
	if !ok {
		return cmcListing{}, &ProviderError{Provider: CoinMarketCapName, Op: op, Err: ErrEmptyResult}
	}
	return row, nil
}

func (c *CoinMarketCapClient) AssetDetail(ctx context.Context, slug string) (*models.AssetDetail, error) {
	info, err := c.resolve(ctx, "assetDetail", slug)
	if err != nil {
		return nil, err
	}
	row, err := c.quote(ctx, "assetDetail", info.ID)
	if err != nil {
		return nil, err
	}

	asset := row.asset()
	asset.ID = slug
	if info.Logo != "" {
		asset.Image = info.Logo
	}
	return &models.AssetDetail{
		Asset:       asset,
		Description: info.Description,
		Homepage:    first(info.URLs.Website),
		Explorer:    first(info.URLs.Explorer),
		Source:      CoinMarketCapName,
	}, nil
}

// PriceSeries is not offered on the CMC tiers this client targets.
func (c *CoinMarketCapClient) PriceSeries(_ context.Context, _ string, _ int) (*models.PriceSeries, error) {
	return nil, &ProviderError{Provider: CoinMarketCapName, Op: "priceSeries", Err: ErrUnsupported}
}

func (c *CoinMarketCapClient) LatestPrice(ctx context.Context, slug string) (float64, error) {
	info, err := c.resolve(ctx, "latestPrice", slug)
	if err != nil {
		return 0, err
	}
	row, err := c.quote(ctx, "latestPrice", info.ID)
	if err != nil {
		return 0, err
	}
	price := row.Quote["USD"].Price
	if price <= 0 {
		return 0, &ProviderError{Provider: CoinMarketCapName, Op: "latestPrice", Err: fmt.Errorf("invalid price for %s: %w", slug, ErrEmptyResult)}
	}
	return price, nil
}

// Trending approximates trending coins with the top 24h movers. Score is the
// absolute 24h percent change.
func (c *CoinMarketCapClient) Trending(ctx context.Context) ([]models.TrendingCoin, error) {
	rows, err := c.listings(ctx, "trending", url.Values{
		"start":    {"1"},
		"limit":    {"10"},
		"sort":     {"percent_change_24h"},
		"sort_dir": {"desc"},
		"convert":  {"USD"},
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.TrendingCoin, len(rows))
	for i, r := range rows {
		a := r.asset()
		out[i] = models.TrendingCoin{
			ID:                    a.ID,
			Symbol:                a.Symbol,
			Name:                  a.Name,
			Image:                 a.Image,
			MarketCapRank:         a.MarketCapRank,
			Rank:                  i + 1,
			Score:                 math.Abs(a.PriceChangePercent24h),
			ScoreSource:           models.ScoreAbsChange24h,
			PriceChangePercent24h: a.PriceChangePercent24h,
			Source:                CoinMarketCapName,
		}
	}
	return out, nil
}
