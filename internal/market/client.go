package market

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kjannette/cryptodash/internal/cache"
	"github.com/kjannette/cryptodash/internal/models"
)

// Provider is one upstream market-data source.
type Provider interface {
	Name() string
	ListAssets(ctx context.Context, page, perPage int) ([]models.Asset, error)
	GlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error)
	AssetDetail(ctx context.Context, id string) (*models.AssetDetail, error)
	PriceSeries(ctx context.Context, id string, days int) (*models.PriceSeries, error)
	LatestPrice(ctx context.Context, id string) (float64, error)
	Trending(ctx context.Context) ([]models.TrendingCoin, error)
}

// SeriesSource is the last resort for price history.
type SeriesSource interface {
	Name() string
	PriceSeries(ctx context.Context, id string, days int) (*models.PriceSeries, error)
}

// ValidDays lists the supported chart ranges.
var ValidDays = []int{1, 7, 30, 365}

type Options struct {
	Primary   Provider
	Fallback  Provider
	Synthetic SeriesSource
	Loader    *cache.Loader
	TTL       time.Duration
	Logger    *slog.Logger
}

// Client answers dashboard queries through the provider fallback chain.
// Errors never escape as panics; list-shaped queries degrade to empty.
type Client struct {
	primary   Provider
	fallback  Provider
	synthetic SeriesSource
	loader    *cache.Loader
	ttl       time.Duration
	logger    *slog.Logger
}

func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		primary:   opts.Primary,
		fallback:  opts.Fallback,
		synthetic: opts.Synthetic,
		loader:    opts.Loader,
		ttl:       opts.TTL,
		logger:    logger.With("component", "market"),
	}
}

type configurable interface {
	Configured() bool
}

// providers returns the chain in order, skipping a primary with no API key.
func (c *Client) providers() []Provider {
	var out []Provider
	for _, p := range []Provider{c.primary, c.fallback} {
		if p == nil {
			continue
		}
		if cp, ok := p.(configurable); ok && !cp.Configured() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func chain[T any](c *Client, call func(Provider) func(context.Context) (T, error)) []step[T] {
	var steps []step[T]
	for _, p := range c.providers() {
		steps = append(steps, stepOf(p.Name(), call(p)))
	}
	return steps
}

func cached[T any](ctx context.Context, c *Client, key string, ttl time.Duration, load func(context.Context) (T, bool, error)) (T, error) {
	if c.loader == nil {
		v, _, err := load(ctx)
		return v, err
	}
	return cache.Fetch(ctx, c.loader, key, ttl, load)
}

func (c *Client) ListAssets(ctx context.Context, page, perPage int) ([]models.Asset, error) {
	if page < 1 {
		return nil, &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if perPage < 1 {
		return nil, &ValidationError{Field: "perPage", Reason: "must be positive"}
	}

	return cached(ctx, c, cache.Key("assets", page, perPage), c.ttl, func(ctx context.Context) ([]models.Asset, bool, error) {
		assets, _, err := tryInOrder(ctx, c.logger, "listAssets", chain(c, func(p Provider) func(context.Context) ([]models.Asset, error) {
			return func(ctx context.Context) ([]models.Asset, error) { return p.ListAssets(ctx, page, perPage) }
		})...)
		if err != nil {
			c.logger.Error("asset listing unavailable", "page", page, "err", err)
			return []models.Asset{}, false, nil
		}
		return assets, true, nil
	})
}

// SearchAssets filters a listing page by case-insensitive name or symbol.
func (c *Client) SearchAssets(ctx context.Context, page, perPage int, q string) ([]models.Asset, error) {
	assets, err := c.ListAssets(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return assets, nil
	}
	out := make([]models.Asset, 0, len(assets))
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), q) || strings.Contains(strings.ToLower(a.Symbol), q) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Client) GlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error) {
	return cached(ctx, c, "global", c.ttl, func(ctx context.Context) (*models.GlobalSnapshot, bool, error) {
		g, _, err := tryInOrder(ctx, c.logger, "globalSnapshot", chain(c, func(p Provider) func(context.Context) (*models.GlobalSnapshot, error) {
			return p.GlobalSnapshot
		})...)
		return g, err == nil, err
	})
}

func (c *Client) AssetDetail(ctx context.Context, id string) (*models.AssetDetail, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}
	return cached(ctx, c, cache.Key("detail", id), c.ttl, func(ctx context.Context) (*models.AssetDetail, bool, error) {
		d, _, err := tryInOrder(ctx, c.logger, "assetDetail", chain(c, func(p Provider) func(context.Context) (*models.AssetDetail, error) {
			return func(ctx context.Context) (*models.AssetDetail, error) { return p.AssetDetail(ctx, id) }
		})...)
		return d, err == nil, err
	})
}

// PriceSeries returns chart data for one of ValidDays. When every real
// provider fails the synthetic source is tried; it refuses in production.
// Synthetic series are never cached.
func (c *Client) PriceSeries(ctx context.Context, id string, days int) (*models.PriceSeries, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}
	if !slices.Contains(ValidDays, days) {
		return nil, &ValidationError{Field: "days", Reason: fmt.Sprintf("must be one of %v", ValidDays)}
	}

	return cached(ctx, c, cache.Key("series", id, days), c.ttl, func(ctx context.Context) (*models.PriceSeries, bool, error) {
		steps := chain(c, func(p Provider) func(context.Context) (*models.PriceSeries, error) {
			return func(ctx context.Context) (*models.PriceSeries, error) { return p.PriceSeries(ctx, id, days) }
		})
		if c.synthetic != nil {
			steps = append(steps, stepOf(c.synthetic.Name(), func(ctx context.Context) (*models.PriceSeries, error) {
				return c.synthetic.PriceSeries(ctx, id, days)
			}))
		}

		s, source, err := tryInOrder(ctx, c.logger, "priceSeries", steps...)
		if err != nil {
			return nil, false, err
		}
		if len(s.Points) == 0 {
			return nil, false, fmt.Errorf("priceSeries %s: empty series from %s", id, source)
		}
		if s.Synthetic {
			c.logger.Warn("serving synthetic price series", "asset", id, "days", days)
		}
		return s, !s.Synthetic, nil
	})
}

// LatestPrice is polled, so results are shared between concurrent callers
// but never stored.
func (c *Client) LatestPrice(ctx context.Context, id string) (float64, error) {
	if id == "" {
		return 0, &ValidationError{Field: "id", Reason: "required"}
	}
	return cached(ctx, c, cache.Key("price", id), 0, func(ctx context.Context) (float64, bool, error) {
		p, _, err := tryInOrder(ctx, c.logger, "latestPrice", chain(c, func(p Provider) func(context.Context) (float64, error) {
			return func(ctx context.Context) (float64, error) { return p.LatestPrice(ctx, id) }
		})...)
		return p, false, err
	})
}

// Prices looks up the latest price of each id. Ids that no provider can
// price are absent from the result.
func (c *Client) Prices(ctx context.Context, ids []string) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		p, err := c.LatestPrice(ctx, id)
		if err != nil {
			c.logger.Warn("no price", "asset", id, "err", err)
			continue
		}
		out[id] = p
	}
	return out
}

func (c *Client) Trending(ctx context.Context) ([]models.TrendingCoin, error) {
	return cached(ctx, c, "trending", c.ttl, func(ctx context.Context) ([]models.TrendingCoin, bool, error) {
		coins, _, err := tryInOrder(ctx, c.logger, "trending", chain(c, func(p Provider) func(context.Context) ([]models.TrendingCoin, error) {
			return p.Trending
		})...)
		if err != nil {
			c.logger.Error("trending unavailable", "err", err)
			return []models.TrendingCoin{}, false, nil
		}
		return coins, true, nil
	})
}
