package external

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kjannette/cryptodash/internal/models"
)

const SyntheticName = "synthetic"

const (
	syntheticTrend = 0.001
	syntheticFloor = 100.0
)

type SyntheticOptions struct {
	// Points per series. Zero means one point per hour of the range.
	Points     int
	Volatility float64
	// IntradayVolatility applies to 1-day series.
	IntradayVolatility float64
	// Production disables the generator entirely.
	Production bool
	Seed       int64
	Now        func() time.Time
}

// SyntheticSeries produces placeholder price history for development when
// every real provider is down. It is a bounded random walk with a slight
// upward drift and never returns prices below the floor.
type SyntheticSeries struct {
	opts SyntheticOptions

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSyntheticSeries(opts SyntheticOptions) *SyntheticSeries {
	if opts.Volatility <= 0 {
		opts.Volatility = 0.02
	}
	if opts.IntradayVolatility <= 0 {
		opts.IntradayVolatility = 0.005
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SyntheticSeries{opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

func (s *SyntheticSeries) Name() string { return SyntheticName }

func (s *SyntheticSeries) PriceSeries(_ context.Context, id string, days int) (*models.PriceSeries, error) {
	if s.opts.Production {
		return nil, &ProviderError{Provider: SyntheticName, Op: "priceSeries", Err: ErrSyntheticDisabled}
	}
	if days < 1 {
		days = 1
	}

	n := s.opts.Points
	if n <= 0 {
		n = days * 24
	}
	if n < 2 {
		n = 2
	}

	span := time.Duration(days) * 24 * time.Hour
	step := span.Milliseconds() / int64(n)
	if step < 1 {
		step = 1
	}
	now := s.opts.Now().UnixMilli()
	vol := s.opts.Volatility
	if days == 1 {
		vol = s.opts.IntradayVolatility
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price := 30000 + s.rng.Float64()*5000
	points := make([]models.PricePoint, n)
	for i := range n {
		change := (s.rng.Float64()-0.5)*vol + syntheticTrend
		price = math.Max(syntheticFloor, price*(1+change))
		points[i] = models.PricePoint{
			Timestamp: now - int64(n-i)*step,
			Price:     price,
		}
	}

	return &models.PriceSeries{
		AssetID:   id,
		Days:      days,
		Points:    points,
		Source:    SyntheticName,
		Synthetic: true,
	}, nil
}
