package scheduler

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kjannette/cryptodash/internal/models"
)

// MarketSource is the slice of the market client the dashboard jobs poll.
type MarketSource interface {
	Prices(ctx context.Context, ids []string) map[string]float64
	GlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error)
	Trending(ctx context.Context) ([]models.TrendingCoin, error)
}

type PortfolioChecker interface {
	CheckPortfolio(prices map[string]float64) error
}

// Board holds the most recent polled values.
type Board struct {
	mu       sync.RWMutex
	prices   map[string]float64
	global   *models.GlobalSnapshot
	trending []models.TrendingCoin
	updated  map[string]time.Time
}

func NewBoard() *Board {
	return &Board{prices: make(map[string]float64), updated: make(map[string]time.Time)}
}

func (b *Board) Prices() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.prices)
}

func (b *Board) Global() *models.GlobalSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.global
}

func (b *Board) Trending() []models.TrendingCoin {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.trending)
}

// UpdatedAt reports when a job last stored a value.
func (b *Board) UpdatedAt(job string) time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated[job]
}

const (
	JobPrices   = "prices"
	JobGlobal   = "global"
	JobTrending = "trending"
)

type Intervals struct {
	Prices   time.Duration
	Global   time.Duration
	Trending time.Duration
}

// DashboardJobs builds the live-update jobs. ids is called on every price
// run so newly bought assets are picked up. When wallet is set the price job
// also runs the portfolio alert check.
func DashboardJobs(src MarketSource, board *Board, ids func() []string, wallet PortfolioChecker, iv Intervals) []Job {
	return []Job{
		{
			Name:     JobPrices,
			Interval: iv.Prices,
			Timeout:  20 * time.Second,
			Run: func(ctx context.Context) error {
				want := ids()
				prices := src.Prices(ctx, want)
				board.mu.Lock()
				maps.Copy(board.prices, prices)
				board.updated[JobPrices] = time.Now()
				all := maps.Clone(board.prices)
				board.mu.Unlock()

				if wallet != nil {
					if err := wallet.CheckPortfolio(all); err != nil {
						return fmt.Errorf("portfolio check: %w", err)
					}
				}
				if len(prices) < len(want) {
					return fmt.Errorf("priced %d of %d assets", len(prices), len(want))
				}
				return nil
			},
		},
		{
			Name:     JobGlobal,
			Interval: iv.Global,
			Timeout:  20 * time.Second,
			Run: func(ctx context.Context) error {
				g, err := src.GlobalSnapshot(ctx)
				if err != nil {
					return err
				}
				board.mu.Lock()
				board.global = g
				board.updated[JobGlobal] = time.Now()
				board.mu.Unlock()
				return nil
			},
		},
		{
			Name:     JobTrending,
			Interval: iv.Trending,
			Timeout:  20 * time.Second,
			Run: func(ctx context.Context) error {
				coins, err := src.Trending(ctx)
				if err != nil {
					return err
				}
				if len(coins) == 0 {
					return fmt.Errorf("no trending coins")
				}
				board.mu.Lock()
				board.trending = coins
				board.updated[JobTrending] = time.Now()
				board.mu.Unlock()
				return nil
			},
		},
	}
}
