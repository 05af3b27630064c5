// Package risk holds the simulated wallet's trade limits and portfolio
// alert thresholds.
package risk

import (
	"context"
	"fmt"
)

// DailyTradeCounter reports how many trades were recorded today.
type DailyTradeCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits for simulated trading. A zero value disables that check.
type Limits struct {
	MaxTradeUSD      float64
	MaxDailyTrades   int
	LossAlertPercent float64
	GainAlertPercent float64
}

// BlockedError is a trade rejected by a limit, before any wallet mutation.
type BlockedError struct {
	Rule   string
	Detail string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("trade blocked (%s): %s", e.Rule, e.Detail)
}

// AlertError is a tripped portfolio threshold. It is informational: the
// wallet keeps accepting trades.
type AlertError struct {
	PnLPercent float64
	Threshold  float64
}

func (e *AlertError) Error() string {
	if e.PnLPercent < 0 {
		return fmt.Sprintf("portfolio down %.2f%% (threshold: -%.2f%%)", -e.PnLPercent, e.Threshold)
	}
	return fmt.Sprintf("portfolio up %.2f%% (threshold: +%.2f%%)", e.PnLPercent, e.Threshold)
}

type Guardian struct {
	limits  Limits
	counter DailyTradeCounter
}

// NewGuardian builds a Guardian. counter may be nil, or set later with
// SetCounter when the counter itself depends on the Guardian.
func NewGuardian(limits Limits, counter DailyTradeCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

func (g *Guardian) SetCounter(c DailyTradeCounter) {
	g.counter = c
}

func (g *Guardian) Limits() Limits {
	return g.limits
}

// PreTradeCheck returns nil if a trade of tradeUSDValue is allowed.
func (g *Guardian) PreTradeCheck(ctx context.Context, tradeUSDValue float64) error {
	if g.limits.MaxTradeUSD > 0 && tradeUSDValue > g.limits.MaxTradeUSD {
		return &BlockedError{
			Rule:   "max_trade_usd",
			Detail: fmt.Sprintf("$%.2f exceeds max $%.2f", tradeUSDValue, g.limits.MaxTradeUSD),
		}
	}

	if g.limits.MaxDailyTrades > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return &BlockedError{Rule: "max_daily_trades", Detail: fmt.Sprintf("unable to count today's trades: %v", err)}
		}
		if count >= g.limits.MaxDailyTrades {
			return &BlockedError{
				Rule:   "max_daily_trades",
				Detail: fmt.Sprintf("limit of %d reached (%d today)", g.limits.MaxDailyTrades, count),
			}
		}
	}

	return nil
}

// PortfolioCheck compares unrealized P&L percent (-8.5 means down 8.5%)
// against the alert thresholds.
func (g *Guardian) PortfolioCheck(pnlPercent float64) error {
	if g.limits.LossAlertPercent > 0 && pnlPercent <= -g.limits.LossAlertPercent {
		return &AlertError{PnLPercent: pnlPercent, Threshold: g.limits.LossAlertPercent}
	}
	if g.limits.GainAlertPercent > 0 && pnlPercent >= g.limits.GainAlertPercent {
		return &AlertError{PnLPercent: pnlPercent, Threshold: g.limits.GainAlertPercent}
	}
	return nil
}
