package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kjannette/cryptodash/internal/logging"
	"github.com/kjannette/cryptodash/internal/models"
)

// RiskChecker gates trades before they touch wallet state.
type RiskChecker interface {
	PreTradeCheck(ctx context.Context, tradeUSDValue float64) error
	PortfolioCheck(pnlPercent float64) error
}

type Notifier interface {
	Send(msg string)
}

// Journal persists executed trades. Wallet state itself stays in memory.
type Journal interface {
	Record(ctx context.Context, t models.Trade) error
}

// Wallet is the in-memory simulated wallet: a cash balance, holding lots and
// a trade log. Every mutation runs under one lock so concurrent buys cannot
// lose updates. Only the trade log is persisted, and only with a Journal.
type Wallet struct {
	// trading spans the risk check and the mutation it guards, so the daily
	// trade count a check reads cannot go stale before the trade lands. It is
	// always taken before mu and never held by CountToday.
	trading sync.Mutex

	mu          sync.Mutex
	initialCash decimal.Decimal
	cash        decimal.Decimal
	lots        []models.HoldingLot
	trades      []models.Trade
	startTime   time.Time
	alerted     bool

	risk    RiskChecker
	notify  Notifier
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
}

type WalletOption func(*Wallet)

func WithRisk(r RiskChecker) WalletOption         { return func(w *Wallet) { w.risk = r } }
func WithNotifier(n Notifier) WalletOption        { return func(w *Wallet) { w.notify = n } }
func WithJournal(j Journal) WalletOption          { return func(w *Wallet) { w.journal = j } }
func WithLogger(l *slog.Logger) WalletOption      { return func(w *Wallet) { w.logger = l } }
func WithClock(now func() time.Time) WalletOption { return func(w *Wallet) { w.now = now } }

func NewWallet(initialCash float64, opts ...WalletOption) *Wallet {
	w := &Wallet{
		initialCash: decimal.NewFromFloat(initialCash),
		cash:        decimal.NewFromFloat(initialCash),
		logger:      logging.Discard(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	w.startTime = w.now()
	w.logger = w.logger.With("component", "wallet")
	return w
}

// Buy adds usdAmount worth of asset at price. When payFromWallet is set the
// amount is debited from cash and rejected if cash is short.
func (w *Wallet) Buy(ctx context.Context, asset models.Asset, usdAmount, price float64, payFromWallet bool) (*models.Trade, error) {
	w.trading.Lock()
	trade, units, err := w.buy(ctx, asset, usdAmount, price, payFromWallet)
	w.trading.Unlock()
	if err != nil {
		return nil, err
	}

	w.logger.Info("simulated buy", "asset", asset.ID, "usd", usdAmount, "price", price, "units", units)
	w.persist(ctx, trade)
	w.send(fmt.Sprintf("Simulated BUY %s: %.8f units for $%.2f (@ $%.2f)", asset.ID, units, usdAmount, price))
	return &trade, nil
}

// buy runs the risk check and the mutation. Caller holds w.trading.
func (w *Wallet) buy(ctx context.Context, asset models.Asset, usdAmount, price float64, payFromWallet bool) (models.Trade, float64, error) {
	if err := w.preTrade(ctx, usdAmount); err != nil {
		return models.Trade{}, 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	usd := decimal.NewFromFloat(usdAmount)
	if payFromWallet && usd.GreaterThan(w.cash) {
		cash, _ := w.cash.Float64()
		return models.Trade{}, 0, &InsufficientFundsError{Cash: cash, Required: usdAmount}
	}

	lots, err := ApplyBuy(w.lots, asset, usdAmount, price)
	if err != nil {
		return models.Trade{}, 0, err
	}
	w.lots = lots
	if payFromWallet {
		w.cash = w.cash.Sub(usd)
	}
	units, _ := usd.Div(decimal.NewFromFloat(price)).Float64()
	return w.record(models.SideBuy, asset.ID, asset.Symbol, units, price, usdAmount, payFromWallet), units, nil
}

// Sell removes units of assetID at price and credits the proceeds to cash.
func (w *Wallet) Sell(ctx context.Context, assetID string, units, price float64) (*models.Trade, error) {
	w.trading.Lock()
	trade, err := w.sell(ctx, assetID, units, price)
	w.trading.Unlock()
	if err != nil {
		return nil, err
	}

	w.logger.Info("simulated sell", "asset", assetID, "units", units, "price", price, "usd", trade.USDValue)
	w.persist(ctx, trade)
	w.send(fmt.Sprintf("Simulated SELL %s: %.8f units for $%.2f (@ $%.2f)", assetID, units, trade.USDValue, price))
	return &trade, nil
}

// sell runs the risk check and the mutation. Caller holds w.trading.
func (w *Wallet) sell(ctx context.Context, assetID string, units, price float64) (models.Trade, error) {
	proceeds := decimal.NewFromFloat(units).Mul(decimal.NewFromFloat(price))
	proceedsUSD, _ := proceeds.Float64()
	if err := w.preTrade(ctx, proceedsUSD); err != nil {
		return models.Trade{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	symbol := ""
	if i := indexOf(w.lots, assetID); i >= 0 {
		symbol = w.lots[i].Symbol
	}
	lots, err := ApplySell(w.lots, assetID, units, price)
	if err != nil {
		return models.Trade{}, err
	}
	w.lots = lots
	w.cash = w.cash.Add(proceeds)
	return w.record(models.SideSell, assetID, symbol, units, price, proceedsUSD, true), nil
}

func (w *Wallet) preTrade(ctx context.Context, usd float64) error {
	if w.risk == nil {
		return nil
	}
	if err := w.risk.PreTradeCheck(ctx, usd); err != nil {
		w.send(fmt.Sprintf("[RISK] %v", err))
		return err
	}
	return nil
}

// record appends to the trade log. Caller holds w.mu.
func (w *Wallet) record(side, assetID, symbol string, units, price, usd float64, paid bool) models.Trade {
	cash, _ := w.cash.Float64()
	t := models.Trade{
		ID:             uuid.NewString(),
		Timestamp:      w.now().UTC(),
		Side:           side,
		AssetID:        assetID,
		Symbol:         symbol,
		Units:          units,
		Price:          price,
		USDValue:       usd,
		PaidFromWallet: paid,
		CashAfter:      cash,
	}
	w.trades = append(w.trades, t)
	return t
}

func (w *Wallet) Holdings() []models.HoldingLot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.lots)
}

func (w *Wallet) Cash() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, _ := w.cash.Float64()
	return f
}

func (w *Wallet) InitialCash() float64 {
	f, _ := w.initialCash.Float64()
	return f
}

// Trades returns the log newest first, at most limit entries when limit > 0.
func (w *Wallet) Trades(limit int) []models.Trade {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := slices.Clone(w.trades)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CountToday counts trades since UTC midnight. It lets the wallet serve as
// the daily trade counter for its own risk checks.
func (w *Wallet) CountToday(_ context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	n := 0
	for _, t := range w.trades {
		if !t.Timestamp.Before(midnight) {
			n++
		}
	}
	return n, nil
}

func (w *Wallet) Stats() models.TradeStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	var s models.TradeStats
	for _, t := range w.trades {
		s.TotalTrades++
		if t.Side == models.SideBuy {
			s.BuyCount++
			s.BoughtUSD += t.USDValue
		} else {
			s.SellCount++
			s.SoldUSD += t.USDValue
		}
	}
	return s
}

// Valuate prices the current holdings.
func (w *Wallet) Valuate(prices map[string]float64) ([]models.HoldingView, models.PortfolioTotals) {
	views := ComputeDerived(w.Holdings(), prices)
	return views, Totals(views)
}

// CheckPortfolio runs the portfolio-level alert thresholds against current
// prices. A tripped threshold is notified once until the portfolio recovers.
func (w *Wallet) CheckPortfolio(prices map[string]float64) error {
	if w.risk == nil {
		return nil
	}
	_, totals := w.Valuate(prices)
	err := w.risk.PortfolioCheck(totals.PnLPercent)

	w.mu.Lock()
	first := err != nil && !w.alerted
	w.alerted = err != nil
	w.mu.Unlock()

	if first {
		w.logger.Warn("portfolio alert", "pnlPercent", totals.PnLPercent, "err", err)
		w.send(fmt.Sprintf("PORTFOLIO ALERT: %v", err))
	}
	return err
}

func (w *Wallet) Uptime() time.Duration {
	return w.now().Sub(w.startTime)
}

// persist journals a trade. A failed write is logged; the trade stands.
func (w *Wallet) persist(ctx context.Context, t models.Trade) {
	if w.journal == nil {
		return
	}
	// The trade already happened; a caller that goes away must not drop its row.
	if err := w.journal.Record(context.WithoutCancel(ctx), t); err != nil {
		w.logger.Error("failed to journal trade", "id", t.ID, "err", err)
	}
}

func (w *Wallet) send(msg string) {
	if w.notify != nil {
		w.notify.Send(msg)
	}
}
