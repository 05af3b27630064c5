package storage

import (
	"context"
	"sync"

	"github.com/kjannette/cryptodash/internal/models"
)

// KV is a small string key-value store for client-side persisted state.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TradeLog is the durable journal of simulated trades.
type TradeLog interface {
	Record(ctx context.Context, t models.Trade) error
	Recent(ctx context.Context, limit int) ([]models.Trade, error)
	Stats(ctx context.Context) (*models.TradeStats, error)
}

type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (k *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *MemoryKV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = value
	return nil
}

func (k *MemoryKV) Delete(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.m, key)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrade(row scannable) (models.Trade, error) {
	var t models.Trade
	err := row.Scan(
		&t.ID, &t.Timestamp, &t.Side, &t.AssetID, &t.Symbol,
		&t.Units, &t.Price, &t.USDValue, &t.PaidFromWallet, &t.CashAfter,
	)
	return t, err
}

func collectTrades(rows rowsIter) ([]models.Trade, error) {
	out := make([]models.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const tradeColumns = `id, timestamp, side, asset_id, symbol, units, price, usd_value, paid_from_wallet, cash_after`

const statsQuery = `SELECT
	COUNT(*),
	COUNT(CASE WHEN side = 'buy' THEN 1 END),
	COUNT(CASE WHEN side = 'sell' THEN 1 END),
	COALESCE(SUM(CASE WHEN side = 'buy' THEN usd_value END), 0),
	COALESCE(SUM(CASE WHEN side = 'sell' THEN usd_value END), 0)
 FROM trade_history`

func scanStats(row scannable) (*models.TradeStats, error) {
	var s models.TradeStats
	if err := row.Scan(&s.TotalTrades, &s.BuyCount, &s.SellCount, &s.BoughtUSD, &s.SoldUSD); err != nil {
		return nil, err
	}
	return &s, nil
}
