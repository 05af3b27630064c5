package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kjannette/cryptodash/internal/models"
)

type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func (k *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (k *SQLiteKV) Set(ctx context.Context, key, value string) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (k *SQLiteKV) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := k.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

type SQLiteTradeLog struct {
	db *sql.DB
}

func NewSQLiteTradeLog(db *sql.DB) *SQLiteTradeLog {
	return &SQLiteTradeLog{db: db}
}

func (r *SQLiteTradeLog) Record(ctx context.Context, t models.Trade) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trade_history (`+tradeColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Timestamp.UTC(), t.Side, t.AssetID, t.Symbol,
		t.Units, t.Price, t.USDValue, t.PaidFromWallet, t.CashAfter,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Recent returns the newest trades first.
func (r *SQLiteTradeLog) Recent(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trade_history ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (r *SQLiteTradeLog) Stats(ctx context.Context) (*models.TradeStats, error) {
	return scanStats(r.db.QueryRowContext(ctx, statsQuery))
}
