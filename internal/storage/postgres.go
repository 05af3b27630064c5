package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/cryptodash/internal/models"
)

type PostgresKV struct {
	pool *pgxpool.Pool
}

func NewPostgresKV(pool *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{pool: pool}
}

func (k *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := k.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (k *PostgresKV) Set(ctx context.Context, key, value string) error {
	_, err := k.pool.Exec(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (k *PostgresKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := k.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete %v: %w", keys, err)
	}
	return nil
}

type PostgresTradeLog struct {
	pool *pgxpool.Pool
}

func NewPostgresTradeLog(pool *pgxpool.Pool) *PostgresTradeLog {
	return &PostgresTradeLog{pool: pool}
}

func (r *PostgresTradeLog) Record(ctx context.Context, t models.Trade) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO trade_history (`+tradeColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.Timestamp, t.Side, t.AssetID, t.Symbol,
		t.Units, t.Price, t.USDValue, t.PaidFromWallet, t.CashAfter,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (r *PostgresTradeLog) Recent(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trade_history ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (r *PostgresTradeLog) Stats(ctx context.Context) (*models.TradeStats, error) {
	return scanStats(r.pool.QueryRow(ctx, statsQuery))
}
