package models

import "time"

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is one simulated wallet action. Nothing here moves real money.
type Trade struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Side           string    `json:"side"`
	AssetID        string    `json:"assetId"`
	Symbol         string    `json:"symbol"`
	Units          float64   `json:"units"`
	Price          float64   `json:"price"`
	USDValue       float64   `json:"usdValue"`
	PaidFromWallet bool      `json:"paidFromWallet"`
	CashAfter      float64   `json:"cashAfter"`
}

type TradeStats struct {
	TotalTrades int     `json:"totalTrades"`
	BuyCount    int     `json:"buyCount"`
	SellCount   int     `json:"sellCount"`
	BoughtUSD   float64 `json:"boughtUsd"`
	SoldUSD     float64 `json:"soldUsd"`
}
