package models

// HoldingLot is one asset held in the simulated wallet.
type HoldingLot struct {
	AssetID  string  `json:"assetId"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avgCost"`
}

type HoldingView struct {
	HoldingLot
	CurrentPrice float64 `json:"currentPrice"`
	Priced       bool    `json:"priced"`
	Value        float64 `json:"value"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnlPercent"`
}

type PortfolioTotals struct {
	Value      float64 `json:"value"`
	Cost       float64 `json:"cost"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnlPercent"`
	Positions  int     `json:"positions"`
}
