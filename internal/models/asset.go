package models

type Asset struct {
	ID                    string   `json:"id"`
	Symbol                string   `json:"symbol"`
	Name                  string   `json:"name"`
	Image                 string   `json:"image"`
	CurrentPrice          float64  `json:"currentPrice"`
	PriceChangePercent24h float64  `json:"priceChangePercent24h"`
	MarketCap             float64  `json:"marketCap"`
	TotalVolume           float64  `json:"totalVolume"`
	CirculatingSupply     float64  `json:"circulatingSupply"`
	TotalSupply           float64  `json:"totalSupply"`
	MaxSupply             *float64 `json:"maxSupply,omitempty"`
	MarketCapRank         int      `json:"marketCapRank"`
}

type AssetDetail struct {
	Asset
	Description string  `json:"description"`
	Homepage    string  `json:"homepage,omitempty"`
	Explorer    string  `json:"explorer,omitempty"`
	High24h     float64 `json:"high24h"`
	Low24h      float64 `json:"low24h"`
	ATH         float64 `json:"ath"`
	ATL         float64 `json:"atl"`
	Source      string  `json:"source"`
}

type GlobalSnapshot struct {
	ActiveCryptocurrencies    int                `json:"activeCryptocurrencies"`
	Markets                   int                `json:"markets"`
	TotalMarketCapUSD         float64            `json:"totalMarketCapUsd"`
	TotalVolumeUSD            float64            `json:"totalVolumeUsd"`
	MarketCapChangePercent24h float64            `json:"marketCapChangePercent24h"`
	MarketCapPercentage       map[string]float64 `json:"marketCapPercentage"`
	Source                    string             `json:"source"`
}

// Trending score sources. Scores from different sources are not comparable;
// Rank is the only cross-provider ordering.
const (
	ScoreAbsChange24h = "abs_change_24h"
	ScoreNative       = "native"
)

type TrendingCoin struct {
	ID                    string  `json:"id"`
	Symbol                string  `json:"symbol"`
	Name                  string  `json:"name"`
	Image                 string  `json:"image"`
	MarketCapRank         int     `json:"marketCapRank"`
	Rank                  int     `json:"rank"`
	Score                 float64 `json:"score"`
	ScoreSource           string  `json:"scoreSource"`
	PriceChangePercent24h float64 `json:"priceChangePercent24h"`
	Source                string  `json:"source"`
}
