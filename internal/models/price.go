package models

// PricePoint is one sample of a price series. Timestamp is milliseconds since
// the Unix epoch.
type PricePoint struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

type PriceSeries struct {
	AssetID   string       `json:"assetId"`
	Days      int          `json:"days"`
	Points    []PricePoint `json:"points"`
	Source    string       `json:"source"`
	Synthetic bool         `json:"synthetic"`
}

// Ascending reports whether timestamps strictly increase.
func (s *PriceSeries) Ascending() bool {
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Timestamp <= s.Points[i-1].Timestamp {
			return false
		}
	}
	return true
}

func (s *PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}
