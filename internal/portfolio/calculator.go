// Package portfolio holds the simulated wallet: pure lot arithmetic in this
// file, and the mutex-guarded Wallet that applies it.
package portfolio

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kjannette/cryptodash/internal/models"
)

// DustEpsilon is the quantity at or below which a lot is considered empty.
const DustEpsilon = 1e-12

var dust = decimal.NewFromFloat(DustEpsilon)

// ApplyBuy returns lots with usdSpent worth of asset added at pricePerUnit.
// An existing lot takes the quantity-weighted average cost; a new lot is
// appended with avgCost = pricePerUnit. lots is not modified.
func ApplyBuy(lots []models.HoldingLot, asset models.Asset, usdSpent, pricePerUnit float64) ([]models.HoldingLot, error) {
	if asset.ID == "" {
		return nil, &ValidationError{Field: "assetId", Reason: "required"}
	}
	if !(pricePerUnit > 0) {
		return nil, ErrNonPositivePrice
	}
	if !(usdSpent > 0) {
		return nil, &ValidationError{Field: "usdAmount", Reason: "must be positive"}
	}

	price := decimal.NewFromFloat(pricePerUnit)
	bought := decimal.NewFromFloat(usdSpent).Div(price)

	out := slices.Clone(lots)
	i := indexOf(out, asset.ID)
	if i < 0 {
		q, _ := bought.Float64()
		return append(out, models.HoldingLot{
			AssetID:  asset.ID,
			Symbol:   asset.Symbol,
			Name:     asset.Name,
			Quantity: q,
			AvgCost:  pricePerUnit,
		}), nil
	}

	lot := out[i]
	oldQty := decimal.NewFromFloat(lot.Quantity)
	oldAvg := decimal.NewFromFloat(lot.AvgCost)
	newQty := oldQty.Add(bought)
	newAvg := oldQty.Mul(oldAvg).Add(bought.Mul(price)).Div(newQty)

	lot.Quantity, _ = newQty.Float64()
	lot.AvgCost, _ = newAvg.Float64()
	if lot.Symbol == "" {
		lot.Symbol, lot.Name = asset.Symbol, asset.Name
	}
	out[i] = lot
	return out, nil
}

// ApplySell returns lots with units of assetID removed. Average cost is left
// alone; the lot is dropped once the remainder is dust. A sell larger than
// the held quantity fails and lots is returned untouched.
func ApplySell(lots []models.HoldingLot, assetID string, units, pricePerUnit float64) ([]models.HoldingLot, error) {
	if !(pricePerUnit > 0) {
		return lots, ErrNonPositivePrice
	}
	if !(units > 0) {
		return lots, &ValidationError{Field: "units", Reason: "must be positive"}
	}

	i := indexOf(lots, assetID)
	if i < 0 {
		return lots, &InsufficientBalanceError{AssetID: assetID, Held: 0, Requested: units}
	}

	held := decimal.NewFromFloat(lots[i].Quantity)
	sold := decimal.NewFromFloat(units)
	if sold.GreaterThan(held) {
		return lots, &InsufficientBalanceError{AssetID: assetID, Held: lots[i].Quantity, Requested: units}
	}

	out := slices.Clone(lots)
	remaining := held.Sub(sold)
	if remaining.LessThanOrEqual(dust) {
		return slices.Delete(out, i, i+1), nil
	}
	out[i].Quantity, _ = remaining.Float64()
	return out, nil
}

// ComputeDerived values each lot at prices[assetID]. Lots without a price are
// returned with Priced=false and zero value. PnLPercent is 0 when AvgCost is 0.
func ComputeDerived(lots []models.HoldingLot, prices map[string]float64) []models.HoldingView {
	views := make([]models.HoldingView, 0, len(lots))
	for _, lot := range lots {
		v := models.HoldingView{HoldingLot: lot}
		price, ok := prices[lot.AssetID]
		if !ok || !(price > 0) {
			views = append(views, v)
			continue
		}

		qty := decimal.NewFromFloat(lot.Quantity)
		cur := decimal.NewFromFloat(price)
		avg := decimal.NewFromFloat(lot.AvgCost)

		v.Priced = true
		v.CurrentPrice = price
		v.Value, _ = qty.Mul(cur).Float64()
		v.PnL, _ = cur.Sub(avg).Mul(qty).Float64()
		if !avg.IsZero() {
			v.PnLPercent, _ = cur.Sub(avg).Div(avg).Mul(decimal.NewFromInt(100)).Float64()
		}
		views = append(views, v)
	}
	return views
}

// Totals sums priced views. Cost is quantity times average cost.
func Totals(views []models.HoldingView) models.PortfolioTotals {
	value, cost := decimal.Zero, decimal.Zero
	for _, v := range views {
		if !v.Priced {
			continue
		}
		value = value.Add(decimal.NewFromFloat(v.Value))
		cost = cost.Add(decimal.NewFromFloat(v.Quantity).Mul(decimal.NewFromFloat(v.AvgCost)))
	}

	t := models.PortfolioTotals{Positions: len(views)}
	t.Value, _ = value.Float64()
	t.Cost, _ = cost.Float64()
	t.PnL, _ = value.Sub(cost).Float64()
	if cost.IsPositive() {
		t.PnLPercent, _ = value.Sub(cost).Div(cost).Mul(decimal.NewFromInt(100)).Float64()
	}
	return t
}

var SortFields = []string{"name", "symbol", "quantity", "avgCost", "price", "value", "pnl", "pnlPercent"}

// SortViews sorts views in place by field. The sort is stable, so ties keep
// their prior relative order in both directions.
func SortViews(views []models.HoldingView, field string, desc bool) error {
	compare, err := comparator(field)
	if err != nil {
		return err
	}
	slices.SortStableFunc(views, func(a, b models.HoldingView) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return nil
}

func comparator(field string) (func(a, b models.HoldingView) int, error) {
	switch field {
	case "name":
		return func(a, b models.HoldingView) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}, nil
	case "symbol":
		return func(a, b models.HoldingView) int {
			return strings.Compare(strings.ToUpper(a.Symbol), strings.ToUpper(b.Symbol))
		}, nil
	case "quantity":
		return byFloat(func(v models.HoldingView) float64 { return v.Quantity }), nil
	case "avgCost":
		return byFloat(func(v models.HoldingView) float64 { return v.AvgCost }), nil
	case "price":
		return byFloat(func(v models.HoldingView) float64 { return v.CurrentPrice }), nil
	case "value":
		return byFloat(func(v models.HoldingView) float64 { return v.Value }), nil
	case "pnl":
		return byFloat(func(v models.HoldingView) float64 { return v.PnL }), nil
	case "pnlPercent":
		return byFloat(func(v models.HoldingView) float64 { return v.PnLPercent }), nil
	}
	return nil, &ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown field %q", field)}
}

func byFloat(get func(models.HoldingView) float64) func(a, b models.HoldingView) int {
	return func(a, b models.HoldingView) int { return cmp.Compare(get(a), get(b)) }
}

func indexOf(lots []models.HoldingLot, assetID string) int {
	return slices.IndexFunc(lots, func(l models.HoldingLot) bool { return l.AssetID == assetID })
}
