package portfolio

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/kjannette/cryptodash/internal/models"
)

var btc = models.Asset{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestApplyBuy_NewLot(t *testing.T) {
	lots, err := ApplyBuy(nil, btc, 500, 50000)
	if err != nil {
		t.Fatalf("ApplyBuy: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(lots))
	}
	if lots[0].Quantity != 0.01 || lots[0].AvgCost != 50000 {
		t.Fatalf("lot: %+v", lots[0])
	}
}

func TestApplyBuy_WeightedAverage(t *testing.T) {
	lots := []models.HoldingLot{{AssetID: "x", Quantity: 1, AvgCost: 100}}
	out, err := ApplyBuy(lots, models.Asset{ID: "x"}, 300, 150)
	if err != nil {
		t.Fatalf("ApplyBuy: %v", err)
	}
	if out[0].Quantity != 3 {
		t.Fatalf("quantity: got %v, want 3", out[0].Quantity)
	}
	if !approx(out[0].AvgCost, 400.0/3) {
		t.Fatalf("avgCost: got %v, want 133.33", out[0].AvgCost)
	}
	if lots[0].Quantity != 1 {
		t.Fatal("input slice was mutated")
	}
}

func TestApplyBuy_SequenceMatchesWeightedMean(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var lots []models.HoldingLot
	var totalQty, totalCost float64

	for range 50 {
		price := 10 + r.Float64()*990
		usd := 1 + r.Float64()*500
		var err error
		lots, err = ApplyBuy(lots, btc, usd, price)
		if err != nil {
			t.Fatalf("ApplyBuy: %v", err)
		}
		totalQty += usd / price
		totalCost += usd
	}

	want := totalCost / totalQty
	if math.Abs(lots[0].AvgCost-want)/want > 1e-9 {
		t.Fatalf("avgCost %v, weighted mean %v", lots[0].AvgCost, want)
	}
	t.Logf("50 buys: qty=%.8f avg=%.4f", lots[0].Quantity, lots[0].AvgCost)
}

func TestApplyBuy_Rejects(t *testing.T) {
	if _, err := ApplyBuy(nil, btc, 100, 0); !errors.Is(err, ErrNonPositivePrice) {
		t.Fatalf("zero price: %v", err)
	}
	if _, err := ApplyBuy(nil, btc, 100, -5); !errors.Is(err, ErrNonPositivePrice) {
		t.Fatalf("negative price: %v", err)
	}
	var ve *ValidationError
	if _, err := ApplyBuy(nil, btc, 0, 100); !errors.As(err, &ve) {
		t.Fatalf("zero spend: %v", err)
	}
	if _, err := ApplyBuy(nil, models.Asset{}, 10, 100); !errors.As(err, &ve) {
		t.Fatalf("missing id: %v", err)
	}
}

func TestApplySell_RejectsOversell(t *testing.T) {
	lots := []models.HoldingLot{{AssetID: "x", Quantity: 2, AvgCost: 100}}
	out, err := ApplySell(lots, "x", 3, 120)

	var ibe *InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if out[0].Quantity != 2 || out[0].AvgCost != 100 || lots[0].Quantity != 2 {
		t.Fatalf("holdings changed on rejected sell: %+v", out)
	}
	t.Logf("Correctly rejected: %v", err)
}

func TestApplySell_UnknownAsset(t *testing.T) {
	_, err := ApplySell(nil, "ghost", 1, 10)
	var ibe *InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
}

func TestApplySell_PartialKeepsAvgCost(t *testing.T) {
	lots := []models.HoldingLot{{AssetID: "x", Quantity: 2.5, AvgCost: 100}}
	out, err := ApplySell(lots, "x", 1, 80)
	if err != nil {
		t.Fatalf("ApplySell: %v", err)
	}
	if out[0].Quantity != 1.5 {
		t.Fatalf("quantity: %v", out[0].Quantity)
	}
	if out[0].AvgCost != 100 {
		t.Fatalf("avgCost changed: %v", out[0].AvgCost)
	}
}

func TestApplySell_FullRemovesLot(t *testing.T) {
	lots := []models.HoldingLot{
		{AssetID: "a", Quantity: 1, AvgCost: 1},
		{AssetID: "x", Quantity: 0.3, AvgCost: 100},
		{AssetID: "b", Quantity: 1, AvgCost: 1},
	}
	out, err := ApplySell(lots, "x", 0.3, 100)
	if err != nil {
		t.Fatalf("ApplySell: %v", err)
	}
	if len(out) != 2 || out[0].AssetID != "a" || out[1].AssetID != "b" {
		t.Fatalf("expected x removed with order kept, got %+v", out)
	}
}

func TestApplySell_DustRemovesLot(t *testing.T) {
	lots := []models.HoldingLot{{AssetID: "x", Quantity: 1 + 5e-13, AvgCost: 10}}
	out, err := ApplySell(lots, "x", 1, 10)
	if err != nil {
		t.Fatalf("ApplySell: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("dust lot should be removed: %+v", out)
	}
}

func TestComputeDerived(t *testing.T) {
	lots := []models.HoldingLot{
		{AssetID: "up", Quantity: 2, AvgCost: 100},
		{AssetID: "free", Quantity: 10, AvgCost: 0},
		{AssetID: "unpriced", Quantity: 1, AvgCost: 5},
	}
	views := ComputeDerived(lots, map[string]float64{"up": 150, "free": 3})

	if v := views[0]; v.Value != 300 || v.PnL != 100 || v.PnLPercent != 50 {
		t.Fatalf("up: %+v", v)
	}
	if v := views[1]; v.PnLPercent != 0 || v.Value != 30 || v.PnL != 30 {
		t.Fatalf("zero cost basis should yield 0%%: %+v", v)
	}
	if v := views[2]; v.Priced || v.Value != 0 {
		t.Fatalf("unpriced: %+v", v)
	}
	for _, v := range views {
		if math.IsNaN(v.PnLPercent) || math.IsInf(v.PnLPercent, 0) {
			t.Fatalf("non-finite pnlPercent for %s", v.AssetID)
		}
	}
}

func TestTotals(t *testing.T) {
	views := ComputeDerived([]models.HoldingLot{
		{AssetID: "a", Quantity: 2, AvgCost: 100},
		{AssetID: "b", Quantity: 1, AvgCost: 50},
	}, map[string]float64{"a": 110, "b": 40})

	tot := Totals(views)
	if tot.Value != 260 || tot.Cost != 250 || tot.PnL != 10 || tot.PnLPercent != 4 {
		t.Fatalf("totals: %+v", tot)
	}
	if empty := Totals(nil); empty.PnLPercent != 0 {
		t.Fatalf("empty totals: %+v", empty)
	}
}

func TestSortViews_Stable(t *testing.T) {
	views := []models.HoldingView{
		{HoldingLot: models.HoldingLot{AssetID: "a", Name: "Alpha"}, Value: 10},
		{HoldingLot: models.HoldingLot{AssetID: "b", Name: "beta"}, Value: 20},
		{HoldingLot: models.HoldingLot{AssetID: "c", Name: "Gamma"}, Value: 10},
		{HoldingLot: models.HoldingLot{AssetID: "d", Name: "delta"}, Value: 20},
	}

	if err := SortViews(views, "value", true); err != nil {
		t.Fatalf("SortViews: %v", err)
	}
	got := ""
	for _, v := range views {
		got += v.AssetID
	}
	if got != "bdac" {
		t.Fatalf("desc by value with stable ties: got %s, want bdac", got)
	}

	if err := SortViews(views, "name", false); err != nil {
		t.Fatalf("SortViews: %v", err)
	}
	if views[0].AssetID != "a" || views[1].AssetID != "b" || views[2].AssetID != "d" {
		t.Fatalf("name sort should be case-insensitive: %+v", views)
	}

	var ve *ValidationError
	if err := SortViews(views, "color", false); !errors.As(err, &ve) {
		t.Fatalf("unknown field: %v", err)
	}
}
