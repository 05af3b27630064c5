package api

import (
	"net/http"
	"strings"

	"github.com/kjannette/cryptodash/internal/currency"
	"github.com/kjannette/cryptodash/internal/format"
	"github.com/kjannette/cryptodash/internal/models"
	"github.com/kjannette/cryptodash/internal/portfolio"
)

type holdingJSON struct {
	models.HoldingView
	PriceDisplay string `json:"priceDisplay"`
	ValueDisplay string `json:"valueDisplay"`
	PnLDisplay   string `json:"pnlDisplay"`
}

// GET /v1/portfolio?currency=usd&sort=value&dir=desc
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	code, err := parseCurrency(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lots := s.wallet.Holdings()
	views := portfolio.ComputeDerived(lots, s.pricesFor(r, lots))
	if field := r.URL.Query().Get("sort"); field != "" {
		desc := !strings.EqualFold(r.URL.Query().Get("dir"), "asc")
		if err := portfolio.SortViews(views, field, desc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	totals := portfolio.Totals(views)

	out := make([]holdingJSON, len(views))
	for i, v := range views {
		out[i] = holdingJSON{
			HoldingView:  v,
			PriceDisplay: s.displayIfPriced(v.CurrentPrice, v.Priced, code),
			ValueDisplay: s.displayIfPriced(v.Value, v.Priced, code),
			PnLDisplay:   s.displayIfPriced(v.PnL, v.Priced, code),
		}
	}

	cash := s.wallet.Cash()
	writeJSON(w, http.StatusOK, map[string]any{
		"currency":     code,
		"holdings":     out,
		"totals":       totals,
		"valueDisplay": s.conv.Format(totals.Value, code),
		"pnlDisplay":   s.conv.Format(totals.PnL, code),
		"cash":         cash,
		"cashDisplay":  s.conv.Format(cash, code),
		"initialCash":  s.wallet.InitialCash(),
	})
}

// pricesFor takes prices from the poller board and looks up whatever it is
// missing.
func (s *Server) pricesFor(r *http.Request, lots []models.HoldingLot) map[string]float64 {
	prices := make(map[string]float64, len(lots))
	if s.board != nil {
		for id, p := range s.board.Prices() {
			prices[id] = p
		}
	}
	var missing []string
	for _, l := range lots {
		if _, ok := prices[l.AssetID]; !ok {
			missing = append(missing, l.AssetID)
		}
	}
	if len(missing) > 0 {
		for id, p := range s.market.Prices(r.Context(), missing) {
			prices[id] = p
		}
	}
	return prices
}

func (s *Server) displayIfPriced(usd float64, priced bool, code currency.Code) string {
	if !priced {
		return format.NotAvailable
	}
	return s.conv.Format(usd, code)
}

type buyRequest struct {
	AssetID       string  `json:"assetId"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	USDAmount     float64 `json:"usdAmount"`
	Price         float64 `json:"price"`
	PayFromWallet bool    `json:"payFromWallet"`
}

// POST /v1/portfolio/buy
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AssetID == "" {
		writeError(w, http.StatusBadRequest, "assetId is required")
		return
	}

	asset := models.Asset{ID: req.AssetID, Symbol: req.Symbol, Name: req.Name}
	price := req.Price
	if asset.Symbol == "" || price == 0 {
		d, err := s.market.AssetDetail(r.Context(), req.AssetID)
		if err != nil {
			s.fail(w, r, err, "failed to resolve asset")
			return
		}
		if asset.Symbol == "" {
			asset.Symbol, asset.Name = d.Symbol, d.Name
		}
		if price == 0 {
			price = d.CurrentPrice
		}
	}

	trade, err := s.wallet.Buy(r.Context(), asset, req.USDAmount, price, req.PayFromWallet)
	if err != nil {
		s.fail(w, r, err, "buy failed")
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

type sellRequest struct {
	AssetID string  `json:"assetId"`
	Units   float64 `json:"units"`
	Price   float64 `json:"price"`
}

// POST /v1/portfolio/sell
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AssetID == "" {
		writeError(w, http.StatusBadRequest, "assetId is required")
		return
	}

	price := req.Price
	if price == 0 {
		p, err := s.market.LatestPrice(r.Context(), req.AssetID)
		if err != nil {
			s.fail(w, r, err, "failed to price asset")
			return
		}
		price = p
	}

	trade, err := s.wallet.Sell(r.Context(), req.AssetID, req.Units, price)
	if err != nil {
		s.fail(w, r, err, "sell failed")
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

// GET /v1/portfolio/trades?limit=50
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": s.wallet.Trades(limit),
		"stats":  s.wallet.Stats(),
	})
}

// GET /v1/portfolio/history?limit=100
// Reads the persisted journal, which outlives the in-memory wallet.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "trade journal not configured")
		return
	}
	trades, err := s.history.Recent(r.Context(), parseLimit(r, 100))
	if err != nil {
		s.fail(w, r, err, "failed to read trade history")
		return
	}
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err, "failed to read trade stats")
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"stats":  stats,
	})
}
