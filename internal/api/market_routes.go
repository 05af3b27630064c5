package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/kjannette/cryptodash/internal/format"
	"github.com/kjannette/cryptodash/internal/market"
	"github.com/kjannette/cryptodash/internal/models"
)

type assetJSON struct {
	models.Asset
	PriceDisplay     string `json:"priceDisplay"`
	MarketCapDisplay string `json:"marketCapDisplay"`
	ChangeDisplay    string `json:"changeDisplay"`
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	code, err := parseCurrency(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := parsePositive(r, "page", 1, 10000)
	perPage := parsePositive(r, "perPage", 100, 250)

	assets, err := s.market.SearchAssets(r.Context(), page, perPage, r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err, "failed to fetch assets")
		return
	}

	out := make([]assetJSON, len(assets))
	for i, a := range assets {
		out[i] = assetJSON{
			Asset:            a,
			PriceDisplay:     s.conv.Format(a.CurrentPrice, code),
			MarketCapDisplay: format.LargeNumber(a.MarketCap),
			ChangeDisplay:    format.Percent(a.PriceChangePercent24h),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssetDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.market.AssetDetail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err, "failed to fetch asset")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be one of %v", market.ValidDays))
			return
		}
		days = n
	}

	series, err := s.market.PriceSeries(r.Context(), mux.Vars(r)["id"], days)
	if err != nil {
		s.fail(w, r, err, "failed to fetch chart")
		return
	}

	labels := make([]string, len(series.Points))
	for i, p := range series.Points {
		labels[i] = format.Date(p.Timestamp, days)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"series": series,
		"labels": labels,
	})
}

func (s *Server) handleLatestPrice(w http.ResponseWriter, r *http.Request) {
	code, err := parseCurrency(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	price, err := s.market.LatestPrice(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "failed to fetch price")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"price":    price,
		"currency": code,
		"display":  s.conv.Format(price, code),
	})
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	g, err := s.market.GlobalSnapshot(r.Context())
	if err != nil {
		if s.board != nil {
			if cached := s.board.Global(); cached != nil {
				s.logger.Warn("serving last polled global snapshot", "err", err)
				g = cached
			}
		}
		if g == nil {
			s.fail(w, r, err, "failed to fetch global stats")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":         g,
		"marketCapDisplay": format.LargeNumber(g.TotalMarketCapUSD),
		"volumeDisplay":    format.LargeNumber(g.TotalVolumeUSD),
		"changeDisplay":    format.Percent(g.MarketCapChangePercent24h),
	})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	coins, err := s.market.Trending(r.Context())
	if err != nil {
		s.fail(w, r, err, "failed to fetch trending")
		return
	}
	if len(coins) == 0 && s.board != nil {
		coins = s.board.Trending()
	}
	if coins == nil {
		coins = []models.TrendingCoin{}
	}
	writeJSON(w, http.StatusOK, coins)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	code, err := parseCurrency(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a number")
		return
	}
	f, _ := amount.Float64()
	writeJSON(w, http.StatusOK, map[string]any{
		"usd":      amount.String(),
		"currency": code,
		"value":    s.conv.Convert(amount, code).String(),
		"display":  s.conv.Format(f, code),
	})
}
