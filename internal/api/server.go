package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kjannette/cryptodash/internal/currency"
	"github.com/kjannette/cryptodash/internal/models"
	"github.com/kjannette/cryptodash/internal/portfolio"
	"github.com/kjannette/cryptodash/internal/scheduler"
	"github.com/kjannette/cryptodash/internal/session"
	"github.com/kjannette/cryptodash/internal/storage"
)

const maxQueryLimit = 1000

// MarketData is what the HTTP layer needs from the market client.
type MarketData interface {
	SearchAssets(ctx context.Context, page, perPage int, q string) ([]models.Asset, error)
	AssetDetail(ctx context.Context, id string) (*models.AssetDetail, error)
	PriceSeries(ctx context.Context, id string, days int) (*models.PriceSeries, error)
	LatestPrice(ctx context.Context, id string) (float64, error)
	Prices(ctx context.Context, ids []string) map[string]float64
	GlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error)
	Trending(ctx context.Context) ([]models.TrendingCoin, error)
}

type Deps struct {
	Market   MarketData
	Wallet   *portfolio.Wallet
	Sessions *session.Store
	// History is the persisted trade journal; optional.
	History   storage.TradeLog
	Converter *currency.Converter
	// Board carries prices from the poller; optional.
	Board *scheduler.Board
	// Checks are reported by /health, keyed by service name.
	Checks map[string]func(context.Context) error
	Logger *slog.Logger
}

type Server struct {
	market     MarketData
	wallet     *portfolio.Wallet
	sessions   *session.Store
	history    storage.TradeLog
	conv       *currency.Converter
	board      *scheduler.Board
	checks     map[string]func(context.Context) error
	logger     *slog.Logger
	router     *mux.Router
	httpServer *http.Server
	apiKey     string
}

func NewServer(d Deps, port int, apiKey, corsOrigin string) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conv := d.Converter
	if conv == nil {
		conv = currency.NewConverter(currency.DefaultRates)
	}
	s := &Server{
		market:   d.Market,
		wallet:   d.Wallet,
		sessions: d.Sessions,
		history:  d.History,
		conv:     conv,
		board:    d.Board,
		checks:   d.Checks,
		logger:   logger.With("component", "api"),
		apiKey:   apiKey,
	}

	r := mux.NewRouter()

	// Market routes
	r.HandleFunc("/v1/assets", s.handleAssets).Methods(http.MethodGet)
	r.HandleFunc("/v1/assets/{id}", s.handleAssetDetail).Methods(http.MethodGet)
	r.HandleFunc("/v1/assets/{id}/chart", s.handleChart).Methods(http.MethodGet)
	r.HandleFunc("/v1/assets/{id}/price", s.handleLatestPrice).Methods(http.MethodGet)
	r.HandleFunc("/v1/global", s.handleGlobal).Methods(http.MethodGet)
	r.HandleFunc("/v1/trending", s.handleTrending).Methods(http.MethodGet)
	r.HandleFunc("/v1/convert", s.handleConvert).Methods(http.MethodGet)

	// Portfolio routes
	r.HandleFunc("/v1/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	r.HandleFunc("/v1/portfolio/buy", s.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/v1/portfolio/sell", s.handleSell).Methods(http.MethodPost)
	r.HandleFunc("/v1/portfolio/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/v1/portfolio/history", s.handleHistory).Methods(http.MethodGet)

	// Session routes
	r.HandleFunc("/v1/session", s.handleSessionCurrent).Methods(http.MethodGet)
	r.HandleFunc("/v1/session/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/session/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/v1/session/oauth/{provider}", s.handleOAuth).Methods(http.MethodPost)
	r.HandleFunc("/v1/session/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/v1/session/logout", s.handleLogout).Methods(http.MethodPost)

	// Health check (no auth required)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(corsOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler is the full middleware chain around the router.
func (s *Server) Handler(corsOrigin string) http.Handler {
	return s.authMiddleware(corsMiddleware(s.router, corsOrigin))
}

func (s *Server) Start() error {
	s.logger.Info("REST API server started", "addr", "http://localhost"+s.httpServer.Addr)
	if s.apiKey != "" {
		s.logger.Info("authentication enabled (Bearer token)")
	} else {
		s.logger.Info("authentication disabled, no API_KEY configured")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	return parsePositive(r, "limit", defaultLimit, maxQueryLimit)
}

// parsePositive reads a positive integer query value. Missing or malformed
// values yield def; values above max are clamped.
func parsePositive(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func parseCurrency(r *http.Request) (currency.Code, error) {
	return currency.ParseCode(r.URL.Query().Get("currency"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
