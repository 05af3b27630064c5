package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kjannette/cryptodash/internal/market"
	"github.com/kjannette/cryptodash/internal/portfolio"
	"github.com/kjannette/cryptodash/internal/risk"
	"github.com/kjannette/cryptodash/internal/session"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		apiKey string
		method string
		path   string
		auth   string
		want   int
	}{
		{"no key configured", "", http.MethodGet, "/v1/portfolio", "", http.StatusOK},
		{"health bypass", "secret123", http.MethodGet, "/health", "", http.StatusOK},
		{"preflight bypass", "secret123", http.MethodOptions, "/v1/assets", "", http.StatusOK},
		{"missing header", "secret123", http.MethodGet, "/v1/assets", "", http.StatusUnauthorized},
		{"wrong key", "secret123", http.MethodGet, "/v1/assets", "Bearer wrong_key", http.StatusUnauthorized},
		{"correct key", "secret123", http.MethodGet, "/v1/assets", "Bearer secret123", http.StatusOK},
		{"non-bearer scheme", "secret123", http.MethodGet, "/v1/assets", "Basic secret123", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{apiKey: tc.apiKey}
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rr := httptest.NewRecorder()
			s.authMiddleware(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query    string
		deflt    int
		expected int
	}{
		{"", 100, 100},
		{"?limit=50", 100, 50},
		{"?limit=0", 100, 100},
		{"?limit=-5", 100, 100},
		{"?limit=abc", 100, 100},
		{"?limit=2000", 100, maxQueryLimit},
		{"?limit=1000", 100, 1000},
		{"?limit=1", 50, 1},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/test"+tc.query, nil)
		got := parseLimit(req, tc.deflt)
		if got != tc.expected {
			t.Fatalf("parseLimit(%q, %d) = %d, want %d", tc.query, tc.deflt, got, tc.expected)
		}
	}
}

func TestParseCurrency(t *testing.T) {
	for query, ok := range map[string]bool{"": true, "?currency=INR": true, "?currency=btc": true, "?currency=eur": false} {
		req := httptest.NewRequest(http.MethodGet, "/v1/assets"+query, nil)
		_, err := parseCurrency(req)
		if (err == nil) != ok {
			t.Errorf("parseCurrency(%q): err=%v", query, err)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&market.ValidationError{Field: "days"}, http.StatusBadRequest},
		{fmt.Errorf("buy: %w", portfolio.ErrNonPositivePrice), http.StatusBadRequest},
		{&portfolio.InsufficientFundsError{Cash: 1, Required: 2}, http.StatusUnprocessableEntity},
		{&risk.BlockedError{Rule: "max_daily_trades", Detail: "limit reached"}, http.StatusForbidden},
		{session.ErrNoSession, http.StatusUnauthorized},
		{fmt.Errorf("%w: myspace", session.ErrUnknownProvider), http.StatusNotFound},
		{&market.AllProvidersError{Op: "global"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCorsMiddleware_Headers(t *testing.T) {
	handler := corsMiddleware(okHandler(), "https://myapp.example.com")

	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	origin := rr.Header().Get("Access-Control-Allow-Origin")
	if origin != "https://myapp.example.com" {
		t.Fatalf("expected custom origin, got %q", origin)
	}

	allow := rr.Header().Get("Access-Control-Allow-Headers")
	if allow == "" {
		t.Fatal("expected Allow-Headers to include Authorization")
	}
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called for OPTIONS")
	})
	handler := corsMiddleware(inner, "*")

	req := httptest.NewRequest(http.MethodOptions, "/v1/portfolio/buy", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
}
