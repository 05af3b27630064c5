package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

// statusSequence answers with codes[n] on the n-th request, repeating the
// last code once the sequence runs out.
func statusSequence(attempts *atomic.Int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(attempts.Add(1)) - 1
		if n >= len(codes) {
			n = len(codes) - 1
		}
		w.WriteHeader(codes[n])
		if codes[n] >= 500 {
			w.Write([]byte("upstream error"))
		}
	}
}

func TestDo_StatusHandling(t *testing.T) {
	cases := []struct {
		name         string
		codes        []int
		wantAttempts int32
		wantStatus   int
		wantErr      bool
	}{
		{"success first attempt", []int{200}, 1, 200, false},
		{"recovers on third attempt", []int{503, 503, 200}, 3, 200, false},
		{"all attempts fail", []int{502}, 3, 0, true},
		{"client error not retried", []int{400}, 1, 400, false},
		{"not found not retried", []int{404}, 1, 404, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(statusSequence(&attempts, tc.codes...))
			defer srv.Close()

			client := &http.Client{Timeout: 5 * time.Second}
			cfg := RetryConfig{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

			resp, err := Do(context.Background(), client, cfg, func() (*http.Request, error) {
				return http.NewRequest(http.MethodGet, srv.URL, nil)
			})
			if got := attempts.Load(); got != tc.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, got)
			}
			if tc.wantErr {
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != tc.codes[len(tc.codes)-1] || !se.Transient() {
					t.Fatalf("expected transient StatusError, got %v", err)
				}
				t.Logf("error after retries: %v", err)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second}

	_, err := Do(ctx, client, cfg, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err == nil {
		t.Fatal("expected error from context cancellation")
	}
	t.Logf("Cancelled: %v", err)
}

func TestDo_RetriesRateLimitWithLongerWait(t *testing.T) {
	var attempts atomic.Int32
	var stamps [2]time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			stamps[n-1] = time.Now()
		}
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 1 * time.Second}

	resp, err := Do(context.Background(), client, cfg, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 100*time.Millisecond {
		t.Fatalf("429 should wait at least twice the base delay, waited %s", gap)
	}
}

func TestRateLimitWait(t *testing.T) {
	cases := []struct {
		header string
		delay  time.Duration
		want   time.Duration
	}{
		{"", time.Second, 2 * time.Second},
		{"5", time.Second, 5 * time.Second},
		{"1", time.Second, 2 * time.Second},
		{"120", time.Second, 10 * time.Second},
		{"soon", time.Second, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := rateLimitWait(tc.header, tc.delay, 10*time.Second); got != tc.want {
			t.Fatalf("rateLimitWait(%q, %s) = %s, want %s", tc.header, tc.delay, got, tc.want)
		}
	}
}

func TestCacheBust_FreshPerAttempt(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("_cb"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond}

	_, _ = Do(context.Background(), client, cfg, func() (*http.Request, error) {
		q := CacheBust(url.Values{"days": {"7"}})
		return http.NewRequest(http.MethodGet, srv.URL+"?"+q.Encode(), nil)
	})

	if len(seen) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(seen))
	}
	for _, cb := range seen {
		if cb == "" {
			t.Fatal("missing _cb parameter")
		}
	}
	if seen[0] == seen[1] {
		t.Fatalf("cache buster reused across attempts: %v", seen)
	}
}
