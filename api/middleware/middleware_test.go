package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "valid", token: "s3cret", header: "Bearer s3cret", want: http.StatusNoContent},
		{name: "case insensitive scheme", token: "s3cret", header: "bearer s3cret", want: http.StatusNoContent},
		{name: "wrong token", token: "s3cret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing header", token: "s3cret", header: "", want: http.StatusUnauthorized},
		{name: "unconfigured token", token: "", header: "Bearer ", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/cron/expire-orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			BearerToken(tc.token, logger.Nop())(okHandler).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

type countingLimiter struct {
	counts map[string]int64
	err    error
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func TestRateLimitBlocksAfterLimitPerIP(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}
	h := RateLimit(RateLimitPolicy{Name: "chat", Limit: 2, Window: time.Minute}, limiter, logger.Nop())(okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/inbound", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other ip should pass, got %d", code)
	}
	if _, ok := limiter.counts["chat:ip:10.0.0.1"]; !ok {
		t.Fatalf("unexpected scopes %v", limiter.counts)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	h := RateLimit(RateLimitPolicy{Name: "chat", Limit: 1, Window: time.Minute}, limiter, logger.Nop())(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request through, got %d", rec.Code)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	Recoverer(logger.Nop())(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	RequestID(logger.Nop())(okHandler).ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	for _, value := range []string{strings.Repeat("a", 65), "bad\nid", "idé"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", value)
		RequestID(logger.Nop())(okHandler).ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-Id")
		if got == value || got == "" {
			t.Fatalf("expected a minted id for %q, got %q", value, got)
		}
	}
}

func TestLoggingRecordsStatusAndRoute(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/orders/{orderId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"route":"/orders/{orderId}"`) {
		t.Fatalf("expected status and route in log line, got %s", out)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected healthy probes to stay quiet, got %s", buf.String())
	}
}
