package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/log"
)

func newTestLimiter(t *testing.T, perMinute int, mutationsOnly bool) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{Name: "test", RequestsPerMinute: perMinute, MutationsOnly: mutationsOnly}, log.Discard())
	t.Cleanup(l.Stop)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWindow(t *testing.T) {
	l, now := newTestLimiter(t, 2, false)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request in the window should be rejected")
	}
	if !l.Allow("b") {
		t.Fatal("other clients have their own window")
	}
	if got := l.RetryAfter("a"); got != 60 {
		t.Fatalf("retry after: %d", got)
	}

	*now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Fatal("window should reset after a minute")
	}
}

func TestCleanupDropsStaleClients(t *testing.T) {
	l, now := newTestLimiter(t, 5, false)
	l.Allow("a")
	*now = now.Add(3 * time.Minute)
	l.Allow("b")
	l.cleanup()
	if got := l.ActiveClients(); got != 1 {
		t.Fatalf("expected 1 client after cleanup, got %d", got)
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(t, 1, true)
	h := l.Middleware(func(r *http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/wallets", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first post: %d", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second post: %d %v", rec.Code, rec.Header())
	}
	if rec := do(http.MethodGet); rec.Code != http.StatusNoContent {
		t.Fatalf("reads are not limited: %d", rec.Code)
	}
	if l.Rejected() != 1 {
		t.Fatalf("rejected: %d", l.Rejected())
	}
}
