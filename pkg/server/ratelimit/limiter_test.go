package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/fieldguard/pkg/server/auth"
	"mercator-hq/fieldguard/pkg/telemetry/logging"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(3, 0)

	for i := range 3 {
		ok, remaining := tb.Take()
		if !ok {
			t.Fatalf("Take() #%d rejected", i+1)
		}
		if want := int64(2 - i); remaining != want {
			t.Errorf("remaining after #%d = %d, want %d", i+1, remaining, want)
		}
	}
	if ok, _ := tb.Take(); ok {
		t.Error("Take() on an empty bucket allowed")
	}
	if d := tb.RetryAfter(); d != 0 {
		t.Errorf("RetryAfter() with no refill = %v, want 0", d)
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	tb := NewTokenBucket(1, 100)
	if ok, _ := tb.Take(); !ok {
		t.Fatal("first Take() rejected")
	}
	if d := tb.RetryAfter(); d <= 0 || d > 10*time.Millisecond {
		t.Errorf("RetryAfter() = %v, want about 10ms", d)
	}

	time.Sleep(30 * time.Millisecond)
	if ok, _ := tb.Take(); !ok {
		t.Error("Take() after refill rejected")
	}
}

func TestLimiter_PerClient(t *testing.T) {
	l := New(0.001, 2, 0, logging.Discard())

	for i := range 2 {
		if ok, _, _ := l.Allow("a"); !ok {
			t.Fatalf("client a request %d rejected", i+1)
		}
	}
	ok, _, retry := l.Allow("a")
	if ok {
		t.Fatal("client a over its burst allowed")
	}
	if retry <= 0 {
		t.Errorf("retryAfter = %v, want positive", retry)
	}
	if ok, _, _ := l.Allow("b"); !ok {
		t.Error("client b throttled by client a")
	}
	if l.Clients() != 2 {
		t.Errorf("Clients() = %d, want 2", l.Clients())
	}
}

func TestLimiter_EvictsIdleClients(t *testing.T) {
	l := New(1, 1, 10*time.Millisecond, logging.Discard())
	l.Allow("a")
	l.Allow("b")

	time.Sleep(20 * time.Millisecond)
	l.Allow("c")

	if l.Clients() != 1 {
		t.Errorf("Clients() = %d, want only the fresh client", l.Clients())
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := ClientKey(req); got != "ip:10.0.0.7" {
		t.Errorf("ClientKey() = %q", got)
	}

	mw := auth.NewMiddleware(
		auth.NewValidator(auth.Key{Name: "ci", Key: "k"}),
		[]auth.Source{{Type: auth.SourceHeader, Name: "X-API-Key"}},
		logging.Discard(),
	)
	var got string
	h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientKey(r)
	}))
	req = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	req.Header.Set("X-API-Key", "k")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "key:ci" {
		t.Errorf("ClientKey() behind auth = %q, want key:ci", got)
	}
}

func TestLimiter_Handle(t *testing.T) {
	l := New(0.001, 1, 0, logging.Discard())
	h := l.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	if first.Code != http.StatusOK {
		t.Fatalf("first request = %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Limit") != "1" || first.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("headers = %v", first.Header())
	}

	second := do()
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
