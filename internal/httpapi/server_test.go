package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gateway "github.com/aipipe/gateway/internal"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestReadyzNoCheckerDefaultsOK(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadyzFailingCheckerReturns503(t *testing.T) {
	t.Parallel()
	s := newTestServer(nil, newTestLedger(t), newTestToken(t))
	s.ReadyCheck = func(context.Context) error { return errors.New("db down") }
	h := New(s)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Body.String() != "not ready" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "not ready")
	}
}

func TestUnknownProviderReturns404(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(map[string]gateway.Adapter{}, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodPost, "/nope/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUnmatchedRouteReturns404(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCorsPreflightShortCircuits(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(map[string]gateway.Adapter{}, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodOptions, "/openai/v1/chat/completions", nil)
	req.Header.Set("Access-Control-Request-Headers", "X-Custom-Header")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "X-Custom-Header" {
		t.Errorf("Access-Control-Allow-Headers = %q, want echoed request headers", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want 86400", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("preflight body = %q, want empty", rec.Body.String())
	}
}

func TestSecurityHeadersSetOnEveryResponse(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Error("X-Request-Id not set on response")
	}
}

func TestRequestIDEchoesValidClientValue(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied-id" {
		t.Errorf("X-Request-Id = %q, want echoed client value", got)
	}
}

func TestRequestIDRejectsInvalidClientValue(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "has spaces/invalid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got == "has spaces/invalid" {
		t.Error("invalid client request ID was echoed back instead of replaced")
	}
}
