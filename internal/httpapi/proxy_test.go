package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestURLProxyRejectsNonHTTPTarget(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/proxy/not-a-url", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestURLProxyForwardsAndSetsHeader(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("upstream body"))
	}))
	defer upstream.Close()

	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	target := upstream.URL + "/path"
	req := httptest.NewRequest(http.MethodGet, "/proxy/placeholder", nil)
	req.URL.Path = "/proxy/" + target
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if rec.Body.String() != "upstream body" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "upstream body")
	}
	if got := rec.Header().Get("X-Proxy-Url"); got != target {
		t.Errorf("X-Proxy-Url = %q, want %q", got, target)
	}
}

func TestURLProxyTimesOutAs504(t *testing.T) {
	t.Parallel()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("too late"))
	}))
	defer slow.Close()

	s := newTestServer(nil, newTestLedger(t), newTestToken(t))
	s.UpstreamClient = &http.Client{Timeout: 1 * time.Millisecond}
	h := New(s)

	target := slow.URL + "/slow"
	req := httptest.NewRequest(http.MethodGet, "/proxy/"+target, nil)
	req.URL.Path = "/proxy/" + target
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d on client-side timeout", rec.Code, http.StatusGatewayTimeout)
	}
}
