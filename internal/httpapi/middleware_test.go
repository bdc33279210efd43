package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aipipe/gateway/internal/telemetry"
)

func TestRouteLabelTruncatesToFirstSegment(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want string
	}{
		{"/openai/v1/chat/completions", "/openai"},
		{"/admin/usage", "/admin"},
		{"/healthz", "/healthz"},
		{"/", "/"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.path, nil)
		if got := routeLabel(req); got != c.want {
			t.Errorf("routeLabel(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	s := newTestServer(nil, newTestLedger(t), newTestToken(t))
	s.Metrics = m
	s.Tracer = telemetry.Tracer("test")
	h := New(s)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "aipipe_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("aipipe_requests_total was not recorded by metricsMiddleware")
	}
}

func TestStatusWriterCapturesFirstWriteHeaderOnly(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}

	sw.WriteHeader(http.StatusCreated)
	sw.WriteHeader(http.StatusInternalServerError)

	if sw.status != http.StatusCreated {
		t.Errorf("status = %d, want %d (first WriteHeader wins)", sw.status, http.StatusCreated)
	}
}
