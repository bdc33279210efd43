package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	gateway "github.com/aipipe/gateway/internal"
	"github.com/aipipe/gateway/internal/policy"
	"github.com/aipipe/gateway/internal/sse"
)

// maxResponseBody caps how much of an upstream JSON body the pipeline
// will buffer for usage extraction before metering; larger bodies are
// forwarded as-is and not metered (see respondJSON).
const maxResponseBody = 32 << 20

// hopByHopHeaders lists headers that stripHopByHop removes, together
// with every cf-* header, before a request is forwarded upstream.
var hopByHopHeaders = []string{"Content-Length", "Host", "Connection", "Accept-Encoding"}

func stripHopByHop(h http.Header) {
	for _, k := range hopByHopHeaders {
		h.Del(k)
	}
	for k := range h {
		if strings.HasPrefix(strings.ToLower(k), "cf-") {
			h.Del(k)
		}
	}
}

// handleProvider implements the gateway pipeline for a request
// routed to a registered provider adapter.
func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	adapter, ok := s.Adapters[providerName]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	// Step 1: extract bearer.
	bearer, ok := extractBearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	// Step 2: classify credential.
	native := isNativeKey(bearer)
	var identity *gateway.Identity
	if !native {
		id, err := s.Token.Verify(bearer)
		if err != nil {
			writeError(w, http.StatusUnauthorized, invalidTokenMessage(err))
			return
		}
		identity = id
	}

	// Step 3: budget admission (identity tokens only).
	if !native {
		budget := policy.Lookup(identity.Email)
		sum, err := s.Ledger.Sum(r.Context(), identity.Email, budget.Days)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "budget check failed")
			return
		}
		if sum >= budget.Limit {
			writeError(w, http.StatusTooManyRequests,
				fmt.Sprintf("Usage $%.4f / $%.4f in %d days", sum, budget.Limit, budget.Days))
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	suffix := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		suffix += "?" + r.URL.RawQuery
	}

	// Step 4: adapter transform.
	result, err := adapter.Transform(r.Context(), gateway.TransformInput{
		Path:   suffix,
		Method: r.Method,
		Header: r.Header,
		Body:   body,
		Native: native,
		Bearer: bearer,
	})
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "adapter transform failed",
			slog.String("provider", providerName), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if result.Err != nil {
		writeError(w, result.Err.Status, result.Err.Message)
		return
	}

	if result.IsDirect() {
		w.Header()["Content-Type"] = jsonCT
		w.WriteHeader(http.StatusOK)
		w.Write(result.Direct)
		s.meter(r.Context(), adapter, native, identity, result.DirectModel, result.DirectUsage, suffix, body)
		return
	}

	// Step 6: upstream fetch.
	outHeader := result.Header.Clone()
	stripHopByHop(outHeader)

	req, err := http.NewRequestWithContext(r.Context(), r.Method, result.URL, newBodyReader(result.Body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header = outHeader

	// Gateway requests carry no explicit timeout: a client disconnect
	// cancels r.Context() and aborts the upstream fetch, but the
	// pipeline itself never imposes a deadline.
	start := time.Now()
	resp, err := s.UpstreamClient.Do(req)
	if s.Metrics != nil {
		s.Metrics.UpstreamDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.UpstreamErrors.WithLabelValues(providerName, "error").Inc()
		}
		writeError(w, http.StatusInternalServerError, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	// Step 8 header prep: strip hop-by-hop + CSP, add CORS (cors middleware
	// already added CORS; here we just strip what must not be forwarded).
	outH := w.Header()
	for k, vv := range resp.Header {
		outH[k] = vv
	}
	outH.Del("Transfer-Encoding")
	outH.Del("Connection")
	outH.Del("Content-Security-Policy")

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		s.respondJSON(w, r, resp, adapter, native, identity, providerName, suffix, body)
	case strings.Contains(contentType, "text/event-stream"):
		s.respondSSE(w, r, resp, adapter, native, identity, suffix, body)
	default:
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}

func newBodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return strings.NewReader(string(body))
}

func invalidTokenMessage(err error) string {
	if err == nil {
		return "invalid token"
	}
	return err.Error()
}

// respondJSON handles a JSON upstream response: buffer it, forward the
// original body unchanged, then parse usage and meter. A body larger
// than maxResponseBody is forwarded in full but not metered.
func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, resp *http.Response, adapter gateway.Adapter, native bool, identity *gateway.Identity, providerName string, path string, requestBody []byte) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upstream response")
		return
	}

	w.WriteHeader(resp.StatusCode)
	w.Write(body)
	if len(body) >= maxResponseBody {
		io.Copy(w, resp.Body)
		return
	}

	model, usage := adapter.Parse(body)
	s.meter(r.Context(), adapter, native, identity, model, usage, path, requestBody)
}

// respondSSE forwards every chunk unmodified while side-scanning with
// the SSE splitter, metering exactly once at stream end.
func (s *Server) respondSSE(w http.ResponseWriter, r *http.Request, resp *http.Response, adapter gateway.Adapter, native bool, identity *gateway.Identity, path string, requestBody []byte) {
	splitter := sse.New(adapter)
	flusher, _ := w.(http.Flusher)

	w.WriteHeader(resp.StatusCode)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			w.Write(chunk)
			if flusher != nil {
				flusher.Flush()
			}
			splitter.Observe(chunk)
		}
		if readErr != nil {
			break
		}
	}

	model, usage := splitter.Result()
	s.meter(r.Context(), adapter, native, identity, model, usage, path, requestBody)
}

// meter computes and records cost on the ledger: native-key traffic
// is never metered; ledger failures are logged but never alter the
// client response, which has already been written. path/requestBody
// are the original provider-relative request path and body, passed
// through to Cost for adapters that must re-derive usage themselves
// when the response carried none (the Gemini countTokens fallback).
func (s *Server) meter(ctx context.Context, adapter gateway.Adapter, native bool, identity *gateway.Identity, model string, usage *gateway.Usage, path string, requestBody []byte) {
	if native || identity == nil {
		return
	}
	cost, err := adapter.Cost(ctx, gateway.CostInput{Model: model, Usage: usage, Path: path, RequestBody: requestBody})
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "cost calculation failed", slog.String("error", err.Error()))
		return
	}
	if cost <= 0 {
		return
	}
	if err := s.Ledger.Add(ctx, identity.Email, cost); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "ledger add failed", slog.String("error", err.Error()))
		return
	}
	if s.Metrics != nil {
		s.Metrics.LedgerAddTotal.WithLabelValues("false").Inc()
		s.Metrics.LedgerAddUSD.Add(cost)
	}
}
