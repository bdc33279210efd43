package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const proxyTimeout = 30 * time.Second

// X-Proxy-URL header is added to every response forwarded from the
// upstream; error responses the proxy writes itself do not carry it.
const proxyURLHeader = "X-Proxy-Url"

// handleURLProxy is an unauthenticated, narrowly-scoped forward of
// one absolute URL.
func (s *Server) handleURLProxy(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	if !strings.HasPrefix(target, "http") {
		writeError(w, http.StatusBadRequest, "URL must begin with http")
		return
	}
	if _, err := url.Parse(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid URL")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, target, newBodyReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Header = r.Header.Clone()
	stripHopByHop(req.Header)

	resp, err := s.UpstreamClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			writeError(w, http.StatusGatewayTimeout, "upstream timeout")
			return
		}
		writeError(w, http.StatusInternalServerError, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	outH := w.Header()
	for k, vv := range resp.Header {
		outH[k] = vv
	}
	outH.Del("Transfer-Encoding")
	outH.Del("Connection")
	outH.Del("Content-Security-Policy")
	outH.Set(proxyURLHeader, target)

	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
