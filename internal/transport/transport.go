// Package transport builds the shared outbound HTTP transport used by
// every provider adapter and the URL pass-through proxy: a tuned
// http.Transport whose DialContext resolves hosts through a cached
// DNS resolver, avoiding a lookup on every upstream connection.
package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// New builds an *http.Client suitable for high-throughput upstream
// fetches. resolver may be nil, in which case DNS resolution falls
// back to the default dialer.
func New(resolver *dnscache.Resolver, timeout time.Duration) *http.Client {
	t := &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return &http.Client{Transport: t, Timeout: timeout}
}

// NewResolver creates a DNS cache resolver and starts a background
// goroutine that refreshes it every refreshEvery until ctx is cancelled.
func NewResolver(ctx context.Context, refreshEvery time.Duration) *dnscache.Resolver {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-ctx.Done():
				return
			}
		}
	}()
	return resolver
}
