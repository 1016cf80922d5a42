package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Limits of the default round trippers.
const (
	DialTimeout           = 3 * time.Second
	KeepAlive             = 10 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	HTTP2PingTimeout      = 3 * time.Second
	MaxConnectionsPerHost = 32
)

// DefaultRoundTripper prefers HTTP/2 and falls back to HTTP/1.1.
func DefaultRoundTripper() http.RoundTripper {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         Dialer().DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: TLSHandshakeTimeout,
		IdleConnTimeout:     IdleConnTimeout,
		MaxConnsPerHost:     MaxConnectionsPerHost,
		MaxIdleConnsPerHost: MaxConnectionsPerHost,
	}
}

// HTTP2RoundTripper speaks only HTTP/2 over TLS, broken connections are detected by pings.
func HTTP2RoundTripper() http.RoundTripper {
	return &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			d := &tls.Dialer{NetDialer: Dialer(), Config: cfg}
			return d.DialContext(ctx, network, addr)
		},
		ReadIdleTimeout:  HTTP2PingTimeout,
		PingTimeout:      HTTP2PingTimeout,
		WriteByteTimeout: HTTP2PingTimeout,
	}
}

// Dialer used by the default round trippers.
func Dialer() *net.Dialer {
	return &net.Dialer{Timeout: DialTimeout, KeepAlive: KeepAlive}
}
