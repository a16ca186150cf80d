package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/popgraph/server/internal/infra/config"
)

// UserAgent identifies upstream calls made by the server.
const UserAgent = "popgraph-server/1.0"

// New creates a pooled HTTP client for inference engine calls.
// ResponseTimeout bounds one round trip; job deadlines are enforced by the job driver.
// Zero fields fall back to conservative defaults.
func New(cfg config.HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   orDefault(cfg.DialTimeout, 10*time.Second),
			KeepAlive: orDefault(cfg.KeepAlive, 30*time.Second),
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     orDefault(cfg.IdleConnTimeout, 90*time.Second),
		TLSHandshakeTimeout: orDefault(cfg.TLSHandshakeTimeout, 10*time.Second),
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: &userAgentTransport{next: transport},
		Timeout:   cfg.ResponseTimeout,
	}
}

// userAgentTransport sets a User-Agent on requests that lack one.
type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(req)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
