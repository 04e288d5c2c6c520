package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/bnema/nap-alarm/internal/logger"
)

const userAgent = "nap-alarm/1.0"

// NewHTTPClient returns the base client for token exchanges and API calls.
// Requests are bounded by their context rather than a client-wide timeout.
func NewHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: &userAgentTransport{base: base},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Never replay a bearer token to another host
			if len(via) > 0 && req.URL.Host != via[0].URL.Host {
				logger.Warn("refusing cross-host redirect", "from", via[0].URL.Host, "to", req.URL.Host)
				return http.ErrUseLastResponse
			}
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// WithClient makes the oauth2 package use client for exchanges and as the base of authorized clients
func WithClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", userAgent)
	}
	return t.base.RoundTrip(req)
}
