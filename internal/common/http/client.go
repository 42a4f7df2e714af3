// Package http builds the outbound HTTP clients used for feeds and enrichment
// providers. It performs requests and reports structured outcomes; retry and
// circuit-breaking policy belongs to the callers.
package http

import (
	"net"
	"net/http"
	"time"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout               time.Duration
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	Transport             http.RoundTripper
}

// DefaultClientConfig suits the enrichment providers: one paced request at a
// time per host
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		DialTimeout:         10 * time.Second,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
}

type ClientOption func(*ClientConfig)

// WithTimeout bounds a whole request, body included
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithResponseHeaderTimeout bounds the wait for the first response byte.
// Feed downloads set it below Timeout so a stalled catalog fails early.
func WithResponseHeaderTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ResponseHeaderTimeout = timeout
	}
}

func WithMaxIdleConnsPerHost(max int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxIdleConnsPerHost = max
	}
}

// WithTransport replaces the transport; the dial and idle settings are ignored
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	transport := cfg.Transport
	if transport == nil {
		dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
		}
	}

	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

// NewFeedClient returns a client for catalog downloads. Feeds are large, so
// only the header wait is kept short.
func NewFeedClient(timeout time.Duration) *http.Client {
	header := timeout / 2
	if header > 30*time.Second {
		header = 30 * time.Second
	}
	return NewHTTPClient(WithTimeout(timeout), WithResponseHeaderTimeout(header), WithMaxIdleConnsPerHost(1))
}

func NewHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	return NewHTTPClient(WithTimeout(timeout))
}
