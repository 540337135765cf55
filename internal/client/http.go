package client

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package client provides the HTTP client used for probing discovered hosts and for
querying the certificate transparency search service.

The package manages a shared global HTTP client instance that is configured once
and then read by every probe unit. Its configuration is immutable after setup, which
is what makes sharing it across hundreds of concurrent probes safe. NewHTTPClient
builds standalone clients for callers with different timeout or TLS needs.
*/

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultUserAgent is sent on every request unless the caller sets its own.
const DefaultUserAgent = "Mozilla/5.0 (compatible; rxsub/1.0; +https://github.com/x-stp/rxsub)"

var (
	defaultDialTimeout      = 5 * time.Second
	defaultKeepAliveTimeout = 30 * time.Second
	defaultIdleConnTimeout  = 90 * time.Second
	defaultMaxIdleConns     = 200
	// Probes hit many distinct hosts once each, so the per-host pool stays small.
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 16
	defaultRequestTimeout      = 10 * time.Second
	defaultMaxRedirects        = 10

	// sharedClient is the global HTTP client instance used by the probers.
	sharedClient *http.Client
	// sharedClientLock protects access to sharedClient and clientInitialized.
	sharedClientLock  sync.RWMutex
	clientInitialized bool
)

// ErrTooManyRedirects is returned (wrapped in *url.Error) when a redirect chain
// exceeds Config.MaxRedirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// Config holds configuration parameters for the HTTP client.
// A zero-value Config will result in default settings being used.
type Config struct {
	// DialTimeout is the maximum duration for establishing a new connection.
	DialTimeout time.Duration
	// KeepAliveTimeout specifies the keep-alive period for an active network connection.
	KeepAliveTimeout time.Duration
	// IdleConnTimeout is the maximum amount of time an idle connection stays pooled.
	IdleConnTimeout time.Duration
	// MaxIdleConns controls the maximum number of idle connections across all hosts.
	MaxIdleConns int
	// MaxIdleConnsPerHost is the maximum number of idle connections to keep per host.
	MaxIdleConnsPerHost int
	// MaxConnsPerHost limits dialing, active and idle connections per host.
	MaxConnsPerHost int
	// RequestTimeout bounds the entire request including redirects.
	RequestTimeout time.Duration
	// MaxRedirects caps the redirect chain; 0 means the default of 10.
	MaxRedirects int
	// InsecureSkipVerify disables certificate validation. Probes set it, since
	// the target's certificate trust says nothing about reachability.
	InsecureSkipVerify bool
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// Headers are added to every request that does not already carry them.
	Headers map[string]string
}

// DefaultConfig returns a new Config struct populated with default HTTP client settings.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:         defaultDialTimeout,
		KeepAliveTimeout:    defaultKeepAliveTimeout,
		IdleConnTimeout:     defaultIdleConnTimeout,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		RequestTimeout:      defaultRequestTimeout,
		MaxRedirects:        defaultMaxRedirects,
		UserAgent:           DefaultUserAgent,
	}
}

// ProbeConfig returns the configuration used for liveness probes: permissive TLS,
// browser-like Accept headers and the given per-request timeout.
func ProbeConfig(timeout time.Duration) *Config {
	cfg := DefaultConfig()
	cfg.DialTimeout = timeout
	cfg.RequestTimeout = timeout
	cfg.InsecureSkipVerify = true
	cfg.Headers = map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
	return cfg
}

// fillDefaults replaces zero values with defaults without touching set fields.
func (c *Config) fillDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = defaultKeepAliveTimeout
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if c.MaxConnsPerHost == 0 {
		c.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// headerTransport sets default headers on outgoing requests. The request is
// cloned so caller-owned requests are never mutated.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	missing := false
	for k := range t.headers {
		if req.Header.Get(k) == "" {
			missing = true
			break
		}
	}
	if !missing {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(r)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the pool.
func (t *headerTransport) CloseIdleConnections() {
	if ci, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// NewHTTPClient builds a standalone client from config. A nil config uses DefaultConfig.
func NewHTTPClient(config *Config) *http.Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.fillDefaults()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAliveTimeout,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.DialTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // probes classify reachability, not trust
		},
	}

	headers := map[string]string{"User-Agent": cfg.UserAgent}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	maxRedirects := cfg.MaxRedirects
	return &http.Client{
		Transport: &headerTransport{base: transport, headers: headers},
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects: %w", maxRedirects, ErrTooManyRedirects)
			}
			return nil
		},
	}
}

// InitHTTPClient initializes or reconfigures the shared global HTTP client.
// If a nil config is provided, it uses DefaultConfig(). This function is thread-safe.
func InitHTTPClient(config *Config) {
	sharedClientLock.Lock()
	defer sharedClientLock.Unlock()

	// Close idle connections on the old transport so reconfiguring does not leak them.
	if sharedClient != nil {
		sharedClient.CloseIdleConnections()
	}

	sharedClient = NewHTTPClient(config)
	clientInitialized = true
}

// GetHTTPClient returns the shared global HTTP client instance, initializing it
// with default settings on first use. This function is thread-safe.
func GetHTTPClient() *http.Client {
	sharedClientLock.RLock()
	if !clientInitialized {
		sharedClientLock.RUnlock()
		sharedClientLock.Lock()
		if !clientInitialized {
			sharedClient = NewHTTPClient(nil)
			clientInitialized = true
		}
		sharedClientLock.Unlock()
		sharedClientLock.RLock()
	}
	c := sharedClient
	sharedClientLock.RUnlock()
	return c
}
