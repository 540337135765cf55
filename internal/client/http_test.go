package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func transportOf(t *testing.T, c *http.Client) *http.Transport {
	t.Helper()
	ht, ok := c.Transport.(*headerTransport)
	if !ok {
		t.Fatalf("expected *headerTransport, got %T", c.Transport)
	}
	tr, ok := ht.base.(*http.Transport)
	if !ok || tr == nil {
		t.Fatalf("expected *http.Transport, got %T", ht.base)
	}
	return tr
}

func TestInitHTTPClientFillsDefaults(t *testing.T) {
	sharedClient = nil
	clientInitialized = false

	InitHTTPClient(&Config{})
	c := GetHTTPClient()

	tr := transportOf(t, c)
	if tr.MaxIdleConns == 0 {
		t.Fatalf("expected MaxIdleConns defaulted, got %d", tr.MaxIdleConns)
	}
	if tr.MaxIdleConnsPerHost == 0 {
		t.Fatalf("expected MaxIdleConnsPerHost defaulted, got %d", tr.MaxIdleConnsPerHost)
	}
	if tr.MaxConnsPerHost == 0 {
		t.Fatalf("expected MaxConnsPerHost defaulted, got %d", tr.MaxConnsPerHost)
	}
	if c.Timeout != defaultRequestTimeout {
		t.Fatalf("expected request timeout %v, got %v", defaultRequestTimeout, c.Timeout)
	}
}

func TestProbeConfigDisablesVerification(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(ProbeConfig(3 * time.Second))
	tr := transportOf(t, c)
	if !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatal("probe client should skip certificate verification")
	}
	if c.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", c.Timeout)
	}
}

func TestInsecureClientAcceptsSelfSignedCert(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(ProbeConfig(5 * time.Second)).Get(srv.URL)
	if err != nil {
		t.Fatalf("insecure GET failed: %v", err)
	}
	resp.Body.Close()

	if _, err := NewHTTPClient(DefaultConfig()).Get(srv.URL); err == nil {
		t.Fatal("verifying client should reject a self-signed certificate")
	}
}

func TestDefaultHeadersDoNotOverrideCaller(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	c := NewHTTPClient(ProbeConfig(5 * time.Second))

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if gotUA != DefaultUserAgent {
		t.Fatalf("User-Agent = %q, want default", gotUA)
	}
	if gotAccept == "" {
		t.Fatal("expected default Accept header")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err = c.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if gotUA != "custom/1.0" {
		t.Fatalf("User-Agent = %q, want caller value", gotUA)
	}
}

func TestRedirectLimit(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/loop", http.StatusFound)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxRedirects = 3
	_, err := NewHTTPClient(cfg).Get(srv.URL)
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("expected ErrTooManyRedirects, got %v", err)
	}
}
