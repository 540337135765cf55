package certlib

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

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x-stp/rxsub/internal/client"
	"github.com/x-stp/rxsub/internal/metrics"
)

const (
	// DefaultCrtShURL is the public crt.sh search endpoint.
	DefaultCrtShURL = "https://crt.sh/"
	// DefaultCTTimeout bounds the single CT request.
	DefaultCTTimeout = 30 * time.Second
	// DefaultMaxRecords caps how many certificate records are examined.
	DefaultMaxRecords = 50
)

// Source produces candidate labels for a domain. Implementations never fail:
// an unreachable or broken source yields an empty slice.
type Source interface {
	Search(ctx context.Context, domain string) []string
}

// NopSource is a Source that never returns anything.
type NopSource struct{}

// Search implements Source.
func (NopSource) Search(context.Context, string) []string { return nil }

// CrtShSource queries crt.sh for certificates issued under a domain.
type CrtShSource struct {
	BaseURL    string
	Client     *http.Client
	Timeout    time.Duration
	MaxRecords int
}

// NewCrtShSource returns a source with defaults applied for zero values.
// A nil httpClient gets a dedicated client with certificate verification on.
func NewCrtShSource(baseURL string, httpClient *http.Client, timeout time.Duration, maxRecords int) *CrtShSource {
	if baseURL == "" {
		baseURL = DefaultCrtShURL
	}
	if timeout <= 0 {
		timeout = DefaultCTTimeout
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if httpClient == nil {
		cfg := client.DefaultConfig()
		cfg.RequestTimeout = timeout
		httpClient = client.NewHTTPClient(cfg)
	}
	return &CrtShSource{
		BaseURL:    baseURL,
		Client:     httpClient,
		Timeout:    timeout,
		MaxRecords: maxRecords,
	}
}

// Search implements Source. Failures are logged at warn level and reported as
// an empty result.
func (s *CrtShSource) Search(ctx context.Context, domain string) []string {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil
	}

	start := time.Now()
	records, err := s.fetch(ctx, domain)
	if err != nil {
		logrus.Warnf("CT search for %s failed, continuing without CT candidates: %v", domain, err)
		metrics.GetMetrics().ObserveCTQuery("error", 0, time.Since(start))
		return nil
	}

	labels := ExtractLabels(records, domain, s.MaxRecords)
	logrus.Debugf("CT search for %s: %d records examined, %d labels", domain, min(len(records), s.MaxRecords), len(labels))
	metrics.GetMetrics().ObserveCTQuery("ok", len(labels), time.Since(start))
	return labels
}

// fetch performs the request and decodes up to MaxRecords records.
func (s *CrtShSource) fetch(ctx context.Context, domain string) ([]CTRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CT base URL %q: %w", s.BaseURL, err)
	}
	q := url.Values{}
	q.Set("q", "%."+domain)
	q.Set("output", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d from %s", resp.StatusCode, u.Host)
	}

	// crt.sh can return thousands of records; stop decoding once the cap is hit.
	dec := json.NewDecoder(resp.Body)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("error parsing CT JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("error parsing CT JSON: expected array, got %v", tok)
	}

	var records []CTRecord
	for dec.More() && len(records) < s.MaxRecords {
		var rec CTRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("error parsing CT record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}
