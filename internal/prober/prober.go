/*
Package prober classifies resolved hosts by HTTP reachability.

A probe tries HTTPS then HTTP, stops at the first scheme whose status satisfies
the configured predicate, and reads only a short prefix of the body to pull out
the page title.
*/
package prober

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
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/x-stp/rxsub/internal/metrics"
)

const (
	// DefaultBodyLimit is how much of a response body is read for title extraction.
	DefaultBodyLimit = 1024
	// MaxTitleLength is the title cap in characters.
	MaxTitleLength = 100
	NoTitle        = "No Title"
	UnknownServer  = "Unknown"
)

// DefaultSchemes is the probe order.
var DefaultSchemes = []string{"https", "http"}

// Predicate decides whether a status code counts as a live service.
type Predicate func(status int) bool

// Strict accepts any status below 400.
func Strict(status int) bool { return status > 0 && status < 400 }

var permissiveCodes = map[int]struct{}{200: {}, 301: {}, 302: {}, 401: {}, 403: {}}

// Permissive accepts 200, 301, 302, 401 and 403. Auth-walled hosts count as
// live, server errors never do.
func Permissive(status int) bool {
	_, ok := permissiveCodes[status]
	return ok
}

// ProbeResult describes the successful scheme attempt.
type ProbeResult struct {
	URL            string  `json:"url"`
	StatusCode     int     `json:"status_code"`
	Title          string  `json:"title"`
	Server         string  `json:"server"`
	ContentType    string  `json:"content_type,omitempty"`
	ResponseTimeMs float64 `json:"response_time_ms"`
}

// Attempt records one scheme try. Err is set for transport failures; a
// response that fails the predicate has StatusCode set and Err nil.
type Attempt struct {
	Scheme     string
	URL        string
	StatusCode int
	Err        error
}

// ProbeOutcome is the result of Probe. Result is nil when no scheme matched.
type ProbeOutcome struct {
	Result   *ProbeResult
	Attempts []Attempt
}

// Config configures a Prober.
type Config struct {
	Timeout   time.Duration
	Predicate Predicate
	Schemes   []string
	BodyLimit int64
}

// Prober issues HTTP probes through a shared client.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	predicate Predicate
	schemes   []string
	bodyLimit int64
}

// New returns a Prober. The client should skip certificate verification and
// follow redirects; see client.ProbeConfig.
func New(httpClient *http.Client, cfg Config) *Prober {
	p := &Prober{
		client:    httpClient,
		timeout:   cfg.Timeout,
		predicate: cfg.Predicate,
		schemes:   cfg.Schemes,
		bodyLimit: cfg.BodyLimit,
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.timeout <= 0 {
		p.timeout = 5 * time.Second
	}
	if p.predicate == nil {
		p.predicate = Strict
	}
	if len(p.schemes) == 0 {
		p.schemes = DefaultSchemes
	}
	if p.bodyLimit <= 0 {
		p.bodyLimit = DefaultBodyLimit
	}
	return p
}

// Probe tries each scheme in order and returns on the first accepted status.
func (p *Prober) Probe(ctx context.Context, fqdn string) ProbeOutcome {
	var out ProbeOutcome
	for _, scheme := range p.schemes {
		if ctx.Err() != nil {
			break
		}
		res, att := p.try(ctx, scheme, fqdn)
		out.Attempts = append(out.Attempts, att)
		if res != nil {
			out.Result = res
			return out
		}
	}
	return out
}

func (p *Prober) try(ctx context.Context, scheme, fqdn string) (*ProbeResult, Attempt) {
	target := fmt.Sprintf("%s://%s", scheme, fqdn)
	att := Attempt{Scheme: scheme, URL: target}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		att.Err = err
		return nil, att
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		metrics.GetMetrics().ObserveProbe(scheme, 0, time.Since(start))
		logrus.Debugf("probe %s failed: %v", target, err)
		att.Err = err
		return nil, att
	}
	defer resp.Body.Close()

	att.StatusCode = resp.StatusCode
	if !p.predicate(resp.StatusCode) {
		metrics.GetMetrics().ObserveProbe(scheme, resp.StatusCode, time.Since(start))
		return nil, att
	}

	contentType := resp.Header.Get("Content-Type")
	body := readPrefix(resp.Body, p.bodyLimit, contentType)
	elapsed := time.Since(start)
	metrics.GetMetrics().ObserveProbe(scheme, resp.StatusCode, elapsed)

	server := resp.Header.Get("Server")
	if server == "" {
		server = UnknownServer
	}
	return &ProbeResult{
		URL:            target,
		StatusCode:     resp.StatusCode,
		Title:          ExtractTitle(body),
		Server:         server,
		ContentType:    contentType,
		ResponseTimeMs: float64(elapsed.Microseconds()) / 1000,
	}, att
}

// readPrefix reads at most limit bytes and decodes them to UTF-8 using the
// declared charset. Read errors just shorten the prefix.
func readPrefix(body io.Reader, limit int64, contentType string) string {
	raw, _ := io.ReadAll(io.LimitReader(body, limit))
	if len(raw) == 0 {
		return ""
	}
	r, err := charset.NewReader(strings.NewReader(string(raw)), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(r)
	if err != nil || len(decoded) == 0 {
		return string(raw)
	}
	return string(decoded)
}

var (
	titleRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ExtractTitle returns the first <title> in body with whitespace collapsed,
// truncated to MaxTitleLength characters. It returns NoTitle when there is none.
func ExtractTitle(body string) string {
	m := titleRe.FindStringSubmatch(body)
	if m == nil {
		return NoTitle
	}
	title := strings.TrimSpace(whitespaceRe.ReplaceAllString(m[1], " "))
	if title == "" {
		return NoTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		title = string([]rune(title)[:MaxTitleLength])
	}
	return title
}
