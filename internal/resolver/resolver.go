/*
Package resolver classifies candidate names by DNS existence.

Each lookup is a single attempt: an A query, and on a NOERROR response without
A records a CNAME query. Failures are never retried but keep their typed cause
(NXDOMAIN, no answer, timeout, server failure, malformed) so callers can report
them even though a scan only cares whether a host was found.
*/
package resolver

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
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/x-stp/rxsub/internal/metrics"
)

const (
	// DefaultTimeout bounds one lookup, including the CNAME fallback.
	DefaultTimeout = 5 * time.Second
	// FallbackServer is used when neither flags nor resolv.conf name a server.
	FallbackServer = "8.8.8.8:53"
	resolvConfPath = "/etc/resolv.conf"
)

var (
	ErrNXDomain      = errors.New("name does not exist")
	ErrNoAnswer      = errors.New("no answer")
	ErrTimeout       = errors.New("lookup timed out")
	ErrServerFailure = errors.New("server failure")
	ErrMalformed     = errors.New("malformed response")
)

// RecordType tells how a host was resolved.
type RecordType string

const (
	RecordA     RecordType = "A"
	RecordCNAME RecordType = "CNAME"
)

// ResolvedHost is a name that exists in DNS. Addresses is never empty.
type ResolvedHost struct {
	FQDN       string     `json:"fqdn"`
	Addresses  []string   `json:"addresses"`
	RecordType RecordType `json:"record_type"`
}

// Resolution is the outcome of one lookup. Host is set iff Err is nil.
type Resolution struct {
	Host *ResolvedHost
	Err  error
}

// OK reports whether the name resolved.
func (r Resolution) OK() bool { return r.Err == nil && r.Host != nil }

// Config configures a Resolver.
type Config struct {
	// Servers are "host" or "host:port" nameservers, used round-robin.
	Servers []string
	// Timeout bounds a whole lookup; zero means DefaultTimeout.
	Timeout time.Duration
}

// Resolver performs A/CNAME lookups against a fixed set of nameservers.
// It is safe for concurrent use.
type Resolver struct {
	servers []string
	timeout time.Duration
	udp     *dns.Client
	tcp     *dns.Client
	next    atomic.Uint64
}

// New builds a Resolver. With no servers configured it reads the system
// resolv.conf and falls back to FallbackServer.
func New(cfg Config) (*Resolver, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		addr, err := normalizeServer(s)
		if err != nil {
			return nil, err
		}
		servers = append(servers, addr)
	}
	if len(servers) == 0 {
		servers = systemServers()
	}

	return &Resolver{
		servers: servers,
		timeout: timeout,
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
	}, nil
}

// Servers returns the nameservers in use.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

func normalizeServer(s string) (string, error) {
	if host, port, err := net.SplitHostPort(s); err == nil {
		if _, perr := strconv.ParseUint(port, 10, 16); perr != nil || host == "" {
			return "", fmt.Errorf("invalid DNS server %q", s)
		}
		return s, nil
	}
	host := strings.Trim(s, "[]")
	if net.ParseIP(host) == nil && strings.ContainsAny(host, ":/ ") {
		return "", fmt.Errorf("invalid DNS server %q", s)
	}
	return net.JoinHostPort(host, "53"), nil
}

func systemServers() []string {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return []string{FallbackServer}
	}
	out := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		out = append(out, net.JoinHostPort(s, conf.Port))
	}
	return out
}

func (r *Resolver) pickServer() string {
	n := r.next.Add(1) - 1
	return r.servers[n%uint64(len(r.servers))]
}

// Resolve looks fqdn up once. The lookup is bounded by the configured timeout
// and by ctx.
func (r *Resolver) Resolve(ctx context.Context, fqdn string) Resolution {
	start := time.Now()
	fqdn = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(fqdn)), ".")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	server := r.pickServer()
	res := r.lookup(ctx, server, fqdn)
	metrics.GetMetrics().ObserveDNS(Outcome(res.Err), time.Since(start))
	return res
}

func (r *Resolver) lookup(ctx context.Context, server, fqdn string) Resolution {
	addrs, err := r.query(ctx, server, fqdn, dns.TypeA)
	if err == nil {
		return Resolution{Host: &ResolvedHost{FQDN: fqdn, Addresses: addrs, RecordType: RecordA}}
	}
	if !errors.Is(err, ErrNoAnswer) {
		return Resolution{Err: err}
	}

	// The name exists but has no A record; it may still be an alias.
	targets, err := r.query(ctx, server, fqdn, dns.TypeCNAME)
	if err != nil {
		return Resolution{Err: err}
	}
	return Resolution{Host: &ResolvedHost{FQDN: fqdn, Addresses: targets, RecordType: RecordCNAME}}
}

// query sends one question and returns the A addresses or CNAME targets in
// answer order.
func (r *Resolver) query(ctx context.Context, server, fqdn string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(fqdn), qtype)
	m.RecursionDesired = true

	in, _, err := r.udp.ExchangeContext(ctx, m, server)
	if err == nil && in != nil && in.Truncated {
		in, _, err = r.tcp.ExchangeContext(ctx, m, server)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fqdn, classifyTransportError(ctx, err))
	}
	if in == nil {
		return nil, fmt.Errorf("%s: %w", fqdn, ErrMalformed)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%s: %w", fqdn, ErrNXDomain)
	default:
		return nil, fmt.Errorf("%s: %w (%s)", fqdn, ErrServerFailure, dns.RcodeToString[in.Rcode])
	}

	var out []string
	for _, rr := range in.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, v.A.String())
			}
		case *dns.CNAME:
			if qtype == dns.TypeCNAME {
				out = append(out, strings.TrimSuffix(v.Target, "."))
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", fqdn, ErrNoAnswer)
	}
	return out, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	var de *dns.Error
	if errors.As(err, &de) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return err
}

// Outcome maps a lookup error to a short label for metrics and stats.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "resolved"
	case errors.Is(err, ErrNXDomain):
		return "nxdomain"
	case errors.Is(err, ErrNoAnswer):
		return "no_answer"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServerFailure):
		return "servfail"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
