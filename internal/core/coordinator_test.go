package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/x-stp/rxsub/internal/prober"
	"github.com/x-stp/rxsub/internal/resolver"
)

// fakeResolver resolves names listed in hosts; everything else is NXDOMAIN.
type fakeResolver struct {
	hosts map[string][]string
	delay time.Duration
	calls sync.Map // fqdn -> *atomic.Int32
}

func (r *fakeResolver) Resolve(ctx context.Context, fqdn string) resolver.Resolution {
	v, _ := r.calls.LoadOrStore(fqdn, new(atomic.Int32))
	v.(*atomic.Int32).Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return resolver.Resolution{Err: ctx.Err()}
		}
	}
	addrs, ok := r.hosts[fqdn]
	if !ok {
		return resolver.Resolution{Err: fmt.Errorf("%s: %w", fqdn, resolver.ErrNXDomain)}
	}
	return resolver.Resolution{Host: &resolver.ResolvedHost{FQDN: fqdn, Addresses: addrs, RecordType: resolver.RecordA}}
}

func (r *fakeResolver) callsFor(fqdn string) int32 {
	v, ok := r.calls.Load(fqdn)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

// fakeProber serves the configured result per name; others are unprobed.
type fakeProber struct {
	results map[string]*prober.ProbeResult
	panicOn string
	calls   atomic.Int32
}

func (p *fakeProber) Probe(_ context.Context, fqdn string) prober.ProbeOutcome {
	p.calls.Add(1)
	if fqdn == p.panicOn {
		panic("prober exploded")
	}
	return prober.ProbeOutcome{Result: p.results[fqdn]}
}

type recordingProgress struct {
	mu    sync.Mutex
	calls []Progress
}

func (r *recordingProgress) Progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
}

func fqdns(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.FQDN())
	}
	sort.Strings(out)
	return out
}

func TestRunEndToEndExample(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{hosts: map[string][]string{"www.example.com": {"93.184.216.34"}}}
	pr := &fakeProber{results: map[string]*prober.ProbeResult{
		"www.example.com": {URL: "https://www.example.com", StatusCode: 200, Title: "Example Domain", Server: "ECS"},
	}}

	c := NewCoordinator(res, pr, CoordinatorConfig{Concurrency: 4})
	findings, err := c.Run(context.Background(), "example.com", []string{"www", "nonexistent123xyz"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %d: %v", len(findings), fqdns(findings))
	}
	f := findings[0]
	if f.FQDN() != "www.example.com" || f.Probe == nil || f.Probe.StatusCode != 200 || f.Probe.Title != "Example Domain" {
		t.Fatalf("unexpected finding %+v", f)
	}
	if pr.calls.Load() != 1 {
		t.Fatalf("prober should run only for resolved names, got %d calls", pr.calls.Load())
	}

	snap := c.Stats().Snapshot()
	if snap.Completed != 2 || snap.Resolved != 1 || snap.NXDomain != 1 || snap.Probed != 1 {
		t.Fatalf("unexpected stats %+v", snap)
	}
}

func TestRunDNSOnlyFinding(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{hosts: map[string][]string{"mail.example.com": {"10.0.0.1"}}}
	c := NewCoordinator(res, &fakeProber{}, CoordinatorConfig{Concurrency: 2})
	findings, err := c.Run(context.Background(), "example.com", []string{"mail"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || !findings[0].DNSOnly() {
		t.Fatalf("expected one DNS-only finding, got %+v", findings)
	}
	if c.Stats().DNSOnly.Load() != 1 {
		t.Fatalf("DNSOnly counter = %d", c.Stats().DNSOnly.Load())
	}
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{hosts: map[string][]string{
		"www.example.com": {"1.1.1.1"},
		"api.example.com": {"1.1.1.2"},
		"vpn.example.com": {"1.1.1.3"},
	}}
	c := NewCoordinator(res, &fakeProber{}, CoordinatorConfig{Concurrency: 8})
	findings, err := c.Run(context.Background(), "Example.COM",
		[]string{"www", "api", "WWW", "www.example.com"},
		[]string{"api", "vpn", "vpn", "*.example", ""})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"api.example.com", "vpn.example.com", "www.example.com"}
	if got := fqdns(findings); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("findings = %v, want %v", got, want)
	}
	for _, name := range want {
		if n := res.callsFor(name); n != 1 {
			t.Fatalf("%s resolved %d times, want 1", name, n)
		}
	}
	for _, f := range findings {
		wantSrc := SourceWordlist
		if f.FQDN() == "vpn.example.com" {
			wantSrc = SourceCT
		}
		if f.Source != wantSrc {
			t.Fatalf("%s source = %s, want %s", f.FQDN(), f.Source, wantSrc)
		}
	}
	if snap := c.Stats().Snapshot(); snap.TotalCandidates != 3 || snap.CTCandidates != 1 {
		t.Fatalf("unexpected candidate counts %+v", snap)
	}
}

func TestRunCapsCTCandidates(t *testing.T) {
	t.Parallel()

	ct := make([]string, 250)
	for i := range ct {
		ct[i] = fmt.Sprintf("ct%d", i)
	}
	res := &fakeResolver{hosts: map[string][]string{}}
	c := NewCoordinator(res, &fakeProber{}, CoordinatorConfig{Concurrency: 16})
	if _, err := c.Run(context.Background(), "example.com", []string{"www"}, ct); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := c.Stats().Snapshot()
	if snap.CTCandidates != DefaultMaxCTCandidates || snap.Completed != DefaultMaxCTCandidates+1 {
		t.Fatalf("expected %d CT candidates resolved, got %+v", DefaultMaxCTCandidates, snap)
	}
	if res.callsFor("ct100.example.com") != 0 {
		t.Fatal("candidate beyond the CT cap was resolved")
	}
}

func TestRunConcurrencyDoesNotChangeResults(t *testing.T) {
	t.Parallel()

	hosts := map[string][]string{}
	var words []string
	for i := 0; i < 60; i++ {
		words = append(words, fmt.Sprintf("h%d", i))
		if i%3 == 0 {
			hosts[fmt.Sprintf("h%d.example.com", i)] = []string{"10.0.0.1"}
		}
	}

	var baseline []string
	for _, n := range []int{1, 7, 64} {
		c := NewCoordinator(&fakeResolver{hosts: hosts}, &fakeProber{}, CoordinatorConfig{Concurrency: n})
		findings, err := c.Run(context.Background(), "example.com", words, words[:10])
		if err != nil {
			t.Fatalf("concurrency %d: %v", n, err)
		}
		got := fqdns(findings)
		if len(got) != 20 {
			t.Fatalf("concurrency %d: expected 20 findings, got %d", n, len(got))
		}
		if baseline == nil {
			baseline = got
		} else if fmt.Sprint(got) != fmt.Sprint(baseline) {
			t.Fatalf("concurrency %d changed results", n)
		}
	}
}

func TestRunRecoversPanickingUnit(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{hosts: map[string][]string{
		"bad.example.com":  {"10.0.0.1"},
		"good.example.com": {"10.0.0.2"},
	}}
	pr := &fakeProber{panicOn: "bad.example.com"}
	c := NewCoordinator(res, pr, CoordinatorConfig{Concurrency: 2})
	findings, err := c.Run(context.Background(), "example.com", []string{"bad", "good"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fqdns(findings); len(got) != 1 || got[0] != "good.example.com" {
		t.Fatalf("findings = %v, want only good.example.com", got)
	}
	if snap := c.Stats().Snapshot(); snap.Panics != 1 || snap.Completed != 2 {
		t.Fatalf("unexpected stats %+v", snap)
	}
}

func TestRunCancellationReturnsPartialResults(t *testing.T) {
	t.Parallel()

	hosts := map[string][]string{}
	var words []string
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("n%d", i)
		words = append(words, name)
		hosts[name+".example.com"] = []string{"10.0.0.1"}
	}
	res := &fakeResolver{hosts: hosts, delay: 20 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := NewCoordinator(res, &fakeProber{}, CoordinatorConfig{Concurrency: 4})
	start := time.Now()
	findings, err := c.Run(ctx, "example.com", words, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if len(findings) >= len(words) {
		t.Fatalf("expected partial results, got %d", len(findings))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Run took %v after cancellation", elapsed)
	}
}

func TestRunReportsProgress(t *testing.T) {
	t.Parallel()

	var words []string
	for i := 0; i < 10; i++ {
		words = append(words, fmt.Sprintf("p%d", i))
	}
	rp := &recordingProgress{}
	var streamed atomic.Int32
	res := &fakeResolver{hosts: map[string][]string{"p1.example.com": {"10.0.0.1"}, "p2.example.com": {"10.0.0.2"}}}
	c := NewCoordinator(res, &fakeProber{}, CoordinatorConfig{
		Concurrency:   3,
		ProgressEvery: 5,
		Progress:      rp,
		OnFinding:     func(Finding) { streamed.Add(1) },
	})
	if _, err := c.Run(context.Background(), "example.com", words, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	// Two periodic reports plus the final one.
	if len(rp.calls) != 3 {
		t.Fatalf("expected 3 progress reports, got %d", len(rp.calls))
	}
	last := rp.calls[len(rp.calls)-1]
	if last.Completed != 10 || last.Total != 10 || last.Percent != 100 {
		t.Fatalf("unexpected final progress %+v", last)
	}
	if streamed.Load() != 2 {
		t.Fatalf("expected 2 streamed findings, got %d", streamed.Load())
	}
}

func TestRunRejectsEmptyDomain(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(&fakeResolver{}, &fakeProber{}, CoordinatorConfig{})
	if _, err := c.Run(context.Background(), "  ", []string{"www"}, nil); err == nil {
		t.Fatal("expected error for empty domain")
	}
}

// hashSlowResolver is slow for every name in one xxh3 hash class.
type hashSlowResolver struct {
	classes uint64
	slow    time.Duration
	slowN   atomic.Int32
}

func (r *hashSlowResolver) Resolve(ctx context.Context, fqdn string) resolver.Resolution {
	d := time.Millisecond
	if xxh3.HashString(fqdn)%r.classes == 0 {
		r.slowN.Add(1)
		d = r.slow
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return resolver.Resolution{Err: ctx.Err()}
	}
	return resolver.Resolution{Err: fmt.Errorf("%s: %w", fqdn, resolver.ErrNXDomain)}
}

func TestRunSlowNamesDoNotSerialize(t *testing.T) {
	t.Parallel()

	const workers = 8
	labels := make([]string, 800)
	for i := range labels {
		labels[i] = fmt.Sprintf("h%d", i)
	}
	res := &hashSlowResolver{classes: workers, slow: 40 * time.Millisecond}
	c := NewCoordinator(res, &fakeProber{}, CoordinatorConfig{Concurrency: workers})

	start := time.Now()
	if _, err := c.Run(context.Background(), "example.com", labels, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	// One worker running every slow name alone would need slowN*40ms.
	serial := time.Duration(res.slowN.Load()) * res.slow
	if elapsed >= serial/2 {
		t.Fatalf("slow names ran back to back: %d slow, elapsed %v (serial %v)", res.slowN.Load(), elapsed, serial)
	}
	if got := c.Stats().Snapshot().Completed; got != int64(len(labels)) {
		t.Fatalf("completed %d of %d", got, len(labels))
	}
}
