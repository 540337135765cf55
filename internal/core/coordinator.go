package core

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
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/x-stp/rxsub/internal/certlib"
	"github.com/x-stp/rxsub/internal/metrics"
	"github.com/x-stp/rxsub/internal/prober"
	"github.com/x-stp/rxsub/internal/resolver"
)

// Resolver looks a name up once.
type Resolver interface {
	Resolve(ctx context.Context, fqdn string) resolver.Resolution
}

// Prober checks a resolved name for a live HTTP service.
type Prober interface {
	Probe(ctx context.Context, fqdn string) prober.ProbeOutcome
}

// Progress is a periodic progress signal.
type Progress struct {
	Phase     CandidateSource
	Completed int64
	Total     int64
	Percent   float64
	// Rate is completions per elapsed second.
	Rate    float64
	Elapsed time.Duration
}

// ProgressReporter receives progress signals. Progress may be called from
// several workers at once.
type ProgressReporter interface {
	Progress(p Progress)
}

// FindingHandler receives each finding as it is inserted into the result set.
// It may be called from several workers at once.
type FindingHandler func(f Finding)

// CoordinatorConfig configures a scan.
type CoordinatorConfig struct {
	Concurrency     int
	Rate            float64
	PinWorkers      bool
	MaxCTCandidates int
	ProgressEvery   int
	Progress        ProgressReporter
	OnFinding       FindingHandler
}

// Coordinator runs one scan: it builds the candidate set, dispatches it through
// a scheduler and aggregates findings. A Coordinator is used for a single Run.
type Coordinator struct {
	resolver Resolver
	prober   Prober
	cfg      CoordinatorConfig

	results *ResultSet
	stats   *ScanStats
	phase   atomic.Value
}

// NewCoordinator applies defaults for zero config values.
func NewCoordinator(res Resolver, pr Prober, cfg CoordinatorConfig) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxCTCandidates == 0 {
		cfg.MaxCTCandidates = DefaultMaxCTCandidates
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	c := &Coordinator{
		resolver: res,
		prober:   pr,
		cfg:      cfg,
		results:  NewResultSet(),
		stats:    &ScanStats{StartTime: time.Now()},
	}
	c.phase.Store(SourceWordlist)
	return c
}

// Stats returns the live counters.
func (c *Coordinator) Stats() *ScanStats { return c.stats }

// Results returns the result set, which Run fills.
func (c *Coordinator) Results() *ResultSet { return c.results }

// Run scans domain. Wordlist labels are dispatched first; CT labels not already
// covered by the wordlist run in a second phase, capped at MaxCTCandidates.
// On cancellation Run returns the findings gathered so far with ctx.Err().
func (c *Coordinator) Run(ctx context.Context, domain string, wordlist, ct []string) ([]Finding, error) {
	root := certlib.NormalizeDomain(domain)
	if root == "" {
		return nil, fmt.Errorf("invalid domain %q", domain)
	}

	seen := make(map[uint64]struct{}, len(wordlist)+len(ct))
	phases := [][]Candidate{
		c.candidates(root, wordlist, SourceWordlist, seen, -1),
		c.candidates(root, ct, SourceCT, seen, c.cfg.MaxCTCandidates),
	}
	total := int64(len(phases[0]) + len(phases[1]))
	c.stats.TotalCandidates.Store(total)
	c.stats.CTCandidates.Store(int64(len(phases[1])))
	c.stats.StartTime = time.Now()
	metrics.GetMetrics().AddCandidates(string(SourceWordlist), len(phases[0]))
	metrics.GetMetrics().AddCandidates(string(SourceCT), len(phases[1]))

	sched := NewScheduler(ctx, SchedulerConfig{
		Workers:    c.cfg.Concurrency,
		Rate:       c.cfg.Rate,
		PinWorkers: c.cfg.PinWorkers,
	})
	defer sched.Shutdown()

	logrus.Infof("Scanning %s: %d wordlist and %d CT candidates with %d workers",
		root, len(phases[0]), len(phases[1]), sched.NumWorkers())

	for _, phase := range phases {
		if len(phase) == 0 {
			continue
		}
		c.phase.Store(phase[0].Source)
		c.dispatch(ctx, sched, phase)
		sched.Wait()
		if ctx.Err() != nil {
			break
		}
	}

	c.reportProgress()
	return c.results.Findings(), ctx.Err()
}

// candidates turns labels into FQDN-unique candidates not already in seen.
// limit < 0 means no limit.
func (c *Coordinator) candidates(root string, labels []string, src CandidateSource, seen map[uint64]struct{}, limit int) []Candidate {
	out := make([]Candidate, 0, len(labels))
	for _, l := range labels {
		if limit >= 0 && len(out) >= limit {
			break
		}
		label := certlib.NormalizeDomain(l)
		if label == "" || strings.Contains(label, "*") {
			continue
		}
		label = strings.TrimSuffix(label, "."+root)
		if label == root {
			continue
		}
		fqdn := label + "." + root
		key := xxh3.HashString(fqdn)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Label: label, FQDN: fqdn, Source: src})
	}
	return out
}

func (c *Coordinator) dispatch(ctx context.Context, sched *Scheduler, cands []Candidate) {
	for _, cand := range cands {
		cand := cand
		unit := func(item *WorkItem) error {
			c.process(item.Ctx, cand)
			return nil
		}
		err := sched.TrySubmit(ctx, cand.FQDN, unit)
		if errors.Is(err, ErrQueueFull) {
			// Every worker is busy and the queue is full; wait for room.
			err = sched.SubmitWork(ctx, cand.FQDN, unit)
		}
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logrus.Warnf("Dispatch stopped: %v", err)
			}
			return
		}
	}
}

// process is one unit of work: resolve, then probe only on success.
func (c *Coordinator) process(ctx context.Context, cand Candidate) {
	m := metrics.GetMetrics()
	m.AddInFlight(1)
	defer m.AddInFlight(-1)
	defer c.complete()
	defer func() {
		if r := recover(); r != nil {
			c.stats.Panics.Add(1)
			m.IncPanic("unit")
			logrus.Errorf("Recovered panic scanning %s: %v", cand.FQDN, r)
		}
	}()

	res := c.resolver.Resolve(ctx, cand.FQDN)
	if !res.OK() {
		c.stats.recordFailure(res.Err)
		logrus.Debugf("%s: unresolved (%s)", cand.FQDN, resolver.Outcome(res.Err))
		return
	}
	c.stats.Resolved.Add(1)

	outcome := c.prober.Probe(ctx, cand.FQDN)
	f := Finding{
		Candidate:    cand.Label,
		Source:       cand.Source,
		Resolved:     *res.Host,
		Probe:        outcome.Result,
		DiscoveredAt: time.Now(),
	}
	if !c.results.Add(f) {
		c.stats.Duplicates.Add(1)
		m.IncDuplicate()
		return
	}
	if f.DNSOnly() {
		c.stats.DNSOnly.Add(1)
	} else {
		c.stats.Probed.Add(1)
	}
	m.IncFinding(string(f.Source), f.Kind())
	if c.cfg.OnFinding != nil {
		c.cfg.OnFinding(f)
	}
}

func (c *Coordinator) complete() {
	n := c.stats.Completed.Add(1)
	if every := int64(c.cfg.ProgressEvery); every > 0 && n%every == 0 {
		c.reportProgress()
	}
}

func (c *Coordinator) reportProgress() {
	if c.cfg.Progress == nil {
		return
	}
	snap := c.stats.Snapshot()
	p := Progress{
		Phase:     c.phase.Load().(CandidateSource),
		Completed: snap.Completed,
		Total:     snap.TotalCandidates,
		Rate:      snap.Rate(),
		Elapsed:   snap.Elapsed,
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) / float64(p.Total) * 100
	}
	c.cfg.Progress.Progress(p)
}
