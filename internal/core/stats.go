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
	"errors"
	"sync/atomic"
	"time"

	"github.com/x-stp/rxsub/internal/resolver"
)

// ScanStats uses atomic counters for safe concurrent updates from workers.
type ScanStats struct {
	TotalCandidates atomic.Int64
	CTCandidates    atomic.Int64
	Completed       atomic.Int64
	Resolved        atomic.Int64
	Probed          atomic.Int64
	DNSOnly         atomic.Int64

	NXDomain       atomic.Int64
	NoAnswer       atomic.Int64
	Timeouts       atomic.Int64
	ServerFailures atomic.Int64
	OtherFailures  atomic.Int64
	// Retryable counts failures classified as transient.
	Retryable atomic.Int64

	Duplicates atomic.Int64
	Panics     atomic.Int64

	StartTime time.Time
}

// StatsSnapshot is a point-in-time copy of ScanStats.
type StatsSnapshot struct {
	TotalCandidates int64
	CTCandidates    int64
	Completed       int64
	Resolved        int64
	Probed          int64
	DNSOnly         int64
	NXDomain        int64
	NoAnswer        int64
	Timeouts        int64
	ServerFailures  int64
	OtherFailures   int64
	Retryable       int64
	Duplicates      int64
	Panics          int64
	Elapsed         time.Duration
}

// Rate returns completions per second.
func (s StatsSnapshot) Rate() float64 {
	if secs := s.Elapsed.Seconds(); secs > 0 {
		return float64(s.Completed) / secs
	}
	return 0
}

// Findings is the number of findings produced.
func (s StatsSnapshot) Findings() int64 { return s.Probed + s.DNSOnly }

// Snapshot copies the counters.
func (s *ScanStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalCandidates: s.TotalCandidates.Load(),
		CTCandidates:    s.CTCandidates.Load(),
		Completed:       s.Completed.Load(),
		Resolved:        s.Resolved.Load(),
		Probed:          s.Probed.Load(),
		DNSOnly:         s.DNSOnly.Load(),
		NXDomain:        s.NXDomain.Load(),
		NoAnswer:        s.NoAnswer.Load(),
		Timeouts:        s.Timeouts.Load(),
		ServerFailures:  s.ServerFailures.Load(),
		OtherFailures:   s.OtherFailures.Load(),
		Retryable:       s.Retryable.Load(),
		Duplicates:      s.Duplicates.Load(),
		Panics:          s.Panics.Load(),
		Elapsed:         time.Since(s.StartTime),
	}
}

// recordFailure counts an unresolved candidate by cause.
func (s *ScanStats) recordFailure(err error) {
	switch {
	case errors.Is(err, resolver.ErrNXDomain):
		s.NXDomain.Add(1)
	case errors.Is(err, resolver.ErrNoAnswer):
		s.NoAnswer.Add(1)
	case errors.Is(err, resolver.ErrTimeout):
		s.Timeouts.Add(1)
	case errors.Is(err, resolver.ErrServerFailure):
		s.ServerFailures.Add(1)
	default:
		s.OtherFailures.Add(1)
	}
	if IsRetryable(ClassifyResolution(err)) {
		s.Retryable.Add(1)
	}
}
