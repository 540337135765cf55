// Package output renders scan findings: the console stream, report files,
// the SQLite history sink and progress displays.
package output

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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x-stp/rxsub/internal/core"
)

// ScanInfo describes a scan when it starts.
type ScanInfo struct {
	Domain     string
	StartedAt  time.Time
	Candidates int
	CTEnabled  bool
	Variant    string
	Permissive bool
}

// Summary holds aggregate scan statistics.
type Summary struct {
	Domain      string
	Candidates  int64
	CTLabels    int64
	Completed   int64
	Findings    int64
	Probed      int64
	DNSOnly     int64
	Unresolved  int64
	Panics      int64
	Duration    time.Duration
	PerSecond   float64
	Interrupted bool
	ReportPath  string
}

// NewSummary builds a Summary from the coordinator's counters.
func NewSummary(domain string, s core.StatsSnapshot, interrupted bool) Summary {
	return Summary{
		Domain:      domain,
		Candidates:  s.TotalCandidates,
		CTLabels:    s.CTCandidates,
		Completed:   s.Completed,
		Findings:    s.Findings(),
		Probed:      s.Probed,
		DNSOnly:     s.DNSOnly,
		Unresolved:  s.NXDomain + s.NoAnswer + s.Timeouts + s.ServerFailures + s.OtherFailures,
		Panics:      s.Panics,
		Duration:    s.Elapsed,
		PerSecond:   s.Rate(),
		Interrupted: interrupted,
	}
}

// Writer is implemented by each report sink.
type Writer interface {
	WriteHeader(info ScanInfo) error
	WriteFinding(f core.Finding) error
	WriteFooter(s Summary) error
	Close() error
}

// ReportFile is a Writer backed by a report file.
type ReportFile interface {
	Writer
	Path() string
	Written() int64
}

// MultiWriter fans out to several sinks. A failing sink is logged and does not
// stop the others or the scan. Safe for concurrent use if every sink is.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter skips nil writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	m := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiWriter) Len() int { return len(m.writers) }

func (m *MultiWriter) WriteHeader(info ScanInfo) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteHeader(info); err != nil {
			logrus.Warnf("Report sink header failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiWriter) WriteFinding(f core.Finding) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteFinding(f); err != nil {
			logrus.Warnf("Report sink failed writing %s: %v", f.FQDN(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiWriter) WriteFooter(s Summary) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteFooter(s); err != nil {
			logrus.Warnf("Report sink footer failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			logrus.Warnf("Closing report sink failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
