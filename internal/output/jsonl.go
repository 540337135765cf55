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
	"context"
	"encoding/json"
	"time"

	"github.com/x-stp/rxsub/internal/core"
	rxio "github.com/x-stp/rxsub/internal/io"
	"github.com/x-stp/rxsub/internal/prober"
)

type jsonlEntry struct {
	Type       string              `json:"type"`
	FQDN       string              `json:"fqdn"`
	Candidate  string              `json:"candidate"`
	Source     string              `json:"source"`
	Addresses  []string            `json:"addresses"`
	RecordType string              `json:"record_type"`
	Probe      *prober.ProbeResult `json:"probe,omitempty"`
	Time       time.Time           `json:"discovered_at"`
}

type jsonlSummary struct {
	Type        string  `json:"type"`
	Domain      string  `json:"domain"`
	Candidates  int64   `json:"candidates"`
	Findings    int64   `json:"findings"`
	Probed      int64   `json:"probed"`
	DNSOnly     int64   `json:"dns_only"`
	DurationMs  int64   `json:"duration_ms"`
	PerSecond   float64 `json:"per_second"`
	Interrupted bool    `json:"interrupted"`
}

// JSONLReport writes one JSON object per finding followed by a summary line.
type JSONLReport struct {
	buf *rxio.AsyncBuffer
}

// NewJSONLReport opens path for writing, gzip-compressed when compress is set.
func NewJSONLReport(ctx context.Context, path string, compress bool) (*JSONLReport, error) {
	buf, err := rxio.NewAsyncBuffer(ctx, path, bufferOptions(compress))
	if err != nil {
		return nil, err
	}
	return &JSONLReport{buf: buf}, nil
}

// Path returns the final report path.
func (j *JSONLReport) Path() string { return j.buf.Path() }

// Written returns the uncompressed bytes written so far.
func (j *JSONLReport) Written() int64 { return j.buf.Metrics().BytesWritten.Load() }

func (j *JSONLReport) WriteHeader(ScanInfo) error { return nil }

func (j *JSONLReport) WriteFinding(f core.Finding) error {
	return j.writeLine(jsonlEntry{
		Type:       "finding",
		FQDN:       f.FQDN(),
		Candidate:  f.Candidate,
		Source:     string(f.Source),
		Addresses:  f.Resolved.Addresses,
		RecordType: string(f.Resolved.RecordType),
		Probe:      f.Probe,
		Time:       f.DiscoveredAt,
	})
}

func (j *JSONLReport) WriteFooter(s Summary) error {
	return j.writeLine(jsonlSummary{
		Type:        "summary",
		Domain:      s.Domain,
		Candidates:  s.Candidates,
		Findings:    s.Findings,
		Probed:      s.Probed,
		DNSOnly:     s.DNSOnly,
		DurationMs:  s.Duration.Milliseconds(),
		PerSecond:   s.PerSecond,
		Interrupted: s.Interrupted,
	})
}

// writeLine marshals v first so a line is written in one call.
func (j *JSONLReport) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = j.buf.Write(append(b, '\n'))
	return err
}

func (j *JSONLReport) Close() error { return j.buf.Close() }
