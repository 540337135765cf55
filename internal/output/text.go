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
	"fmt"
	"strings"
	"time"

	"github.com/x-stp/rxsub/internal/core"
	rxio "github.com/x-stp/rxsub/internal/io"
	"github.com/x-stp/rxsub/internal/resolver"
)

const separator = "----------------------------------------"

// TextReport writes a human-readable report file, one block per finding.
type TextReport struct {
	buf *rxio.AsyncBuffer
}

// NewTextReport opens path for writing, gzip-compressed when compress is set.
// The file appears under its final name on Close.
func NewTextReport(ctx context.Context, path string, compress bool) (*TextReport, error) {
	buf, err := rxio.NewAsyncBuffer(ctx, path, bufferOptions(compress))
	if err != nil {
		return nil, err
	}
	return &TextReport{buf: buf}, nil
}

// Path returns the final report path.
func (t *TextReport) Path() string { return t.buf.Path() }

// Written returns the uncompressed bytes written so far.
func (t *TextReport) Written() int64 { return t.buf.Metrics().BytesWritten.Load() }

func (t *TextReport) WriteHeader(info ScanInfo) error {
	_, err := fmt.Fprintf(t.buf, "Subdomain scan results - %s\nScan time: %s\n\n",
		info.Domain, info.StartedAt.Format("2006-01-02 15:04:05"))
	return err
}

func (t *TextReport) WriteFinding(f core.Finding) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", f.FQDN())
	fmt.Fprintf(&b, "%s: %s\n", addressLabel(f), strings.Join(f.Resolved.Addresses, ", "))
	fmt.Fprintf(&b, "Source: %s\n", f.Source)
	if p := f.Probe; p != nil {
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
		fmt.Fprintf(&b, "Status: %d\n", p.StatusCode)
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
		fmt.Fprintf(&b, "Server: %s\n", p.Server)
		fmt.Fprintf(&b, "Response time: %.0fms\n", p.ResponseTimeMs)
	} else {
		b.WriteString("HTTP: DNS only\n")
	}
	b.WriteString(separator + "\n")
	_, err := t.buf.WriteString(b.String())
	return err
}

func (t *TextReport) WriteFooter(s Summary) error {
	status := "completed"
	if s.Interrupted {
		status = "interrupted"
	}
	_, err := fmt.Fprintf(t.buf,
		"\nScan %s: %d findings (%d with HTTP, %d DNS only) from %d candidates in %s (%.1f/s)\n",
		status, s.Findings, s.Probed, s.DNSOnly, s.Candidates, s.Duration.Round(time.Millisecond), s.PerSecond)
	return err
}

func (t *TextReport) Close() error { return t.buf.Close() }

func bufferOptions(compress bool) *rxio.AsyncBufferOptions {
	opts := rxio.DefaultAsyncBufferOptions()
	opts.Compressed = compress
	return opts
}

func addressLabel(f core.Finding) string {
	if f.Resolved.RecordType == resolver.RecordCNAME {
		return "CNAME"
	}
	return "IP"
}
