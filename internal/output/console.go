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
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/x-stp/rxsub/internal/core"
)

// Console streams findings and the final summary to a terminal.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	domain  string
	probed  *color.Color
	dnsOnly *color.Color
	dim     *color.Color
	header  *color.Color
}

// NewConsole writes to w. Colors are disabled when noColor is set or w is not a terminal.
func NewConsole(w io.Writer, noColor bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	c := &Console{
		w:       w,
		probed:  color.New(color.FgGreen),
		dnsOnly: color.New(color.FgYellow),
		dim:     color.New(color.Faint),
		header:  color.New(color.FgCyan, color.Bold),
	}
	if noColor || !IsTerminal(w) {
		for _, col := range []*color.Color{c.probed, c.dnsOnly, c.dim, c.header} {
			col.DisableColor()
		}
	}
	return c
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) WriteHeader(info ScanInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domain = info.Domain
	mode := "strict"
	if info.Permissive {
		mode = "permissive"
	}
	_, err := c.header.Fprintf(c.w, "[*] Scanning %s: %d candidates, CT %s, %s HTTP predicate\n",
		info.Domain, info.Candidates, onOff(info.CTEnabled), mode)
	return err
}

// WriteFinding prints one line per finding: name, addresses and either
// "[status] title" or "[DNS Only]".
func (c *Console) WriteFinding(f core.Finding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	addrs := strings.Join(f.Resolved.Addresses, ", ")
	if p := f.Probe; p != nil {
		_, err := c.probed.Fprintf(c.w, "[+] %s (%s) [%d] %s\n", f.FQDN(), addrs, p.StatusCode, p.Title)
		return err
	}
	_, err := c.dnsOnly.Fprintf(c.w, "[+] %s (%s) [DNS Only]\n", f.FQDN(), addrs)
	return err
}

// WriteFooter prints the final summary. It is always printed, also for zero
// findings and after an interrupt.
func (c *Console) WriteFooter(s Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	title := "Scan complete"
	if s.Interrupted {
		title = "Scan interrupted, partial results"
	}
	fmt.Fprintf(&b, "\n%s for %s\n", title, s.Domain)
	fmt.Fprintf(&b, "  Candidates: %d (%d from CT), checked: %d\n", s.Candidates, s.CTLabels, s.Completed)
	fmt.Fprintf(&b, "  Findings:   %d (%d with HTTP, %d DNS only)\n", s.Findings, s.Probed, s.DNSOnly)
	fmt.Fprintf(&b, "  Elapsed:    %s (%.1f checks/s)\n", s.Duration.Round(time.Millisecond), s.PerSecond)
	if s.Panics > 0 {
		fmt.Fprintf(&b, "  Recovered worker panics: %d\n", s.Panics)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(&b, "  Report:     %s\n", s.ReportPath)
	}
	_, err := c.header.Fprint(c.w, b.String())
	return err
}

func (c *Console) Close() error { return nil }

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
