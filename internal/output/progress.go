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
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/x-stp/rxsub/internal/core"
)

// LineProgress prints one progress line per report.
type LineProgress struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineProgress writes to w, defaulting to stderr.
func NewLineProgress(w io.Writer) *LineProgress {
	if w == nil {
		w = os.Stderr
	}
	return &LineProgress{w: w}
}

// Progress implements core.ProgressReporter.
func (l *LineProgress) Progress(p core.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[%s] %d/%d (%.1f%%) %.1f/s elapsed %s\n",
		p.Phase, p.Completed, p.Total, p.Percent, p.Rate, p.Elapsed.Round(time.Second))
}

// BarProgress drives a terminal progress bar.
type BarProgress struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	max  int64
	last int64
}

// NewBarProgress creates a bar sized to total that renders on w.
func NewBarProgress(w io.Writer, total int64) *BarProgress {
	if w == nil {
		w = os.Stderr
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("names"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning subdomains..."),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return &BarProgress{bar: bar, max: total}
}

// Progress implements core.ProgressReporter. Workers report concurrently, so a
// snapshot older than the last one applied is dropped and the bar never moves back.
func (b *BarProgress) Progress(p core.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.Completed < b.last {
		return
	}
	b.last = p.Completed
	if p.Total != b.max && p.Total > 0 {
		b.max = p.Total
		b.bar.ChangeMax64(p.Total)
	}
	b.bar.Describe(fmt.Sprintf("Scanning (%s)...", p.Phase))
	_ = b.bar.Set64(p.Completed)
}

// Finish stops the bar and moves past it.
func (b *BarProgress) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
}
