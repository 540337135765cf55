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
	"time"

	"github.com/x-stp/rxsub/internal/prober"
	"github.com/x-stp/rxsub/internal/resolver"
)

// CandidateSource tells where a candidate label came from.
type CandidateSource string

const (
	SourceWordlist CandidateSource = "wordlist"
	SourceCT       CandidateSource = "ct"
)

// Candidate is a label queued for resolution under the scan's root domain.
type Candidate struct {
	Label  string
	FQDN   string
	Source CandidateSource
}

// Finding is a candidate confirmed in DNS, with the probe result if any
// scheme answered. Findings are not modified after they are built.
type Finding struct {
	Candidate    string                `json:"candidate"`
	Source       CandidateSource       `json:"source"`
	Resolved     resolver.ResolvedHost `json:"resolved"`
	Probe        *prober.ProbeResult   `json:"probe,omitempty"`
	DiscoveredAt time.Time             `json:"discovered_at"`
}

// FQDN is the key the result set deduplicates on.
func (f *Finding) FQDN() string { return f.Resolved.FQDN }

// DNSOnly reports whether the host resolved but no scheme answered.
func (f *Finding) DNSOnly() bool { return f.Probe == nil }

// Kind is "probed" or "dns_only".
func (f *Finding) Kind() string {
	if f.DNSOnly() {
		return "dns_only"
	}
	return "probed"
}
