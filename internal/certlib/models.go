package certlib

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
	"strings"
)

// CTRecord is one certificate entry returned by the crt.sh JSON API.
// Only NameValue is needed for label extraction; the rest is kept for logging.
type CTRecord struct {
	ID         int64  `json:"id"`
	IssuerName string `json:"issuer_name"`
	CommonName string `json:"common_name"`
	// NameValue holds newline-separated SAN/CN entries.
	NameValue string `json:"name_value"`
}

// Names splits NameValue into its individual entries, lower-cased and trimmed.
func (r *CTRecord) Names() []string {
	raw := strings.Split(r.NameValue, "\n")
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(n)), ".")
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ExtractLabels turns CT records into candidate labels for domain.
// At most maxRecords records are examined (maxRecords <= 0 means all). An entry is
// kept only if it ends with "."+domain and contains no '*'. The suffix is stripped
// and the label normalized; the result is deduplicated in first-seen order.
func ExtractLabels(records []CTRecord, domain string, maxRecords int) []string {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil
	}
	if maxRecords > 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}

	suffix := "." + domain
	seen := make(map[string]struct{})
	var labels []string
	for i := range records {
		for _, name := range records[i].Names() {
			if strings.Contains(name, "*") || !strings.HasSuffix(name, suffix) {
				continue
			}
			label := NormalizeDomain(strings.TrimSuffix(name, suffix))
			if label == "" {
				continue
			}
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}
			labels = append(labels, label)
		}
	}
	return labels
}

// NormalizeDomain standardizes domain names and labels: lower case, surrounding
// whitespace and dots removed. Input that cannot be a host name (embedded
// whitespace, a path or a port) normalizes to "".
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.Trim(domain, ".")
	if domain == "" || strings.ContainsAny(domain, " \t\r\n/:") {
		return ""
	}
	return domain
}
