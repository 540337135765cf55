package util

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
	"strings"
	"time"
)

// SanitizeFilename creates a filesystem-safe filename from a domain or other string.
// Replaces common problematic characters with underscores and limits length.
func SanitizeFilename(input string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, input)
	maxLength := 100
	if len(replaced) > maxLength {
		return replaced[:maxLength]
	}
	return replaced
}

// ReportFilename derives the default report name for a scan of domain started at ts:
// subdomain_scan_<domain>_<unix>.<ext>.
func ReportFilename(domain, ext string, ts time.Time) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "txt"
	}
	return fmt.Sprintf("subdomain_scan_%s_%d.%s", SanitizeFilename(strings.ToLower(domain)), ts.Unix(), ext)
}
