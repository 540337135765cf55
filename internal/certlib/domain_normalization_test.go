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
	"testing"
)

// TestNormalizeDomain provides table-driven tests for various domain formats and edge cases.
func TestNormalizeDomain(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple domain", "example.com", "example.com"},
		{"Subdomain", "www.example.com", "www.example.com"},
		{"Uppercase", "EXAMPLE.COM", "example.com"},
		{"Mixed case", "Www.Example.Com", "www.example.com"},
		{"Trailing dot", "example.com.", "example.com"},
		{"Multiple trailing dots", "example.com...", "example.com"},
		{"Leading dot", ".example.com", "example.com"},
		{"Leading/Trailing dots", ".example.com.", "example.com"},
		{"Leading/Trailing spaces", "  example.com  ", "example.com"},
		{"Bare label", " API ", "api"},
		{"Multi-level label", "Dev.EU", "dev.eu"},
		{"Wildcard kept", "*.EXAMPLE.COM", "*.example.com"},
		{"Punycode uppercase", "XN--BCHER-KVA.EXAMPLE.COM", "xn--bcher-kva.example.com"},
		{"Empty string", "", ""},
		{"Just spaces", "   ", ""},
		{"Just dots", "...", ""},
		{"Domain with port", "example.com:443", ""},
		{"URL", "https://example.com/", ""},
		{"Internal spaces", "example test.com", ""},
		{"Very long domain", strings.Repeat("a.", 100) + "com", strings.Repeat("a.", 100) + "com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			actual := NormalizeDomain(tc.input)
			if actual != tc.expected {
				t.Errorf("NormalizeDomain(%q) = %q; want %q", tc.input, actual, tc.expected)
			}
		})
	}
}

// BenchmarkNormalizeDomainSimple measures performance for a common, simple domain.
func BenchmarkNormalizeDomainSimple(b *testing.B) {
	domain := "www.example.com"
	for i := 0; i < b.N; i++ {
		_ = NormalizeDomain(domain)
	}
}

// BenchmarkNormalizeDomainMixedCaseTrailingDot measures performance for domains needing case and dot normalization.
func BenchmarkNormalizeDomainMixedCaseTrailingDot(b *testing.B) {
	domain := "Www.Example.COM."
	for i := 0; i < b.N; i++ {
		_ = NormalizeDomain(domain)
	}
}
