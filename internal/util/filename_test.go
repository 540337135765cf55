package util

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in, want string
	}{
		{"example.com", "example.com"},
		{"https://ct.example/log", "https___ct.example_log"},
		{`a*b?c"d<e>f|g`, "a_b_c_d_e_f_g"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tc := range testCases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReportFilenameIsDeterministic(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 0)
	if got := ReportFilename("Example.COM", "txt", ts); got != "subdomain_scan_example.com_1700000000.txt" {
		t.Fatalf("ReportFilename = %q", got)
	}
	if got := ReportFilename("example.com", ".jsonl", ts); got != "subdomain_scan_example.com_1700000000.jsonl" {
		t.Fatalf("ReportFilename = %q", got)
	}
	if ReportFilename("example.com", "", ts) != ReportFilename("example.com", "txt", ts) {
		t.Fatal("empty extension should default to txt")
	}
}
