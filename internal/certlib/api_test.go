package certlib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

func TestExtractLabelsFiltersWildcardsAndForeignNames(t *testing.T) {
	t.Parallel()

	records := []CTRecord{
		{NameValue: "www.example.com\n*.example.com\nAPI.example.com"},
		{NameValue: "example.com\nmail.example.com\nwww.example.com"},
		{NameValue: "evil-example.com\nfoo.example.org\nx.notexample.com"},
		{NameValue: "dev.eu.example.com.\n  \n"},
	}
	got := ExtractLabels(records, "Example.com", 0)
	want := []string{"www", "api", "mail", "dev.eu"}
	if !slices.Equal(got, want) {
		t.Fatalf("ExtractLabels = %v, want %v", got, want)
	}
}

func TestExtractLabelsCapsRecords(t *testing.T) {
	t.Parallel()

	records := make([]CTRecord, 10)
	for i := range records {
		records[i] = CTRecord{NameValue: fmt.Sprintf("host%d.example.com", i)}
	}
	got := ExtractLabels(records, "example.com", 3)
	if want := []string{"host0", "host1", "host2"}; !slices.Equal(got, want) {
		t.Fatalf("ExtractLabels with cap = %v, want %v", got, want)
	}
}

func TestCrtShSourceSearch(t *testing.T) {
	t.Parallel()

	var gotQuery, gotOutput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotOutput = r.URL.Query().Get("output")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]CTRecord{
			{ID: 1, CommonName: "www.example.com", NameValue: "www.example.com\nshop.example.com"},
			{ID: 2, CommonName: "*.example.com", NameValue: "*.example.com\nvpn.example.com"},
		})
	}))
	defer srv.Close()

	src := NewCrtShSource(srv.URL, srv.Client(), 5*time.Second, 50)
	got := src.Search(context.Background(), "example.com")

	if gotQuery != "%.example.com" || gotOutput != "json" {
		t.Fatalf("unexpected query q=%q output=%q", gotQuery, gotOutput)
	}
	if want := []string{"www", "shop", "vpn"}; !slices.Equal(got, want) {
		t.Fatalf("Search = %v, want %v", got, want)
	}
}

func TestCrtShSourceStopsDecodingAtCap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := make([]CTRecord, 200)
		for i := range records {
			records[i] = CTRecord{ID: int64(i), NameValue: fmt.Sprintf("n%d.example.com", i)}
		}
		_ = json.NewEncoder(w).Encode(records)
	}))
	defer srv.Close()

	got := NewCrtShSource(srv.URL, srv.Client(), 5*time.Second, 5).Search(context.Background(), "example.com")
	if len(got) != 5 {
		t.Fatalf("expected 5 labels from 5 records, got %d: %v", len(got), got)
	}
}

func TestCrtShSourceFailuresReturnEmpty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"name_value": "www.example.com"`))
		}},
		{"html instead of json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>busy</html>`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			got := NewCrtShSource(srv.URL, srv.Client(), 5*time.Second, 50).Search(context.Background(), "example.com")
			if len(got) != 0 {
				t.Fatalf("expected empty result, got %v", got)
			}
		})
	}
}

func TestCrtShSourceUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if got := NewCrtShSource(url, nil, time.Second, 50).Search(context.Background(), "example.com"); len(got) != 0 {
		t.Fatalf("expected empty result from closed server, got %v", got)
	}
}

func TestNopSource(t *testing.T) {
	t.Parallel()

	var src Source = NopSource{}
	if got := src.Search(context.Background(), "example.com"); got != nil {
		t.Fatalf("NopSource returned %v", got)
	}
}
