package wordlist

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestBuildRichContainsNumberedVariants(t *testing.T) {
	t.Parallel()

	words := Build(Rich)
	for _, want := range []string{"app1", "app-1", "api10", "api-10", "db7", "server-3", "www", "waf"} {
		if !slices.Contains(words, want) {
			t.Errorf("Build(Rich) missing %q", want)
		}
	}
	if slices.Contains(words, "app11") {
		t.Errorf("Build(Rich) should stop numbering at 10")
	}
}

func TestBuildLightIsSmaller(t *testing.T) {
	t.Parallel()

	rich, light := Build(Rich), Build(Light)
	if len(light) >= len(rich) {
		t.Fatalf("light corpus (%d) should be smaller than rich (%d)", len(light), len(rich))
	}
	if slices.Contains(light, "db1") {
		t.Errorf("light variant should not number the db base")
	}
	if !slices.Contains(light, "server-5") || slices.Contains(light, "server6") {
		t.Errorf("light variant should number server 1..5")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	a, b := Build(Rich), Build(Rich)
	if !slices.Equal(a, b) {
		t.Fatalf("Build(Rich) returned different sequences across calls")
	}
	if n := len(a); n < 250 || n > 400 {
		t.Errorf("Build(Rich) size = %d, want 250..400", n)
	}
}

func TestParseVariant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{"", Rich, false},
		{"rich", Rich, false},
		{" LIGHT ", Light, false},
		{"huge", "", true},
	}
	for _, tc := range cases {
		got, err := ParseVariant(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseVariant(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseVariant(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadSkipsCommentsAndDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "words.txt")
	content := "# header\nwww\n\n  api  \nwww\n#api2\nmail\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"www", "api", "mail"}
	if !slices.Equal(got, want) {
		t.Fatalf("Load = %v, want %v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing wordlist")
	}
}
