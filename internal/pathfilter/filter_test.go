package pathfilter

import (
	"strings"
	"testing"
)

func TestExcludedMatchesCaseInsensitively(t *testing.T) {
	f, err := New([]string{`^\.cache/`, `\.tmp$`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{".cache/thumbnails/a.png", true},
		{".CACHE/thumbnails/a.png", true},
		{"videos/partial.TMP", true},
		{"videos/movie.mp4", false},
		{"", false},
		{".", false},
	}
	for _, tc := range cases {
		if got := f.Excluded(tc.path); got != tc.want {
			t.Fatalf("Excluded(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestInvalidPatternRejected(t *testing.T) {
	if _, err := New([]string{"[unclosed"}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestWhitelistBypassesBlacklist(t *testing.T) {
	f, err := New([]string{`^private/`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Excluded("private/doc.txt") {
		t.Fatal("expected private/doc.txt excluded before whitelist")
	}

	f.SetWhitelist([]string{"private/shared"})
	if f.Excluded("private/shared/doc.txt") {
		t.Fatal("whitelisted subtree should not be excluded")
	}
	if !f.Excluded("private/doc.txt") {
		t.Fatal("non-whitelisted sibling should stay excluded")
	}

	f.SetWhitelist(nil)
	if !f.Excluded("private/shared/doc.txt") {
		t.Fatal("clearing the whitelist should restore exclusion")
	}
}

func TestCleanRelative(t *testing.T) {
	base := "/srv/content"
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"videos/movie.mp4", "videos/movie.mp4", false},
		{"/videos/movie.mp4", "videos/movie.mp4", false},
		{"videos/movie.mp4/", "videos/movie.mp4", false},
		{"../etc/passwd", "", true},
		{"videos/../../etc", "", true},
		{"   ", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := CleanRelative(base, tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("CleanRelative(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanRelative(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CleanRelative(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanRelativeRootDot(t *testing.T) {
	got, err := CleanRelative("/srv/content", "/")
	if err == nil && got != "." {
		t.Fatalf("CleanRelative(/) = %q", got)
	}
}

func TestCleanExternal(t *testing.T) {
	got, err := CleanExternal("/mnt/usb/new-content/")
	if err != nil {
		t.Fatalf("CleanExternal: %v", err)
	}
	if got != "/mnt/usb/new-content" {
		t.Fatalf("unexpected path %q", got)
	}
	if _, err := CleanExternal("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
	if strings.TrimSpace(got) != got {
		t.Fatal("path should be trimmed")
	}
}
